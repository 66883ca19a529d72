package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	pgdb "github.com/ogurasousui/gym-appointments/internal/platform/db/postgres"
)

const (
	activeSlotConstraint     = "appointments_active_slot_key"
	idempotencyKeyConstraint = "appointments_client_idempotency_key"
	invalidTextCode          = "22P02"
)

const appointmentColumns = `id, client_ref, employee_ref, employee_name, employee_role, employee_phone, employee_email,
               service_kind, service_name, duration_minutes, to_char(date, 'YYYY-MM-DD'), time, status, notes,
               cancelled_at, cancelled_by, cancellation_reason, confirmed_at, confirmed_by, idempotency_key,
               created_at, updated_at`

// AppointmentRepository は PostgreSQL を利用した予約永続化の実装です。
// スロットの一意性は部分ユニークインデックス appointments_active_slot_key に委ねます。
type AppointmentRepository struct {
	pool pgdb.Queryer
}

// NewAppointmentRepository は AppointmentRepository を生成します。
func NewAppointmentRepository(pool pgdb.Queryer) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// Create は予約を登録します。
func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO appointments (id, client_ref, employee_ref, employee_name, employee_role, employee_phone, employee_email,
                                  service_kind, service_name, duration_minutes, date, time, status, notes,
                                  idempotency_key, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING `+appointmentColumns,
		a.ID,
		a.ClientRef,
		a.EmployeeRef,
		a.Employee.Name,
		a.Employee.Role,
		a.Employee.Phone,
		a.Employee.Email,
		string(a.ServiceKind),
		a.ServiceName,
		a.DurationMinutes,
		a.Date,
		a.Time,
		string(a.Status),
		a.Notes,
		nullableString(a.IdempotencyKey),
		a.CreatedAt,
		a.UpdatedAt,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return created, nil
}

// FindByID は ID で予約を取得します。
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*appointment.Appointment, error) {
	return r.findOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

// FindByIDForUpdate は行ロックを取得して予約を取得します。トランザクション内で呼び出してください。
func (r *AppointmentRepository) FindByIDForUpdate(ctx context.Context, id string) (*appointment.Appointment, error) {
	return r.findOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

// FindByIdempotencyKey はクライアントと冪等キーで予約を取得します。
func (r *AppointmentRepository) FindByIdempotencyKey(ctx context.Context, clientRef, key string) (*appointment.Appointment, error) {
	return r.findOne(ctx, `
        SELECT `+appointmentColumns+`
          FROM appointments
         WHERE client_ref = $1 AND idempotency_key = $2
         LIMIT 1
    `, clientRef, key)
}

func (r *AppointmentRepository) findOne(ctx context.Context, query string, args ...any) (*appointment.Appointment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := scanAppointment(exec.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return found, nil
}

// ListByClient はクライアントの予約を日付・時刻順に取得します。
func (r *AppointmentRepository) ListByClient(ctx context.Context, clientRef string, filter appointment.ListFilter) ([]*appointment.Appointment, error) {
	return r.list(ctx, "client_ref", clientRef, filter)
}

// ListByEmployee は担当者の予約を日付・時刻順に取得します。
func (r *AppointmentRepository) ListByEmployee(ctx context.Context, employeeRef string, filter appointment.ListFilter) ([]*appointment.Appointment, error) {
	return r.list(ctx, "employee_ref", employeeRef, filter)
}

// ListByEmployeeAndDate は担当者の指定日の予約をすべて時刻順に取得します。
func (r *AppointmentRepository) ListByEmployeeAndDate(ctx context.Context, employeeRef, date string) ([]*appointment.Appointment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+appointmentColumns+`
          FROM appointments
         WHERE employee_ref = $1 AND date = $2
         ORDER BY time ASC, created_at ASC
    `, employeeRef, date)
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return collectAppointments(rows, 0)
}

func (r *AppointmentRepository) list(ctx context.Context, ownerColumn, owner string, filter appointment.ListFilter) ([]*appointment.Appointment, error) {
	if filter.Limit <= 0 {
		return nil, appointment.ErrInvalidLimit
	}

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 3)

	args = append(args, owner)
	conditions = append(conditions, ownerColumn+" = $"+strconv.Itoa(len(args)))

	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, "date = $"+strconv.Itoa(len(args)))
	}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	args = append(args, filter.Limit)
	limitPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + appointmentColumns + `
          FROM appointments
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY date ASC, time ASC, created_at ASC
         LIMIT ` + limitPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return collectAppointments(rows, filter.Limit)
}

// ExistsActive は cancelled 以外の予約がスロットに存在するかを返します。
func (r *AppointmentRepository) ExistsActive(ctx context.Context, q appointment.SlotQuery) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
              FROM appointments
             WHERE employee_ref = $1
               AND date = $2
               AND time = $3
               AND status <> 'cancelled'`
	args := []any{q.EmployeeRef, q.Date, q.Time}
	if q.ExcludingID != "" {
		query += `
               AND id::text <> $4`
		args = append(args, q.ExcludingID)
	}
	query += `
        )`

	var exists bool
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if err := exec.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, translateAppointmentPgError(err)
	}
	return exists, nil
}

// UpdateStatus は状態と付随情報のみを書き換えます。担当者やクライアントは変更しません。
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	var (
		cancelledAt, confirmedAt       *time.Time
		cancelledBy, reason, confirmBy *string
	)
	if c := a.Cancellation; c != nil {
		at := c.At
		by := string(c.By)
		text := c.Reason
		cancelledAt, cancelledBy, reason = &at, &by, &text
	}
	if c := a.Confirmation; c != nil {
		at := c.At
		by := string(c.By)
		confirmedAt, confirmBy = &at, &by
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE appointments
           SET status = $1,
               cancelled_at = $2,
               cancelled_by = $3,
               cancellation_reason = $4,
               confirmed_at = $5,
               confirmed_by = $6,
               updated_at = $7
         WHERE id = $8
        RETURNING `+appointmentColumns,
		string(a.Status),
		cancelledAt,
		cancelledBy,
		reason,
		confirmedAt,
		confirmBy,
		a.UpdatedAt,
		a.ID,
	)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return updated, nil
}

// CountByStatus はステータスごとの件数を返します。
func (r *AppointmentRepository) CountByStatus(ctx context.Context, filter appointment.StatsFilter) (map[appointment.Status]int, error) {
	args := make([]any, 0, 3)
	conditions := make([]string, 0, 3)

	if filter.EmployeeRef != "" {
		args = append(args, filter.EmployeeRef)
		conditions = append(conditions, "employee_ref = $"+strconv.Itoa(len(args)))
	}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		conditions = append(conditions, "date >= $"+strconv.Itoa(len(args)))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		conditions = append(conditions, "date <= $"+strconv.Itoa(len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `SELECT status, COUNT(*) FROM appointments`+whereClause+` GROUP BY status`, args...)
	if err != nil {
		return nil, translateAppointmentPgError(err)
	}
	defer rows.Close()

	counts := make(map[appointment.Status]int)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[appointment.Status(status)] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return counts, nil
}

func collectAppointments(rows pgx.Rows, capacity int) ([]*appointment.Appointment, error) {
	defer rows.Close()

	result := make([]*appointment.Appointment, 0, capacity)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, translateAppointmentPgError(err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAppointmentPgError(err)
	}
	return result, nil
}

func scanAppointment(row pgx.Row) (*appointment.Appointment, error) {
	var (
		a              appointment.Appointment
		serviceKind    string
		status         string
		cancelledAt    sql.NullTime
		cancelledBy    sql.NullString
		reason         sql.NullString
		confirmedAt    sql.NullTime
		confirmedBy    sql.NullString
		idempotencyKey sql.NullString
	)

	if err := row.Scan(
		&a.ID,
		&a.ClientRef,
		&a.EmployeeRef,
		&a.Employee.Name,
		&a.Employee.Role,
		&a.Employee.Phone,
		&a.Employee.Email,
		&serviceKind,
		&a.ServiceName,
		&a.DurationMinutes,
		&a.Date,
		&a.Time,
		&status,
		&a.Notes,
		&cancelledAt,
		&cancelledBy,
		&reason,
		&confirmedAt,
		&confirmedBy,
		&idempotencyKey,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Employee.Ref = a.EmployeeRef
	a.ServiceKind = appointment.ServiceKind(serviceKind)
	a.Status = appointment.Status(status)

	if cancelledAt.Valid {
		a.Cancellation = &appointment.CancellationInfo{
			At:     cancelledAt.Time.UTC(),
			By:     appointment.Role(cancelledBy.String),
			Reason: reason.String,
		}
	}
	if confirmedAt.Valid {
		a.Confirmation = &appointment.ConfirmationInfo{
			At: confirmedAt.Time.UTC(),
			By: appointment.Role(confirmedBy.String),
		}
	}
	if idempotencyKey.Valid {
		key := idempotencyKey.String
		a.IdempotencyKey = &key
	}

	return &a, nil
}

func translateAppointmentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return appointment.ErrAppointmentNotFound
	}

	if constraint, ok := pgdb.ConstraintViolation(err, pgdb.UniqueViolationCode); ok {
		switch constraint {
		case activeSlotConstraint:
			return appointment.ErrSlotConflict
		case idempotencyKeyConstraint:
			return appointment.ErrDuplicateIdempotencyKey
		}
		return err
	}

	if constraint, ok := pgdb.ConstraintViolation(err, pgdb.CheckViolationCode); ok {
		switch constraint {
		case "appointments_duration_check":
			return appointment.ErrInvalidDuration
		case "appointments_time_check":
			return appointment.ErrInvalidTime
		default:
			return fmt.Errorf("%s: %w", constraint, appointment.ErrInvalidStatus)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextCode {
		return appointment.ErrAppointmentNotFound
	}

	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
