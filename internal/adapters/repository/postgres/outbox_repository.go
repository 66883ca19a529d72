package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	pgdb "github.com/ogurasousui/gym-appointments/internal/platform/db/postgres"
	"github.com/ogurasousui/gym-appointments/internal/platform/telemetry"
)

const appointmentAggregate = "appointment"

// OutboxRecord は未配信のアウトボックス行です。
type OutboxRecord struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// AppointmentEventPayload はアウトボックスに保存する予約イベントの本文です。
type AppointmentEventPayload struct {
	EventID         string     `json:"event_id"`
	EventType       string     `json:"event_type"`
	OccurredAt      time.Time  `json:"occurred_at"`
	AppointmentID   string     `json:"appointment_id"`
	ClientRef       string     `json:"client_ref"`
	EmployeeRef     string     `json:"employee_ref"`
	EmployeeName    string     `json:"employee_name"`
	ServiceKind     string     `json:"service_kind"`
	DurationMinutes int        `json:"duration_minutes"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	Status          string     `json:"status"`
	ChangedBy       string     `json:"changed_by,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
}

// OutboxRepository は予約イベントをアウトボックステーブルに記録します。
// Record は予約の書き込みと同じトランザクションで呼び出される前提です。
type OutboxRepository struct {
	pool  pgdb.Queryer
	newID func() string
}

// NewOutboxRepository は OutboxRepository を生成します。
func NewOutboxRepository(pool pgdb.Queryer) *OutboxRepository {
	return &OutboxRepository{pool: pool, newID: uuid.NewString}
}

// Record は appointment.EventRecorder を実装します。
func (r *OutboxRepository) Record(ctx context.Context, event appointment.DomainEvent) error {
	if event.Appointment == nil {
		return fmt.Errorf("outbox: event %s has no appointment", event.Type)
	}

	eventID := r.newID()
	payload, err := json.Marshal(newAppointmentEventPayload(eventID, event))
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}

	traceparent, tracestate := telemetry.TraceContextStrings(ctx)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err = exec.Exec(ctx, `
        INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `,
		eventID,
		appointmentAggregate,
		event.Appointment.ID,
		event.Type,
		payload,
		nullableText(traceparent),
		nullableText(tracestate),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("outbox: insert: %w", err)
	}
	return nil
}

// FetchUnpublished は未配信のイベントを古い順に行ロック付きで取得します。
// 複数のパブリッシャーが動いていても SKIP LOCKED により同じ行を二重に取得しません。
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, aggregate_type, aggregate_id, event_type, payload,
               COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
          FROM outbox_events
         WHERE published_at IS NULL
         ORDER BY created_at ASC
         LIMIT $1
           FOR UPDATE SKIP LOCKED
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: fetch: %w", err)
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AggregateType,
			&rec.AggregateID,
			&rec.EventType,
			&rec.Payload,
			&rec.Traceparent,
			&rec.Tracestate,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: fetch: %w", err)
	}
	return records, nil
}

// MarkPublished は配信済みの行に published_at を設定します。
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        UPDATE outbox_events
           SET published_at = $1
         WHERE id::text = ANY($2)
    `, at, ids); err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

func newAppointmentEventPayload(eventID string, event appointment.DomainEvent) AppointmentEventPayload {
	a := event.Appointment
	payload := AppointmentEventPayload{
		EventID:         eventID,
		EventType:       event.Type,
		OccurredAt:      event.OccurredAt,
		AppointmentID:   a.ID,
		ClientRef:       a.ClientRef,
		EmployeeRef:     a.EmployeeRef,
		EmployeeName:    a.Employee.Name,
		ServiceKind:     string(a.ServiceKind),
		DurationMinutes: a.DurationMinutes,
		Date:            a.Date,
		Time:            a.Time,
		Status:          string(a.Status),
	}

	switch event.Type {
	case appointment.EventTypeCancelled:
		if c := a.Cancellation; c != nil {
			at := c.At
			payload.ChangedBy = string(c.By)
			payload.Reason = c.Reason
			payload.CancelledAt = &at
		}
	case appointment.EventTypeConfirmed:
		if c := a.Confirmation; c != nil {
			at := c.At
			payload.ChangedBy = string(c.By)
			payload.ConfirmedAt = &at
		}
	}

	return payload
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}
