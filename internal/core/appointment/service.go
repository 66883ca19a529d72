package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Option は Service の任意依存を設定します。
type Option func(*Service)

// WithSlotLocker は予約時のスロットロックを設定します。
func WithSlotLocker(locker SlotLocker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithEventRecorder は予約イベントの記録先を設定します。
func WithEventRecorder(recorder EventRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.events = recorder
		}
	}
}

// WithIDGenerator は予約 ID の生成方法を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Service は予約ワークフローをまとめます。
type Service struct {
	repo      Repository
	checker   *Checker
	directory EmployeeDirectory
	locker    SlotLocker
	events    EventRecorder
	clock     Clock
	tx        TransactionManager
	newID     func() string
}

// UseCase は予約ユースケースの公開インターフェースです。
type UseCase interface {
	Book(ctx context.Context, in BookInput) (*Appointment, error)
	Cancel(ctx context.Context, in CancelInput) (*Appointment, error)
	Confirm(ctx context.Context, in TransitionInput) (*Appointment, error)
	Complete(ctx context.Context, in TransitionInput) (*Appointment, error)
	MarkNoShow(ctx context.Context, in TransitionInput) (*Appointment, error)
	Get(ctx context.Context, in GetInput) (*Appointment, error)
	CheckAvailability(ctx context.Context, in AvailabilityInput) (bool, error)
	BusySlots(ctx context.Context, in BusySlotsInput) ([]string, error)
	ListClientAppointments(ctx context.Context, in ListClientInput) ([]*Appointment, error)
	ListEmployeeAppointments(ctx context.Context, in ListEmployeeInput) ([]*Appointment, error)
	EmployeeSchedule(ctx context.Context, in ScheduleInput) (*Schedule, error)
	Stats(ctx context.Context, in StatsInput) (*Stats, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, directory EmployeeDirectory, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:      repo,
		checker:   NewChecker(repo),
		directory: directory,
		locker:    noopSlotLocker{},
		events:    noopEventRecorder{},
		clock:     clock,
		tx:        tx,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookInput は予約作成時の入力です。
type BookInput struct {
	ClientRef       string
	EmployeeRef     string
	ServiceKind     ServiceKind
	Date            string
	Time            string
	Notes           string
	DurationMinutes *int
	IdempotencyKey  *string
}

// CancelInput はキャンセル時の入力です。
type CancelInput struct {
	ID     string
	Actor  Actor
	Reason string
}

// TransitionInput はスタッフによる状態遷移の入力です。
type TransitionInput struct {
	ID    string
	Actor Actor
}

// GetInput は予約取得時の入力です。
type GetInput struct {
	ID    string
	Actor Actor
}

// AvailabilityInput は空き確認の入力です。
type AvailabilityInput struct {
	EmployeeRef string
	Date        string
	Time        string
	ExcludingID string
}

// BusySlotsInput は埋まっている時刻一覧の入力です。
type BusySlotsInput struct {
	EmployeeRef string
	Date        string
}

// ListClientInput は自分の予約一覧の入力です。
type ListClientInput struct {
	Actor  Actor
	Date   string
	Status *Status
	Limit  int
}

// ListEmployeeInput は担当者別予約一覧の入力です。
type ListEmployeeInput struct {
	Actor       Actor
	EmployeeRef string
	Date        string
	Status      *Status
	Limit       int
}

// ScheduleInput はログイン中スタッフの日別スケジュールの入力です。Date が空なら当日です。
type ScheduleInput struct {
	Actor Actor
	Date  string
}

// Schedule はスタッフの日別スケジュールです。
type Schedule struct {
	Employee     *employee.Employee
	Date         string
	Appointments []*Appointment
}

// StatsInput は集計の入力です。
type StatsInput struct {
	Actor       Actor
	EmployeeRef string
	DateFrom    string
	DateTo      string
}

// Book は新しい予約を pending で作成します。
// 同じクライアントが同じ冪等キーで再送した場合は最初の予約を返します。
func (s *Service) Book(ctx context.Context, in BookInput) (*Appointment, error) {
	draft, err := s.newDraft(in)
	if err != nil {
		return nil, err
	}

	if draft.IdempotencyKey != nil {
		existing, err := s.findReplay(ctx, draft)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	emp, err := s.directory.FindByCode(ctx, draft.EmployeeRef)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return nil, fmt.Errorf("employee %s: %w", draft.EmployeeRef, ErrEmployeeUnavailable)
		}
		return nil, err
	}
	if !emp.IsBookable() {
		return nil, fmt.Errorf("employee %s: %w", draft.EmployeeRef, ErrEmployeeUnavailable)
	}
	draft.Employee = EmployeeSnapshot{
		Ref:   emp.Code,
		Name:  emp.Name,
		Role:  string(emp.Position),
		Phone: emp.Phone,
		Email: emp.Email,
	}

	lockKey := SlotLockKey(draft.EmployeeRef, draft.Date, draft.Time)
	token, ok, err := s.locker.TryLock(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if !ok {
		return nil, ErrSlotLocked
	}
	defer func() {
		_ = s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token)
	}()

	var created *Appointment
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		free, err := s.checker.IsSlotFree(txCtx, SlotQuery{
			EmployeeRef: draft.EmployeeRef,
			Date:        draft.Date,
			Time:        draft.Time,
		})
		if err != nil {
			return err
		}
		if !free {
			return ErrSlotNoLongerAvailable
		}

		now := s.clock.Now()
		draft.ID = s.newID()
		draft.Status = StatusPending
		draft.CreatedAt = now
		draft.UpdatedAt = now

		result, err := s.repo.Create(txCtx, draft)
		if err != nil {
			return err
		}

		if err := s.events.Record(txCtx, DomainEvent{Type: EventTypeBooked, Appointment: result, OccurredAt: now}); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		created = result
		return nil
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		existing, replayErr := s.findReplay(ctx, draft)
		if replayErr != nil {
			return nil, replayErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Cancel は予約をキャンセルします。クライアントは自分の予約のみ操作できます。
func (s *Service) Cancel(ctx context.Context, in CancelInput) (*Appointment, error) {
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	if in.Actor.Role == RoleSystem {
		return nil, ErrForbidden
	}

	reason, err := normalizeReason(in.Reason)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, in.ID, in.Actor, EventCancel, func(a *Appointment, now time.Time) {
		a.Cancellation = &CancellationInfo{At: now, By: in.Actor.Role, Reason: reason}
	})
}

// Confirm は pending の予約を確定します。
func (s *Service) Confirm(ctx context.Context, in TransitionInput) (*Appointment, error) {
	if err := s.authorizeStaff(in.Actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, in.ID, in.Actor, EventConfirm, func(a *Appointment, now time.Time) {
		a.Confirmation = &ConfirmationInfo{At: now, By: in.Actor.Role}
	})
}

// Complete は予約を完了にします。
func (s *Service) Complete(ctx context.Context, in TransitionInput) (*Appointment, error) {
	if err := s.authorizeStaff(in.Actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, in.ID, in.Actor, EventComplete, nil)
}

// MarkNoShow は予約を無断欠席にします。
func (s *Service) MarkNoShow(ctx context.Context, in TransitionInput) (*Appointment, error) {
	if err := s.authorizeStaff(in.Actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, in.ID, in.Actor, EventMarkNoShow, nil)
}

// Get は予約を取得します。クライアントには自分の予約以外は存在しないものとして扱います。
func (s *Service) Get(ctx context.Context, in GetInput) (*Appointment, error) {
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var result *Appointment
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !canSee(in.Actor, found) {
			return ErrAppointmentNotFound
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// CheckAvailability はスロットが空いているかを返します。存在しない担当者は ErrEmployeeUnavailable です。
func (s *Service) CheckAvailability(ctx context.Context, in AvailabilityInput) (bool, error) {
	employeeRef, err := normalizeEmployeeRef(in.EmployeeRef)
	if err != nil {
		return false, err
	}
	date, err := NormalizeDate(in.Date)
	if err != nil {
		return false, err
	}
	clock, err := NormalizeTime(in.Time)
	if err != nil {
		return false, err
	}

	if _, err := s.directory.FindByCode(ctx, employeeRef); err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return false, fmt.Errorf("employee %s: %w", employeeRef, ErrEmployeeUnavailable)
		}
		return false, err
	}

	var free bool
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.checker.IsSlotFree(txCtx, SlotQuery{
			EmployeeRef: employeeRef,
			Date:        date,
			Time:        clock,
			ExcludingID: in.ExcludingID,
		})
		if err != nil {
			return err
		}
		free = result
		return nil
	}); err != nil {
		return false, err
	}

	return free, nil
}

// BusySlots は担当者の指定日の埋まっている時刻を返します。
func (s *Service) BusySlots(ctx context.Context, in BusySlotsInput) ([]string, error) {
	employeeRef, err := normalizeEmployeeRef(in.EmployeeRef)
	if err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	var slots []string
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.checker.BusySlots(txCtx, employeeRef, date)
		if err != nil {
			return err
		}
		slots = result
		return nil
	}); err != nil {
		return nil, err
	}

	return slots, nil
}

// ListClientAppointments は呼び出し元クライアントの予約一覧を返します。
func (s *Service) ListClientAppointments(ctx context.Context, in ListClientInput) ([]*Appointment, error) {
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	filter, err := normalizeListFilter(in.Date, in.Status, in.Limit)
	if err != nil {
		return nil, err
	}

	var result []*Appointment
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		list, err := s.repo.ListByClient(txCtx, in.Actor.Ref, filter)
		if err != nil {
			return err
		}
		result = list
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListEmployeeAppointments は担当者別の予約一覧を返します。スタッフのみ利用できます。
func (s *Service) ListEmployeeAppointments(ctx context.Context, in ListEmployeeInput) ([]*Appointment, error) {
	if err := s.authorizeStaff(in.Actor); err != nil {
		return nil, err
	}
	employeeRef, err := normalizeEmployeeRef(in.EmployeeRef)
	if err != nil {
		return nil, err
	}
	filter, err := normalizeListFilter(in.Date, in.Status, in.Limit)
	if err != nil {
		return nil, err
	}

	var result []*Appointment
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		list, err := s.repo.ListByEmployee(txCtx, employeeRef, filter)
		if err != nil {
			return err
		}
		result = list
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// EmployeeSchedule はログイン中スタッフの日別スケジュールを返します。
func (s *Service) EmployeeSchedule(ctx context.Context, in ScheduleInput) (*Schedule, error) {
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	if in.Actor.Role != RoleEmployee {
		return nil, ErrForbidden
	}

	date := s.clock.Now().Format(dateLayout)
	if in.Date != "" {
		normalized, err := NormalizeDate(in.Date)
		if err != nil {
			return nil, err
		}
		date = normalized
	}

	emp, err := s.directory.FindByUserID(ctx, in.Actor.Ref)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	schedule := &Schedule{Employee: emp, Date: date}
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		list, err := s.repo.ListByEmployeeAndDate(txCtx, emp.Code, date)
		if err != nil {
			return err
		}
		schedule.Appointments = list
		return nil
	}); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Stats はステータス別の件数を集計します。管理者のみ利用できます。
func (s *Service) Stats(ctx context.Context, in StatsInput) (*Stats, error) {
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	if in.Actor.Role != RoleAdmin {
		return nil, ErrForbidden
	}

	filter := StatsFilter{}
	if in.EmployeeRef != "" {
		ref, err := normalizeEmployeeRef(in.EmployeeRef)
		if err != nil {
			return nil, err
		}
		filter.EmployeeRef = ref
	}
	if in.DateFrom != "" {
		from, err := NormalizeDate(in.DateFrom)
		if err != nil {
			return nil, err
		}
		filter.DateFrom = from
	}
	if in.DateTo != "" {
		to, err := NormalizeDate(in.DateTo)
		if err != nil {
			return nil, err
		}
		filter.DateTo = to
	}
	if filter.DateFrom != "" && filter.DateTo != "" && filter.DateTo < filter.DateFrom {
		return nil, fmt.Errorf("date range: %w", ErrInvalidDate)
	}

	stats := &Stats{ByStatus: make(map[Status]int, len(AllStatuses))}
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		counts, err := s.repo.CountByStatus(txCtx, filter)
		if err != nil {
			return err
		}
		for _, status := range AllStatuses {
			stats.ByStatus[status] = counts[status]
			stats.Total += counts[status]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Service) newDraft(in BookInput) (*Appointment, error) {
	clientRef, err := normalizeClientRef(in.ClientRef)
	if err != nil {
		return nil, err
	}
	employeeRef, err := normalizeEmployeeRef(in.EmployeeRef)
	if err != nil {
		return nil, err
	}
	def, err := resolveService(in.ServiceKind, in.DurationMinutes)
	if err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}
	clock, err := NormalizeTime(in.Time)
	if err != nil {
		return nil, err
	}
	notes, err := normalizeNotes(in.Notes)
	if err != nil {
		return nil, err
	}
	key, err := normalizeIdempotencyKey(in.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	return &Appointment{
		ClientRef:       clientRef,
		EmployeeRef:     employeeRef,
		ServiceKind:     in.ServiceKind,
		ServiceName:     def.name,
		DurationMinutes: def.durationMinutes,
		Date:            date,
		Time:            clock,
		Notes:           notes,
		IdempotencyKey:  key,
	}, nil
}

// findReplay は同じ冪等キーの既存予約を返します。別のスロットに使われたキーは不正とします。
func (s *Service) findReplay(ctx context.Context, draft *Appointment) (*Appointment, error) {
	var existing *Appointment
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByIdempotencyKey(txCtx, draft.ClientRef, *draft.IdempotencyKey)
		if err != nil {
			return err
		}
		existing = found
		return nil
	})
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.EmployeeRef != draft.EmployeeRef || existing.Date != draft.Date || existing.Time != draft.Time {
		return nil, fmt.Errorf("key reused for a different slot: %w", ErrInvalidIdempotencyKey)
	}
	return existing, nil
}

func (s *Service) transition(ctx context.Context, rawID string, actor Actor, event Event, apply func(*Appointment, time.Time)) (*Appointment, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !canSee(actor, current) {
			return ErrAppointmentNotFound
		}

		next, err := current.Status.Next(event)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		current.Status = next
		current.UpdatedAt = now
		if apply != nil {
			apply(current, now)
		}

		result, err := s.repo.UpdateStatus(txCtx, current)
		if err != nil {
			return err
		}

		if err := s.events.Record(txCtx, DomainEvent{Type: eventTypeFor(next), Appointment: result, OccurredAt: now}); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) authorizeStaff(actor Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return nil
}

func canSee(actor Actor, a *Appointment) bool {
	if actor.Role == RoleClient {
		return a.ClientRef == actor.Ref
	}
	return true
}

func eventTypeFor(status Status) string {
	switch status {
	case StatusConfirmed:
		return EventTypeConfirmed
	case StatusCancelled:
		return EventTypeCancelled
	case StatusCompleted:
		return EventTypeCompleted
	case StatusNoShow:
		return EventTypeNoShow
	default:
		return EventTypeBooked
	}
}
