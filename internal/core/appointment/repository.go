package appointment

import (
	"context"
	"time"

	"github.com/ogurasousui/gym-appointments/internal/core/employee"
)

// Repository は予約永続化の抽象です。
// Create はアクティブなスロットの一意制約違反を ErrSlotConflict として返す必要があります。
type Repository interface {
	Create(ctx context.Context, appointment *Appointment) (*Appointment, error)
	FindByID(ctx context.Context, id string) (*Appointment, error)
	FindByIDForUpdate(ctx context.Context, id string) (*Appointment, error)
	ListByClient(ctx context.Context, clientRef string, filter ListFilter) ([]*Appointment, error)
	ListByEmployee(ctx context.Context, employeeRef string, filter ListFilter) ([]*Appointment, error)
	ListByEmployeeAndDate(ctx context.Context, employeeRef, date string) ([]*Appointment, error)
	ExistsActive(ctx context.Context, query SlotQuery) (bool, error)
	UpdateStatus(ctx context.Context, appointment *Appointment) (*Appointment, error)
	FindByIdempotencyKey(ctx context.Context, clientRef, key string) (*Appointment, error)
	CountByStatus(ctx context.Context, filter StatsFilter) (map[Status]int, error)
}

// ListFilter は一覧取得用フィルタです。結果は日付・時刻の昇順です。
type ListFilter struct {
	Date   string
	Status *Status
	Limit  int
}

// StatsFilter は集計対象を絞り込みます。空のフィールドは条件に含めません。
type StatsFilter struct {
	EmployeeRef string
	DateFrom    string
	DateTo      string
}

// EmployeeDirectory は担当者情報の参照先です。
type EmployeeDirectory interface {
	FindByCode(ctx context.Context, code string) (*employee.Employee, error)
	FindByUserID(ctx context.Context, userID string) (*employee.Employee, error)
}

// SlotLocker は予約処理中のスロットを短時間排他します。
// 取得できなかった場合は ok=false を返します。
type SlotLocker interface {
	TryLock(ctx context.Context, key string) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type noopSlotLocker struct{}

func (noopSlotLocker) TryLock(context.Context, string) (string, bool, error) {
	return "", true, nil
}

func (noopSlotLocker) Unlock(context.Context, string, string) error {
	return nil
}

// 予約イベントの種別です。
const (
	EventTypeBooked    = "appointment.booked"
	EventTypeConfirmed = "appointment.confirmed"
	EventTypeCancelled = "appointment.cancelled"
	EventTypeCompleted = "appointment.completed"
	EventTypeNoShow    = "appointment.no_show"
)

// DomainEvent は予約の書き込みと同じトランザクションで記録されるイベントです。
type DomainEvent struct {
	Type        string
	Appointment *Appointment
	OccurredAt  time.Time
}

// EventRecorder は DomainEvent を永続化します。
type EventRecorder interface {
	Record(ctx context.Context, event DomainEvent) error
}

type noopEventRecorder struct{}

func (noopEventRecorder) Record(context.Context, DomainEvent) error {
	return nil
}

// SlotLockKey は担当者・日付・時刻からロックキーを組み立てます。
func SlotLockKey(employeeRef, date, clock string) string {
	return "slot:" + employeeRef + ":" + date + ":" + clock
}
