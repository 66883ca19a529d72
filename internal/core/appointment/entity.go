package appointment

import "time"

// Status は予約の状態を表します。
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// AllStatuses は集計時の表示順を兼ねます。
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

// IsTerminal は以降の遷移が定義されていない状態かどうかを返します。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}

// IsActive はスロットを占有する状態かどうかを返します。cancelled 以外はすべて占有扱いです。
func (s Status) IsActive() bool {
	return s != StatusCancelled
}

// Event は状態遷移を引き起こす操作です。
type Event string

const (
	EventConfirm    Event = "confirm"
	EventCancel     Event = "cancel"
	EventComplete   Event = "complete"
	EventMarkNoShow Event = "mark_no_show"
)

// Next は現在の状態に event を適用した遷移先を返します。
func (s Status) Next(event Event) (Status, error) {
	if s.IsTerminal() {
		return "", ErrAlreadyTerminal
	}

	switch event {
	case EventConfirm:
		if s == StatusPending {
			return StatusConfirmed, nil
		}
	case EventCancel:
		if s == StatusPending || s == StatusConfirmed {
			return StatusCancelled, nil
		}
	case EventComplete:
		if s == StatusPending || s == StatusConfirmed {
			return StatusCompleted, nil
		}
	case EventMarkNoShow:
		if s == StatusPending || s == StatusConfirmed {
			return StatusNoShow, nil
		}
	}

	return "", ErrInvalidTransition
}

// ServiceKind はサービス種別です。既定の所要時間を決めます。
type ServiceKind string

const (
	ServiceHaircut  ServiceKind = "haircut"
	ServiceStyling  ServiceKind = "styling"
	ServiceCoaching ServiceKind = "coaching"
)

type serviceDefinition struct {
	name            string
	durationMinutes int
}

var serviceCatalog = map[ServiceKind]serviceDefinition{
	ServiceHaircut:  {name: "Barber service", durationMinutes: 30},
	ServiceStyling:  {name: "Cut and styling", durationMinutes: 45},
	ServiceCoaching: {name: "Personal training", durationMinutes: 60},
}

// Role は操作者の役割です。
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor は認証済みの呼び出し元です。
type Actor struct {
	Ref  string
	Role Role
}

// IsStaff は従業員または管理者かどうかを返します。
func (a Actor) IsStaff() bool {
	return a.Role == RoleEmployee || a.Role == RoleAdmin
}

// EmployeeSnapshot は予約作成時点の担当者情報の写しです。
// 従業員情報がその後更新されても書き換えません。
type EmployeeSnapshot struct {
	Ref   string
	Name  string
	Role  string
	Phone string
	Email string
}

// CancellationInfo はキャンセル時にのみ設定されます。
type CancellationInfo struct {
	At     time.Time
	By     Role
	Reason string
}

// ConfirmationInfo は確定時にのみ設定されます。
type ConfirmationInfo struct {
	At time.Time
	By Role
}

// Appointment は予約エンティティです。
type Appointment struct {
	ID              string
	ClientRef       string
	EmployeeRef     string
	Employee        EmployeeSnapshot
	ServiceKind     ServiceKind
	ServiceName     string
	DurationMinutes int
	Date            string
	Time            string
	Status          Status
	Notes           string
	Cancellation    *CancellationInfo
	Confirmation    *ConfirmationInfo
	IdempotencyKey  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SlotQuery は空き確認の条件です。
type SlotQuery struct {
	EmployeeRef string
	Date        string
	Time        string
	ExcludingID string
}

// Stats はステータス別の件数です。
type Stats struct {
	Total    int
	ByStatus map[Status]int
}
