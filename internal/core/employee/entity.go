package employee

import "time"

// Status は従業員の在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Position は従業員の職種です。予約のサービス種別と対応します。
type Position string

const (
	PositionBarber  Position = "barber"
	PositionStylist Position = "stylist"
	PositionCoach   Position = "coach"
)

// Employee はジムのスタッフエンティティです。
// Code は 70XXXX 形式の従業員コードで、予約の担当者参照に使われます。
type Employee struct {
	ID        string
	Code      string
	UserID    *string
	Name      string
	Email     string
	Phone     string
	Position  Position
	Status    Status
	HiredAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBookable は予約を受け付けられる状態かどうかを返します。
func (e *Employee) IsBookable() bool {
	return e != nil && e.Status == StatusActive
}
