package appointment

import "errors"

var (
	ErrInvalidID             = errors.New("appointment: invalid id")
	ErrInvalidClientRef      = errors.New("appointment: invalid client reference")
	ErrInvalidEmployeeRef    = errors.New("appointment: invalid employee reference")
	ErrInvalidServiceKind    = errors.New("appointment: invalid service kind")
	ErrInvalidDate           = errors.New("appointment: invalid date")
	ErrInvalidTime           = errors.New("appointment: invalid time")
	ErrInvalidDuration       = errors.New("appointment: invalid service duration")
	ErrInvalidNotes          = errors.New("appointment: notes too long")
	ErrInvalidReason         = errors.New("appointment: cancellation reason too long")
	ErrInvalidStatus         = errors.New("appointment: invalid status")
	ErrInvalidIdempotencyKey = errors.New("appointment: invalid idempotency key")
	ErrInvalidLimit          = errors.New("appointment: invalid limit")
	ErrInvalidActor          = errors.New("appointment: invalid actor")

	ErrEmployeeUnavailable   = errors.New("appointment: employee unavailable")
	ErrSlotConflict          = errors.New("appointment: slot already booked")
	ErrSlotNoLongerAvailable = errors.New("appointment: slot no longer available")
	ErrSlotLocked            = errors.New("appointment: slot is being booked")
	ErrAppointmentNotFound   = errors.New("appointment: not found")
	ErrInvalidTransition     = errors.New("appointment: invalid status transition")
	ErrAlreadyTerminal       = errors.New("appointment: already in terminal status")
	ErrForbidden             = errors.New("appointment: operation not allowed for actor")

	// ErrDuplicateIdempotencyKey はリポジトリが冪等キーの一意制約違反を通知するためのエラーです。
	ErrDuplicateIdempotencyKey = errors.New("appointment: idempotency key already used")
)

// IsConflict はスロット競合系のエラーかどうかを判定します。
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrSlotNoLongerAvailable) ||
		errors.Is(err, ErrSlotLocked)
}

// IsValidation は入力検証エラーかどうかを判定します。
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidID,
		ErrInvalidClientRef,
		ErrInvalidEmployeeRef,
		ErrInvalidServiceKind,
		ErrInvalidDate,
		ErrInvalidTime,
		ErrInvalidDuration,
		ErrInvalidNotes,
		ErrInvalidReason,
		ErrInvalidStatus,
		ErrInvalidIdempotencyKey,
		ErrInvalidLimit,
		ErrInvalidActor,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
