package handler

import (
	"errors"
	"net/http"

	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
)

// toHTTPStatus はドメインエラーを HTTP ステータスに変換します。
// 想定外のエラーは内容を隠して 500 にします。
func toHTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case appointment.IsValidation(err),
		errors.Is(err, employee.ErrInvalidCode),
		errors.Is(err, employee.ErrInvalidUserID),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidEmail),
		errors.Is(err, employee.ErrInvalidPhone),
		errors.Is(err, employee.ErrInvalidPosition),
		errors.Is(err, employee.ErrInvalidStatus),
		errors.Is(err, employee.ErrInvalidPageSize),
		errors.Is(err, employee.ErrInvalidPageToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, appointment.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, appointment.ErrEmployeeUnavailable),
		errors.Is(err, employee.ErrEmployeeNotFound):
		return http.StatusNotFound, err.Error()
	case appointment.IsConflict(err),
		errors.Is(err, appointment.ErrInvalidTransition),
		errors.Is(err, appointment.ErrAlreadyTerminal),
		errors.Is(err, employee.ErrEmployeeCodeAlreadyExists),
		errors.Is(err, employee.ErrEmailAlreadyExists),
		errors.Is(err, employee.ErrUserAlreadyLinked):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
