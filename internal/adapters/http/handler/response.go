package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
)

const dateLayout = "2006-01-02"

// すべてのレスポンスは success と message を持ち、結果は payloadKey の下に入ります。
func respond(w http.ResponseWriter, r *http.Request, status int, message, payloadKey string, payload any) {
	body := map[string]any{
		"success": status < http.StatusBadRequest,
		"message": message,
	}
	if payloadKey != "" {
		body[payloadKey] = payload
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, message, "", nil)
}

type employeeSnapshotResponse struct {
	Ref   string `json:"ref"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type cancellationResponse struct {
	At     time.Time `json:"at"`
	By     string    `json:"by"`
	Reason string    `json:"reason,omitempty"`
}

type confirmationResponse struct {
	At time.Time `json:"at"`
	By string    `json:"by"`
}

type appointmentResponse struct {
	ID              string                   `json:"id"`
	ClientRef       string                   `json:"client_ref"`
	Employee        employeeSnapshotResponse `json:"employee"`
	ServiceKind     string                   `json:"service_kind"`
	ServiceName     string                   `json:"service_name"`
	DurationMinutes int                      `json:"duration_minutes"`
	Date            string                   `json:"date"`
	Time            string                   `json:"time"`
	Status          string                   `json:"status"`
	Notes           string                   `json:"notes,omitempty"`
	Cancellation    *cancellationResponse    `json:"cancellation,omitempty"`
	Confirmation    *confirmationResponse    `json:"confirmation,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:        a.ID,
		ClientRef: a.ClientRef,
		Employee: employeeSnapshotResponse{
			Ref:   a.Employee.Ref,
			Name:  a.Employee.Name,
			Role:  a.Employee.Role,
			Phone: a.Employee.Phone,
			Email: a.Employee.Email,
		},
		ServiceKind:     string(a.ServiceKind),
		ServiceName:     a.ServiceName,
		DurationMinutes: a.DurationMinutes,
		Date:            a.Date,
		Time:            a.Time,
		Status:          string(a.Status),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if c := a.Cancellation; c != nil {
		resp.Cancellation = &cancellationResponse{At: c.At, By: string(c.By), Reason: c.Reason}
	}
	if c := a.Confirmation; c != nil {
		resp.Confirmation = &confirmationResponse{At: c.At, By: string(c.By)}
	}
	return resp
}

func toAppointmentResponses(list []*appointment.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type employeeResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	UserID    *string   `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Position  string    `json:"position"`
	Status    string    `json:"status"`
	HiredAt   *string   `json:"hired_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toEmployeeResponse(e *employee.Employee) employeeResponse {
	resp := employeeResponse{
		ID:        e.ID,
		Code:      e.Code,
		UserID:    e.UserID,
		Name:      e.Name,
		Email:     e.Email,
		Phone:     e.Phone,
		Position:  string(e.Position),
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.HiredAt != nil {
		hired := e.HiredAt.Format(dateLayout)
		resp.HiredAt = &hired
	}
	return resp
}
