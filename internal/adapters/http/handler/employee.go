package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
	"github.com/ogurasousui/gym-appointments/internal/platform/logging"
)

var errInvalidHiredAt = errors.New("hired_at must be YYYY-MM-DD")

// EmployeeHandler は従業員ディレクトリ API の HTTP 実装です。
type EmployeeHandler struct {
	svc employee.UseCase
	log *slog.Logger
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase, log *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, log: log}
}

type createEmployeeRequest struct {
	Code     string  `json:"code"`
	UserID   *string `json:"user_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	Position string  `json:"position"`
	Status   string  `json:"status"`
	HiredAt  string  `json:"hired_at"`
}

// 更新は部分更新です。user_id と hired_at は null を送るとクリアされます。
type updateEmployeeRequest struct {
	UserID   json.RawMessage `json:"user_id"`
	Name     *string         `json:"name"`
	Email    *string         `json:"email"`
	Phone    *string         `json:"phone"`
	Position *string         `json:"position"`
	Status   *string         `json:"status"`
	HiredAt  json.RawMessage `json:"hired_at"`
}

// Create は従業員を登録します。
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.employee.Create"
	log := h.requestLogger(r, op)

	var req createEmployeeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", logging.Err(err))
		respondError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	hiredAt, err := parseDate(req.HiredAt)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	in := employee.CreateEmployeeInput{
		Code:     req.Code,
		UserID:   req.UserID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Position: employee.Position(req.Position),
		HiredAt:  hiredAt,
	}
	if req.Status != "" {
		status := employee.Status(req.Status)
		in.Status = &status
	}

	created, err := h.svc.CreateEmployee(r.Context(), in)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("employee created", slog.String("code", created.Code))
	respond(w, r, http.StatusCreated, "employee created", "employee", toEmployeeResponse(created))
}

// Get は従業員コードで従業員を返します。
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handler.employee.Get"
	log := h.requestLogger(r, op)

	found, err := h.svc.GetEmployee(r.Context(), employee.GetEmployeeInput{Code: chi.URLParam(r, "code")})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	respond(w, r, http.StatusOK, "employee found", "employee", toEmployeeResponse(found))
}

// List は従業員一覧を返します。page_token は前回の next_page_token です。
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handler.employee.List"
	log := h.requestLogger(r, op)

	q := r.URL.Query()
	in := employee.ListEmployeesInput{PageToken: q.Get("page_token")}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, log, employee.ErrInvalidPageSize)
			return
		}
		in.PageSize = n
	}
	if raw := q.Get("status"); raw != "" {
		status := employee.Status(raw)
		in.Status = &status
	}
	if raw := q.Get("position"); raw != "" {
		position := employee.Position(raw)
		in.Position = &position
	}

	result, err := h.svc.ListEmployees(r.Context(), in)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	employees := make([]employeeResponse, 0, len(result.Employees))
	for _, e := range result.Employees {
		employees = append(employees, toEmployeeResponse(e))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"success":         true,
		"message":         fmt.Sprintf("%d employees found", len(employees)),
		"employees":       employees,
		"next_page_token": result.NextPageToken,
	})
}

// Update は従業員情報を部分更新します。
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handler.employee.Update"
	log := h.requestLogger(r, op)

	var req updateEmployeeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", logging.Err(err))
		respondError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	in := employee.UpdateEmployeeInput{
		Code:  chi.URLParam(r, "code"),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	if req.Position != nil {
		position := employee.Position(*req.Position)
		in.Position = &position
	}
	if req.Status != nil {
		status := employee.Status(*req.Status)
		in.Status = &status
	}

	if req.UserID != nil {
		var userID *string
		if err := json.Unmarshal(req.UserID, &userID); err != nil {
			respondError(w, r, http.StatusBadRequest, "user_id must be a string or null")
			return
		}
		in.UserID, in.UserIDSet = userID, true
	}

	if req.HiredAt != nil {
		var raw *string
		if err := json.Unmarshal(req.HiredAt, &raw); err != nil {
			respondError(w, r, http.StatusBadRequest, errInvalidHiredAt.Error())
			return
		}
		in.HiredAtSet = true
		if raw != nil {
			hiredAt, err := parseDate(*raw)
			if err != nil {
				respondError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			in.HiredAt = hiredAt
		}
	}

	updated, err := h.svc.UpdateEmployee(r.Context(), in)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("employee updated", slog.String("code", updated.Code))
	respond(w, r, http.StatusOK, "employee updated", "employee", toEmployeeResponse(updated))
}

// Delete は従業員を削除します。
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handler.employee.Delete"
	log := h.requestLogger(r, op)

	code := chi.URLParam(r, "code")
	if err := h.svc.DeleteEmployee(r.Context(), employee.DeleteEmployeeInput{Code: code}); err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("employee deleted", slog.String("code", code))
	respond(w, r, http.StatusOK, "employee deleted", "", nil)
}

func (h *EmployeeHandler) requestLogger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *EmployeeHandler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, message := toHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logging.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), logging.Err(err))
	}
	respondError(w, r, status, message)
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errInvalidHiredAt
	}
	return &t, nil
}
