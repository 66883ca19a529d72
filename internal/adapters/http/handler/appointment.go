package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/platform/logging"
)

// AppointmentHandler は予約 API の HTTP 実装です。
type AppointmentHandler struct {
	svc appointment.UseCase
	log *slog.Logger
}

// NewAppointmentHandler は AppointmentHandler を生成します。
func NewAppointmentHandler(svc appointment.UseCase, log *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, log: log}
}

type bookRequest struct {
	EmployeeRef     string `json:"employee_ref"`
	ServiceKind     string `json:"service_kind"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Notes           string `json:"notes"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type scheduleResponse struct {
	Employee     employeeResponse      `json:"employee"`
	Date         string                `json:"date"`
	Appointments []appointmentResponse `json:"appointments"`
}

type statsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Book は予約を作成します。Idempotency-Key ヘッダーがあれば再送として扱います。
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.Book"
	log := h.requestLogger(r, op)

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req bookRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", logging.Err(err))
		respondError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	in := appointment.BookInput{
		ClientRef:       actor.Ref,
		EmployeeRef:     req.EmployeeRef,
		ServiceKind:     appointment.ServiceKind(req.ServiceKind),
		Date:            req.Date,
		Time:            req.Time,
		Notes:           req.Notes,
		DurationMinutes: req.DurationMinutes,
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		in.IdempotencyKey = &key
	}

	booked, err := h.svc.Book(r.Context(), in)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("appointment booked",
		slog.String("appointment_id", booked.ID),
		slog.String("employee_ref", booked.EmployeeRef),
		slog.String("date", booked.Date),
		slog.String("time", booked.Time),
	)
	respond(w, r, http.StatusCreated, "appointment booked", "appointment", toAppointmentResponse(booked))
}

// Get は予約を 1 件返します。
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.Get"
	log := h.requestLogger(r, op)

	actor, _ := ActorFromContext(r.Context())
	found, err := h.svc.Get(r.Context(), appointment.GetInput{ID: chi.URLParam(r, "id"), Actor: actor})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	respond(w, r, http.StatusOK, "appointment found", "appointment", toAppointmentResponse(found))
}

// Cancel は予約をキャンセルします。本文の reason は任意です。
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.Cancel"
	log := h.requestLogger(r, op)

	var req cancelRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("failed to decode request body", logging.Err(err))
		respondError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	actor, _ := ActorFromContext(r.Context())
	cancelled, err := h.svc.Cancel(r.Context(), appointment.CancelInput{
		ID:     chi.URLParam(r, "id"),
		Actor:  actor,
		Reason: req.Reason,
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("appointment cancelled", slog.String("appointment_id", cancelled.ID), slog.String("by", string(actor.Role)))
	respond(w, r, http.StatusOK, "appointment cancelled", "appointment", toAppointmentResponse(cancelled))
}

// Confirm は pending の予約を確定します。
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handler.appointment.Confirm", "appointment confirmed", h.svc.Confirm)
}

// Complete は確定済みの予約を完了にします。
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handler.appointment.Complete", "appointment completed", h.svc.Complete)
}

// MarkNoShow は来店しなかった予約を記録します。
func (h *AppointmentHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handler.appointment.MarkNoShow", "appointment marked as no-show", h.svc.MarkNoShow)
}

type transitionFunc func(ctx context.Context, in appointment.TransitionInput) (*appointment.Appointment, error)

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, op, message string, fn transitionFunc) {
	log := h.requestLogger(r, op)

	actor, _ := ActorFromContext(r.Context())
	updated, err := fn(r.Context(), appointment.TransitionInput{ID: chi.URLParam(r, "id"), Actor: actor})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info(message, slog.String("appointment_id", updated.ID), slog.String("status", string(updated.Status)))
	respond(w, r, http.StatusOK, message, "appointment", toAppointmentResponse(updated))
}

// Mine はログイン中クライアントの予約一覧を返します。
func (h *AppointmentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.Mine"
	log := h.requestLogger(r, op)

	limit, status, err := listParams(r)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	list, err := h.svc.ListClientAppointments(r.Context(), appointment.ListClientInput{
		Actor:  actor,
		Date:   r.URL.Query().Get("date"),
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	respond(w, r, http.StatusOK, fmt.Sprintf("%d appointments found", len(list)), "appointments", toAppointmentResponses(list))
}

// CheckAvailability は指定スロットが空いているかを返します。
func (h *AppointmentHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.CheckAvailability"
	log := h.requestLogger(r, op)

	q := r.URL.Query()
	free, err := h.svc.CheckAvailability(r.Context(), appointment.AvailabilityInput{
		EmployeeRef: q.Get("employee_ref"),
		Date:        q.Get("date"),
		Time:        q.Get("time"),
		ExcludingID: q.Get("excluding_id"),
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	message := "slot available"
	if !free {
		message = "slot taken"
	}
	respond(w, r, http.StatusOK, message, "available", free)
}

// BusySlots は担当者の指定日に埋まっている時刻を返します。
func (h *AppointmentHandler) BusySlots(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.BusySlots"
	log := h.requestLogger(r, op)

	slots, err := h.svc.BusySlots(r.Context(), appointment.BusySlotsInput{
		EmployeeRef: chi.URLParam(r, "code"),
		Date:        r.URL.Query().Get("date"),
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	respond(w, r, http.StatusOK, fmt.Sprintf("%d busy slots", len(slots)), "busy_slots", slots)
}

// EmployeeAppointments は担当者別の予約一覧をスタッフに返します。
func (h *AppointmentHandler) EmployeeAppointments(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.EmployeeAppointments"
	log := h.requestLogger(r, op)

	limit, status, err := listParams(r)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	list, err := h.svc.ListEmployeeAppointments(r.Context(), appointment.ListEmployeeInput{
		Actor:       actor,
		EmployeeRef: chi.URLParam(r, "code"),
		Date:        r.URL.Query().Get("date"),
		Status:      status,
		Limit:       limit,
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	respond(w, r, http.StatusOK, fmt.Sprintf("%d appointments found", len(list)), "appointments", toAppointmentResponses(list))
}

// EmployeeSchedule はログイン中スタッフの日別スケジュールを返します。
func (h *AppointmentHandler) EmployeeSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.EmployeeSchedule"
	log := h.requestLogger(r, op)

	actor, _ := ActorFromContext(r.Context())
	schedule, err := h.svc.EmployeeSchedule(r.Context(), appointment.ScheduleInput{
		Actor: actor,
		Date:  r.URL.Query().Get("date"),
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	respond(w, r, http.StatusOK, fmt.Sprintf("%d appointments found", len(schedule.Appointments)), "schedule", scheduleResponse{
		Employee:     toEmployeeResponse(schedule.Employee),
		Date:         schedule.Date,
		Appointments: toAppointmentResponses(schedule.Appointments),
	})
}

// Stats はステータス別の件数を管理者に返します。
func (h *AppointmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	const op = "handler.appointment.Stats"
	log := h.requestLogger(r, op)

	q := r.URL.Query()
	actor, _ := ActorFromContext(r.Context())
	stats, err := h.svc.Stats(r.Context(), appointment.StatsInput{
		Actor:       actor,
		EmployeeRef: q.Get("employee_ref"),
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}
	respond(w, r, http.StatusOK, "appointment stats", "stats", statsResponse{Total: stats.Total, ByStatus: byStatus})
}

func (h *AppointmentHandler) requestLogger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *AppointmentHandler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, message := toHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logging.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), logging.Err(err))
	}
	respondError(w, r, status, message)
}

func listParams(r *http.Request) (int, *appointment.Status, error) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, nil, appointment.ErrInvalidLimit
		}
		limit = n
	}

	var status *appointment.Status
	if raw := q.Get("status"); raw != "" {
		s := appointment.Status(raw)
		status = &s
	}
	return limit, status, nil
}
