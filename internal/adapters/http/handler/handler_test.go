package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
	"github.com/ogurasousui/gym-appointments/internal/platform/auth"
)

const testSecret = "handler-secret"

type stubAppointmentUseCase struct {
	bookInput appointment.BookInput
	bookOut   *appointment.Appointment
	bookErr   error

	cancelInput appointment.CancelInput
	transInput  appointment.TransitionInput
	transCalls  []string
	getInput    appointment.GetInput

	availInput appointment.AvailabilityInput
	available  bool

	busyInput appointment.BusySlotsInput
	busy      []string

	clientInput   appointment.ListClientInput
	employeeInput appointment.ListEmployeeInput
	list          []*appointment.Appointment

	scheduleInput appointment.ScheduleInput
	schedule      *appointment.Schedule

	statsInput appointment.StatsInput
	stats      *appointment.Stats

	out *appointment.Appointment
	err error
}

func (s *stubAppointmentUseCase) Book(_ context.Context, in appointment.BookInput) (*appointment.Appointment, error) {
	s.bookInput = in
	return s.bookOut, s.bookErr
}

func (s *stubAppointmentUseCase) Cancel(_ context.Context, in appointment.CancelInput) (*appointment.Appointment, error) {
	s.cancelInput = in
	return s.out, s.err
}

func (s *stubAppointmentUseCase) Confirm(_ context.Context, in appointment.TransitionInput) (*appointment.Appointment, error) {
	s.transInput = in
	s.transCalls = append(s.transCalls, "confirm")
	return s.out, s.err
}

func (s *stubAppointmentUseCase) Complete(_ context.Context, in appointment.TransitionInput) (*appointment.Appointment, error) {
	s.transInput = in
	s.transCalls = append(s.transCalls, "complete")
	return s.out, s.err
}

func (s *stubAppointmentUseCase) MarkNoShow(_ context.Context, in appointment.TransitionInput) (*appointment.Appointment, error) {
	s.transInput = in
	s.transCalls = append(s.transCalls, "no_show")
	return s.out, s.err
}

func (s *stubAppointmentUseCase) Get(_ context.Context, in appointment.GetInput) (*appointment.Appointment, error) {
	s.getInput = in
	return s.out, s.err
}

func (s *stubAppointmentUseCase) CheckAvailability(_ context.Context, in appointment.AvailabilityInput) (bool, error) {
	s.availInput = in
	return s.available, s.err
}

func (s *stubAppointmentUseCase) BusySlots(_ context.Context, in appointment.BusySlotsInput) ([]string, error) {
	s.busyInput = in
	return s.busy, s.err
}

func (s *stubAppointmentUseCase) ListClientAppointments(_ context.Context, in appointment.ListClientInput) ([]*appointment.Appointment, error) {
	s.clientInput = in
	return s.list, s.err
}

func (s *stubAppointmentUseCase) ListEmployeeAppointments(_ context.Context, in appointment.ListEmployeeInput) ([]*appointment.Appointment, error) {
	s.employeeInput = in
	return s.list, s.err
}

func (s *stubAppointmentUseCase) EmployeeSchedule(_ context.Context, in appointment.ScheduleInput) (*appointment.Schedule, error) {
	s.scheduleInput = in
	return s.schedule, s.err
}

func (s *stubAppointmentUseCase) Stats(_ context.Context, in appointment.StatsInput) (*appointment.Stats, error) {
	s.statsInput = in
	return s.stats, s.err
}

type stubEmployeeUseCase struct {
	createInput employee.CreateEmployeeInput
	updateInput employee.UpdateEmployeeInput
	deleteInput employee.DeleteEmployeeInput
	getInput    employee.GetEmployeeInput
	listInput   employee.ListEmployeesInput

	out     *employee.Employee
	listOut *employee.ListEmployeesResult
	err     error
}

func (s *stubEmployeeUseCase) CreateEmployee(_ context.Context, in employee.CreateEmployeeInput) (*employee.Employee, error) {
	s.createInput = in
	return s.out, s.err
}

func (s *stubEmployeeUseCase) GetEmployee(_ context.Context, in employee.GetEmployeeInput) (*employee.Employee, error) {
	s.getInput = in
	return s.out, s.err
}

func (s *stubEmployeeUseCase) ListEmployees(_ context.Context, in employee.ListEmployeesInput) (*employee.ListEmployeesResult, error) {
	s.listInput = in
	return s.listOut, s.err
}

func (s *stubEmployeeUseCase) UpdateEmployee(_ context.Context, in employee.UpdateEmployeeInput) (*employee.Employee, error) {
	s.updateInput = in
	return s.out, s.err
}

func (s *stubEmployeeUseCase) DeleteEmployee(_ context.Context, in employee.DeleteEmployeeInput) error {
	s.deleteInput = in
	return s.err
}

type testServer struct {
	handler   http.Handler
	appts     *stubAppointmentUseCase
	employees *stubEmployeeUseCase
	verifier  *auth.Verifier
}

func newTestServer(checks map[string]ReadyCheck) *testServer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appts := &stubAppointmentUseCase{}
	emps := &stubEmployeeUseCase{}
	verifier := auth.NewVerifier(testSecret)

	return &testServer{
		handler: NewRouter(RouterDeps{
			Appointments: NewAppointmentHandler(appts, log),
			Employees:    NewEmployeeHandler(emps, log),
			Health:       NewHealthHandler(checks, log),
			Verifier:     verifier,
			Logger:       log,
		}),
		appts:     appts,
		employees: emps,
		verifier:  verifier,
	}
}

func (s *testServer) do(t *testing.T, method, path, role, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, err := s.verifier.Sign(auth.Claims{Sub: role + "-1", Role: role, Exp: time.Now().Add(time.Hour).Unix()})
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, decoded
}

func sampleAppointment() *appointment.Appointment {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return &appointment.Appointment{
		ID:              "appt-1",
		ClientRef:       "user-1",
		EmployeeRef:     "700001",
		Employee:        appointment.EmployeeSnapshot{Ref: "700001", Name: "Marta Ruiz", Role: "barber"},
		ServiceKind:     appointment.ServiceHaircut,
		ServiceName:     "Barber service",
		DurationMinutes: 30,
		Date:            "2025-03-12",
		Time:            "10:00",
		Status:          appointment.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)

	rec, body := srv.do(t, http.MethodGet, "/api/appointments/mine", "", "", nil)
	if rec.Code != http.StatusUnauthorized || body["success"] != false {
		t.Fatalf("expected 401, got %d %v", rec.Code, body)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/appointments/mine", "", "", map[string]string{"Authorization": "Bearer nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/appointments/mine", "superuser", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role, got %d", rec.Code)
	}
}

func TestAppointmentHandler_Book(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.appts.bookOut = sampleAppointment()

	rec, body := srv.do(t, http.MethodPost, "/api/appointments/book", "user",
		`{"employee_ref":"700001","service_kind":"haircut","date":"2025-03-12","time":"10:00","duration_minutes":45}`,
		map[string]string{"Idempotency-Key": "req-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rec.Code, body)
	}
	if body["success"] != true || body["message"] != "appointment booked" {
		t.Fatalf("unexpected envelope: %v", body)
	}

	in := srv.appts.bookInput
	if in.ClientRef != "user-1" || in.EmployeeRef != "700001" || in.ServiceKind != appointment.ServiceHaircut {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.IdempotencyKey == nil || *in.IdempotencyKey != "req-1" {
		t.Fatalf("expected idempotency key, got %+v", in.IdempotencyKey)
	}
	if in.DurationMinutes == nil || *in.DurationMinutes != 45 {
		t.Fatalf("expected duration override, got %+v", in.DurationMinutes)
	}

	appt := body["appointment"].(map[string]any)
	if appt["id"] != "appt-1" || appt["status"] != "pending" {
		t.Fatalf("unexpected payload: %v", appt)
	}
}

func TestAppointmentHandler_Book_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{appointment.ErrInvalidTime, http.StatusBadRequest},
		{appointment.ErrEmployeeUnavailable, http.StatusNotFound},
		{appointment.ErrSlotConflict, http.StatusConflict},
		{appointment.ErrSlotNoLongerAvailable, http.StatusConflict},
		{appointment.ErrSlotLocked, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		srv := newTestServer(nil)
		srv.appts.bookErr = tc.err

		rec, body := srv.do(t, http.MethodPost, "/api/appointments/book", "user", `{"employee_ref":"700001"}`, nil)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if body["success"] != false {
			t.Fatalf("%v: expected success=false", tc.err)
		}
		if tc.want == http.StatusInternalServerError && body["message"] != "internal error" {
			t.Fatalf("internal errors must not leak, got %v", body["message"])
		}
	}
}

func TestAppointmentHandler_Book_BadJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	rec, _ := srv.do(t, http.MethodPost, "/api/appointments/book", "user", `{"employee_ref":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAppointmentHandler_Cancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	cancelled := sampleAppointment()
	cancelled.Status = appointment.StatusCancelled
	cancelled.Cancellation = &appointment.CancellationInfo{At: cancelled.CreatedAt, By: appointment.RoleClient, Reason: "sick"}
	srv.appts.out = cancelled

	rec, body := srv.do(t, http.MethodPatch, "/api/appointments/appt-1/cancel", "user", `{"reason":"sick"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", rec.Code, body)
	}
	in := srv.appts.cancelInput
	if in.ID != "appt-1" || in.Reason != "sick" || in.Actor.Role != appointment.RoleClient {
		t.Fatalf("unexpected input: %+v", in)
	}
	appt := body["appointment"].(map[string]any)
	if appt["cancellation"].(map[string]any)["by"] != "client" {
		t.Fatalf("unexpected payload: %v", appt)
	}

	rec, _ = srv.do(t, http.MethodPatch, "/api/appointments/appt-1/cancel", "user", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel without body should be accepted, got %d", rec.Code)
	}
}

func TestAppointmentHandler_TransitionsRequireStaff(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.appts.out = sampleAppointment()

	rec, _ := srv.do(t, http.MethodPatch, "/api/appointments/appt-1/confirm", "user", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rec.Code)
	}

	for _, path := range []string{"confirm", "complete", "no-show"} {
		rec, _ := srv.do(t, http.MethodPatch, "/api/appointments/appt-1/"+path, "empleado", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if got := strings.Join(srv.appts.transCalls, ","); got != "confirm,complete,no_show" {
		t.Fatalf("unexpected calls: %s", got)
	}
	if srv.appts.transInput.Actor.Role != appointment.RoleEmployee {
		t.Fatalf("expected employee actor, got %+v", srv.appts.transInput.Actor)
	}

	srv.appts.err = appointment.ErrAlreadyTerminal
	rec, _ = srv.do(t, http.MethodPatch, "/api/appointments/appt-1/complete", "admin", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for terminal appointment, got %d", rec.Code)
	}
}

func TestAppointmentHandler_Get_NotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.appts.err = appointment.ErrAppointmentNotFound

	rec, _ := srv.do(t, http.MethodGet, "/api/appointments/other", "user", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if srv.appts.getInput.ID != "other" {
		t.Fatalf("unexpected input: %+v", srv.appts.getInput)
	}
}

func TestAppointmentHandler_ReadEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.appts.available = false
	srv.appts.busy = []string{"09:00", "10:30"}
	srv.appts.list = []*appointment.Appointment{sampleAppointment()}

	rec, body := srv.do(t, http.MethodGet, "/api/appointments/check-availability?employee_ref=700001&date=2025-03-12&time=10:00", "user", "", nil)
	if rec.Code != http.StatusOK || body["available"] != false || body["message"] != "slot taken" {
		t.Fatalf("unexpected availability response: %d %v", rec.Code, body)
	}
	if srv.appts.availInput.Time != "10:00" {
		t.Fatalf("unexpected input: %+v", srv.appts.availInput)
	}

	rec, body = srv.do(t, http.MethodGet, "/api/employees/700001/busy-slots?date=2025-03-12", "user", "", nil)
	if rec.Code != http.StatusOK || len(body["busy_slots"].([]any)) != 2 {
		t.Fatalf("unexpected busy slots: %d %v", rec.Code, body)
	}
	if srv.appts.busyInput.EmployeeRef != "700001" {
		t.Fatalf("unexpected input: %+v", srv.appts.busyInput)
	}

	rec, body = srv.do(t, http.MethodGet, "/api/appointments/mine?status=pending&limit=10", "user", "", nil)
	if rec.Code != http.StatusOK || body["message"] != "1 appointments found" {
		t.Fatalf("unexpected list: %d %v", rec.Code, body)
	}
	if in := srv.appts.clientInput; in.Limit != 10 || in.Status == nil || *in.Status != appointment.StatusPending {
		t.Fatalf("unexpected input: %+v", in)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/appointments/mine?limit=ten", "user", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/employees/700001/appointments", "user", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodGet, "/api/employees/700001/appointments?date=2025-03-12", "admin", "", nil)
	if rec.Code != http.StatusOK || srv.appts.employeeInput.EmployeeRef != "700001" {
		t.Fatalf("unexpected employee listing: %d %+v", rec.Code, srv.appts.employeeInput)
	}
}

func TestAppointmentHandler_ScheduleAndStats(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.appts.schedule = &appointment.Schedule{
		Employee:     &employee.Employee{Code: "700001", Name: "Marta Ruiz", Position: employee.PositionBarber, Status: employee.StatusActive},
		Date:         "2025-03-12",
		Appointments: []*appointment.Appointment{sampleAppointment()},
	}
	srv.appts.stats = &appointment.Stats{Total: 3, ByStatus: map[appointment.Status]int{appointment.StatusPending: 2, appointment.StatusCancelled: 1}}

	rec, _ := srv.do(t, http.MethodGet, "/api/appointments/employee-schedule", "admin", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("schedule is for employees only, got %d", rec.Code)
	}

	rec, body := srv.do(t, http.MethodGet, "/api/appointments/employee-schedule?date=2025-03-12", "employee", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", rec.Code, body)
	}
	schedule := body["schedule"].(map[string]any)
	if schedule["date"] != "2025-03-12" || len(schedule["appointments"].([]any)) != 1 {
		t.Fatalf("unexpected schedule: %v", schedule)
	}
	if srv.appts.scheduleInput.Actor.Ref != "employee-1" {
		t.Fatalf("unexpected actor: %+v", srv.appts.scheduleInput.Actor)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/appointments/stats", "employee", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stats are admin only, got %d", rec.Code)
	}

	rec, body = srv.do(t, http.MethodGet, "/api/appointments/stats?date_from=2025-03-01", "admin", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats := body["stats"].(map[string]any)
	if stats["total"] != float64(3) || stats["by_status"].(map[string]any)["pending"] != float64(2) {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if srv.appts.statsInput.DateFrom != "2025-03-01" {
		t.Fatalf("unexpected input: %+v", srv.appts.statsInput)
	}
}

func TestEmployeeHandler_CRUD(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	hired := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv.employees.out = &employee.Employee{
		ID: "emp-1", Code: "700001", Name: "Marta Ruiz", Email: "marta@gym.example", Phone: "5512345678",
		Position: employee.PositionBarber, Status: employee.StatusActive, HiredAt: &hired,
	}

	rec, _ := srv.do(t, http.MethodPost, "/api/employees", "employee", `{"code":"700001"}`, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("create is admin only, got %d", rec.Code)
	}

	rec, body := srv.do(t, http.MethodPost, "/api/employees", "admin",
		`{"code":"700001","name":"Marta Ruiz","email":"marta@gym.example","phone":"5512345678","position":"barber","hired_at":"2024-05-01"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rec.Code, body)
	}
	if in := srv.employees.createInput; in.Code != "700001" || in.Position != employee.PositionBarber || in.HiredAt == nil || in.Status != nil {
		t.Fatalf("unexpected create input: %+v", in)
	}
	if body["employee"].(map[string]any)["hired_at"] != "2024-05-01" {
		t.Fatalf("unexpected payload: %v", body)
	}

	rec, _ = srv.do(t, http.MethodPost, "/api/employees", "admin", `{"code":"700001","hired_at":"May 1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad hired_at, got %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodPatch, "/api/employees/700001", "admin", `{"status":"inactive","user_id":null}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	in := srv.employees.updateInput
	if in.Code != "700001" || in.Status == nil || *in.Status != employee.StatusInactive {
		t.Fatalf("unexpected update input: %+v", in)
	}
	if !in.UserIDSet || in.UserID != nil || in.HiredAtSet {
		t.Fatalf("expected user id to be cleared only, got %+v", in)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/employees/700001", "user", "", nil)
	if rec.Code != http.StatusOK || srv.employees.getInput.Code != "700001" {
		t.Fatalf("unexpected get: %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodDelete, "/api/employees/700001", "admin", "", nil)
	if rec.Code != http.StatusOK || srv.employees.deleteInput.Code != "700001" {
		t.Fatalf("unexpected delete: %d", rec.Code)
	}

	srv.employees.err = employee.ErrEmployeeNotFound
	rec, _ = srv.do(t, http.MethodGet, "/api/employees/709999", "user", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEmployeeHandler_List(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil)
	srv.employees.listOut = &employee.ListEmployeesResult{
		Employees:     []*employee.Employee{{Code: "700001", Position: employee.PositionCoach, Status: employee.StatusActive}},
		NextPageToken: "50",
	}

	rec, body := srv.do(t, http.MethodGet, "/api/employees?position=coach&page_size=1", "user", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["next_page_token"] != "50" || len(body["employees"].([]any)) != 1 {
		t.Fatalf("unexpected body: %v", body)
	}
	if in := srv.employees.listInput; in.PageSize != 1 || in.Position == nil || *in.Position != employee.PositionCoach {
		t.Fatalf("unexpected input: %+v", in)
	}

	srv.employees.err = employee.ErrEmailAlreadyExists
	rec, _ = srv.do(t, http.MethodPost, "/api/employees", "admin", `{"code":"700002"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	srv := newTestServer(map[string]ReadyCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("refused") },
	})

	rec, _ := srv.do(t, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec, body := srv.do(t, http.MethodGet, "/readyz", "", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "ok" || checks["redis"] != "unavailable" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestRoleFromClaim(t *testing.T) {
	t.Parallel()

	cases := map[string]appointment.Role{
		"user":     appointment.RoleClient,
		"":         appointment.RoleClient,
		"Empleado": appointment.RoleEmployee,
		"employee": appointment.RoleEmployee,
		"admin":    appointment.RoleAdmin,
	}
	for in, want := range cases {
		got, ok := roleFromClaim(in)
		if !ok || got != want {
			t.Fatalf("%q: expected %s, got %s (%v)", in, want, got, ok)
		}
	}
	if _, ok := roleFromClaim("system"); ok {
		t.Fatal("system role must not be granted through tokens")
	}
}
