package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterDeps はルーターの組み立てに必要な依存です。
type RouterDeps struct {
	Appointments *AppointmentHandler
	Employees    *EmployeeHandler
	Health       *HealthHandler
	Verifier     TokenVerifier
	Logger       *slog.Logger
}

// NewRouter は API 全体のルーティングを構築し、otelhttp で計測したハンドラーを返します。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)

	staff := RequireRole(appointment.RoleEmployee, appointment.RoleAdmin)
	admin := RequireRole(appointment.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(deps.Verifier))

		r.Route("/appointments", func(r chi.Router) {
			a := deps.Appointments

			r.Get("/mine", a.Mine)
			r.Get("/check-availability", a.CheckAvailability)
			r.Post("/book", a.Book)
			r.With(RequireRole(appointment.RoleEmployee)).Get("/employee-schedule", a.EmployeeSchedule)
			r.With(admin).Get("/stats", a.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.Get)
				r.Patch("/cancel", a.Cancel)
				r.With(staff).Patch("/confirm", a.Confirm)
				r.With(staff).Patch("/complete", a.Complete)
				r.With(staff).Patch("/no-show", a.MarkNoShow)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			e := deps.Employees

			r.Get("/", e.List)
			r.With(admin).Post("/", e.Create)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", e.Get)
				r.With(admin).Patch("/", e.Update)
				r.With(admin).Delete("/", e.Delete)
				r.Get("/busy-slots", deps.Appointments.BusySlots)
				r.With(staff).Get("/appointments", deps.Appointments.EmployeeAppointments)
			})
		})
	})

	return otelhttp.NewHandler(r, "gym-appointments-http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
