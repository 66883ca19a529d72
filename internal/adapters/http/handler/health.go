package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogurasousui/gym-appointments/internal/platform/logging"
)

// ReadyCheck は依存サービスへの疎通確認です。
type ReadyCheck func(ctx context.Context) error

// HealthHandler は liveness と readiness を返します。
type HealthHandler struct {
	checks  map[string]ReadyCheck
	timeout time.Duration
	log     *slog.Logger
}

// NewHealthHandler は HealthHandler を生成します。checks のキーはレスポンスに出る依存名です。
func NewHealthHandler(checks map[string]ReadyCheck, log *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, log: log}
}

// Live はプロセスが動いていれば常に 200 を返します。
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, "ok", "", nil)
}

// Ready はすべての依存が応答する場合のみ 200 を返します。
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("readiness check failed", slog.String("dependency", name), logging.Err(err))
			results[name] = "unavailable"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		respond(w, r, http.StatusServiceUnavailable, "not ready", "checks", results)
		return
	}
	respond(w, r, http.StatusOK, "ready", "checks", results)
}
