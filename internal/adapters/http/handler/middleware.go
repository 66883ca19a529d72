package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/platform/auth"
)

// TokenVerifier は Bearer トークンを検証します。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type actorKey struct{}

// ContextWithActor は認証済みの呼び出し元を ctx に格納します。
func ContextWithActor(ctx context.Context, actor appointment.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext は ctx から呼び出し元を取り出します。
func ActorFromContext(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(appointment.Actor)
	return actor, ok
}

// トークンの role クレームを予約ドメインの役割に変換します。
func roleFromClaim(role string) (appointment.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "user", "client":
		return appointment.RoleClient, true
	case "employee", "empleado", "staff":
		return appointment.RoleEmployee, true
	case "admin":
		return appointment.RoleAdmin, true
	default:
		return "", false
	}
}

// Authenticate は Authorization ヘッダーを検証し、呼び出し元を ctx に載せます。
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondError(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				respondError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}

			role, ok := roleFromClaim(claims.Role)
			if !ok {
				respondError(w, r, http.StatusForbidden, "unknown role")
				return
			}

			ctx := ContextWithActor(r.Context(), appointment.Actor{Ref: claims.Sub, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole は指定した役割以外の呼び出しを 403 で拒否します。
func RequireRole(roles ...appointment.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				respondError(w, r, http.StatusUnauthorized, "unauthenticated")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, r, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// AccessLog はリクエストごとにメソッド・パス・ステータス・所要時間を記録します。
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(slog.String("component", "middleware/access_log"))
		log.Info("access log middleware enabled")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				entry.Info("request completed",
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(start).String()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
