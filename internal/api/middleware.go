/**
 * @description
 * Middleware for the Paxify router: bearer-token authentication, the admin
 * guard, per-IP rate limiting of credential endpoints, and zap access logs.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5/middleware: response wrapping and request ids.
 * - go.uber.org/zap: structured access logs.
 */

package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/domain"
)

// UserContextKey is a custom type for the context key to avoid collisions.
type UserContextKey string

const authenticatedUserKey UserContextKey = "authenticatedUser"

// UserFromContext returns the user the auth middleware attached.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(authenticatedUserKey).(*domain.User)
	return user, ok && user != nil
}

// RequireAuth validates the bearer access token and loads the active user.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.fail(w, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			h.fail(w, http.StatusUnauthorized, "Invalid Authorization header format", nil)
			return
		}

		user, err := h.svc.Auth.Authenticate(r.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), authenticatedUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated users without the admin role.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			h.fail(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		if !user.IsAdmin() {
			h.writeError(w, r, app.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies the limiter's policy for scope per client IP. Limiter
// errors fail open.
func (h *Handlers) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := h.limiter.Allow(r.Context(), scope, clientIP(r))
			if err != nil {
				h.logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if decision.Limit == 0 {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
				h.fail(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote_ip", clientIP(r)),
				}
				if status >= http.StatusInternalServerError {
					logger.Warn("request completed", fields...)
					return
				}
				logger.Info("request completed", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
