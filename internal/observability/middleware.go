package observability

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

type requestUserKey struct{}

// requestUser is filled in by the auth gate further down the chain so the
// access log can name the caller.
type requestUser struct {
	id int64
}

// SetRequestUser records the authenticated user id for the access log entry
// of the request ctx belongs to. It is a no-op outside RequestLoggingMiddleware.
func SetRequestUser(ctx context.Context, userID int64) {
	if u, ok := ctx.Value(requestUserKey{}).(*requestUser); ok {
		u.id = userID
	}
}

func RequestLoggingMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		caller := &requestUser{}
		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), requestUserKey{}, caller)))

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          ClientIP(r),
		}
		if caller.id != 0 {
			fields["user_id"] = caller.id
		}
		logger.Info("http_request", fields)
	})
}

func RecoverMiddleware(logger *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureMessage("panic in request")
				})

				logger.Error("panic_recovered", map[string]any{
					"path":   r.URL.Path,
					"method": r.Method,
					"panic":  rec,
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the last X-Forwarded-For hop, the one appended by the
// platform proxy in front of the service, then the RemoteAddr host. Earlier
// hops are client supplied and never used. Deployments without a proxy that
// overwrites or appends X-Forwarded-For must strip the header at the edge.
func ClientIP(r *http.Request) string {
	if xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
