package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authgate/internal/handlers/render"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recover answers 500 on panic and reports it to sentry
// Sentry reporting is no-op when sentry is not initialized
func Recover(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := RequestIDFromContext(r.Context())

				hub := sentry.CurrentHub().Clone()
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(r)
					if requestID != "" {
						scope.SetTag("request_id", requestID)
					}
					scope.SetExtra("stack", string(debug.Stack()))
					hub.RecoverWithContext(r.Context(), rec)
				})

				l.Error("panic recovered", "request_id", requestID, "method", r.Method, "path", r.URL.Path, "panic", rec)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
