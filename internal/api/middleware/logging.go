package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware emits structured request logs enriched with the trace id
// and, once authenticated, the customer key the request acted for.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			scope := &scopeHolder{}
			r = r.WithContext(context.WithValue(r.Context(), scopeContextKey, scope))

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.String("trace_id", TraceIDFromContext(r.Context())),
				zap.Duration("duration", time.Since(start)),
			}
			if scope.value != "" {
				fields = append(fields, zap.String("customer_key", scope.value))
			}
			level := zap.InfoLevel
			if rw.status >= http.StatusInternalServerError {
				level = zap.ErrorLevel
			}
			logger.Log(level, "http_request", fields...)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

const scopeContextKey contextKey = "log_scope"

// scopeHolder lets AuthMiddleware, which runs deeper in the chain, report the
// caller back to the request log line.
type scopeHolder struct {
	value string
}

func recordScope(ctx context.Context, scope string) {
	if h, ok := ctx.Value(scopeContextKey).(*scopeHolder); ok {
		h.value = scope
	}
}
