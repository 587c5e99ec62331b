package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingMiddleware logs one line per request once the response is written.
// Health checks are logged at debug level.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Call next handler
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// Pick level from outcome
			level := zapcore.InfoLevel
			switch {
			case status >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case status >= http.StatusBadRequest:
				level = zapcore.WarnLevel
			case r.URL.Path == "/health":
				level = zapcore.DebugLevel
			}

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if userID, ok := GetUserID(r.Context()); ok {
				fields = append(fields, zap.String("user_id", userID))
			}

			// Log response
			if ce := logger.Check(level, "Request completed"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}
