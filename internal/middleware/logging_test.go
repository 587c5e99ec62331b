package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"uniform-shop/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  zapcore.Level
	}{
		{name: "success", path: "/api/products", status: http.StatusOK, level: zapcore.InfoLevel},
		{name: "client error", path: "/api/orders", status: http.StatusBadRequest, level: zapcore.WarnLevel},
		{name: "server error", path: "/api/orders", status: http.StatusInternalServerError, level: zapcore.ErrorLevel},
		{name: "health check", path: "/health", status: http.StatusOK, level: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := middleware.RequestID(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))

			entries := logs.FilterMessage("Request completed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, tt.path, fields["path"])
			assert.EqualValues(t, tt.status, fields["status"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := CORSMiddleware(configCORS("https://shop.example.com"), false)(okHandler())

	req := httptest.NewRequest("OPTIONS", "/api/orders", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("OPTIONS", "/api/orders", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func configCORS(origins ...string) config.CORSConfig {
	return config.CORSConfig{AllowedOrigins: origins}
}
