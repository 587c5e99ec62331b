package middleware

import (
	"net/http"
	"time"

	"uniform-shop/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSMiddleware lets the storefront and admin SPA call the API. Tokens travel
// in the Authorization header, so credentials are not allowed.
func CORSMiddleware(cfg config.CORSConfig, isDevelopment bool) func(http.Handler) http.Handler {
	allowedOrigins := cfg.AllowedOrigins
	if isDevelopment || len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// DefaultMiddlewareStack returns the middleware every route runs behind
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Timeout(30 * time.Second),
		middleware.Compress(5, "application/json", "text/plain"),
	}
}
