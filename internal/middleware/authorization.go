package middleware

import (
	"net/http"

	"uniform-shop/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin lets through only requests whose token carries the admin role.
// It must run after AuthMiddleware.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if role != domain.RoleAdmin {
				userID, _ := GetUserID(r.Context())
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("user_id", userID),
					zap.String("role", role),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
