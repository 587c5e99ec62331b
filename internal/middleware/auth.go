package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// AuthMiddleware validates the bearer access token and puts the caller's
// id and role on the request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			// Check for Bearer token format
			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenString == "" || strings.Contains(tokenString, " ") {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			// Parse and validate token, HS256 only
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			if !token.Valid {
				logger.Debug("Invalid token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// Extract user ID
			userID, ok := claims["user_id"].(string)
			if !ok || userID == "" {
				logger.Warn("Missing user_id in token claims")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			// Extract role
			role, ok := claims["role"].(string)
			if !ok {
				logger.Warn("Missing role in token claims", zap.String("user_id", userID))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			// Add user info to context
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, role)

			logger.Debug("User authenticated",
				zap.String("user_id", userID),
				zap.String("role", role),
			)

			// Call next handler with updated context
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}
