package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"uniform-shop/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func genUUID() gopter.Gen {
	return gen.Int64().Map(func(int64) uuid.UUID { return uuid.New() })
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			path := "/" + pathSuffix
			if path == "/" {
				path = "/api/admin/orders"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "PATCH", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(userID uuid.UUID, role string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			token := signToken(t, testSecret, jwt.MapClaims{
				"user_id": userID.String(),
				"role":    role,
				"exp":     time.Now().Add(-1 * time.Hour).Unix(),
			})

			req := httptest.NewRequest("GET", "/api/users/profile", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		genUUID(),
		gen.OneConstOf(domain.RoleUser, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens put the caller on the context", prop.ForAll(
		func(userID uuid.UUID, role string) bool {
			token := signToken(t, testSecret, jwt.MapClaims{
				"user_id": userID.String(),
				"role":    role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})

			handlerCalled := false
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true

				ctxUserID, ok1 := GetUserID(r.Context())
				ctxRole, ok2 := GetUserRole(r.Context())
				if !ok1 || !ok2 || ctxUserID != userID.String() || ctxRole != role {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/users/profile", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return handlerCalled && w.Code == http.StatusOK
		},
		genUUID(),
		gen.OneConstOf(domain.RoleUser, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_InvalidTokenFormatRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("invalid token formats are rejected", prop.ForAll(
		func(invalidToken string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/api/users/profile", nil)
			req.Header.Set("Authorization", "Bearer "+invalidToken)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_MissingBearerPrefixRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tokens without Bearer prefix are rejected", prop.ForAll(
		func(userID uuid.UUID) bool {
			token := signToken(t, testSecret, jwt.MapClaims{
				"user_id": userID.String(),
				"role":    domain.RoleUser,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/api/users/profile", nil)
			req.Header.Set("Authorization", token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		genUUID(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware_RejectsForeignSignatureAndAlgorithm(t *testing.T) {
	handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
	claims := jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    domain.RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	t.Run("other secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "another-secret", claims))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing user id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
			"role": domain.RoleAdmin,
			"exp":  time.Now().Add(time.Hour).Unix(),
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	chain := func() http.Handler {
		return AuthMiddleware(testSecret, zap.NewNop())(RequireAdmin(zap.NewNop())(okHandler()))
	}

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "admin passes", role: domain.RoleAdmin, want: http.StatusOK},
		{name: "customer is forbidden", role: domain.RoleUser, want: http.StatusForbidden},
		{name: "unknown role is forbidden", role: "operator", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/admin/orders", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
				"user_id": uuid.NewString(),
				"role":    tt.role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			}))
			w := httptest.NewRecorder()
			chain().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("no auth context", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireAdmin(zap.NewNop())(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
