package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uniform-shop/internal/config"
	"uniform-shop/internal/domain"
	"uniform-shop/internal/payment"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "server-test-secret"

type fakeDB struct {
	status string
	closed bool
}

func (f *fakeDB) DB() *sql.DB { return nil }

func (f *fakeDB) Health() map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test"},
		JWT:    config.JWTConfig{Secret: testSecret, AccessExpiry: 15, RefreshExpiry: 7},
		Shop: config.ShopConfig{
			Name:                   "Test Shop",
			PublicURL:              "http://shop.test",
			UploadDir:              t.TempDir(),
			TempOrderTTL:           48 * time.Hour,
			TempOrderSweepInterval: time.Hour,
			NotifyTimeout:          time.Second,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerWindow: 2, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, db *fakeDB, rdb *redis.Client) *Server {
	return NewServer(cfg, zap.NewNop(), Deps{
		DB:      db,
		Redis:   rdb,
		Payment: payment.NewStripeClient(config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"}, zap.NewNop()),
	})
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    role,
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		dbStatus string
		want     int
	}{
		{"database up", "up", http.StatusOK},
		{"database down", "down", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t), &fakeDB{status: tt.dbStatus}, nil)

			rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.dbStatus, body["status"])
		})
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeDB{status: "up"}, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/orders"},
		{http.MethodPatch, "/api/admin/orders/" + uuid.NewString() + "/status"},
		{http.MethodPost, "/api/admin/products"},
		{http.MethodPut, "/api/admin/products/" + uuid.NewString() + "/inventory/M"},
		{http.MethodPost, "/api/admin/uploads"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			anonymous := serve(s, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

			req := httptest.NewRequest(route.method, route.path, nil)
			req.Header.Set("Authorization", "Bearer "+token(t, domain.RoleUser))
			customer := serve(s, req)
			assert.Equal(t, http.StatusForbidden, customer.Code)
		})
	}
}

func TestChatWebhookOnlyWhenChatConfigured(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeDB{status: "up"}, nil)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStripeWebhookRejectsUnsignedPayloads(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeDB{status: "up"}, nil)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"type":"checkout.session.completed"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newTestServer(t, testConfig(t), &fakeDB{status: "up"}, rdb)
	defer s.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/checkout/session", strings.NewReader("{}")))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
	assert.True(t, mr.Exists("rl:checkout:192.0.2.1"))
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeDB{status: "up"}, nil)

	for i := 0; i < 5; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/checkout/session", strings.NewReader("{}")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestUploadsAreServed(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Shop.UploadDir, "blazer.png"), []byte("png-bytes"), 0o644))
	s := newTestServer(t, cfg, &fakeDB{status: "up"}, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, UploadURLPrefix+"/blazer.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestCloseReleasesDatabase(t *testing.T) {
	db := &fakeDB{status: "up"}
	s := newTestServer(t, testConfig(t), db, nil)

	require.NoError(t, s.Close())
	assert.True(t, db.closed)
}
