package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ummati-backend/internal/auth"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/internal/qrcodes"
	"github.com/angelmondragon/ummati-backend/internal/users"
	pkgAuth "github.com/angelmondragon/ummati-backend/pkg/auth"
	"github.com/angelmondragon/ummati-backend/pkg/auth/session"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }
func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "um:idempotency:" + scope + ":" + id
}
func (m *memoryStore) RateLimitKey(scope string) string  { return "um:rate_limit:" + scope }
func (m *memoryStore) ScanRateLimitKey(ip string) string { return "um:rate_limit:qr_scan:" + ip }

type stubSessionManager struct{}

func (stubSessionManager) HasSession(context.Context, string) (bool, error) { return true, nil }
func (stubSessionManager) Rotate(context.Context, string, string) (string, string, error) {
	return "", "", nil
}
func (stubSessionManager) Revoke(context.Context, string) error { return nil }

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

type stubRegisterService struct{}

func (stubRegisterService) Register(context.Context, auth.RegisterRequest) (*models.User, error) {
	return nil, errors.New("not implemented")
}

type stubCatalog struct{}

func (stubCatalog) FindAll(context.Context) ([]models.MembershipTier, error) {
	return []models.MembershipTier{{ID: uuid.New(), Name: "Free"}}, nil
}

func (stubCatalog) FindFreeTier(context.Context) (*models.MembershipTier, error) {
	return &models.MembershipTier{ID: uuid.New(), Name: "Free"}, nil
}

type stubMemberships struct {
	memberships.Service
}

func (stubMemberships) MembershipStatus(_ context.Context, userID uuid.UUID) (*models.Membership, error) {
	return &models.Membership{ID: uuid.New(), UserID: userID, Status: enums.MembershipStatusActive}, nil
}

type stubLedger struct {
	payments.Ledger
}

type stubQR struct {
	qrcodes.Service
}

func (stubQR) Verify(context.Context, string) (*qrcodes.VerifyResult, error) {
	return &qrcodes.VerifyResult{Status: enums.ScanStatusInvalid, Message: "Invalid QR code"}, nil
}

type stubProfiles struct{}

func (stubProfiles) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Email: "amina@example.com"}, nil
}

func (stubProfiles) UpdateProfile(_ context.Context, id uuid.UUID, _ users.ProfilePatch) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "0", FrontendURL: "https://ummati.example"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "ummati", ExpirationMinutes: 10},
		ScanRateLimit: config.ScanRateLimitConfig{
			Window:  time.Minute,
			IPLimit: 2,
		},
	}
}

func newTestRouter(cfg *config.Config, dbP stubPinger) http.Handler {
	return NewRouter(
		cfg,
		logger.Nop(),
		dbP,
		newMemoryStore(),
		stubSessionManager{},
		stubAuthService{},
		stubRegisterService{},
		stubCatalog{},
		stubMemberships{},
		stubLedger{},
		stubQR{},
		stubProfiles{},
		WebhookIngress{},
	)
}

func bearer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "amina@example.com",
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}

	down := newTestRouter(cfg, stubPinger{err: errors.New("db down")})
	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestPublicCatalog(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/membership-tiers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestMembershipRoutesRequireAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/memberships/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memberships/status", nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscribeRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/memberships/subscribe", strings.NewReader(`{"tier_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Authorization", bearer(t, cfg))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestQRVerifyIsPublicAndRateLimited(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/qr/verify/abc", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestWebhookWithoutIngressFails(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
