package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ummati-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
)

type memoryCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{hits: map[string]int64{}}
}

func (m *memoryCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key], nil
}

func (m *memoryCounter) RateLimitKey(scope string) string {
	return "um:rate_limit:" + scope
}

func (m *memoryCounter) ScanRateLimitKey(ip string) string {
	return "um:rate_limit:qr_scan:" + ip
}

func (m *memoryCounter) keyList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.hits))
	for k := range m.hits {
		out = append(out, k)
	}
	return out
}

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func credentialRequest(path, ip, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestAuthRateLimitPassesBodyThrough(t *testing.T) {
	var seen string
	mw := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 3, 3), newMemoryCounter(), nil)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
	}))

	payload := `{"email":"yusuf@example.com","password":"hunter22"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, credentialRequest("/api/v1/auth/login", "198.51.100.4", payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, seen)
}

func TestAuthRateLimitCounters(t *testing.T) {
	cases := []struct {
		name     string
		policy   AuthRateLimitPolicy
		requests func(i int) *http.Request
		allowed  int
	}{
		{
			name:   "email counter spans addresses",
			policy: NewAuthRateLimitPolicy("login", time.Minute, 0, 2),
			requests: func(i int) *http.Request {
				ip := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}[i%3]
				return credentialRequest("/api/v1/auth/login", ip, `{"email":"Khadija@Example.com"}`)
			},
			allowed: 2,
		},
		{
			name:   "ip counter spans emails",
			policy: NewAuthRateLimitPolicy("register", time.Minute, 1, 0),
			requests: func(i int) *http.Request {
				return credentialRequest("/api/v1/auth/register", "192.0.2.9", `{"email":"user`+string(rune('a'+i))+`@example.com"}`)
			},
			allowed: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := AuthRateLimit(tc.policy, newMemoryCounter(), nil)(okHandler(http.StatusOK))
			for i := 0; i <= tc.allowed; i++ {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, tc.requests(i))
				if i < tc.allowed {
					require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
					continue
				}
				assert.Equal(t, http.StatusTooManyRequests, rec.Code)
				assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec))
				assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestAuthRateLimitNeverStoresRawEmail(t *testing.T) {
	counter := newMemoryCounter()
	h := AuthRateLimit(NewAuthRateLimitPolicy(" Login ", time.Minute, 5, 5), counter, nil)(okHandler(http.StatusOK))
	h.ServeHTTP(httptest.NewRecorder(), credentialRequest("/api/v1/auth/login", "203.0.113.50", `{"email":" Omar@Example.com "}`))

	keys := counter.keyList()
	require.Len(t, keys, 2)
	for _, key := range keys {
		assert.NotContains(t, strings.ToLower(key), "omar@example.com")
		assert.True(t, strings.HasPrefix(key, "um:rate_limit:login:"), key)
	}
}

func TestAuthRateLimitStoreFailure(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("redis unavailable")
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 1), counter, nil)(okHandler(http.StatusOK))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, credentialRequest("/api/v1/auth/login", "203.0.113.51", `{"email":"a@example.com"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanRateLimitPerClientIP(t *testing.T) {
	counter := newMemoryCounter()
	h := ScanRateLimit(config.ScanRateLimitConfig{Window: time.Minute, IPLimit: 2}, counter, nil)(okHandler(http.StatusOK))

	scan := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/qr/verify/abc", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, scan("203.0.113.7"))
	assert.Equal(t, http.StatusOK, scan("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, scan("203.0.113.7"))
	assert.Equal(t, http.StatusOK, scan("203.0.113.8"))
	assert.Contains(t, counter.keyList(), "um:rate_limit:qr_scan:203.0.113.7")
}

func TestScanRateLimitDisabled(t *testing.T) {
	h := ScanRateLimit(config.ScanRateLimitConfig{}, nil, nil)(okHandler(http.StatusNoContent))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	assert.Equal(t, "10.1.1.1", clientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.20")
	assert.Equal(t, "192.0.2.20", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 192.0.2.30 , 10.0.0.2")
	assert.Equal(t, "192.0.2.30", clientIP(req))
}
