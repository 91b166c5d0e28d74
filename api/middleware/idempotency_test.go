package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
)

type memoryIdempotencyStore map[string]string

func (m memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m memoryIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m[key] = value.(string)
	return nil
}

func (m memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := m[key]; taken {
		return false, nil
	}
	m[key] = value.(string)
	return true, nil
}

func (m memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func (m memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type idemCall struct {
	path string
	key  string
	body string
	user string
}

// serve routes one request through mw with the chi route pattern set the way
// the router would set it.
func (c idemCall) serve(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, c.path, strings.NewReader(c.body))
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{c.path}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if c.user != "" {
		ctx = WithUserID(ctx, c.user)
	}
	req = req.WithContext(ctx)
	if c.key != "" {
		req.Header.Set(IdempotencyKeyHeader, c.key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRouteTTL(t *testing.T) {
	cases := []struct {
		method, pattern string
		want            time.Duration
		ok              bool
	}{
		{http.MethodPost, "/api/v1/memberships/subscribe", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/memberships/refund", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/memberships/cancel", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/memberships/change-tier", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/memberships/status", 0, false},
		{http.MethodPost, "/api/v1/auth/login", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.pattern)
		assert.Equal(t, tc.ok, ok, tc.pattern)
		assert.Equal(t, tc.want, ttl, tc.pattern)
	}
}

func TestIdempotencyRequiresKeyOnGuardedRoutes(t *testing.T) {
	reached := false
	h := Idempotency(memoryIdempotencyStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := idemCall{path: "/api/v1/memberships/cancel", body: `{}`}.serve(h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, reached)

	rec = idemCall{path: "/api/v1/auth/login", body: `{}`}.serve(h)
	assert.Equal(t, http.StatusOK, rec.Code, "unguarded routes pass through")
	assert.True(t, reached)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	calls := 0
	h := Idempotency(memoryIdempotencyStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"tier":"premium"}`))
	}))
	call := idemCall{path: "/api/v1/memberships/change-tier", key: "k-1", body: `{"tier_id":"t"}`}

	first := call.serve(h)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	again := call.serve(h)
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, "true", again.Header().Get(ReplayedHeader))
	assert.JSONEq(t, `{"tier":"premium"}`, again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsKeyReuseWithNewBody(t *testing.T) {
	h := Idempotency(memoryIdempotencyStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	idemCall{path: "/api/v1/memberships/change-tier", key: "k-2", body: `{"tier_id":"a"}`}.serve(h)
	rec := idemCall{path: "/api/v1/memberships/change-tier", key: "k-2", body: `{"tier_id":"b"}`}.serve(h)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := memoryIdempotencyStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	call := idemCall{path: "/api/v1/memberships/subscribe", key: "sub-1", body: `{"tier_id":"t"}`}

	assert.Equal(t, http.StatusBadGateway, call.serve(h).Code)
	assert.Empty(t, store)
	assert.Equal(t, http.StatusCreated, call.serve(h).Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store, 1)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	calls := 0
	h := Idempotency(memoryIdempotencyStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	idemCall{path: "/api/v1/memberships/cancel", key: "same", body: `{}`, user: "user-a"}.serve(h)
	idemCall{path: "/api/v1/memberships/cancel", key: "same", body: `{}`, user: "user-b"}.serve(h)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := memoryIdempotencyStore{}
	call := idemCall{path: "/api/v1/memberships/refund", key: "r-1", body: `{"amount_cents":500}`}
	calls := 0
	var duplicate *httptest.ResponseRecorder

	var h http.Handler
	h = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			duplicate = call.serve(h)
		}
	}))
	call.serve(h)

	assert.Equal(t, 1, calls)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
}

func TestIdempotencyResolvesRouteUnderChi(t *testing.T) {
	mounts := map[string]func(r chi.Router, mw func(http.Handler) http.Handler, h http.HandlerFunc){
		"group use": func(r chi.Router, mw func(http.Handler) http.Handler, h http.HandlerFunc) {
			r.Group(func(r chi.Router) {
				r.Use(mw)
				r.Route("/api/v1/memberships", func(r chi.Router) {
					r.Post("/subscribe", h)
					r.Post("/confirm", h)
				})
			})
		},
		"per route": func(r chi.Router, mw func(http.Handler) http.Handler, h http.HandlerFunc) {
			r.Route("/api/v1/memberships", func(r chi.Router) {
				r.With(mw).Post("/subscribe", h)
				r.With(mw).Post("/confirm", h)
			})
		},
	}
	for name, mount := range mounts {
		t.Run(name, func(t *testing.T) {
			calls := 0
			router := chi.NewRouter()
			mount(router, Idempotency(memoryIdempotencyStore{}, nil), func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusCreated)
			})

			post := func(path, key string) int {
				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"tier_id":"t1"}`))
				req = req.WithContext(WithUserID(req.Context(), "user-1"))
				if key != "" {
					req.Header.Set(IdempotencyKeyHeader, key)
				}
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				return rec.Code
			}

			assert.Equal(t, http.StatusBadRequest, post("/api/v1/memberships/subscribe", ""))
			assert.Equal(t, http.StatusCreated, post("/api/v1/memberships/subscribe", "k-1"))
			assert.Equal(t, http.StatusCreated, post("/api/v1/memberships/subscribe", "k-1"))
			assert.Equal(t, 1, calls, "the repeat is replayed from the store")

			assert.Equal(t, http.StatusCreated, post("/api/v1/memberships/confirm", ""))
		})
	}
}
