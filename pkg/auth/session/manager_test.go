package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ummati-backend/pkg/config"
)

type kv struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newKV() *kv {
	return &kv{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *kv) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *kv) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (s *kv) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func (s *kv) AccessSessionKey(accessID string) string {
	return "um:session:" + accessID
}

func newTestManager(t *testing.T, store *kv) *Manager {
	t.Helper()
	m, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60 * 24})
	require.NoError(t, err)
	return m
}

func TestGenerateStoresDigestOnly(t *testing.T) {
	store := newKV()
	m := newTestManager(t, store)

	token, err := m.Generate(context.Background(), "acc-1")
	require.NoError(t, err)

	stored := store.values["um:session:acc-1"]
	assert.NotEqual(t, token, stored)
	assert.Equal(t, hashToken(token), stored)
	assert.Equal(t, 24*time.Hour, store.ttls["um:session:acc-1"])

	_, err = m.Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, errAccessIDRequired)
}

func TestRotateIsSingleUse(t *testing.T) {
	store := newKV()
	m := newTestManager(t, store)
	ctx := context.Background()

	token, err := m.Generate(ctx, "acc-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "acc-1", "guess")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	live, err := m.HasSession(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, live, "a wrong guess leaves the session intact")

	nextID, nextToken, err := m.Rotate(ctx, "acc-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "acc-1", nextID)
	assert.Equal(t, hashToken(nextToken), store.values["um:session:"+nextID])
	assert.NotContains(t, store.values, "um:session:acc-1")

	_, _, err = m.Rotate(ctx, "acc-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeAndHasSession(t *testing.T) {
	store := newKV()
	m := newTestManager(t, store)
	ctx := context.Background()

	_, err := m.Generate(ctx, "acc-2")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "acc-2"))

	live, err := m.HasSession(ctx, "acc-2")
	require.NoError(t, err)
	assert.False(t, live)

	store.getErr = errors.New("connection reset")
	_, err = m.HasSession(ctx, "acc-2")
	assert.ErrorContains(t, err, "connection reset")
	_, _, err = m.Rotate(ctx, "acc-2", "x")
	assert.ErrorContains(t, err, "connection reset")
}

func TestNewManagerValidatesTTLs(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)
	_, err = NewManager(newKV(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
	_, err = NewManager(newKV(), config.JWTConfig{ExpirationMinutes: 15})
	assert.Error(t, err)
}
