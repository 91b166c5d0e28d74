// Package session keeps refresh sessions in Redis keyed by access token id.
// Each value is the hex SHA-256 of the refresh token handed to the client.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ummati-backend/pkg/config"
)

const refreshEntropy = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

// Backend is satisfied by pkg/redis.Client.
type Backend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	backend Backend
	ttl     time.Duration
}

func NewManager(backend Backend, cfg config.JWTConfig) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("session backend is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if refresh <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if refresh <= access {
		return nil, fmt.Errorf("refresh token ttl %s is not longer than access token ttl %s", refresh, access)
	}
	return &Manager{backend: backend, ttl: refresh}, nil
}

func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns the plaintext refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if blank(accessID) {
		return "", errAccessIDRequired
	}
	return m.store(ctx, accessID)
}

// Rotate spends the refresh token bound to oldAccessID and opens a session
// under a new access id. The old entry is gone before the new one exists.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (newAccessID, newRefresh string, err error) {
	if blank(oldAccessID) || blank(refreshToken) {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.spend(ctx, oldAccessID, refreshToken); err != nil {
		return "", "", err
	}
	newAccessID = NewAccessID()
	newRefresh, err = m.store(ctx, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, newRefresh, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errAccessIDRequired
	}
	return m.backend.Del(ctx, m.backend.AccessSessionKey(accessID))
}

// HasSession is false once the session was revoked, rotated or expired.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errAccessIDRequired
	}
	_, err := m.backend.Get(ctx, m.backend.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return false, nil
	}
	return err == nil, err
}

func (m *Manager) spend(ctx context.Context, accessID, refreshToken string) error {
	key := m.backend.AccessSessionKey(accessID)
	want, err := m.backend.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(hashToken(refreshToken))) != 1 {
		return ErrInvalidRefreshToken
	}
	return m.backend.Del(ctx, key)
}

func (m *Manager) store(ctx context.Context, accessID string) (string, error) {
	buf := make([]byte, refreshEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := m.backend.Set(ctx, m.backend.AccessSessionKey(accessID), hashToken(token), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
