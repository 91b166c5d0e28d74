package middleware

import (
	"context"

	"github.com/google/uuid"
)

type identityKey struct{}

// identity is what Auth learns about the caller.
type identity struct {
	userID   string
	accessID string
}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func withIdentity(ctx context.Context, id identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

func UserIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).userID
}

// UserUUIDFromContext parses the authenticated user id; false when absent or malformed.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// AccessIDFromContext returns the session id (jti) of the presented token.
func AccessIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).accessID
}

// WithUserID marks ctx as authenticated for userID without a session.
func WithUserID(ctx context.Context, userID string) context.Context {
	id := identityFrom(ctx)
	id.userID = userID
	return withIdentity(ctx, id)
}
