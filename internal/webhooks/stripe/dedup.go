package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

// EventKeyStore is the redis surface Dedup needs.
type EventKeyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	WebhookEventKey(provider, eventID string) string
}

// Dedup remembers event ids that were reconciled so redeliveries skip the
// database. An id is only recorded after its reconcile committed; the
// processed_billing_events table stays authoritative for anything in between.
type Dedup struct {
	store    EventKeyStore
	ttl      time.Duration
	provider string
}

var errEventIDRequired = errors.New("event id is required")

func NewDedup(store EventKeyStore, ttl time.Duration, provider string) (*Dedup, error) {
	switch {
	case store == nil:
		return nil, errors.New("dedup store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case provider == "":
		return nil, errors.New("provider is required")
	}
	return &Dedup{store: store, ttl: ttl, provider: provider}, nil
}

// Processed reports whether eventID was already reconciled.
func (d *Dedup) Processed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errEventIDRequired
	}
	_, err := d.store.Get(ctx, d.store.WebhookEventKey(d.provider, eventID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup %s: %w", eventID, err)
	}
	return true, nil
}

// MarkProcessed records eventID after a successful reconcile.
func (d *Dedup) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errEventIDRequired
	}
	if err := d.store.Set(ctx, d.store.WebhookEventKey(d.provider, eventID), "1", d.ttl); err != nil {
		return fmt.Errorf("mark %s: %w", eventID, err)
	}
	return nil
}
