package redis

import "strings"

// Every key lives under the "um" namespace, then a purpose segment.
const (
	keyNamespace      = "um"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	lockPrefix        = "lock"
)

// joinKey joins non-empty segments with ':' under the namespace.
func joinKey(segments ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

// ScanRateLimitKey scopes the public QR verification throttle to a client IP.
func (c *Client) ScanRateLimitKey(ip string) string {
	return joinKey(rateLimitPrefix, "qr_scan", ip)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return joinKey(sessionPrefix, "access", accessID)
}

// WebhookEventKey is the fast-path dedup key for a billing gateway event.
func (c *Client) WebhookEventKey(provider, eventID string) string {
	return joinKey(idempotencyPrefix, "webhook", provider, eventID)
}

func (c *Client) CronLockKey(name string) string {
	return joinKey(lockPrefix, "cron", name)
}
