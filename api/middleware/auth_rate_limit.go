package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/ummati-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

const maxRateLimitedBody = 64 << 10

type rateLimiterStore interface {
	hitCounter
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy throttles one credential endpoint per client IP and per
// submitted email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

// NewAuthRateLimitPolicy builds a policy. A zero limit disables that counter.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	p := AuthRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
	if p.name == "" {
		p.name = "auth"
	}
	return p
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// rules builds the counters for one request. The email only reaches the key
// space as a sha256 digest.
func (p AuthRateLimitPolicy) rules(store rateLimiterStore, ip, email string) []limitRule {
	var out []limitRule
	if p.ipLimit > 0 && ip != "" {
		out = append(out, limitRule{
			key:    store.RateLimitKey(p.name + ":ip:" + ip),
			limit:  p.ipLimit,
			fields: map[string]any{"policy": p.name, "scope": "ip", "ip": ip},
		})
	}
	if p.emailLimit > 0 && email != "" {
		digest := sha256.Sum256([]byte(email))
		hash := hex.EncodeToString(digest[:])
		out = append(out, limitRule{
			key:    store.RateLimitKey(p.name + ":email:" + hash),
			limit:  p.emailLimit,
			fields: map[string]any{"policy": p.name, "scope": "email", "email_hash": hash},
		})
	}
	return out
}

// AuthRateLimit applies policy in front of a login or registration handler.
// The body is buffered so the handler still sees it unchanged.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var email string
			if policy.emailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitedBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				email = emailFromBody(body)
			}
			if enforceLimits(ctx, w, store, policy.window, logg, policy.rules(store, clientIP(r), email)...) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}
