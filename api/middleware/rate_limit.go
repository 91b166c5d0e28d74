package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/ummati-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type hitCounter interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// limitRule is one fixed-window counter a request must stay under.
type limitRule struct {
	key    string
	limit  int
	fields map[string]any
}

// enforceLimits counts the request against every rule in order and writes the
// error response on the first failure. It reports whether the request may proceed.
func enforceLimits(ctx context.Context, w http.ResponseWriter, counter hitCounter, window time.Duration, logg *logger.Logger, rules ...limitRule) bool {
	for _, rule := range rules {
		hits, err := counter.IncrWithTTL(ctx, rule.key, window)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
			return false
		}
		if hits <= int64(rule.limit) {
			continue
		}
		if logg != nil {
			fields := map[string]any{"attempts": hits, "limit": rule.limit, "window_seconds": int(window.Seconds())}
			for k, v := range rule.fields {
				fields[k] = v
			}
			logg.Warn(logg.WithFields(ctx, fields), "rate_limit.blocked")
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
		responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		return false
	}
	return true
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
