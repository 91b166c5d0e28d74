package middleware

import (
	"net/http"

	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type scanLimiterStore interface {
	hitCounter
	ScanRateLimitKey(ip string) string
}

// ScanRateLimit throttles the public QR verification endpoints per client IP.
// Codes are unguessable, so this only bounds enumeration and load.
func ScanRateLimit(cfg config.ScanRateLimitConfig, store scanLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || cfg.Window <= 0 || cfg.IPLimit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip != "" && !enforceLimits(r.Context(), w, store, cfg.Window, logg, limitRule{
				key:    store.ScanRateLimitKey(ip),
				limit:  cfg.IPLimit,
				fields: map[string]any{"policy": "qr_scan", "scope": "ip", "ip": ip},
			}) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
