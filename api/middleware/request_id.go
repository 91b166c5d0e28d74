package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Caller supplied ids are echoed only when short and log-safe.
var safeRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

func requestIDFor(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); safeRequestID.MatchString(id) {
		return id
	}
	return uuid.NewString()
}

// RequestID tags the response and the request logger with a request id.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestIDFor(r)
			w.Header().Set(requestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
