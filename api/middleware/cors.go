package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const localFrontendOrigin = "http://localhost:3000"

// CORS allows the configured frontend plus local development origins.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(frontendURL),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Refresh-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func allowedOrigins(frontendURL string) []string {
	origins := []string{localFrontendOrigin}
	for _, origin := range strings.Split(frontendURL, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" && origin != localFrontendOrigin {
			origins = append(origins, origin)
		}
	}
	return origins
}
