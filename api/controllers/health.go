package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

const (
	envHeader    = "X-Ummati-Env"
	readyTimeout = 2 * time.Second
)

// ReadinessCheck pings one backing dependency.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every check answers within readyTimeout.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status := map[string]string{}
		var failed *pkgerrors.Error
		for _, check := range checks {
			if check.Ping == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				status[check.Name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
				}
				continue
			}
			status[check.Name] = "up"
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
