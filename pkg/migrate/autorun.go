package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on start-up, but only in dev
// and only with the auto-migrate flag on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if err := Run(ctx, sqlDB, EmbeddedDir, "up", nil); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.dev_autorun_complete")
	return nil
}
