package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ummati-backend/internal/bootstrap"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	root := newRootCmd(&env{open: openEnv})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEnv loads config and connects the database once per invocation.
func openEnv(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "ummatictl",
		Level:       cfg.App.LogLevel,
		Format:      logger.FormatConsole,
		Output:      os.Stderr,
	})
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	catalog, err := tiers.NewService(tiers.NewRepository(dbClient.DB()))
	if err != nil {
		dbClient.Close()
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		catalog: catalog,
		qr: func(ctx context.Context) (codeCleaner, error) {
			domain, err := bootstrap.NewDomain(ctx, cfg, logg, dbClient, nil)
			if err != nil {
				return nil, err
			}
			return domain.QRCodes, nil
		},
		close: func() { _ = dbClient.Close() },
	}, nil
}
