package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ummati-backend/api"
	"github.com/angelmondragon/ummati-backend/api/routes"
	"github.com/angelmondragon/ummati-backend/internal/auth"
	"github.com/angelmondragon/ummati-backend/internal/bootstrap"
	stripewebhook "github.com/angelmondragon/ummati-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/ummati-backend/pkg/auth/session"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/instance"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/migrate"
	"github.com/angelmondragon/ummati-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	domain, err := bootstrap.NewDomain(ctx, cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(ctx, "failed to wire membership services", err)
		os.Exit(1)
	}

	if cfg.FeatureFlags.SeedTiers {
		n, err := bootstrap.SeedTiers(ctx, cfg, domain.Tiers)
		if err != nil {
			logg.Error(ctx, "failed to seed membership tiers", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "tiers", n), "membership tiers seeded")
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       domain.Users,
		Memberships:    domain.Memberships,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		Tiers:          domain.Tiers,
		Memberships:    domain.Memberships,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create register service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:  domain.Memberships,
		Metrics: domain.WebhookMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	dedup, err := stripewebhook.NewDedup(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(ctx, "failed to create webhook dedup", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		sessionManager,
		authService,
		registerService,
		domain.Tiers,
		domain.Memberships,
		domain.Payments,
		domain.QRCodes,
		domain.Users,
		routes.WebhookIngress{Service: webhookService, Verifier: domain.Stripe, Dedup: dedup},
	)

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
