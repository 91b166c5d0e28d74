package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ummati-backend/internal/bootstrap"
	"github.com/angelmondragon/ummati-backend/internal/cron"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/instance"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
	"github.com/angelmondragon/ummati-backend/pkg/migrate"
	"github.com/angelmondragon/ummati-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

// run owns every connection it opens and returns once ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(logg, "redis", redisClient.Close)

	domain, err := bootstrap.NewDomain(ctx, cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("domain services: %w", err)
	}

	jobs, err := buildJobs(cfg, logg, domain)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.CronLockKey(cfg.App.Env), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.ID(),
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildJobs(cfg *config.Config, logg *logger.Logger, domain *bootstrap.Domain) (*cron.Registry, error) {
	qrCleanup, err := cron.NewQRCleanupJob(cron.QRCleanupJobParams{Logger: logg, Cleaner: domain.QRCodes})
	if err != nil {
		return nil, fmt.Errorf("qr cleanup job: %w", err)
	}
	retention, err := cron.NewBillingEventRetentionJob(cron.BillingEventRetentionJobParams{
		Logger:    logg,
		Purger:    domain.Memberships,
		Retention: cfg.Eventing.ProcessedEventRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("billing event retention job: %w", err)
	}
	return cron.NewRegistry(qrCleanup, retention)
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
