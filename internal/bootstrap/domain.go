// Package bootstrap assembles the membership domain services shared by the
// api, cron-worker and ummatictl binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ummati-backend/internal/billing"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/notifications"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/internal/qrcodes"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/ummati-backend/pkg/stripe"
)

// Domain holds the wired services.
type Domain struct {
	Stripe          *pkgstripe.Client
	Users           *users.Repository
	Tiers           *tiers.Service
	Payments        payments.Ledger
	MembershipsRepo memberships.Repository
	Memberships     memberships.Service
	QRCodes         qrcodes.Service
	WebhookMetrics  *metrics.WebhookMetrics
}

// NewDomain wires the ledger, catalog and QR services over one database client.
// Metrics register against reg; pass nil to skip registration.
func NewDomain(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Domain, error) {
	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	gateway, err := billing.NewStripeGateway(stripeClient, logg)
	if err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)

	tierService, err := tiers.NewService(tiers.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("tier catalog: %w", err)
	}
	paymentLedger, err := payments.NewService(payments.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("payment ledger: %w", err)
	}

	notifier, err := NewNotifier(cfg.Brevo, logg)
	if err != nil {
		return nil, err
	}

	var (
		webhookMetrics    *metrics.WebhookMetrics
		membershipMetrics *metrics.MembershipMetrics
		qrMetrics         *metrics.QRMetrics
	)
	if reg != nil {
		webhookMetrics = metrics.NewWebhookMetrics(reg)
		membershipMetrics = metrics.NewMembershipMetrics(reg)
		qrMetrics = metrics.NewQRMetrics(reg)
	}

	membershipRepo := memberships.NewRepository(conn)
	membershipService, err := memberships.NewService(memberships.ServiceParams{
		Repo:              membershipRepo,
		Tiers:             tierService,
		Users:             userRepo,
		Payments:          paymentLedger,
		Gateway:           gateway,
		Notifier:          notifier,
		TransactionRunner: dbClient,
		Config:            cfg.Membership,
		Metrics:           membershipMetrics,
		Logger:            logg,
	})
	if err != nil {
		return nil, fmt.Errorf("membership ledger: %w", err)
	}

	qrService, err := qrcodes.NewService(qrcodes.ServiceParams{
		Repo:              qrcodes.NewRepository(conn),
		Users:             userRepo,
		Memberships:       membershipService,
		TransactionRunner: dbClient,
		FrontendURL:       cfg.App.FrontendURL,
		TTL:               cfg.Membership.QRCodeTTL,
		Metrics:           qrMetrics,
		Logger:            logg,
	})
	if err != nil {
		return nil, fmt.Errorf("qr service: %w", err)
	}

	return &Domain{
		Stripe:          stripeClient,
		Users:           userRepo,
		Tiers:           tierService,
		Payments:        paymentLedger,
		MembershipsRepo: membershipRepo,
		Memberships:     membershipService,
		QRCodes:         qrService,
		WebhookMetrics:  webhookMetrics,
	}, nil
}

// NewNotifier delivers through Brevo when configured and logs otherwise.
func NewNotifier(cfg config.BrevoConfig, logg *logger.Logger) (*notifications.Dispatcher, error) {
	if !cfg.Enabled() {
		return notifications.NewDispatcher(notifications.NewLogSender(logg), logg), nil
	}
	sender, err := notifications.NewBrevoSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("brevo sender: %w", err)
	}
	return notifications.NewDispatcher(sender, logg), nil
}

// SeedTiers upserts the embedded catalog, pointing the monthly paid tier at
// the configured Stripe price when one is set.
func SeedTiers(ctx context.Context, cfg *config.Config, catalog *tiers.Service) (int, error) {
	defs, err := tiers.DefaultDefinitions()
	if err != nil {
		return 0, err
	}
	defs = tiers.ApplyOverride(defs, tiers.PriceOverride{
		PriceRef:   cfg.Stripe.MonthlyPriceID,
		ProductRef: cfg.Stripe.MonthlyProduct,
	})
	seeded, err := catalog.Seed(ctx, defs)
	if err != nil {
		return 0, err
	}
	return len(seeded), nil
}
