package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ummati-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/ummati-backend/api/controllers/webhooks"
	"github.com/angelmondragon/ummati-backend/api/middleware"
	"github.com/angelmondragon/ummati-backend/internal/auth"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/internal/qrcodes"
	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/auth/session"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/ummati-backend/pkg/redis"
	"github.com/google/uuid"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Store is the redis surface the HTTP layer needs for throttling and replay.
type Store interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
	ScanRateLimitKey(ip string) string
}

// TierCatalog is the read side of the tier catalog.
type TierCatalog interface {
	FindAll(ctx context.Context) ([]models.MembershipTier, error)
	FindFreeTier(ctx context.Context) (*models.MembershipTier, error)
}

// ProfileStore loads and patches member profiles.
type ProfileStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch users.ProfilePatch) (*models.User, error)
}

// WebhookIngress bundles the pieces of the Stripe webhook endpoint.
type WebhookIngress struct {
	Service  webhookcontrollers.StripeWebhookService
	Verifier webhookcontrollers.EventVerifier
	Dedup    webhookcontrollers.Deduper
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store Store,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	tierCatalog TierCatalog,
	membershipService memberships.Service,
	paymentLedger payments.Ledger,
	qrService qrcodes.Service,
	profiles ProfileStore,
	webhook WebhookIngress,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.FrontendURL),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	idempotent := middleware.Idempotency(store, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Ping: pingOf(dbP)},
			controllers.ReadinessCheck{Name: "redis", Ping: pingOf(store)},
		))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhook.Service, webhook.Verifier, webhook.Dedup, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, store, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, store, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Get("/api/v1/membership-tiers", controllers.MembershipTiers(tierCatalog, logg))

	r.Route("/api/v1/qr/verify/{code}", func(r chi.Router) {
		r.Use(middleware.ScanRateLimit(cfg.ScanRateLimit, store, logg))
		r.Get("/", controllers.QRVerify(qrService, logg))
		r.Post("/", controllers.QRRecordScan(qrService, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))

		r.Route("/api/v1/memberships", func(r chi.Router) {
			r.Get("/status", controllers.MembershipStatus(membershipService, logg))
			r.Get("/history", controllers.MembershipHistory(membershipService, logg))
			r.Post("/free", controllers.MembershipFree(membershipService, tierCatalog, logg))
			r.With(idempotent).Post("/subscribe", controllers.MembershipSubscribe(membershipService, logg))
			r.With(idempotent).Post("/cancel", controllers.MembershipCancel(membershipService, logg))
			r.With(idempotent).Post("/change-tier", controllers.MembershipChangeTier(membershipService, logg))
			r.Post("/confirm", controllers.MembershipConfirm(membershipService, logg))
			r.Post("/payment-method", controllers.MembershipPaymentMethod(membershipService, logg))
			r.With(idempotent).Post("/refund", controllers.MembershipRefund(membershipService, logg))
		})

		r.Route("/api/v1/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentHistory(paymentLedger, logg))
			r.Get("/stats", controllers.PaymentStats(paymentLedger, logg))
		})

		r.Route("/api/v1/qr", func(r chi.Router) {
			r.Post("/generate", controllers.QRGenerate(qrService, logg))
			r.Get("/scans", controllers.QRScanHistory(qrService, logg))
		})

		r.Route("/api/v1/users/me", func(r chi.Router) {
			r.Get("/", controllers.CurrentUser(profiles, logg))
			r.Patch("/", controllers.UpdateCurrentUser(profiles, logg))
		})
	})

	return r
}

func pingOf(p interface{ Ping(context.Context) error }) func(context.Context) error {
	if p == nil {
		return nil
	}
	return p.Ping
}
