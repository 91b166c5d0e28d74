package memberships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/internal/billing"
	"github.com/angelmondragon/ummati-backend/internal/notifications"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
)

const (
	paymentStatusSucceeded = "succeeded"
	paymentStatusFailed    = "failed"
	paymentStatusRefunded  = "refunded"
)

// Service is the membership ledger: user-initiated lifecycle actions plus
// reconciliation of billing gateway events.
type Service interface {
	Create(ctx context.Context, userID, tierID uuid.UUID) (*models.Membership, error)
	CreateWithTx(ctx context.Context, tx *gorm.DB, userID, tierID uuid.UUID) (*models.Membership, error)
	Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	ChangeTier(ctx context.Context, userID, tierID uuid.UUID) (*models.Membership, error)
	Refund(ctx context.Context, input RefundInput) (*models.Membership, error)
	ConfirmPayment(ctx context.Context, userID uuid.UUID, subscriptionRef, clientSecret string) (*models.Membership, error)
	UpdatePaymentMethod(ctx context.Context, userID uuid.UUID, paymentMethodRef string) error
	Reconcile(ctx context.Context, evt Event) (string, error)
	MembershipStatus(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

// UserStore is the slice of the users repository the ledger needs.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByExternalCustomerRef(ctx context.Context, ref string) (*models.User, error)
	SetExternalCustomerRef(ctx context.Context, id uuid.UUID, ref string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the membership service.
type ServiceParams struct {
	Repo              Repository
	Tiers             tiers.Catalog
	Users             UserStore
	Payments          payments.Ledger
	Gateway           billing.Gateway
	Notifier          notifications.Notifier
	TransactionRunner txRunner
	Config            config.MembershipConfig
	Metrics           *metrics.MembershipMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

type service struct {
	repo     Repository
	tiers    tiers.Catalog
	users    UserStore
	payments payments.Ledger
	gateway  billing.Gateway
	notifier notifications.Notifier
	tx       txRunner
	cfg      config.MembershipConfig
	metrics  *metrics.MembershipMetrics
	logg     *logger.Logger
	clock    func() time.Time
}

// NewService builds the membership ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("membership repo required")
	case params.Tiers == nil:
		return nil, fmt.Errorf("tier catalog required")
	case params.Users == nil:
		return nil, fmt.Errorf("user store required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment ledger required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("billing gateway required")
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Config.GracePeriod <= 0 || params.Config.MaxFailedPayments <= 0 || params.Config.FreePeriod <= 0 {
		return nil, fmt.Errorf("membership config requires grace period, max failed payments and free period")
	}

	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &service{
		repo:     params.Repo,
		tiers:    params.Tiers,
		users:    params.Users,
		payments: params.Payments,
		gateway:  params.Gateway,
		notifier: notifier,
		tx:       params.TransactionRunner,
		cfg:      params.Config,
		metrics:  params.Metrics,
		logg:     logg,
		clock:    clock,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// Create grants the free tier. Repeating the call returns the existing free membership.
func (s *service) Create(ctx context.Context, userID, tierID uuid.UUID) (*models.Membership, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.createFree(ctx, s.repo, userID, tierID)
}

// CreateWithTx grants the free tier inside the caller's transaction, e.g. during registration.
func (s *service) CreateWithTx(ctx context.Context, tx *gorm.DB, userID, tierID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.createFree(ctx, s.repo.WithTx(tx), userID, tierID)
}

func (s *service) createFree(ctx context.Context, repo Repository, userID, tierID uuid.UUID) (*models.Membership, error) {
	tier, err := s.tiers.FindByID(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if !tier.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid tiers require a subscription")
	}

	current, err := repo.FindCurrent(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current membership")
	}
	if current != nil {
		if current.TierID == tier.ID && !current.IsPaid() {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already has a current membership")
	}

	now := s.now()
	membership := &models.Membership{
		UserID:             userID,
		TierID:             tier.ID,
		Status:             enums.MembershipStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(s.cfg.FreePeriod),
	}
	if err := repo.Create(ctx, membership); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already has a current membership")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
	}
	membership.Tier = tier
	s.metrics.IncTransition("free_granted")
	return membership, nil
}

// Subscribe starts (or resumes) a paid membership. The local row is written only
// after the gateway accepted the subscription; a failed write cancels it again.
func (s *service) Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.TierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
	}
	paymentMethodRef := strings.TrimSpace(input.PaymentMethodRef)
	if paymentMethodRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	tier, err := s.tiers.FindByID(ctx, input.TierID)
	if err != nil {
		return nil, err
	}
	if tier.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free tiers do not need a subscription")
	}
	if tier.ExternalPriceRef == nil || *tier.ExternalPriceRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tier has no price reference")
	}

	user, err := s.loadUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindCurrentPaid(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current membership")
	}
	if current != nil {
		if current.CancelAtPeriodEnd {
			if current.TierID != tier.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "a canceling membership on another tier exists; change tier instead")
			}
			return s.resume(ctx, user, current)
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active paid membership already exists")
	}

	customerRef, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.AttachPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
		return nil, err
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
		return nil, err
	}

	sub, err := s.gateway.CreateSubscription(ctx, billing.SubscriptionInput{
		UserID:           user.ID,
		CustomerRef:      customerRef,
		PriceRef:         *tier.ExternalPriceRef,
		PaymentMethodRef: paymentMethodRef,
		Email:            user.Email,
		IdempotencyKey:   input.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	membership := &models.Membership{
		UserID:                  user.ID,
		TierID:                  tier.ID,
		ExternalCustomerRef:     stringPtr(customerRef),
		ExternalSubscriptionRef: stringPtr(sub.ID),
		Status:                  statusFromGateway(sub.Status),
		CurrentPeriodStart:      orTime(sub.CurrentPeriodStart, now),
		CurrentPeriodEnd:        orTime(sub.CurrentPeriodEnd, nextPeriodEnd(tier, now)),
		CancelAtPeriodEnd:       sub.CancelAtPeriodEnd,
	}
	if sub.IsActive() {
		membership.LastPaymentStatus = stringPtr(paymentStatusSucceeded)
		membership.LastPaymentDate = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, membership); err != nil {
			return err
		}
		_, err := repo.CancelCurrentFree(ctx, user.ID, membership.ID, now)
		return err
	})
	if err != nil {
		s.compensate(ctx, sub.ID)
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an active paid membership already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist membership")
	}
	membership.Tier = tier

	s.metrics.IncTransition("subscribed")
	s.notifier.SubscriptionReceipt(ctx, recipientFor(user), tier.Name, tier.Price, membership.CurrentPeriodEnd)

	return &SubscribeResult{
		Membership:      membership,
		SubscriptionRef: sub.ID,
		ClientSecret:    sub.ClientSecret,
	}, nil
}

// resume reactivates a subscription scheduled to cancel instead of opening a second one.
func (s *service) resume(ctx context.Context, user *models.User, current *models.Membership) (*SubscribeResult, error) {
	ref := *current.ExternalSubscriptionRef
	sub, err := s.gateway.SetCancelAtPeriodEnd(ctx, ref, false)
	if err != nil {
		return nil, err
	}

	saved, err := s.updateBySubscription(ctx, ref, func(m *models.Membership) error {
		m.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		mirrorPeriod(m, sub)
		if sub.IsActive() {
			m.Status = enums.MembershipStatusActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("resumed")
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "membership.resumed")
	return &SubscribeResult{
		Membership:      saved,
		SubscriptionRef: ref,
		ClientSecret:    sub.ClientSecret,
		Resumed:         true,
	}, nil
}

// Cancel schedules the paid membership to end with its current period.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	current, err := s.requireCurrentPaid(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.CancelAtPeriodEnd {
		return current, nil
	}

	ref := *current.ExternalSubscriptionRef
	sub, err := s.gateway.SetCancelAtPeriodEnd(ctx, ref, true)
	if err != nil {
		return nil, err
	}

	saved, err := s.updateBySubscription(ctx, ref, func(m *models.Membership) error {
		m.CancelAtPeriodEnd = true
		mirrorPeriod(m, sub)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("cancel_scheduled")
	if to, ok := s.recipient(ctx, userID); ok {
		s.notifier.CancellationScheduled(ctx, to, saved.CurrentPeriodEnd)
	}
	return saved, nil
}

// ChangeTier moves the paid subscription to another paid tier's price.
func (s *service) ChangeTier(ctx context.Context, userID, tierID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	tier, err := s.tiers.FindByID(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if tier.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use cancel to move to the free tier")
	}
	if tier.ExternalPriceRef == nil || *tier.ExternalPriceRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tier has no price reference")
	}

	current, err := s.requireCurrentPaid(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.TierID == tier.ID {
		return current, nil
	}

	ref := *current.ExternalSubscriptionRef
	sub, err := s.gateway.UpdateSubscriptionPrice(ctx, ref, *tier.ExternalPriceRef)
	if err != nil {
		return nil, err
	}

	saved, err := s.updateBySubscription(ctx, ref, func(m *models.Membership) error {
		m.TierID = tier.ID
		m.Tier = tier
		if !sub.CurrentPeriodStart.IsZero() {
			m.CurrentPeriodStart = sub.CurrentPeriodStart
		}
		if !sub.CurrentPeriodEnd.IsZero() {
			m.CurrentPeriodEnd = sub.CurrentPeriodEnd
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved.Tier = tier
	s.metrics.IncTransition("tier_changed")
	return saved, nil
}

// Refund returns money for a charge and marks the paid membership Refunded.
// Charges not recorded against the caller are reported as not found. The
// free tier is not re-granted here; that follows the gateway's cancellation event.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Membership, error) {
	reason, err := enums.ParseRefundReason(strings.TrimSpace(input.Reason))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund reason")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	chargeRef := strings.TrimSpace(input.ChargeRef)
	if chargeRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	owner, err := s.payments.UserForCharge(ctx, chargeRef)
	if err != nil {
		return nil, err
	}
	if owner != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charge not found")
	}

	current, err := s.repo.FindCurrentPaid(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current membership")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no paid membership found")
	}

	refund, err := s.gateway.Refund(ctx, billing.RefundInput{
		ChargeRef:   chargeRef,
		AmountCents: input.AmountCents,
		Reason:      string(reason),
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	ref := *current.ExternalSubscriptionRef
	var saved *models.Membership
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		m, err := repo.FindBySubscriptionRef(ctx, ref)
		if err != nil {
			return err
		}
		if m == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		m.Status = enums.MembershipStatusRefunded
		m.RefundedAt = &now
		m.RefundReason = &reason
		m.LastPaymentStatus = stringPtr(paymentStatusRefunded)
		if err := repo.Save(ctx, m); err != nil {
			return err
		}
		saved = m

		_, err = s.payments.Record(ctx, tx, payments.RecordInput{
			UserID:                  m.UserID,
			Amount:                  centsToAmount(refund.AmountCents),
			Date:                    now,
			Description:             fmt.Sprintf("refund (%s)", reason),
			Status:                  enums.PaymentStatusRefunded,
			TransactionType:         enums.TransactionTypeRefund,
			ExternalChargeRef:       refund.ChargeRef,
			ExternalSubscriptionRef: ref,
		})
		return err
	})
	if err != nil {
		return nil, storeError(err, "persist refund")
	}

	s.metrics.IncTransition("refunded")
	if to, ok := s.recipient(ctx, input.UserID); ok {
		s.notifier.RefundProcessed(ctx, to, centsToAmount(refund.AmountCents), string(reason))
	}
	return saved, nil
}

// ConfirmPayment completes a payment that needed client-side authentication.
func (s *service) ConfirmPayment(ctx context.Context, userID uuid.UUID, subscriptionRef, clientSecret string) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subscriptionRef = strings.TrimSpace(subscriptionRef)
	if subscriptionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if _, err := billing.PaymentIntentIDFromSecret(clientSecret); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBySubscriptionRef(ctx, subscriptionRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if existing == nil || existing.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}

	status, err := s.gateway.ConfirmPayment(ctx, clientSecret)
	if err != nil {
		return nil, err
	}
	if status != billing.PaymentSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment confirmation failed").
			WithDetails(map[string]any{"payment_status": status})
	}

	now := s.now()
	saved, err := s.updateBySubscription(ctx, subscriptionRef, func(m *models.Membership) error {
		m.Status = enums.MembershipStatusActive
		m.LastPaymentStatus = stringPtr(paymentStatusSucceeded)
		m.LastPaymentDate = &now
		m.FailedPaymentAttempts = 0
		m.GracePeriodEnd = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition("payment_confirmed")
	return saved, nil
}

// UpdatePaymentMethod swaps the default card used for renewals.
func (s *service) UpdatePaymentMethod(ctx context.Context, userID uuid.UUID, paymentMethodRef string) error {
	paymentMethodRef = strings.TrimSpace(paymentMethodRef)
	if paymentMethodRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.ExternalCustomerRef == nil || *user.ExternalCustomerRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "no billing customer found for this user")
	}
	if err := s.gateway.AttachPaymentMethod(ctx, *user.ExternalCustomerRef, paymentMethodRef); err != nil {
		return err
	}
	return s.gateway.SetDefaultPaymentMethod(ctx, *user.ExternalCustomerRef, paymentMethodRef)
}

// MembershipStatus returns the user's authoritative membership joined with its tier.
func (s *service) MembershipStatus(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	current, err := s.repo.FindCurrent(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current membership")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active membership")
	}
	return current, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	return rows, nil
}

// PurgeProcessedEvents forgets gateway event ids recorded before the cutoff.
func (s *service) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.PurgeProcessedEvents(ctx, before)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge processed billing events")
	}
	return n, nil
}

func (s *service) requireCurrentPaid(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	current, err := s.repo.FindCurrentPaid(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current membership")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active membership")
	}
	return current, nil
}

// updateBySubscription re-reads the membership under lock, applies fn and saves it.
func (s *service) updateBySubscription(ctx context.Context, ref string, fn func(m *models.Membership) error) (*models.Membership, error) {
	var saved *models.Membership
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		m, err := repo.FindBySubscriptionRef(ctx, ref)
		if err != nil {
			return err
		}
		if m == nil || !m.Status.IsCurrent() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active membership")
		}
		if err := fn(m); err != nil {
			return err
		}
		if err := repo.Save(ctx, m); err != nil {
			return err
		}
		saved = m
		return nil
	})
	if err != nil {
		return nil, storeError(err, "update membership")
	}
	return saved, nil
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// ensureCustomer returns the user's gateway customer, creating and linking one on first purchase.
func (s *service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.ExternalCustomerRef != nil && *user.ExternalCustomerRef != "" {
		return *user.ExternalCustomerRef, nil
	}

	ref, err := s.gateway.CreateCustomer(ctx, billing.CustomerInput{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName(),
	})
	if err != nil {
		return "", err
	}

	if err := s.users.SetExternalCustomerRef(ctx, user.ID, ref); err != nil {
		if !errors.Is(err, users.ErrCustomerRefTaken) {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link billing customer")
		}
		// A concurrent request linked its own customer first; use that one.
		reloaded, lerr := s.loadUser(ctx, user.ID)
		if lerr != nil {
			return "", lerr
		}
		if reloaded.ExternalCustomerRef == nil {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "billing customer link changed concurrently")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id":         user.ID.String(),
			"orphan_customer": ref,
		}), "membership.customer_link_lost_race")
		ref = *reloaded.ExternalCustomerRef
	}
	user.ExternalCustomerRef = &ref
	return ref, nil
}

// compensate cancels a gateway subscription whose local record could not be written.
func (s *service) compensate(ctx context.Context, subscriptionRef string) {
	if err := s.gateway.CancelSubscription(context.WithoutCancel(ctx), subscriptionRef); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "subscription_ref", subscriptionRef), "membership.compensation_failed", err)
		return
	}
	s.metrics.IncTransition("compensated")
}

func (s *service) recipient(ctx context.Context, userID uuid.UUID) (notifications.Recipient, bool) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "membership.notify_recipient_missing")
		return notifications.Recipient{}, false
	}
	return recipientFor(user), true
}

func recipientFor(user *models.User) notifications.Recipient {
	return notifications.Recipient{Email: user.Email, Name: user.DisplayName()}
}

// statusFromGateway maps a new subscription's status: active or trialing is Active, anything else Unpaid.
func statusFromGateway(status string) enums.MembershipStatus {
	switch status {
	case billing.StatusActive, billing.StatusTrialing:
		return enums.MembershipStatusActive
	default:
		return enums.MembershipStatusUnpaid
	}
}

// mirrorStatus maps a subscription update onto a current membership status.
func mirrorStatus(status string) enums.MembershipStatus {
	if status == billing.StatusPastDue {
		return enums.MembershipStatusPastDue
	}
	return statusFromGateway(status)
}

// mirrorPeriod copies gateway period bounds, never moving the period end backwards.
func mirrorPeriod(m *models.Membership, sub *billing.Subscription) {
	if sub == nil || sub.CurrentPeriodEnd.IsZero() || sub.CurrentPeriodEnd.Before(m.CurrentPeriodEnd) {
		return
	}
	if !sub.CurrentPeriodStart.IsZero() {
		m.CurrentPeriodStart = sub.CurrentPeriodStart
	}
	m.CurrentPeriodEnd = sub.CurrentPeriodEnd
}

func nextPeriodEnd(tier *models.MembershipTier, from time.Time) time.Time {
	if tier.BillingInterval == enums.BillingIntervalYear {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.UTC()
}

func centsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func stringPtr(value string) *string {
	return &value
}

func storeError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
