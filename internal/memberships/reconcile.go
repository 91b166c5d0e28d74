package memberships

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/internal/billing"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
)

// Reconcile applies one gateway event. The event id is recorded in the same
// transaction as its effects, so a redelivered event is a no-op. Notifications
// and gateway follow-ups run only after commit.
func (s *service) Reconcile(ctx context.Context, evt Event) (string, error) {
	evt.ID = strings.TrimSpace(evt.ID)
	if evt.ID == "" {
		return metrics.OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if !Handled(evt.Type) {
		return metrics.OutcomeIgnored, nil
	}
	if err := evt.validate(); err != nil {
		return metrics.OutcomeFailed, err
	}
	ctx = s.logg.WithEvent(ctx, evt.ID, evt.Type)

	// Lookups outside the membership tables happen before the transaction opens.
	prep, err := s.prepare(ctx, evt)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	now := s.now()
	var (
		duplicate bool
		after     []func()
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fresh, err := repo.MarkEventProcessed(ctx, evt.ID, evt.Type, now)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}

		r := &reconciler{service: s, ctx: ctx, tx: tx, repo: repo, now: now, prep: prep}
		switch evt.Type {
		case EventSubscriptionUpdated:
			err = r.subscription(evt.Subscription, false)
		case EventSubscriptionDeleted:
			err = r.subscription(evt.Subscription, true)
		case EventInvoicePaymentSucceeded:
			err = r.invoiceSucceeded(evt.Invoice)
		case EventInvoicePaymentFailed:
			err = r.invoiceFailed(evt.Invoice)
		default:
			err = r.charge(evt.Type, evt.Charge)
		}
		if err != nil {
			return err
		}
		after = r.after
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "membership.reconcile_failed", err)
		return metrics.OutcomeFailed, storeError(err, "reconcile billing event")
	}
	if duplicate {
		s.logg.Info(ctx, "membership.reconcile_duplicate")
		return metrics.OutcomeDuplicate, nil
	}

	for _, fn := range after {
		fn()
	}
	return metrics.OutcomeProcessed, nil
}

func (e Event) validate() error {
	var missing bool
	switch e.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		missing = e.Subscription == nil || e.Subscription.ID == ""
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		missing = e.Invoice == nil || (e.Invoice.SubscriptionRef == "" && e.Invoice.CustomerRef == "")
	default:
		missing = e.Charge == nil || e.Charge.ID == ""
	}
	if missing {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload missing for "+e.Type)
	}
	return nil
}

type prepared struct {
	freeTier   *models.MembershipTier
	freeErr    error
	chargeUser uuid.UUID
}

// mayDowngrade reports whether evt can move a membership back to the free tier.
func (e Event) mayDowngrade() bool {
	switch e.Type {
	case EventSubscriptionDeleted, EventInvoicePaymentFailed:
		return true
	case EventSubscriptionUpdated:
		return e.Subscription.IsTerminal()
	}
	return false
}

func (s *service) prepare(ctx context.Context, evt Event) (prepared, error) {
	var p prepared
	switch evt.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventInvoicePaymentFailed:
		if !evt.mayDowngrade() {
			return p, nil
		}
		// A missing free tier only matters once a downgrade actually runs.
		free, err := s.tiers.FindFreeTier(ctx)
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			p.freeErr = err
		case err != nil:
			return p, err
		default:
			p.freeTier = free
		}
	case EventChargeSucceeded, EventChargeFailed, EventChargeRefunded, EventChargeDisputeCreated:
		userID, err := s.chargeOwner(ctx, evt.Charge)
		if err != nil {
			return p, err
		}
		p.chargeUser = userID
	}
	return p, nil
}

// chargeOwner resolves the user behind a charge by gateway customer, then by earlier ledger rows.
func (s *service) chargeOwner(ctx context.Context, charge *ChargeEvent) (uuid.UUID, error) {
	if charge.CustomerRef != "" {
		user, err := s.users.FindByExternalCustomerRef(ctx, charge.CustomerRef)
		switch {
		case err == nil:
			return user.ID, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user by customer")
		}
	}
	return s.payments.UserForCharge(ctx, charge.ID)
}

type reconciler struct {
	*service
	ctx   context.Context
	tx    *gorm.DB
	repo  Repository
	now   time.Time
	prep  prepared
	after []func()
}

func (r *reconciler) afterCommit(fn func()) {
	r.after = append(r.after, fn)
}

func (r *reconciler) subscription(sub *billing.Subscription, deleted bool) error {
	m, err := r.repo.FindBySubscriptionRef(r.ctx, sub.ID)
	if err != nil {
		return err
	}
	if m == nil {
		r.logg.Warn(r.logg.WithField(r.ctx, "subscription_ref", sub.ID), "membership.reconcile_unknown_subscription")
		return nil
	}

	if deleted || sub.IsTerminal() {
		if !m.Status.IsCurrent() && m.Status != enums.MembershipStatusRefunded {
			return nil
		}
		// An unpaid subscription is still alive at the gateway; stop it billing.
		return r.downgrade(m, !deleted && sub.Status != billing.StatusCanceled)
	}

	if !m.Status.IsCurrent() {
		return nil
	}
	m.Status = mirrorStatus(sub.Status)
	m.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	mirrorPeriod(m, sub)
	if err := r.repo.Save(r.ctx, m); err != nil {
		return err
	}
	r.afterCommit(func() { r.metrics.IncTransition("mirrored") })
	return nil
}

func (r *reconciler) invoiceMembership(inv *InvoiceEvent) (*models.Membership, error) {
	if inv.SubscriptionRef != "" {
		m, err := r.repo.FindBySubscriptionRef(r.ctx, inv.SubscriptionRef)
		if err != nil || m != nil {
			return m, err
		}
	}
	if inv.CustomerRef != "" {
		return r.repo.FindCurrentByCustomerRef(r.ctx, inv.CustomerRef)
	}
	return nil, nil
}

func (r *reconciler) invoiceSucceeded(inv *InvoiceEvent) error {
	m, err := r.invoiceMembership(inv)
	if err != nil {
		return err
	}
	if m == nil {
		r.logg.Warn(r.logg.WithField(r.ctx, "invoice_ref", inv.ID), "membership.reconcile_unknown_invoice")
		return nil
	}

	amount := centsToAmount(inv.AmountCents)
	if _, err := r.payments.Record(r.ctx, r.tx, payments.RecordInput{
		UserID:                  m.UserID,
		Amount:                  amount,
		Date:                    r.now,
		Description:             "membership invoice paid",
		Status:                  enums.PaymentStatusCompleted,
		TransactionType:         enums.TransactionTypeSubscription,
		ExternalChargeRef:       inv.ChargeRef,
		ExternalInvoiceRef:      inv.ID,
		ExternalSubscriptionRef: inv.SubscriptionRef,
	}); err != nil {
		return err
	}

	if !m.Status.IsCurrent() {
		return nil
	}
	m.Status = enums.MembershipStatusActive
	m.LastPaymentStatus = stringPtr(paymentStatusSucceeded)
	now := r.now
	m.LastPaymentDate = &now
	m.FailedPaymentAttempts = 0
	m.GracePeriodEnd = nil
	if !inv.PeriodEnd.IsZero() && inv.PeriodEnd.After(m.CurrentPeriodEnd) {
		if !inv.PeriodStart.IsZero() {
			m.CurrentPeriodStart = inv.PeriodStart.UTC()
		}
		m.CurrentPeriodEnd = inv.PeriodEnd.UTC()
	}
	if err := r.repo.Save(r.ctx, m); err != nil {
		return err
	}

	userID, periodEnd := m.UserID, m.CurrentPeriodEnd
	r.afterCommit(func() {
		r.metrics.IncTransition("payment_succeeded")
		if to, ok := r.recipient(r.ctx, userID); ok {
			r.notifier.PaymentSucceeded(r.ctx, to, amount, periodEnd)
		}
	})
	return nil
}

func (r *reconciler) invoiceFailed(inv *InvoiceEvent) error {
	m, err := r.invoiceMembership(inv)
	if err != nil {
		return err
	}
	if m == nil {
		r.logg.Warn(r.logg.WithField(r.ctx, "invoice_ref", inv.ID), "membership.reconcile_unknown_invoice")
		return nil
	}

	if _, err := r.payments.Record(r.ctx, r.tx, payments.RecordInput{
		UserID:                  m.UserID,
		Amount:                  centsToAmount(inv.AmountCents),
		Date:                    r.now,
		Description:             "membership invoice payment failed",
		Status:                  enums.PaymentStatusFailed,
		TransactionType:         enums.TransactionTypeSubscription,
		ExternalChargeRef:       inv.ChargeRef,
		ExternalInvoiceRef:      inv.ID,
		ExternalSubscriptionRef: inv.SubscriptionRef,
	}); err != nil {
		return err
	}

	if !m.Status.IsCurrent() || !m.IsPaid() {
		return nil
	}

	now := r.now
	m.FailedPaymentAttempts++
	m.Status = enums.MembershipStatusPastDue
	m.LastPaymentStatus = stringPtr(paymentStatusFailed)
	m.LastFailedPaymentDate = &now
	if m.GracePeriodEnd == nil {
		graceEnd := now.Add(r.cfg.GracePeriod)
		m.GracePeriodEnd = &graceEnd
	}

	if m.FailedPaymentAttempts >= r.cfg.MaxFailedPayments || now.After(*m.GracePeriodEnd) {
		return r.downgrade(m, true)
	}
	if err := r.repo.Save(r.ctx, m); err != nil {
		return err
	}

	userID, attempts, graceEnd := m.UserID, m.FailedPaymentAttempts, *m.GracePeriodEnd
	r.afterCommit(func() {
		r.metrics.IncTransition("payment_failed")
		if to, ok := r.recipient(r.ctx, userID); ok {
			r.notifier.PaymentFailed(r.ctx, to, attempts, graceEnd)
		}
	})
	return nil
}

// downgrade moves a paid membership back to the free tier with a fresh window.
// When the user already holds another current free membership the paid row is
// retired instead, keeping one current record per user.
func (r *reconciler) downgrade(m *models.Membership, cancelAtGateway bool) error {
	free := r.prep.freeTier
	subRef := ""
	if m.ExternalSubscriptionRef != nil {
		subRef = *m.ExternalSubscriptionRef
	}

	other, err := r.repo.FindCurrentFreeExcept(r.ctx, m.UserID, m.ID)
	if err != nil {
		return err
	}

	m.CancelAtPeriodEnd = false
	m.FailedPaymentAttempts = 0
	m.GracePeriodEnd = nil
	if other != nil {
		m.Status = enums.MembershipStatusCancelled
	} else {
		if free == nil {
			return r.prep.freeErr
		}
		m.TierID = free.ID
		m.Tier = free
		m.Status = enums.MembershipStatusActive
		m.ExternalSubscriptionRef = nil
		m.ExternalCustomerRef = nil
		m.CurrentPeriodStart = r.now
		m.CurrentPeriodEnd = r.now.Add(r.cfg.FreePeriod)
	}
	if err := r.repo.Save(r.ctx, m); err != nil {
		return err
	}

	userID := m.UserID
	r.afterCommit(func() {
		r.metrics.IncTransition("downgraded")
		if cancelAtGateway && subRef != "" {
			if err := r.gateway.CancelSubscription(context.WithoutCancel(r.ctx), subRef); err != nil {
				r.logg.Error(r.logg.WithField(r.ctx, "subscription_ref", subRef), "membership.downgrade_cancel_failed", err)
			}
		}
		if to, ok := r.recipient(r.ctx, userID); ok {
			r.notifier.Downgraded(r.ctx, to, free.Name)
		}
	})
	return nil
}

func (r *reconciler) charge(eventType string, charge *ChargeEvent) error {
	if r.prep.chargeUser == uuid.Nil {
		r.logg.Warn(r.logg.WithField(r.ctx, "charge_ref", charge.ID), "membership.reconcile_unknown_charge")
		return nil
	}

	txType := enums.TransactionTypeOneTime
	if charge.InvoiceRef != "" {
		txType = enums.TransactionTypeSubscription
	}
	input := payments.RecordInput{
		UserID:             r.prep.chargeUser,
		Amount:             centsToAmount(charge.AmountCents),
		Date:               r.now,
		Description:        charge.Description,
		PaymentMethod:      charge.PaymentMethod,
		TransactionType:    txType,
		ExternalChargeRef:  charge.ID,
		ExternalInvoiceRef: charge.InvoiceRef,
	}
	switch eventType {
	case EventChargeSucceeded:
		input.Status = enums.PaymentStatusCompleted
	case EventChargeFailed:
		input.Status = enums.PaymentStatusFailed
	case EventChargeRefunded:
		input.Status = enums.PaymentStatusRefunded
		input.TransactionType = enums.TransactionTypeRefund
		if charge.AmountRefundedCents > 0 {
			input.Amount = centsToAmount(charge.AmountRefundedCents)
		}
	case EventChargeDisputeCreated:
		input.Status = enums.PaymentStatusDisputed
		input.TransactionType = enums.TransactionTypeDispute
	}
	if input.Description == "" {
		input.Description = strings.ReplaceAll(eventType, ".", " ")
	}
	inserted, err := r.payments.Record(r.ctx, r.tx, input)
	if err != nil {
		return err
	}
	if inserted {
		status := input.Status
		r.afterCommit(func() { r.metrics.IncTransition("payment_" + string(status)) })
	}
	return nil
}
