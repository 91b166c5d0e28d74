package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ummati-backend/internal/billing"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
)

// Reconciler applies decoded gateway events to the membership ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, evt memberships.Event) (string, error)
}

type ServiceParams struct {
	Ledger  Reconciler
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

// Service translates Stripe events into ledger events.
type Service struct {
	ledger  Reconciler
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership ledger required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{ledger: params.Ledger, metrics: params.Metrics, logg: logg}, nil
}

// HandleEvent decodes and reconciles one verified Stripe event. Unhandled
// event types are acknowledged without work.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	start := time.Now()
	eventType := string(event.Type)
	ctx = s.logg.WithEvent(ctx, event.ID, eventType)

	if !memberships.Handled(eventType) {
		s.metrics.Observe(eventType, metrics.OutcomeIgnored, time.Since(start))
		s.logg.Debug(ctx, "stripe.event_ignored")
		return nil
	}

	evt, err := Decode(event)
	if err != nil {
		s.metrics.Observe(eventType, metrics.OutcomeFailed, time.Since(start))
		return err
	}

	outcome, err := s.ledger.Reconcile(ctx, evt)
	s.metrics.Observe(eventType, outcome, time.Since(start))
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "outcome", outcome), "stripe.event_reconciled")
	return nil
}

// Decode maps a Stripe event payload onto the ledger's event shape. Fields that
// moved between API versions are read from both locations.
func Decode(event *stripe.Event) (memberships.Event, error) {
	out := memberships.Event{ID: event.ID, Type: string(event.Type)}
	obj := event.Data.Object

	switch out.Type {
	case memberships.EventSubscriptionUpdated, memberships.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		out.Subscription = billing.FromStripeSubscription(&sub)

	case memberships.EventInvoicePaymentSucceeded, memberships.EventInvoicePaymentFailed:
		inv := &memberships.InvoiceEvent{
			ID:              str(obj, "id"),
			SubscriptionRef: firstString(obj, []string{"subscription"}, []string{"parent", "subscription_details", "subscription"}),
			CustomerRef:     str(obj, "customer"),
			ChargeRef:       firstString(obj, []string{"charge"}, []string{"payments", "data", "0", "payment", "charge"}),
			PeriodStart:     unixAt(firstInt(obj, []string{"lines", "data", "0", "period", "start"}, []string{"period_start"})),
			PeriodEnd:       unixAt(firstInt(obj, []string{"lines", "data", "0", "period", "end"}, []string{"period_end"})),
		}
		if out.Type == memberships.EventInvoicePaymentSucceeded {
			inv.AmountCents = firstInt(obj, []string{"amount_paid"}, []string{"amount_due"})
		} else {
			inv.AmountCents = firstInt(obj, []string{"amount_due"})
		}
		if inv.ID == "" {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "invoice id missing")
		}
		out.Invoice = inv

	case memberships.EventChargeDisputeCreated:
		chargeRef := str(obj, "charge")
		if chargeRef == "" {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "dispute charge missing")
		}
		out.Charge = &memberships.ChargeEvent{
			ID:          chargeRef,
			AmountCents: integer(obj, "amount"),
			Description: "dispute " + str(obj, "reason"),
		}

	default:
		out.Charge = &memberships.ChargeEvent{
			ID:                  str(obj, "id"),
			CustomerRef:         str(obj, "customer"),
			InvoiceRef:          str(obj, "invoice"),
			AmountCents:         integer(obj, "amount"),
			AmountRefundedCents: integer(obj, "amount_refunded"),
			Description:         str(obj, "description"),
			PaymentMethod:       str(obj, "payment_method_details", "type"),
		}
		if out.Charge.ID == "" {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "charge id missing")
		}
	}
	return out, nil
}

// lookup walks nested JSON objects and arrays; missing or null nodes yield nil.
func lookup(obj map[string]any, path ...string) any {
	var node any = obj
	for _, key := range path {
		switch typed := node.(type) {
		case map[string]any:
			node = typed[key]
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil
			}
			node = typed[idx]
		default:
			return nil
		}
	}
	return node
}

// str reads a string, accepting an expanded object in place of its id.
func str(obj map[string]any, path ...string) string {
	switch v := lookup(obj, path...).(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

func integer(obj map[string]any, path ...string) int64 {
	switch v := lookup(obj, path...).(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func firstString(obj map[string]any, paths ...[]string) string {
	for _, path := range paths {
		if v := str(obj, path...); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(obj map[string]any, paths ...[]string) int64 {
	for _, path := range paths {
		if v := integer(obj, path...); v != 0 {
			return v
		}
	}
	return 0
}

func unixAt(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
