package memberships

import (
	"time"

	"github.com/angelmondragon/ummati-backend/internal/billing"
)

// Gateway event types handled by Reconcile.
const (
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventChargeSucceeded         = "charge.succeeded"
	EventChargeFailed            = "charge.failed"
	EventChargeRefunded          = "charge.refunded"
	EventChargeDisputeCreated    = "charge.dispute.created"
)

// Event is a decoded billing gateway event. Exactly one payload is set, matching Type.
type Event struct {
	ID           string
	Type         string
	Subscription *billing.Subscription
	Invoice      *InvoiceEvent
	Charge       *ChargeEvent
}

// InvoiceEvent is the invoice payload of invoice.payment_* events.
type InvoiceEvent struct {
	ID              string
	SubscriptionRef string
	CustomerRef     string
	ChargeRef       string
	AmountCents     int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

// ChargeEvent is the charge (or dispute) payload of charge.* events.
type ChargeEvent struct {
	ID                  string
	CustomerRef         string
	InvoiceRef          string
	AmountCents         int64
	AmountRefundedCents int64
	Description         string
	PaymentMethod       string
}

// Handled reports whether Reconcile knows the event type.
func Handled(eventType string) bool {
	switch eventType {
	case EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventInvoicePaymentSucceeded, EventInvoicePaymentFailed,
		EventChargeSucceeded, EventChargeFailed, EventChargeRefunded, EventChargeDisputeCreated:
		return true
	}
	return false
}
