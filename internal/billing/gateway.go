package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subscription status values reported by the gateway.
const (
	StatusActive            = "active"
	StatusTrialing          = "trialing"
	StatusPastDue           = "past_due"
	StatusUnpaid            = "unpaid"
	StatusCanceled          = "canceled"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusPaused            = "paused"
)

// PaymentSucceeded is the payment intent status of a confirmed payment.
const PaymentSucceeded = "succeeded"

// Gateway is the subset of payment-processor operations the membership ledger drives.
// Every error returned by an implementation carries pkg/errors.CodeGateway unless
// the input was rejected locally.
type Gateway interface {
	CreateCustomer(ctx context.Context, input CustomerInput) (string, error)
	AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error
	SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error
	CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, priceRef string) (*Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionRef string) error
	Refund(ctx context.Context, input RefundInput) (*Refund, error)
	ConfirmPayment(ctx context.Context, clientSecret string) (string, error)
}

// CustomerInput describes the customer created for a user on first purchase.
type CustomerInput struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// SubscriptionInput describes a new recurring subscription.
type SubscriptionInput struct {
	UserID           uuid.UUID
	CustomerRef      string
	PriceRef         string
	PaymentMethodRef string
	Email            string
	IdempotencyKey   string
}

// RefundInput describes a refund against a charge or payment intent.
type RefundInput struct {
	ChargeRef   string
	AmountCents int64
	Reason      string
}

// Subscription is the gateway's view of a recurring subscription.
type Subscription struct {
	ID                 string
	CustomerRef        string
	PriceRef           string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	// ClientSecret completes 3-D Secure style confirmation on the client.
	ClientSecret string
}

// IsActive reports whether the gateway considers the subscription paid up.
func (s *Subscription) IsActive() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// IsTerminal reports whether the subscription no longer entitles the member to paid benefits.
func (s *Subscription) IsTerminal() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusCanceled || s.Status == StatusUnpaid || s.Status == StatusIncompleteExpired
}

// Refund is the gateway's record of a processed refund.
type Refund struct {
	ID          string
	ChargeRef   string
	Status      string
	AmountCents int64
	Currency    string
}
