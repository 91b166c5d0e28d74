package billing

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/refund"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/angelmondragon/ummati-backend/pkg/stripe"
)

// stripeAPI exposes the Stripe calls used by the gateway so it can be tested without the network.
type stripeAPI interface {
	NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
	NewSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	NewRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
	ConfirmPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct{}

func newStripeAPI(client *pkgstripe.Client) stripeAPI {
	if client == nil {
		return nil
	}
	return stripeClientWrapper{}
}

func (stripeClientWrapper) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customer.New(params)
}

func (stripeClientWrapper) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customer.Update(id, params)
}

func (stripeClientWrapper) AttachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error) {
	params.Context = ctx
	return paymentmethod.Attach(id, params)
}

func (stripeClientWrapper) NewSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	return subscription.New(params)
}

func (stripeClientWrapper) GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	return subscription.Get(id, params)
}

func (stripeClientWrapper) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	return subscription.Update(id, params)
}

func (stripeClientWrapper) CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	params.Context = ctx
	return subscription.Cancel(id, params)
}

func (stripeClientWrapper) NewRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	params.Context = ctx
	return refund.New(params)
}

func (stripeClientWrapper) ConfirmPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Confirm(id, params)
}
