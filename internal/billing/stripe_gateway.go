package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/ummati-backend/pkg/stripe"
)

const (
	metadataUserID       = "user_id"
	clientSecretMarker   = "_secret_"
	expandLatestInvoice  = "latest_invoice.confirmation_secret"
	paymentBehavior      = "default_incomplete"
	saveDefaultOnSub     = "on_subscription"
	prorationBehavior    = "create_prorations"
	paymentIntentPrefix  = "pi_"
	refundReasonCustomer = "requested_by_customer"
)

// StripeGateway implements Gateway on top of stripe-go.
type StripeGateway struct {
	api  stripeAPI
	logg *logger.Logger
}

// NewStripeGateway binds the gateway to an initialized Stripe client.
func NewStripeGateway(client *pkgstripe.Client, logg *logger.Logger) (*StripeGateway, error) {
	api := newStripeAPI(client)
	if api == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return newStripeGateway(api, logg), nil
}

func newStripeGateway(api stripeAPI, logg *logger.Logger) *StripeGateway {
	if logg == nil {
		logg = logger.Nop()
	}
	return &StripeGateway{api: api, logg: logg}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata(metadataUserID, input.UserID.String())

	cust, err := g.api.NewCustomer(ctx, params)
	if err != nil {
		return "", g.gatewayError(ctx, err, "create customer")
	}
	return cust.ID, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	if err := requireRefs(customerRef, paymentMethodRef); err != nil {
		return err
	}
	_, err := g.api.AttachPaymentMethod(ctx, paymentMethodRef, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerRef),
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceAlreadyExists {
			return nil
		}
		return g.gatewayError(ctx, err, "attach payment method")
	}
	return nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	if err := requireRefs(customerRef, paymentMethodRef); err != nil {
		return err
	}
	_, err := g.api.UpdateCustomer(ctx, customerRef, &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodRef),
		},
	})
	if err != nil {
		return g.gatewayError(ctx, err, "set default payment method")
	}
	return nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error) {
	if err := requireRefs(input.CustomerRef, input.PriceRef); err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(input.CustomerRef),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(input.PriceRef)},
		},
		PaymentBehavior: stripe.String(paymentBehavior),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String(saveDefaultOnSub),
		},
	}
	if pm := strings.TrimSpace(input.PaymentMethodRef); pm != "" {
		params.DefaultPaymentMethod = stripe.String(pm)
	}
	params.AddMetadata(metadataUserID, input.UserID.String())
	params.AddExpand(expandLatestInvoice)
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	sub, err := g.api.NewSubscription(ctx, params)
	if err != nil {
		return nil, g.gatewayError(ctx, err, "create subscription")
	}
	return FromStripeSubscription(sub), nil
}

func (g *StripeGateway) UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, priceRef string) (*Subscription, error) {
	if err := requireRefs(subscriptionRef, priceRef); err != nil {
		return nil, err
	}
	current, err := g.api.GetSubscription(ctx, subscriptionRef, &stripe.SubscriptionParams{})
	if err != nil {
		return nil, g.gatewayError(ctx, err, "load subscription")
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "subscription has no items")
	}

	sub, err := g.api.UpdateSubscription(ctx, subscriptionRef, &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	})
	if err != nil {
		return nil, g.gatewayError(ctx, err, "update subscription price")
	}
	return FromStripeSubscription(sub), nil
}

func (g *StripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*Subscription, error) {
	if err := requireRefs(subscriptionRef); err != nil {
		return nil, err
	}
	sub, err := g.api.UpdateSubscription(ctx, subscriptionRef, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	})
	if err != nil {
		return nil, g.gatewayError(ctx, err, "set cancel at period end")
	}
	return FromStripeSubscription(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	if err := requireRefs(subscriptionRef); err != nil {
		return err
	}
	if _, err := g.api.CancelSubscription(ctx, subscriptionRef, &stripe.SubscriptionCancelParams{}); err != nil {
		return g.gatewayError(ctx, err, "cancel subscription")
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, input RefundInput) (*Refund, error) {
	ref := strings.TrimSpace(input.ChargeRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = refundReasonCustomer
	}

	params := &stripe.RefundParams{
		Amount: stripe.Int64(input.AmountCents),
		Reason: stripe.String(reason),
	}
	if strings.HasPrefix(ref, paymentIntentPrefix) {
		params.PaymentIntent = stripe.String(ref)
	} else {
		params.Charge = stripe.String(ref)
	}

	rf, err := g.api.NewRefund(ctx, params)
	if err != nil {
		return nil, g.gatewayError(ctx, err, "create refund")
	}

	out := &Refund{
		ID:          rf.ID,
		ChargeRef:   ref,
		Status:      string(rf.Status),
		AmountCents: rf.Amount,
		Currency:    string(rf.Currency),
	}
	if rf.Charge != nil && rf.Charge.ID != "" {
		out.ChargeRef = rf.Charge.ID
	}
	return out, nil
}

// ConfirmPayment confirms the payment intent behind a client secret and returns its status.
func (g *StripeGateway) ConfirmPayment(ctx context.Context, clientSecret string) (string, error) {
	intentID, err := PaymentIntentIDFromSecret(clientSecret)
	if err != nil {
		return "", err
	}
	pi, err := g.api.ConfirmPaymentIntent(ctx, intentID, &stripe.PaymentIntentConfirmParams{})
	if err != nil {
		return "", g.gatewayError(ctx, err, "confirm payment")
	}
	return string(pi.Status), nil
}

// PaymentIntentIDFromSecret extracts "pi_x" from a "pi_x_secret_y" client secret.
func PaymentIntentIDFromSecret(clientSecret string) (string, error) {
	secret := strings.TrimSpace(clientSecret)
	idx := strings.Index(secret, clientSecretMarker)
	if idx <= 0 || !strings.HasPrefix(secret, paymentIntentPrefix) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "client secret is malformed")
	}
	return secret[:idx], nil
}

// FromStripeSubscription maps a Stripe subscription into the gateway view. Period bounds
// are read from the first subscription item.
func FromStripeSubscription(sub *stripe.Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		if item.Price != nil {
			out.PriceRef = item.Price.ID
		}
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		out.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func requireRefs(refs ...string) error {
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference is required")
		}
	}
	return nil
}

// gatewayError logs the provider detail and returns a CodeGateway error for the caller.
func (g *StripeGateway) gatewayError(ctx context.Context, err error, op string) error {
	dump := pkgerrors.Dump(err)
	g.logg.Warn(g.logg.WithFields(ctx, dump.Fields()), "billing."+strings.ReplaceAll(op, " ", "_")+".failed")
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, op)
}
