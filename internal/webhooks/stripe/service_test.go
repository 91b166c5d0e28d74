package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ummati-backend/internal/memberships"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
)

type recordingLedger struct {
	events  []memberships.Event
	outcome string
	err     error
}

func (r *recordingLedger) Reconcile(_ context.Context, evt memberships.Event) (string, error) {
	r.events = append(r.events, evt)
	if r.err != nil {
		return metrics.OutcomeFailed, r.err
	}
	if r.outcome == "" {
		return metrics.OutcomeProcessed, nil
	}
	return r.outcome, nil
}

func parseEvent(t *testing.T, eventType string, object string) *stripe.Event {
	t.Helper()
	payload := `{"id":"evt_1","object":"event","type":"` + eventType + `","data":{"object":` + object + `}}`
	var event stripe.Event
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	return &event
}

func TestDecodeInvoiceFromParentDetails(t *testing.T) {
	event := parseEvent(t, memberships.EventInvoicePaymentSucceeded, `{
		"id": "in_1",
		"object": "invoice",
		"customer": "cus_1",
		"amount_paid": 999,
		"parent": {"subscription_details": {"subscription": "sub_1"}},
		"payments": {"data": [{"payment": {"charge": "ch_1"}}]},
		"lines": {"data": [{"period": {"start": 1790000000, "end": 1792600000}}]}
	}`)

	evt, err := Decode(event)
	require.NoError(t, err)
	require.NotNil(t, evt.Invoice)
	assert.Equal(t, "in_1", evt.Invoice.ID)
	assert.Equal(t, "sub_1", evt.Invoice.SubscriptionRef)
	assert.Equal(t, "cus_1", evt.Invoice.CustomerRef)
	assert.Equal(t, "ch_1", evt.Invoice.ChargeRef)
	assert.Equal(t, int64(999), evt.Invoice.AmountCents)
	assert.Equal(t, time.Unix(1792600000, 0).UTC(), evt.Invoice.PeriodEnd)
}

func TestDecodeInvoiceLegacyFields(t *testing.T) {
	event := parseEvent(t, memberships.EventInvoicePaymentFailed, `{
		"id": "in_2",
		"object": "invoice",
		"customer": {"id": "cus_2", "object": "customer"},
		"subscription": "sub_2",
		"charge": "ch_2",
		"amount_due": 999,
		"period_start": 1790000000,
		"period_end": 1792600000
	}`)

	evt, err := Decode(event)
	require.NoError(t, err)
	assert.Equal(t, "sub_2", evt.Invoice.SubscriptionRef)
	assert.Equal(t, "cus_2", evt.Invoice.CustomerRef)
	assert.Equal(t, "ch_2", evt.Invoice.ChargeRef)
	assert.Equal(t, int64(999), evt.Invoice.AmountCents)
	assert.Equal(t, time.Unix(1790000000, 0).UTC(), evt.Invoice.PeriodStart)
}

func TestDecodeChargeAndDispute(t *testing.T) {
	charge, err := Decode(parseEvent(t, memberships.EventChargeRefunded, `{
		"id": "ch_3",
		"object": "charge",
		"customer": "cus_3",
		"amount": 999,
		"amount_refunded": 500,
		"payment_method_details": {"type": "card"}
	}`))
	require.NoError(t, err)
	require.NotNil(t, charge.Charge)
	assert.Equal(t, "ch_3", charge.Charge.ID)
	assert.Equal(t, int64(500), charge.Charge.AmountRefundedCents)
	assert.Equal(t, "card", charge.Charge.PaymentMethod)

	dispute, err := Decode(parseEvent(t, memberships.EventChargeDisputeCreated, `{
		"id": "dp_1",
		"object": "dispute",
		"charge": "ch_3",
		"amount": 999,
		"reason": "fraudulent"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "ch_3", dispute.Charge.ID)
	assert.Equal(t, "dispute fraudulent", dispute.Charge.Description)

	_, err = Decode(parseEvent(t, memberships.EventChargeSucceeded, `{"object":"charge","amount":1}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeSubscription(t *testing.T) {
	event := parseEvent(t, memberships.EventSubscriptionUpdated, `{
		"id": "sub_4",
		"object": "subscription",
		"status": "past_due",
		"customer": "cus_4",
		"cancel_at_period_end": true,
		"items": {"data": [{"current_period_start": 1790000000, "current_period_end": 1792600000}]}
	}`)

	evt, err := Decode(event)
	require.NoError(t, err)
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, "sub_4", evt.Subscription.ID)
	assert.True(t, evt.Subscription.CancelAtPeriodEnd)
}

func TestHandleEventRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(reg)
	ledger := &recordingLedger{}
	svc, err := NewService(ServiceParams{Ledger: ledger, Metrics: webhookMetrics})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.HandleEvent(ctx, parseEvent(t, memberships.EventChargeSucceeded, `{"id":"ch_5","object":"charge","amount":999}`)))
	require.Len(t, ledger.events, 1)
	assert.Equal(t, "evt_1", ledger.events[0].ID)

	require.NoError(t, svc.HandleEvent(ctx, parseEvent(t, "customer.created", `{"id":"cus_5","object":"customer"}`)))
	assert.Len(t, ledger.events, 1, "unhandled types never reach the ledger")

	ledger.err = pkgerrors.New(pkgerrors.CodeInternal, "boom")
	err = svc.HandleEvent(ctx, parseEvent(t, memberships.EventChargeFailed, `{"id":"ch_6","object":"charge","amount":999}`))
	assert.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewServiceRequiresLedger(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	svc, err := NewService(ServiceParams{Ledger: &recordingLedger{}})
	require.NoError(t, err)
	assert.Error(t, svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_x"}))
}
