package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/stripe/stripe-go/v84/webhook"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  config.StripeConfig
		ok   bool
	}{
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_1"}},
		{name: "live key in test env", cfg: config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec_1", Env: "test"}},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "staging"}},
		{name: "restricted test key", cfg: config.StripeConfig{APIKey: "rk_test_1", Secret: "whsec_1"}, ok: true},
		{name: "live", cfg: config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec_1", Env: "LIVE"}, ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(ctx, tc.cfg, nil)
			if tc.ok && err != nil {
				t.Fatalf("expected client, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error for %+v", tc.cfg)
			}
			if tc.ok && client.API() == nil {
				t.Fatalf("expected api client")
			}
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:         "sk_test_123",
		Secret:         "whsec_test",
		MonthlyPriceID: " price_monthly ",
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.MonthlyPriceID() != "price_monthly" {
		t.Fatalf("expected trimmed price id, got %q", client.MonthlyPriceID())
	}

	payload, _ := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "invoice.payment_failed",
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": map[string]any{"id": "in_1", "object": "invoice"}},
	})
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := client.VerifyEvent(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event id %s", event.ID)
	}

	if _, err := client.VerifyEvent(signed.Payload, fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix())); err == nil {
		t.Fatalf("expected tampered signature to fail")
	}
}
