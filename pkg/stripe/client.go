package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes each environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test", "rk_test"},
	"live": {"sk_live", "rk_live"},
}

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// Client bundles the Stripe API handle with the webhook secret and the
// default paid price.
type Client struct {
	api            *stripe.Client
	environment    string
	signingSecret  string
	monthlyPriceID string
}

// NewClient validates cfg and builds the Stripe API client. Keys from the
// wrong environment are rejected so a test deploy can never charge real cards.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be test or live, got %q", env)
	}

	c := &Client{
		environment:    env,
		signingSecret:  strings.TrimSpace(cfg.Secret),
		monthlyPriceID: strings.TrimSpace(cfg.MonthlyPriceID),
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case c.signingSecret == "":
		return nil, errSecretRequired
	case !hasAnyPrefix(apiKey, prefixes):
		return nil, fmt.Errorf("stripe %s environment requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	c.api = stripe.NewClient(apiKey)
	stripe.Key = apiKey
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return c, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// MonthlyPriceID is the price backing the default paid tier.
func (c *Client) MonthlyPriceID() string {
	if c == nil {
		return ""
	}
	return c.monthlyPriceID
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes the event. API version drift between account and library is allowed.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	if c.SigningSecret() == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signature, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
		Tolerance:                webhook.DefaultTolerance,
	})
}
