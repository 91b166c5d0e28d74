package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ummati-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 1 << 20
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// Deduper remembers event ids whose reconcile already committed.
type Deduper interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

var received = map[string]bool{"received": true}

// StripeWebhook accepts billing events from Stripe. The body is verified
// against the signing secret before anything else runs, and a failed
// reconcile answers 500 so the delivery is retried. The cache only skips
// events already reconciled; a cache outage falls through to the database.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, dedup Deduper, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || dedup == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		event, err := verifiedEvent(w, r, verifier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventCtx := logg.WithField(ctx, "event_id", event.ID)
		seen, err := dedup.Processed(ctx, event.ID)
		if err != nil {
			logg.Warn(eventCtx, "stripe.dedup_lookup_failed: "+err.Error())
		}
		if seen {
			responses.WriteSuccess(w, received)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, asRetryable(err))
			return
		}
		if err := dedup.MarkProcessed(ctx, event.ID); err != nil {
			logg.Warn(eventCtx, "stripe.dedup_mark_failed: "+err.Error())
		}
		responses.WriteSuccess(w, received)
	}
}

func verifiedEvent(w http.ResponseWriter, r *http.Request, verifier EventVerifier) (*stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := verifier.VerifyEvent(payload, sig)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return &event, nil
}

// asRetryable forces a 500; Stripe does not redeliver on 4xx.
func asRetryable(err error) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile stripe event")
}
