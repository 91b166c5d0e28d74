package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type freeTierFinder interface {
	FindFreeTier(ctx context.Context) (*models.MembershipTier, error)
}

type tierRequest struct {
	TierID string `json:"tier_id" validate:"required,uuid"`
}

type freeMembershipRequest struct {
	TierID string `json:"tier_id" validate:"omitempty,uuid"`
}

type subscribeRequest struct {
	TierID          string `json:"tier_id" validate:"required,uuid"`
	PaymentMethodID string `json:"payment_method_id" validate:"omitempty,max=255"`
}

type subscribeResponse struct {
	Membership     memberships.MembershipDTO `json:"membership"`
	SubscriptionID string                    `json:"subscription_id"`
	ClientSecret   string                    `json:"client_secret,omitempty"`
	Resumed        bool                      `json:"resumed"`
}

type confirmRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required,max=255"`
	ClientSecret   string `json:"client_secret" validate:"required,max=512"`
}

type paymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,max=255"`
}

type refundRequest struct {
	ChargeID    string `json:"charge_id" validate:"required,max=255"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

func membershipResponse(w http.ResponseWriter, m *models.Membership) {
	responses.WriteSuccess(w, memberships.FromModel(m))
}

// MembershipStatus returns the caller's current membership with its tier.
func MembershipStatus(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		current, err := svc.MembershipStatus(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipResponse(w, current)
	}
}

// MembershipHistory lists every membership the caller has held, newest first.
func MembershipHistory(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		rows, err := svc.History(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, memberships.FromModels(rows))
	}
}

// MembershipFree grants the free tier. An omitted tier_id picks the catalog's free tier.
func MembershipFree(svc memberships.Service, catalog freeTierFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body freeMembershipRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(w, r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var tierID uuid.UUID
		if body.TierID != "" {
			id, err := parseUUID(body.TierID, "tier_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			tierID = id
		} else {
			tier, err := catalog.FindFreeTier(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			tierID = tier.ID
		}

		m, err := svc.Create(r.Context(), userID, tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, memberships.FromModel(m))
	}
}

// MembershipSubscribe starts a paid subscription. The Idempotency-Key header is
// forwarded to the gateway so retried requests never double-charge.
func MembershipSubscribe(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body subscribeRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tierID, err := parseUUID(body.TierID, "tier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Subscribe(r.Context(), memberships.SubscribeInput{
			UserID:           userID,
			TierID:           tierID,
			PaymentMethodRef: strings.TrimSpace(body.PaymentMethodID),
			IdempotencyKey:   strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Resumed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, subscribeResponse{
			Membership:     memberships.FromModel(result.Membership),
			SubscriptionID: result.SubscriptionRef,
			ClientSecret:   result.ClientSecret,
			Resumed:        result.Resumed,
		})
	}
}

// MembershipCancel schedules cancellation at the end of the paid period.
func MembershipCancel(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		m, err := svc.Cancel(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipResponse(w, m)
	}
}

func MembershipChangeTier(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body tierRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tierID, err := parseUUID(body.TierID, "tier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		m, err := svc.ChangeTier(r.Context(), userID, tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipResponse(w, m)
	}
}

// MembershipConfirm finishes a subscription whose first payment needed client action.
func MembershipConfirm(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body confirmRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		m, err := svc.ConfirmPayment(r.Context(), userID, body.SubscriptionID, body.ClientSecret)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipResponse(w, m)
	}
}

func MembershipPaymentMethod(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body paymentMethodRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.UpdatePaymentMethod(r.Context(), userID, strings.TrimSpace(body.PaymentMethodID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// MembershipRefund refunds a charge on the caller's paid membership.
func MembershipRefund(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body refundRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Reason == "" {
			body.Reason = "requested_by_customer"
		}
		m, err := svc.Refund(r.Context(), memberships.RefundInput{
			UserID:      userID,
			ChargeRef:   strings.TrimSpace(body.ChargeID),
			AmountCents: body.AmountCents,
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipResponse(w, m)
	}
}
