package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// MembershipDTO is the member-facing view of a membership with its tier.
type MembershipDTO struct {
	ID                    uuid.UUID              `json:"id"`
	UserID                uuid.UUID              `json:"user_id"`
	Status                enums.MembershipStatus `json:"status"`
	Tier                  *tiers.TierDTO         `json:"tier,omitempty"`
	SubscriptionRef       *string                `json:"subscription_id,omitempty"`
	CurrentPeriodStart    time.Time              `json:"current_period_start"`
	CurrentPeriodEnd      time.Time              `json:"current_period_end"`
	CancelAtPeriodEnd     bool                   `json:"cancel_at_period_end"`
	LastPaymentStatus     *string                `json:"last_payment_status,omitempty"`
	LastPaymentDate       *time.Time             `json:"last_payment_date,omitempty"`
	FailedPaymentAttempts int                    `json:"failed_payment_attempts"`
	GracePeriodEnd        *time.Time             `json:"grace_period_end,omitempty"`
	RefundedAt            *time.Time             `json:"refunded_at,omitempty"`
	RefundReason          *enums.RefundReason    `json:"refund_reason,omitempty"`
	IsPaid                bool                   `json:"is_paid"`
}

// FromModel converts a membership row for transport.
func FromModel(m *models.Membership) MembershipDTO {
	dto := MembershipDTO{
		ID:                    m.ID,
		UserID:                m.UserID,
		Status:                m.Status,
		SubscriptionRef:       m.ExternalSubscriptionRef,
		CurrentPeriodStart:    m.CurrentPeriodStart,
		CurrentPeriodEnd:      m.CurrentPeriodEnd,
		CancelAtPeriodEnd:     m.CancelAtPeriodEnd,
		LastPaymentStatus:     m.LastPaymentStatus,
		LastPaymentDate:       m.LastPaymentDate,
		FailedPaymentAttempts: m.FailedPaymentAttempts,
		GracePeriodEnd:        m.GracePeriodEnd,
		RefundedAt:            m.RefundedAt,
		RefundReason:          m.RefundReason,
		IsPaid:                m.IsPaid(),
	}
	if m.Tier != nil {
		tier := tiers.FromModel(*m.Tier)
		dto.Tier = &tier
	}
	return dto
}

// FromModels converts a membership history.
func FromModels(rows []models.Membership) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

// SubscribeInput captures a paid subscription request.
type SubscribeInput struct {
	UserID           uuid.UUID
	TierID           uuid.UUID
	PaymentMethodRef string
	IdempotencyKey   string
}

// SubscribeResult carries the membership plus the client-side confirmation artifact.
type SubscribeResult struct {
	Membership      *models.Membership
	SubscriptionRef string
	ClientSecret    string
	Resumed         bool
}

// RefundInput captures a refund request against a paid membership.
type RefundInput struct {
	UserID      uuid.UUID
	ChargeRef   string
	AmountCents int64
	Reason      string
}
