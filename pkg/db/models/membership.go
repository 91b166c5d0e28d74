package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// Membership is one user's relationship to one tier over one billing cycle.
// Rows are never deleted; history is kept by status.
type Membership struct {
	ID                      uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	TierID                  uuid.UUID              `gorm:"column:tier_id;type:uuid;not null"`
	ExternalCustomerRef     *string                `gorm:"column:external_customer_ref"`
	ExternalSubscriptionRef *string                `gorm:"column:external_subscription_ref"`
	Status                  enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	CurrentPeriodStart      time.Time              `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd        time.Time              `gorm:"column:current_period_end;not null"`
	CancelAtPeriodEnd       bool                   `gorm:"column:cancel_at_period_end;not null;default:false"`
	LastPaymentStatus       *string                `gorm:"column:last_payment_status"`
	LastPaymentDate         *time.Time             `gorm:"column:last_payment_date"`
	FailedPaymentAttempts   int                    `gorm:"column:failed_payment_attempts;not null;default:0"`
	LastFailedPaymentDate   *time.Time             `gorm:"column:last_failed_payment_date"`
	GracePeriodEnd          *time.Time             `gorm:"column:grace_period_end"`
	RefundedAt              *time.Time             `gorm:"column:refunded_at"`
	RefundReason            *enums.RefundReason    `gorm:"column:refund_reason"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Tier *MembershipTier `gorm:"foreignKey:TierID"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsPaid reports whether the membership tracks a gateway subscription.
func (m *Membership) IsPaid() bool {
	return m.ExternalSubscriptionRef != nil && *m.ExternalSubscriptionRef != ""
}
