package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// MembershipTier is a named plan with a price and an ordered benefit list.
type MembershipTier struct {
	ID                 uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string                `gorm:"column:name;not null;uniqueIndex"`
	Price              decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	ExternalPriceRef   *string               `gorm:"column:external_price_ref"`
	ExternalProductRef *string               `gorm:"column:external_product_ref"`
	Benefits           pq.StringArray        `gorm:"column:benefits;type:text[];not null"`
	BillingInterval    enums.BillingInterval `gorm:"column:billing_interval;type:billing_interval;not null;default:'month'"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (MembershipTier) TableName() string { return "membership_tiers" }

func (t *MembershipTier) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsFree reports whether the tier costs nothing.
func (t *MembershipTier) IsFree() bool {
	return t.Price.IsZero()
}
