package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// Payment is a ledger entry mirrored from a billing gateway event.
type Payment struct {
	ID                      uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount                  decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Date                    time.Time             `gorm:"column:date;not null"`
	Description             string                `gorm:"column:description;not null"`
	PaymentMethod           string                `gorm:"column:payment_method;not null"`
	Status                  enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null"`
	TransactionType         enums.TransactionType `gorm:"column:transaction_type;type:transaction_type;not null"`
	ExternalChargeRef       *string               `gorm:"column:external_charge_ref"`
	ExternalInvoiceRef      *string               `gorm:"column:external_invoice_ref"`
	ExternalSubscriptionRef *string               `gorm:"column:external_subscription_ref"`
	CreatedAt               time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
