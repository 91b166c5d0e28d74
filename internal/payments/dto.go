package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// PaymentDTO is the member-facing view of a ledger row.
type PaymentDTO struct {
	ID              uuid.UUID             `json:"id"`
	Amount          decimal.Decimal       `json:"amount"`
	Date            time.Time             `json:"date"`
	Description     string                `json:"description"`
	PaymentMethod   string                `json:"payment_method"`
	Status          enums.PaymentStatus   `json:"status"`
	TransactionType enums.TransactionType `json:"transaction_type"`
	ChargeID        *string               `json:"charge_id,omitempty"`
	InvoiceID       *string               `json:"invoice_id,omitempty"`
}

func FromModel(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              p.ID,
		Amount:          p.Amount,
		Date:            p.Date,
		Description:     p.Description,
		PaymentMethod:   p.PaymentMethod,
		Status:          p.Status,
		TransactionType: p.TransactionType,
		ChargeID:        p.ExternalChargeRef,
		InvoiceID:       p.ExternalInvoiceRef,
	}
}

func FromModels(rows []models.Payment) []PaymentDTO {
	out := make([]PaymentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
