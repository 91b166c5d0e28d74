package tiers

import (
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TierDTO is the public catalog shape.
type TierDTO struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Price           decimal.Decimal       `json:"price"`
	BillingInterval enums.BillingInterval `json:"billing_interval"`
	Benefits        []string              `json:"benefits"`
	IsPaid          bool                  `json:"is_paid"`
}

// FromModel converts a tier row for transport.
func FromModel(t models.MembershipTier) TierDTO {
	benefits := []string(t.Benefits)
	if benefits == nil {
		benefits = []string{}
	}
	return TierDTO{
		ID:              t.ID,
		Name:            t.Name,
		Price:           t.Price,
		BillingInterval: t.BillingInterval,
		Benefits:        benefits,
		IsPaid:          !t.IsFree(),
	}
}

// FromModels converts a list of tiers.
func FromModels(rows []models.MembershipTier) []TierDTO {
	out := make([]TierDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
