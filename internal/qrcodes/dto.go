package qrcodes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

// GeneratedCode is what the member's device renders.
type GeneratedCode struct {
	Code        string    `json:"code"`
	DisplayURL  string    `json:"display_url"`
	QRCodeImage string    `json:"qr_code_image"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// VerifyResult is the presenter-facing answer for a scanned token.
type VerifyResult struct {
	Status  enums.ScanStatus `json:"status"`
	Message string           `json:"message"`
	Member  *MemberView      `json:"user,omitempty"`
}

// MemberView is the redacted profile shown to a partner store.
type MemberView struct {
	Name           string    `json:"name"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	MembershipTier *TierView `json:"membership_tier"`
	IsPaidMember   bool      `json:"is_paid_member"`
}

type TierView struct {
	Name     string                `json:"name"`
	Price    decimal.Decimal       `json:"price"`
	Benefits []string              `json:"benefits"`
	Interval enums.BillingInterval `json:"interval"`
}

// ScanInput is a redemption request from a store operator.
type ScanInput struct {
	Code      string
	StoreName string
	ScannedBy string
	Location  *types.GeographyPoint
}

// ScanResult reports the redemption outcome; Scan is set only on success.
type ScanResult struct {
	Status  enums.ScanStatus `json:"status"`
	Message string           `json:"message"`
	Scan    *ScanDTO         `json:"scan,omitempty"`
}

type ScanDTO struct {
	ID        string                `json:"id"`
	StoreName string                `json:"store_name"`
	ScannedBy string                `json:"scanned_by"`
	Location  *types.GeographyPoint `json:"location,omitempty"`
	ScannedAt time.Time             `json:"scanned_at"`
	Status    enums.ScanStatus      `json:"status"`
}

func ScanFromModel(s models.QRScan) ScanDTO {
	return ScanDTO{
		ID:        s.ID.String(),
		StoreName: s.StoreName,
		ScannedBy: s.ScannedBy,
		Location:  s.Location,
		ScannedAt: s.ScannedAt,
		Status:    s.Status,
	}
}

func ScansFromModels(rows []models.QRScan) []ScanDTO {
	out := make([]ScanDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ScanFromModel(row))
	}
	return out
}
