package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/enums"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

// QRScan is the append-only audit row written when a code is redeemed.
type QRScan struct {
	ID        uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	QRCodeID  uuid.UUID             `gorm:"column:qr_code_id;type:uuid;not null;uniqueIndex"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	ScannedBy string                `gorm:"column:scanned_by;not null"`
	StoreName string                `gorm:"column:store_name;not null"`
	Location  *types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	ScannedAt time.Time             `gorm:"column:scanned_at;not null"`
	Status    enums.ScanStatus      `gorm:"column:status;type:scan_status;not null"`
}

func (QRScan) TableName() string { return "qr_scans" }

func (s *QRScan) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
