package models

import "time"

// ProcessedBillingEvent remembers a gateway event id once its effects commit.
type ProcessedBillingEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}
