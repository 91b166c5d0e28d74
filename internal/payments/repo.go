package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// Repository manages persistence for payment ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, payment *models.Payment) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) ([]StatusTotal, error)
	FindUserByChargeRef(ctx context.Context, chargeRef string) (uuid.UUID, error)
}

// StatusTotal aggregates a user's ledger rows sharing a status.
type StatusTotal struct {
	Status enums.PaymentStatus `gorm:"column:status" json:"status"`
	Count  int64               `gorm:"column:count" json:"count"`
	Total  decimal.Decimal     `gorm:"column:total" json:"total"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert writes the row unless a row with the same gateway reference and status
// already exists. It reports whether a row was written.
func (r *repository) Insert(ctx context.Context, payment *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) StatsByUser(ctx context.Context, userID uuid.UUID) ([]StatusTotal, error) {
	var totals []StatusTotal
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Order("status ASC").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

// FindUserByChargeRef returns uuid.Nil when no row references the charge.
func (r *repository) FindUserByChargeRef(ctx context.Context, chargeRef string) (uuid.UUID, error) {
	var row models.Payment
	err := r.db.WithContext(ctx).
		Select("user_id").
		Where("external_charge_ref = ?", chargeRef).
		Order("created_at ASC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}
