package tiers

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists membership tiers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipTier, error)
	FindByName(ctx context.Context, name string) (*models.MembershipTier, error)
	FindFree(ctx context.Context) (*models.MembershipTier, error)
	FindAll(ctx context.Context) ([]models.MembershipTier, error)
	Upsert(ctx context.Context, tier *models.MembershipTier) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tier repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns nil, nil when the tier does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipTier, error) {
	var tier models.MembershipTier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error
	return found(&tier, err)
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.MembershipTier, error) {
	var tier models.MembershipTier
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&tier).Error
	return found(&tier, err)
}

// FindFree returns the oldest zero-priced tier.
func (r *repository) FindFree(ctx context.Context) (*models.MembershipTier, error) {
	var tier models.MembershipTier
	err := r.db.WithContext(ctx).
		Where("price = 0").
		Order("created_at ASC").
		Order("name ASC").
		First(&tier).Error
	return found(&tier, err)
}

func (r *repository) FindAll(ctx context.Context) ([]models.MembershipTier, error) {
	var tiers []models.MembershipTier
	if err := r.db.WithContext(ctx).
		Order("price ASC").
		Order("name ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// Upsert inserts the tier or refreshes the row sharing its name.
func (r *repository) Upsert(ctx context.Context, tier *models.MembershipTier) error {
	tier.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price",
				"external_price_ref",
				"external_product_ref",
				"benefits",
				"billing_interval",
				"updated_at",
			}),
		}).
		Create(tier).Error
}

func found(tier *models.MembershipTier, err error) (*models.MembershipTier, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tier, nil
}
