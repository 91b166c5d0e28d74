package memberships

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
)

// Repository exposes membership persistence. Lookups return nil, nil when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, membership *models.Membership) error
	Save(ctx context.Context, membership *models.Membership) error
	FindCurrent(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	FindCurrentPaid(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	FindCurrentFreeExcept(ctx context.Context, userID, exceptID uuid.UUID) (*models.Membership, error)
	FindBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Membership, error)
	FindCurrentByCustomerRef(ctx context.Context, customerRef string) (*models.Membership, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	CancelCurrentFree(ctx context.Context, userID, keepID uuid.UUID, at time.Time) (int64, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error)
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
	// lock selects rows FOR UPDATE; set when bound to a transaction.
	lock bool
}

// NewRepository returns a membership repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, lock: true}
}

func (r *repository) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) Create(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(membership).Error
}

// Save writes every column of the membership, including cleared refs.
func (r *repository) Save(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(membership).Error
}

// FindCurrent returns the authoritative membership: current status, latest period end.
func (r *repository) FindCurrent(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	err := r.query(ctx).
		Preload("Tier").
		Where("user_id = ? AND status IN ?", userID, enums.CurrentMembershipStatuses).
		Order("current_period_end DESC").
		First(&m).Error
	return found(&m, err)
}

func (r *repository) FindCurrentPaid(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	err := r.query(ctx).
		Preload("Tier").
		Where("user_id = ? AND status IN ? AND external_subscription_ref IS NOT NULL", userID, enums.CurrentMembershipStatuses).
		Order("current_period_end DESC").
		First(&m).Error
	return found(&m, err)
}

func (r *repository) FindCurrentFreeExcept(ctx context.Context, userID, exceptID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	err := r.query(ctx).
		Preload("Tier").
		Where("user_id = ? AND id <> ? AND status IN ? AND external_subscription_ref IS NULL", userID, exceptID, enums.CurrentMembershipStatuses).
		Order("current_period_end DESC").
		First(&m).Error
	return found(&m, err)
}

// FindBySubscriptionRef returns the most recent membership tracking the subscription, in any status.
func (r *repository) FindBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Membership, error) {
	var m models.Membership
	err := r.query(ctx).
		Preload("Tier").
		Where("external_subscription_ref = ?", subscriptionRef).
		Order("created_at DESC").
		First(&m).Error
	return found(&m, err)
}

func (r *repository) FindCurrentByCustomerRef(ctx context.Context, customerRef string) (*models.Membership, error) {
	var m models.Membership
	err := r.query(ctx).
		Preload("Tier").
		Where("external_customer_ref = ? AND status IN ? AND external_subscription_ref IS NOT NULL", customerRef, enums.CurrentMembershipStatuses).
		Order("current_period_end DESC").
		First(&m).Error
	return found(&m, err)
}

// ListByUser returns the user's membership history, newest first.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	var rows []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("Tier").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CancelCurrentFree retires the user's current free memberships other than keepID.
func (r *repository) CancelCurrentFree(ctx context.Context, userID, keepID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND id <> ? AND status IN ? AND external_subscription_ref IS NULL", userID, keepID, enums.CurrentMembershipStatuses).
		Updates(map[string]any{
			"status":     enums.MembershipStatusCancelled,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// MarkEventProcessed records the gateway event id and reports whether it was new.
func (r *repository) MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedBillingEvent{
			EventID:     eventID,
			EventType:   eventType,
			ProcessedAt: at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed_at < ?", before).
		Delete(&models.ProcessedBillingEvent{})
	return res.RowsAffected, res.Error
}

func found(m *models.Membership, err error) (*models.Membership, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
