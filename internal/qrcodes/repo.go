package qrcodes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
)

// Repository persists QR codes and their redemption audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.QRCode) error
	FindByCode(ctx context.Context, code string) (*models.QRCode, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Redeem(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CreateScan(ctx context.Context, scan *models.QRScan) error
	ScanExists(ctx context.Context, codeID uuid.UUID) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	ListScansByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.QRScan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a QR repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.QRCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindByCode returns nil, nil for an unknown token.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.QRCode, error) {
	var row models.QRCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false).Error
}

// Redeem flips the code inactive only while it is still active and unexpired.
// Exactly one concurrent caller observes true.
func (r *repository) Redeem(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("id = ? AND is_active = ? AND expires_at > ?", id, true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateScan(ctx context.Context, scan *models.QRScan) error {
	return r.db.WithContext(ctx).Create(scan).Error
}

func (r *repository) ScanExists(ctx context.Context, codeID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.QRScan{}).
		Where("qr_code_id = ?", codeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *repository) ListScansByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.QRScan, error) {
	var rows []models.QRScan
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
