package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
)

// ErrCustomerRefTaken is returned when the user already has a billing customer.
var ErrCustomerRefTaken = errors.New("external customer ref already set")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy bound to tx; a nil tx keeps the receiver.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByEmail normalizes email before the lookup.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByExternalCustomerRef(ctx context.Context, ref string) (*models.User, error) {
	return r.findOne(ctx, "external_customer_ref = ?", ref)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.byID(ctx, id).UpdateColumn("last_login_at", at).Error
}

// SetExternalCustomerRef only writes when no ref is stored yet, so concurrent
// checkouts cannot overwrite each other's customer.
func (r *Repository) SetExternalCustomerRef(ctx context.Context, id uuid.UUID, ref string) error {
	res := r.byID(ctx, id).
		Where("external_customer_ref IS NULL").
		UpdateColumn("external_customer_ref", ref)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return ErrCustomerRefTaken
	}
	return nil
}

// UpdateProfile applies the set fields of patch and returns the stored user.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*models.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil || patch.Empty() {
		return user, err
	}
	patch.Apply(user)
	if err := r.byID(ctx, id).Updates(map[string]any{
		"first_name":      user.FirstName,
		"last_name":       user.LastName,
		"profile_picture": user.ProfilePicture,
	}).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Repository) findOne(ctx context.Context, cond string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) byID(ctx context.Context, id uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
}
