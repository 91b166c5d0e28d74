package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterRequest contains the payload required to open a member account.
type RegisterRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=8"`
	ProfilePicture *string `json:"profile_picture,omitempty" validate:"omitempty,url"`
}

// RegisterService creates an account together with its free membership.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
}

type freeTierLookup interface {
	FindFreeTier(ctx context.Context) (*models.MembershipTier, error)
}

type membershipGranter interface {
	CreateWithTx(ctx context.Context, tx *gorm.DB, userID, tierID uuid.UUID) (*models.Membership, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TxRunner        txRunner
	UserRepoFactory func(tx *gorm.DB) registerUserRepository
	Tiers           freeTierLookup
	Memberships     membershipGranter
	PasswordConfig  config.PasswordConfig
}

type registerService struct {
	tx          txRunner
	userRepo    func(tx *gorm.DB) registerUserRepository
	tiers       freeTierLookup
	memberships membershipGranter
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	switch {
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Tiers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tier catalog required")
	case params.Memberships == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership ledger required")
	}
	factory := params.UserRepoFactory
	if factory == nil {
		factory = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	return &registerService{
		tx:          params.TxRunner,
		userRepo:    factory,
		tiers:       params.Tiers,
		memberships: params.Memberships,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register writes the user and the free membership in one transaction, so an
// account never exists without a current membership.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := users.NormalizeEmail(req.Email)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	switch {
	case email == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	case firstName == "" || lastName == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	case len(req.Password) < minPasswordLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	free, err := s.tiers.FindFreeTier(ctx)
	if err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepo(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:          email,
			PasswordHash:   passwordHash,
			FirstName:      firstName,
			LastName:       lastName,
			ProfilePicture: req.ProfilePicture,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if _, err := s.memberships.CreateWithTx(ctx, tx, user.ID, free.ID); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
