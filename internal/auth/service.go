package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/users"
	pkgAuth "github.com/angelmondragon/ummati-backend/pkg/auth"
	"github.com/angelmondragon/ummati-backend/pkg/auth/session"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/security"
)

// Every credential failure maps to this one error so responses never reveal
// whether an email is registered.
var errInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

// Service signs members in.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type membershipReader interface {
	MembershipStatus(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type ServiceParams struct {
	UserRepo       userRepository
	Memberships    membershipReader
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	// PasswordConfig sets the cost of the decoy hash checked for unknown emails.
	PasswordConfig config.PasswordConfig
	Clock          func() time.Time
}

type service struct {
	users       userRepository
	memberships membershipReader
	sessions    sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time

	decoyOnce sync.Once
	decoy     string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.Memberships == nil:
		return nil, errors.New("membership ledger is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	}
	s := &service{
		users:       params.UserRepo,
		memberships: params.Memberships,
		sessions:    params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         params.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Login checks credentials, records the sign-in and opens a session. The
// response carries the member's current membership when there is one.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	resp, err := s.openSession(ctx, user, now)
	if err != nil {
		return nil, err
	}
	resp.Membership, err = s.currentMembership(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *service) openSession(ctx context.Context, user *models.User, now time.Time) (*LoginResponse, error) {
	jti := session.NewAccessID()
	access, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &LoginResponse{AccessToken: access, RefreshToken: refresh, User: users.FromModel(user)}, nil
}

func (s *service) currentMembership(ctx context.Context, userID uuid.UUID) (*memberships.MembershipDTO, error) {
	current, err := s.memberships.MembershipStatus(ctx, userID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dto := memberships.FromModel(current)
	return &dto, nil
}

func (s *service) checkCredentials(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, users.NormalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn the same argon2 work as a real check so unknown emails are
		// not distinguishable by latency.
		_, _ = security.VerifyPassword(password, s.decoyHash())
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive {
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (s *service) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = security.HashPassword(uuid.NewString(), s.passwordCfg)
	})
	return s.decoy
}
