package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/ummati-backend/pkg/auth"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/security"
)

const memberPassword = "member-secret"

var loginJWT = config.JWTConfig{Secret: "login-secret", Issuer: "ummati", ExpirationMinutes: 30}

type userTable map[string]*models.User

func (u userTable) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (u userTable) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, user := range u {
		if user.ID == id {
			user.LastLoginAt = &at
		}
	}
	return nil
}

type membershipTable map[uuid.UUID]*models.Membership

func (m membershipTable) MembershipStatus(_ context.Context, userID uuid.UUID) (*models.Membership, error) {
	if current, ok := m[userID]; ok {
		return current, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active membership")
}

type recordingSessions struct {
	jtis []string
	err  error
}

func (r *recordingSessions) Generate(_ context.Context, accessID string) (string, error) {
	r.jtis = append(r.jtis, accessID)
	return "refresh-" + accessID, r.err
}

type loginFixture struct {
	svc         Service
	users       userTable
	memberships membershipTable
	sessions    *recordingSessions
	now         time.Time
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	f := &loginFixture{
		users:       userTable{},
		memberships: membershipTable{},
		sessions:    &recordingSessions{},
		now:         time.Now().UTC().Truncate(time.Second),
	}
	svc, err := NewService(ServiceParams{
		UserRepo:       f.users,
		Memberships:    f.memberships,
		SessionManager: f.sessions,
		JWTConfig:      loginJWT,
		Clock:          func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *loginFixture) addUser(t *testing.T, email string, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(memberPassword, config.PasswordConfig{})
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: email, PasswordHash: hash, FirstName: "Bilal", LastName: "Haddad", IsActive: active}
	f.users[email] = user
	return user
}

func TestLoginIssuesSessionAndMembership(t *testing.T) {
	f := newLoginFixture(t)
	user := f.addUser(t, "bilal@example.com", true)
	membership := &models.Membership{ID: uuid.New(), UserID: user.ID, Status: enums.MembershipStatusActive}
	f.memberships[user.ID] = membership

	resp, err := f.svc.Login(context.Background(), LoginRequest{Email: " Bilal@Example.com ", Password: memberPassword})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(loginJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	require.Len(t, f.sessions.jtis, 1)
	assert.Equal(t, f.sessions.jtis[0], claims.SessionID(), "refresh mapping is keyed by the jti")
	assert.Equal(t, "refresh-"+claims.SessionID(), resp.RefreshToken)

	require.NotNil(t, resp.Membership)
	assert.Equal(t, membership.ID, resp.Membership.ID)
	require.NotNil(t, user.LastLoginAt)
	assert.True(t, user.LastLoginAt.Equal(f.now))
}

func TestLoginWithoutMembershipOmitsIt(t *testing.T) {
	f := newLoginFixture(t)
	f.addUser(t, "lone@example.com", true)

	resp, err := f.svc.Login(context.Background(), LoginRequest{Email: "lone@example.com", Password: memberPassword})
	require.NoError(t, err)
	assert.Nil(t, resp.Membership)
}

func TestLoginCredentialFailuresLookAlike(t *testing.T) {
	f := newLoginFixture(t)
	f.addUser(t, "x@example.com", true)
	f.addUser(t, "off@example.com", false)

	cases := map[string]LoginRequest{
		"wrong password": {Email: "x@example.com", Password: "nope"},
		"unknown email":  {Email: "ghost@example.com", Password: memberPassword},
		"blank email":    {Password: memberPassword},
		"inactive":       {Email: "off@example.com", Password: memberPassword},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
			assert.Equal(t, "invalid credentials", pkgerrors.As(err).Message())
		})
	}
	assert.Empty(t, f.sessions.jtis)
}

func TestLoginSessionStoreFailure(t *testing.T) {
	f := newLoginFixture(t)
	f.addUser(t, "bilal@example.com", true)
	f.sessions.err = errors.New("redis down")

	_, err := f.svc.Login(context.Background(), LoginRequest{Email: "bilal@example.com", Password: memberPassword})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{UserRepo: userTable{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{UserRepo: userTable{}, Memberships: membershipTable{}})
	assert.Error(t, err)
}
