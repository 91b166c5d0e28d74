package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/internal/billing"
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
)

// unusedGateway satisfies billing.Gateway for flows that never reach the gateway.
type unusedGateway struct {
	billing.Gateway
}

type failingGranter struct{}

func (failingGranter) CreateWithTx(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) (*models.Membership, error) {
	return nil, errors.New("ledger down")
}

type registerTestSetup struct {
	conn    *gorm.DB
	catalog *tiers.Service
	ledger  memberships.Service
}

func newRegisterTestSetup(t *testing.T) *registerTestSetup {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)

	catalog, err := tiers.NewService(tiers.NewRepository(conn))
	if err != nil {
		t.Fatalf("tier catalog: %v", err)
	}
	defs, err := tiers.DefaultDefinitions()
	if err != nil {
		t.Fatalf("default tiers: %v", err)
	}
	if _, err := catalog.Seed(ctx, defs); err != nil {
		t.Fatalf("seed tiers: %v", err)
	}

	ledgerPayments, err := payments.NewService(payments.NewRepository(conn))
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	ledger, err := memberships.NewService(memberships.ServiceParams{
		Repo:              memberships.NewRepository(conn),
		Tiers:             catalog,
		Users:             users.NewRepository(conn),
		Payments:          ledgerPayments,
		Gateway:           unusedGateway{},
		TransactionRunner: db.NewFromConn(conn),
		Config: config.MembershipConfig{
			GracePeriod:       7 * 24 * time.Hour,
			MaxFailedPayments: 3,
			FreePeriod:        365 * 24 * time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("membership ledger: %v", err)
	}
	return &registerTestSetup{conn: conn, catalog: catalog, ledger: ledger}
}

func (s *registerTestSetup) service(t *testing.T, granter membershipGranter) RegisterService {
	t.Helper()
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:       db.NewFromConn(s.conn),
		Tiers:          s.catalog,
		Memberships:    granter,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc
}

func sampleRegisterRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Amina",
		LastName:  "Yusuf",
		Email:     email,
		Password:  "Secret123!",
	}
}

func TestRegisterGrantsFreeMembership(t *testing.T) {
	setup := newRegisterTestSetup(t)
	svc := setup.service(t, setup.ledger)
	ctx := context.Background()

	user, err := svc.Register(ctx, sampleRegisterRequest("  Amina@Example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "amina@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	current, err := setup.ledger.MembershipStatus(ctx, user.ID)
	if err != nil {
		t.Fatalf("membership status: %v", err)
	}
	if current.Status != enums.MembershipStatusActive {
		t.Fatalf("expected active membership, got %s", current.Status)
	}
	if current.Tier == nil || !current.Tier.IsFree() {
		t.Fatalf("expected the free tier, got %+v", current.Tier)
	}
	if current.ExternalSubscriptionRef != nil {
		t.Fatalf("free membership must not carry a subscription ref")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	setup := newRegisterTestSetup(t)
	svc := setup.service(t, setup.ledger)
	ctx := context.Background()

	if _, err := svc.Register(ctx, sampleRegisterRequest("dup@example.com")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, sampleRegisterRequest("DUP@example.com"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRollsBackUserWhenMembershipFails(t *testing.T) {
	setup := newRegisterTestSetup(t)
	svc := setup.service(t, failingGranter{})

	if _, err := svc.Register(context.Background(), sampleRegisterRequest("rollback@example.com")); err == nil {
		t.Fatalf("expected register to fail")
	}

	var count int64
	if err := setup.conn.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected user insert rolled back, found %d users", count)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	setup := newRegisterTestSetup(t)
	svc := setup.service(t, setup.ledger)

	cases := map[string]RegisterRequest{
		"missing email": {FirstName: "A", LastName: "B", Password: "Secret123!"},
		"missing name":  {Email: "a@example.com", LastName: "B", Password: "Secret123!"},
		"short pass":    {Email: "a@example.com", FirstName: "A", LastName: "B", Password: "short"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
