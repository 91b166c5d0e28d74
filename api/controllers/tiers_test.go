package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
)

type stubTierLister struct {
	rows []models.MembershipTier
	err  error
}

func (s stubTierLister) FindAll(context.Context) ([]models.MembershipTier, error) {
	return s.rows, s.err
}

func catalogFixture() []models.MembershipTier {
	return []models.MembershipTier{
		{
			ID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Name:            "Free",
			Price:           decimal.Zero,
			Benefits:        pq.StringArray{"Community access", "Member QR code"},
			BillingInterval: enums.BillingIntervalMonth,
		},
		{
			ID:              uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Name:            "Premium",
			Price:           decimal.RequireFromString("9.99"),
			Benefits:        pq.StringArray{"Partner store discounts", "Priority event registration"},
			BillingInterval: enums.BillingIntervalMonth,
		},
	}
}

func TestMembershipTiersGolden(t *testing.T) {
	handler := MembershipTiers(stubTierLister{rows: catalogFixture()}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/membership-tiers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "membership_tiers", rec.Body.Bytes())
}

func TestMembershipTiersStoreFailure(t *testing.T) {
	handler := MembershipTiers(stubTierLister{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "list tiers")}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/membership-tiers", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
