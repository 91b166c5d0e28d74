package tiers

import (
	"context"
	"strings"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Catalog is the read surface other domains use.
type Catalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipTier, error)
	FindFreeTier(ctx context.Context) (*models.MembershipTier, error)
	FindAll(ctx context.Context) ([]models.MembershipTier, error)
}

// Service implements the tier catalog.
type Service struct {
	repo Repository
}

// NewService builds the catalog over repo.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tier repository required")
	}
	return &Service{repo: repo}, nil
}

// FindByID returns NotFound when the tier does not exist.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipTier, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
	}
	tier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tier")
	}
	if tier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tier not found")
	}
	return tier, nil
}

// FindFreeTier returns the zero-priced tier or NotFound when the catalog has none.
func (s *Service) FindFreeTier(ctx context.Context) (*models.MembershipTier, error) {
	tier, err := s.repo.FindFree(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load free tier")
	}
	if tier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "free tier not configured")
	}
	return tier, nil
}

// FindAll lists tiers by ascending price.
func (s *Service) FindAll(ctx context.Context) ([]models.MembershipTier, error) {
	tiers, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tiers")
	}
	return tiers, nil
}

// Seed upserts every definition by name and returns the stored rows.
func (s *Service) Seed(ctx context.Context, defs []Definition) ([]models.MembershipTier, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier definition")
		}
	}

	out := make([]models.MembershipTier, 0, len(defs))
	for _, def := range defs {
		tier := &models.MembershipTier{
			Name:               strings.TrimSpace(def.Name),
			Price:              def.Price,
			BillingInterval:    def.BillingInterval,
			ExternalPriceRef:   optional(def.ExternalPriceRef),
			ExternalProductRef: optional(def.ExternalProductRef),
			Benefits:           pq.StringArray(append([]string{}, def.Benefits...)),
		}
		if err := s.repo.Upsert(ctx, tier); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert tier "+tier.Name)
		}
		stored, err := s.repo.FindByName(ctx, tier.Name)
		if err != nil || stored == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload tier "+tier.Name)
		}
		out = append(out, *stored)
	}
	return out, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
