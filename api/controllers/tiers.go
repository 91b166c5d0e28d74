package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type tierLister interface {
	FindAll(ctx context.Context) ([]models.MembershipTier, error)
}

// MembershipTiers lists the catalog, cheapest first.
func MembershipTiers(catalog tierLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tier catalog unavailable"))
			return
		}
		rows, err := catalog.FindAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tiers.FromModels(rows))
	}
}
