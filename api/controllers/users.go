package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/db"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type profileStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch users.ProfilePatch) (*models.User, error)
}

func profileError(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func CurrentUser(store profileStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		user, err := store.FindByID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, profileError(err, "load user"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

// UpdateCurrentUser applies a partial profile update. Omitted fields are kept
// and an explicit null clears profile_picture.
func UpdateCurrentUser(store profileStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var patch users.ProfilePatch
		if err := validators.DecodeJSONBody(w, r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := patch.Validate(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}
		user, err := store.UpdateProfile(r.Context(), userID, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, profileError(err, "update profile"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}
