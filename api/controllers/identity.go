package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/api/middleware"
	"github.com/angelmondragon/ummati-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// requireUser resolves the authenticated member or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).WithDetails(map[string]string{field: "must be a uuid"})
	}
	return id, nil
}
