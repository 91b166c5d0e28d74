package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	"github.com/angelmondragon/ummati-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// accessTokenHeader mirrors the access token for clients that read headers.
const accessTokenHeader = "X-Access-Token"

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

func writeLogin(w http.ResponseWriter, status int, result *auth.LoginResponse) {
	w.Header().Set(accessTokenHeader, result.AccessToken)
	responses.WriteSuccessStatus(w, status, result)
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errAuthUnavailable)
			return
		}
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeLogin(w, http.StatusOK, result)
	}
}

// AuthRegister opens an account with its free membership and signs the user in.
func AuthRegister(reg auth.RegisterService, svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, errAuthUnavailable)
			return
		}
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := registerAndLogin(r.Context(), reg, svc, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeLogin(w, http.StatusCreated, result)
	}
}

func registerAndLogin(ctx context.Context, reg auth.RegisterService, svc auth.Service, body auth.RegisterRequest) (*auth.LoginResponse, error) {
	if _, err := reg.Register(ctx, body); err != nil {
		return nil, err
	}
	return svc.Login(ctx, auth.LoginRequest{Email: body.Email, Password: body.Password})
}
