package controllers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/angelmondragon/ummati-backend/api/middleware"
	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	pkgAuth "github.com/angelmondragon/ummati-backend/pkg/auth"
	"github.com/angelmondragon/ummati-backend/pkg/auth/session"
	"github.com/angelmondragon/ummati-backend/pkg/config"
	"github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var errSessionsUnavailable = errors.New(errors.CodeInternal, "session manager unavailable")

// sessionClaims reads the bearer token and returns its claims. Expiry is not
// enforced; logout and refresh are exactly the calls made with a stale token.
func sessionClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	raw := middleware.BearerToken(r)
	if raw == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, raw)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid token")
	}
	if claims.SessionID() == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

// AuthLogout drops the refresh mapping tied to the presented access token.
func AuthLogout(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := logout(r, manager, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

func logout(r *http.Request, manager sessionTokenRotator, cfg config.JWTConfig) error {
	if manager == nil {
		return errSessionsUnavailable
	}
	claims, err := sessionClaims(r, cfg)
	if err != nil {
		return err
	}
	if err := manager.Revoke(r.Context(), claims.SessionID()); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "revoke session")
	}
	return nil
}

// AuthRefresh swaps a refresh token for a new token pair. The old refresh
// token is spent whether or not the client receives the response.
func AuthRefresh(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errSessionsUnavailable)
			return
		}
		var body refreshRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pair, err := refresh(r, manager, cfg, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(accessTokenHeader, pair.AccessToken)
		responses.WriteSuccess(w, pair)
	}
}

func refresh(r *http.Request, manager sessionTokenRotator, cfg config.JWTConfig, provided string) (*refreshResponse, error) {
	claims, err := sessionClaims(r, cfg)
	if err != nil {
		return nil, err
	}

	accessID, refreshToken, err := manager.Rotate(r.Context(), claims.SessionID(), provided)
	switch {
	case stderrors.Is(err, session.ErrInvalidRefreshToken):
		return nil, errors.New(errors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return nil, errors.Wrap(errors.CodeDependency, err, "rotate session")
	}

	access, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "mint jwt")
	}
	return &refreshResponse{AccessToken: access, RefreshToken: refreshToken}, nil
}
