package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	"github.com/angelmondragon/ummati-backend/internal/qrcodes"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

type recordScanRequest struct {
	StoreName string                `json:"store_name" validate:"required,max=200"`
	ScannedBy string                `json:"scanned_by" validate:"required,max=255"`
	Location  *types.GeographyPoint `json:"location,omitempty"`
}

// QRGenerate issues a fresh verification code for the caller.
func QRGenerate(svc qrcodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		code, err := svc.Generate(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, code)
	}
}

// QRVerify answers a presenter lookup. Every outcome is a 200 with a status
// field; only malformed requests and store failures are errors.
func QRVerify(svc qrcodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Verify(r.Context(), strings.TrimSpace(chi.URLParam(r, "code")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// QRRecordScan redeems a code at a partner store.
func QRRecordScan(svc qrcodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body recordScanRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RecordScan(r.Context(), qrcodes.ScanInput{
			Code:      strings.TrimSpace(chi.URLParam(r, "code")),
			StoreName: validators.SanitizeString(body.StoreName, 200),
			ScannedBy: validators.SanitizeString(body.ScannedBy, 255),
			Location:  body.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// QRScanHistory lists redemptions of the caller's codes.
func QRScanHistory(svc qrcodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ScanHistory(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, qrcodes.ScansFromModels(rows))
	}
}
