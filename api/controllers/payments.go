package controllers

import (
	"net/http"

	"github.com/angelmondragon/ummati-backend/api/responses"
	"github.com/angelmondragon/ummati-backend/api/validators"
	"github.com/angelmondragon/ummati-backend/internal/payments"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// PaymentHistory lists the caller's ledger rows, newest first.
func PaymentHistory(ledger payments.Ledger, logg *logger.Logger) http.HandlerFunc {
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
		rows, err := ledger.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments.FromModels(rows))
	}
}

func PaymentStats(ledger payments.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		stats, err := ledger.StatsByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
