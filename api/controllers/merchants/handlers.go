package merchants

import (
	"net/http"

	"github.com/angelmondragon/tipledger-backend/api/responses"
	"github.com/angelmondragon/tipledger-backend/api/validators"
	"github.com/angelmondragon/tipledger-backend/internal/employees"
	internalmerchants "github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/internal/tableqrs"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

const (
	merchantIDParam = "merchantId"
	activeOnlyQuery = "activeOnly"
)

// TipSummary returns per-status counts and totals for a merchant.
func TipSummary(svc internalmerchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := validators.ParseUUIDParam(r, merchantIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithMerchantID(r.Context(), merchantID.String())

		summary, err := svc.TipSummary(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Tables lists the merchant's table QR codes ordered by code.
func Tables(svc tableqrs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := validators.ParseUUIDParam(r, merchantIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, activeOnlyQuery, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tables, err := svc.ListByMerchant(r.Context(), merchantID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tables)
	}
}

// Employees lists the merchant's staff ordered by name.
func Employees(svc employees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := validators.ParseUUIDParam(r, merchantIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, activeOnlyQuery, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		staff, err := svc.ListByMerchant(r.Context(), merchantID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, staff)
	}
}
