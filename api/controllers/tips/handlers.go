package tips

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tipledger-backend/api/middleware"
	"github.com/angelmondragon/tipledger-backend/api/responses"
	"github.com/angelmondragon/tipledger-backend/api/validators"
	internaltips "github.com/angelmondragon/tipledger-backend/internal/tips"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

const tipIntentIDParam = "tipIntentId"

type createTipIntentRequest struct {
	MerchantID     string          `json:"merchantId" validate:"required,uuid"`
	TableCode      string          `json:"tableCode" validate:"required,max=50"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"max=255"`
	EmployeeHint   *string         `json:"employeeHint,omitempty" validate:"omitempty,max=255"`
	EmployeeID     *string         `json:"employeeId,omitempty" validate:"omitempty,uuid"`
}

func (req createTipIntentRequest) toInput(headerKey string) internaltips.CreateTipIntentInput {
	input := internaltips.CreateTipIntentInput{
		MerchantID:     uuid.MustParse(req.MerchantID),
		TableCode:      req.TableCode,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		EmployeeHint:   req.EmployeeHint,
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		input.IdempotencyKey = headerKey
	}
	if req.EmployeeID != nil {
		id := uuid.MustParse(*req.EmployeeID)
		input.EmployeeID = &id
	}
	return input
}

type assignEmployeeRequest struct {
	EmployeeID string `json:"employeeId" validate:"required,uuid"`
}

// Create records a tip intent. A fresh insert answers 201, a replay of an
// existing idempotency key answers 200 with the stored intent.
func Create(svc internaltips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTipIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		headerKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
		view, err := svc.Create(r.Context(), req.toInput(headerKey))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if view.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, view)
	}
}

func Get(svc internaltips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, tipIntentIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func Confirm(svc internaltips.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(ctx context.Context, id uuid.UUID) (*internaltips.TipIntentView, error) {
		return svc.Confirm(ctx, id)
	})
}

func Reverse(svc internaltips.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(ctx context.Context, id uuid.UUID) (*internaltips.TipIntentView, error) {
		return svc.Reverse(ctx, id)
	})
}

// Assign attaches an active employee of the tip's merchant to a pending intent.
func Assign(svc internaltips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, tipIntentIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignEmployeeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AssignEmployee(r.Context(), id, uuid.MustParse(req.EmployeeID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func transition(logg *logger.Logger, op func(context.Context, uuid.UUID) (*internaltips.TipIntentView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, tipIntentIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := op(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
