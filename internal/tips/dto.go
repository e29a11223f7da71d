package tips

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

const (
	maxTableCodeLength      = 50
	maxIdempotencyKeyLength = 255
	maxEmployeeHintLength   = 255
)

// CreateTipIntentInput carries a guest's tip declaration.
type CreateTipIntentInput struct {
	MerchantID     uuid.UUID
	TableCode      string
	Amount         decimal.Decimal
	IdempotencyKey string
	EmployeeHint   *string
	EmployeeID     *uuid.UUID
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate normalizes the input in place and returns a VALIDATION_ERROR
// listing every invalid field.
func (in *CreateTipIntentInput) Validate() error {
	in.TableCode = strings.TrimSpace(in.TableCode)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.EmployeeHint != nil {
		hint := strings.TrimSpace(*in.EmployeeHint)
		if hint == "" {
			in.EmployeeHint = nil
		} else {
			in.EmployeeHint = &hint
		}
	}

	var problems []FieldError
	if in.MerchantID == uuid.Nil {
		problems = append(problems, FieldError{Field: "merchantId", Message: "is required"})
	}
	switch {
	case in.TableCode == "":
		problems = append(problems, FieldError{Field: "tableCode", Message: "is required"})
	case len(in.TableCode) > maxTableCodeLength:
		problems = append(problems, FieldError{Field: "tableCode", Message: fmt.Sprintf("must be at most %d characters", maxTableCodeLength)})
	}
	if err := types.ValidateAmount(in.Amount); err != nil {
		problems = append(problems, FieldError{Field: "amount", Message: err.Error()})
	}
	switch {
	case in.IdempotencyKey == "":
		problems = append(problems, FieldError{Field: "idempotencyKey", Message: "is required"})
	case len(in.IdempotencyKey) > maxIdempotencyKeyLength:
		problems = append(problems, FieldError{Field: "idempotencyKey", Message: fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength)})
	}
	if in.EmployeeHint != nil && len(*in.EmployeeHint) > maxEmployeeHintLength {
		problems = append(problems, FieldError{Field: "employeeHint", Message: fmt.Sprintf("must be at most %d characters", maxEmployeeHintLength)})
	}
	if in.EmployeeID != nil && *in.EmployeeID == uuid.Nil {
		problems = append(problems, FieldError{Field: "employeeId", Message: "must be a valid id"})
	}

	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid tip intent").WithDetails(problems)
	}
	return nil
}

// TipIntentView is the API view of a tip intent. Created is true only when
// the call that produced the view inserted the row.
type TipIntentView struct {
	ID             uuid.UUID             `json:"id"`
	MerchantID     uuid.UUID             `json:"merchantId"`
	TableQRID      *uuid.UUID            `json:"tableQrId,omitempty"`
	EmployeeID     *uuid.UUID            `json:"employeeId,omitempty"`
	TableCode      string                `json:"tableCode"`
	EmployeeHint   *string               `json:"employeeHint,omitempty"`
	Amount         string                `json:"amount"`
	Status         enums.TipIntentStatus `json:"status"`
	IdempotencyKey string                `json:"idempotencyKey"`
	ConfirmedAt    *time.Time            `json:"confirmedAt,omitempty"`
	ReversedAt     *time.Time            `json:"reversedAt,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`

	Created bool `json:"-"`
}

// FromModel maps the persisted tip intent into a view.
func FromModel(m *models.TipIntent) *TipIntentView {
	if m == nil {
		return nil
	}
	return &TipIntentView{
		ID:             m.ID,
		MerchantID:     m.MerchantID,
		TableQRID:      m.TableQRID,
		EmployeeID:     m.EmployeeID,
		TableCode:      m.TableCode,
		EmployeeHint:   m.EmployeeHint,
		Amount:         types.FormatAmount(m.Amount),
		Status:         m.Status,
		IdempotencyKey: m.IdempotencyKey,
		ConfirmedAt:    m.ConfirmedAt,
		ReversedAt:     m.ReversedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func eventData(m *models.TipIntent) events.TipIntentEventData {
	return events.TipIntentEventData{
		TipIntentID:    m.ID,
		MerchantID:     m.MerchantID,
		EmployeeID:     m.EmployeeID,
		TableQRID:      m.TableQRID,
		TableCode:      m.TableCode,
		Amount:         types.FormatAmount(m.Amount),
		Status:         m.Status,
		IdempotencyKey: m.IdempotencyKey,
		ConfirmedAt:    m.ConfirmedAt,
		ReversedAt:     m.ReversedAt,
	}
}
