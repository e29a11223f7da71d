package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

// Service records the money movements produced by tip transitions.
type Service interface {
	WithRepository(repo Repository) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
// Amount is the tip amount as stored on the intent; the sign is derived
// from Type.
type RecordEntryInput struct {
	TipIntentID uuid.UUID
	EmployeeID  uuid.UUID
	Type        enums.LedgerEntryType
	Amount      decimal.Decimal
	Notes       string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// WithRepository returns a copy bound to repo, typically a tx-scoped one.
func (s *service) WithRepository(repo Repository) Service {
	if repo == nil {
		return s
	}
	return &service{repo: repo}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.TipIntentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip intent id is required")
	}
	if input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid ledger entry type %q", input.Type)
	}
	if err := types.ValidateAmount(input.Amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger amount")
	}

	entry := &models.LedgerEntry{
		TipIntentID: input.TipIntentID,
		EmployeeID:  input.EmployeeID,
		Amount:      SignedAmount(input.Type, input.Amount),
		Type:        input.Type,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		entry.Notes = &notes
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]models.LedgerEntry, error) {
	if employeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	return s.repo.ListByEmployee(ctx, employeeID)
}

// SignedAmount applies the entry sign: credits positive, debits negative.
func SignedAmount(entryType enums.LedgerEntryType, amount decimal.Decimal) decimal.Decimal {
	abs := amount.Abs()
	if entryType == enums.LedgerEntryTypeDebit {
		return abs.Neg()
	}
	return abs
}

// Total sums entry amounts and rounds to three decimal places.
func Total(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	return types.NormalizeAmount(total)
}
