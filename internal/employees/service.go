package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

type employeeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]models.Employee, error)
}

type entryLister interface {
	ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]models.LedgerEntry, error)
}

type merchantLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

// Service exposes employee lookups and per-employee tip history.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	ActiveForMerchant(ctx context.Context, merchantID, employeeID uuid.UUID) (*models.Employee, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]EmployeeDTO, error)
	EmployeeTips(ctx context.Context, employeeID uuid.UUID) (*EmployeeTips, error)
}

type service struct {
	repo      employeeRepository
	entries   entryLister
	merchants merchantLookup
}

// NewService builds an employee service.
func NewService(repo employeeRepository, entries entryLister, merchants merchantLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("employee repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger entry lister required")
	}
	if merchants == nil {
		return nil, fmt.Errorf("merchant lookup required")
	}
	return &service{repo: repo, entries: entries, merchants: merchants}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "employee not found")
		}
		return nil, db.Classify(err, "load employee")
	}
	return employee, nil
}

// ActiveForMerchant returns the employee only if it is active and belongs to
// merchantID. Anything else is NOT_FOUND so callers cannot probe other
// merchants' staff.
func (s *service) ActiveForMerchant(ctx context.Context, merchantID, employeeID uuid.UUID) (*models.Employee, error) {
	employee, err := s.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Active || employee.MerchantID != merchantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "employee not found for merchant")
	}
	return employee, nil
}

func (s *service) ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]EmployeeDTO, error) {
	if _, err := s.merchants.Get(ctx, merchantID); err != nil {
		return nil, err
	}
	employees, err := s.repo.ListByMerchant(ctx, merchantID, activeOnly)
	if err != nil {
		return nil, db.Classify(err, "list employees")
	}
	out := make([]EmployeeDTO, 0, len(employees))
	for i := range employees {
		out = append(out, *FromModel(&employees[i]))
	}
	return out, nil
}

func (s *service) EmployeeTips(ctx context.Context, employeeID uuid.UUID) (*EmployeeTips, error) {
	if _, err := s.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListForEmployee(ctx, employeeID)
	if err != nil {
		return nil, db.Classify(err, "list ledger entries")
	}
	result := &EmployeeTips{
		EmployeeID:  employeeID,
		Entries:     make([]LedgerEntryDTO, 0, len(entries)),
		TotalAmount: types.FormatAmount(ledger.Total(entries)),
	}
	for _, entry := range entries {
		result.Entries = append(result.Entries, entryFromModel(entry))
	}
	return result, nil
}
