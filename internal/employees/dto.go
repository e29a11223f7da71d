package employees

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

// EmployeeDTO is the API view of an employee.
type EmployeeDTO struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchantId"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LedgerEntryDTO renders one ledger entry with a fixed 3-decimal amount.
type LedgerEntryDTO struct {
	ID          uuid.UUID             `json:"id"`
	TipIntentID uuid.UUID             `json:"tipIntentId"`
	Amount      string                `json:"amount"`
	Type        enums.LedgerEntryType `json:"type"`
	Notes       *string               `json:"notes,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// EmployeeTips lists an employee's ledger entries newest first with their
// signed total.
type EmployeeTips struct {
	EmployeeID  uuid.UUID        `json:"employeeId"`
	Entries     []LedgerEntryDTO `json:"entries"`
	TotalAmount string           `json:"totalAmount"`
}

// FromModel maps the persisted employee into a DTO.
func FromModel(m *models.Employee) *EmployeeDTO {
	if m == nil {
		return nil
	}
	return &EmployeeDTO{
		ID:         m.ID,
		MerchantID: m.MerchantID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
	}
}

func entryFromModel(m models.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:          m.ID,
		TipIntentID: m.TipIntentID,
		Amount:      types.FormatAmount(m.Amount),
		Type:        m.Type,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
	}
}
