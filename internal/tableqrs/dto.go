package tableqrs

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

// TableQRDTO is the API view of a table QR.
type TableQRDTO struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchantId"`
	TableCode  string    `json:"tableCode"`
	Location   *string   `json:"location,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FromModel maps the persisted table into a DTO.
func FromModel(m *models.TableQR) *TableQRDTO {
	if m == nil {
		return nil
	}
	return &TableQRDTO{
		ID:         m.ID,
		MerchantID: m.MerchantID,
		TableCode:  m.TableCode,
		Location:   m.Location,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
	}
}
