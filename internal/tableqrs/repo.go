package tableqrs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

// Repository handles table QR persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to table QR operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new table QR row.
func (r *Repository) Create(ctx context.Context, table *models.TableQR) error {
	return r.db.WithContext(ctx).Create(table).Error
}

// FindActiveByCode resolves an active table by its merchant-scoped code.
func (r *Repository) FindActiveByCode(ctx context.Context, merchantID uuid.UUID, tableCode string) (*models.TableQR, error) {
	var table models.TableQR
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND table_code = ? AND active = ?", merchantID, tableCode, true).
		First(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

// ListByMerchant returns the merchant's tables ordered by code.
func (r *Repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]models.TableQR, error) {
	var tables []models.TableQR
	query := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("table_code ASC").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}
