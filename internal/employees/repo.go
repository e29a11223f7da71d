package employees

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

// Repository handles employee persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to employee operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new employee row.
func (r *Repository) Create(ctx context.Context, employee *models.Employee) error {
	return r.db.WithContext(ctx).Create(employee).Error
}

// FindByID loads an employee by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

// ListByMerchant returns the merchant's employees ordered by name.
func (r *Repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]models.Employee, error) {
	var employees []models.Employee
	query := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("name ASC").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}
