package merchants

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

// StatusAggregate is one GROUP BY status row over a merchant's tip intents.
type StatusAggregate struct {
	Status enums.TipIntentStatus `gorm:"column:status"`
	Count  int64                 `gorm:"column:count"`
	Total  decimal.Decimal       `gorm:"column:total"`
}

// Repository handles merchant persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to merchant operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new merchant row.
func (r *Repository) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// FindByID loads a merchant by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// SummarizeTips groups the merchant's tip intents by status. Statuses with no
// intents are absent from the result.
func (r *Repository) SummarizeTips(ctx context.Context, merchantID uuid.UUID) ([]StatusAggregate, error) {
	var rows []StatusAggregate
	if err := r.db.WithContext(ctx).
		Model(&models.TipIntent{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("merchant_id = ?", merchantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
