package tips

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

// Repository defines persistence operations for tip intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.TipIntent, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.TipIntent, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.TipIntent, error)
	Create(ctx context.Context, intent *models.TipIntent) error
	Update(ctx context.Context, intent *models.TipIntent, expected enums.TipIntentStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tip intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TipIntent, error) {
	var intent models.TipIntent
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.TipIntent, error) {
	var intent models.TipIntent
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// LockByID loads the row with an exclusive lock held until the surrounding
// transaction ends. It must be called on a tx-bound repository.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.TipIntent, error) {
	var intent models.TipIntent
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) Create(ctx context.Context, intent *models.TipIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

// Update writes the mutable columns of intent, guarded on the row still being
// in the expected status. It reports whether a row was updated.
func (r *repository) Update(ctx context.Context, intent *models.TipIntent, expected enums.TipIntentStatus) (bool, error) {
	intent.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.TipIntent{}).
		Where("id = ? AND status = ?", intent.ID, expected).
		Updates(map[string]any{
			"status":       intent.Status,
			"employee_id":  intent.EmployeeID,
			"confirmed_at": intent.ConfirmedAt,
			"reversed_at":  intent.ReversedAt,
			"updated_at":   intent.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
