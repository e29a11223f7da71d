package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Employee receives confirmed tips through ledger entries.
type Employee struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID `gorm:"column:merchant_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	Email      *string   `gorm:"column:email"`
	Phone      *string   `gorm:"column:phone"`
	Active     bool      `gorm:"column:active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Employee) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
