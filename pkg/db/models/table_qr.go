package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TableQR is a scannable code bound to one merchant table. TableCode is unique
// per merchant.
type TableQR struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID `gorm:"column:merchant_id;type:uuid;not null"`
	TableCode  string    `gorm:"column:table_code;type:varchar(50);not null"`
	Location   *string   `gorm:"column:location"`
	Active     bool      `gorm:"column:active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TableQR) TableName() string {
	return "table_qrs"
}

func (q *TableQR) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
