package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

// TipIntent is a guest's declared tip for a table. Amount and IdempotencyKey
// never change after insert; Status only moves forward.
type TipIntent struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID     uuid.UUID             `gorm:"column:merchant_id;type:uuid;not null"`
	TableQRID      *uuid.UUID            `gorm:"column:table_qr_id;type:uuid"`
	EmployeeID     *uuid.UUID            `gorm:"column:employee_id;type:uuid"`
	TableCode      string                `gorm:"column:table_code;type:varchar(50);not null"`
	EmployeeHint   *string               `gorm:"column:employee_hint;type:varchar(255)"`
	Amount         decimal.Decimal       `gorm:"column:amount;type:numeric(12,3);not null"`
	Status         enums.TipIntentStatus `gorm:"column:status;type:tip_intent_status_enum;not null"`
	IdempotencyKey string                `gorm:"column:idempotency_key;type:varchar(255);not null"`
	ConfirmedAt    *time.Time            `gorm:"column:confirmed_at"`
	ReversedAt     *time.Time            `gorm:"column:reversed_at"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *TipIntent) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
