package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

// LedgerEntry records an immutable money movement for an employee. CREDIT
// entries carry a positive amount, DEBIT entries a negative one.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TipIntentID uuid.UUID             `gorm:"column:tip_intent_id;type:uuid;not null"`
	EmployeeID  uuid.UUID             `gorm:"column:employee_id;type:uuid;not null"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,3);not null"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	Notes       *string               `gorm:"column:notes"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
