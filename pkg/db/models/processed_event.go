package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessedEvent marks an event id the consumer has already handled.
type ProcessedEvent struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string          `gorm:"column:event_id;not null"`
	EventType   string          `gorm:"column:event_type;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb"`
	ProcessedAt time.Time       `gorm:"column:processed_at;autoCreateTime"`
}

func (e *ProcessedEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
