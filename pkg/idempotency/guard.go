package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

// Guard records which event ids the consumer has already handled, backed by
// the processed_events table.
type Guard struct {
	conn *gorm.DB
}

// NewGuard builds a guard over the provided connection.
func NewGuard(conn *gorm.DB) (*Guard, error) {
	if conn == nil {
		return nil, errors.New("db connection required")
	}
	return &Guard{conn: conn}, nil
}

// IsProcessed reports whether eventID has a processed_events row.
func (g *Guard) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	var count int64
	err := g.conn.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check processed event %s: %w", eventID, err)
	}
	return count > 0, nil
}

// MarkProcessed inserts the processed_events row. It returns true when this
// call recorded the event and false when another delivery already had.
func (g *Guard) MarkProcessed(ctx context.Context, eventID, eventType string, payload json.RawMessage) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	row := models.ProcessedEvent{
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := g.conn.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, fmt.Errorf("mark processed event %s: %w", eventID, err)
	}
	return true, nil
}

// PurgeBefore deletes processed_events rows recorded before cutoff and
// returns how many were removed.
func (g *Guard) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, errors.New("cutoff is required")
	}
	res := g.conn.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge processed events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
