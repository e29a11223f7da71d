package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

const envelopeVersion = 1

// Envelope is the wire format of every tip event. EventID is unique per
// emission and is what consumers deduplicate on.
type Envelope struct {
	Version   int                `json:"version"`
	EventID   string             `json:"eventId"`
	EventType enums.TipEventType `json:"eventType"`
	Timestamp time.Time          `json:"timestamp"`
	Data      json.RawMessage    `json:"data"`
}

// TipIntentEventData is the payload carried by all tip lifecycle events.
type TipIntentEventData struct {
	TipIntentID    uuid.UUID             `json:"tipIntentId"`
	MerchantID     uuid.UUID             `json:"merchantId"`
	EmployeeID     *uuid.UUID            `json:"employeeId,omitempty"`
	TableQRID      *uuid.UUID            `json:"tableQrId,omitempty"`
	TableCode      string                `json:"tableCode,omitempty"`
	Amount         string                `json:"amount"`
	Status         enums.TipIntentStatus `json:"status"`
	IdempotencyKey string                `json:"idempotencyKey"`
	ConfirmedAt    *time.Time            `json:"confirmedAt,omitempty"`
	ReversedAt     *time.Time            `json:"reversedAt,omitempty"`
}

// NewEnvelope stamps a fresh event id and timestamp around data.
func NewEnvelope(eventType enums.TipEventType, data TipIntentEventData, now time.Time) (Envelope, error) {
	if !eventType.IsValid() {
		return Envelope{}, fmt.Errorf("unsupported event type %q", eventType)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:   envelopeVersion,
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: now.UTC(),
		Data:      raw,
	}, nil
}

// DecodeEnvelope parses a raw message body. The event id must be present;
// the event type is returned as-is so unknown types can still be recorded.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	envelope.EventID = strings.TrimSpace(envelope.EventID)
	if envelope.EventID == "" {
		return Envelope{}, fmt.Errorf("envelope missing eventId")
	}
	if envelope.EventType == "" {
		return Envelope{}, fmt.Errorf("envelope missing eventType")
	}
	return envelope, nil
}

// TipIntentData decodes the envelope payload.
func (e Envelope) TipIntentData() (TipIntentEventData, error) {
	var data TipIntentEventData
	if len(e.Data) == 0 {
		return data, fmt.Errorf("envelope %s has no data", e.EventID)
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return data, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return data, nil
}
