package enums

import "fmt"

// TipIntentStatus maps to the tip_intent_status_enum enum in Postgres.
type TipIntentStatus string

const (
	TipIntentStatusPending   TipIntentStatus = "PENDING"
	TipIntentStatusConfirmed TipIntentStatus = "CONFIRMED"
	TipIntentStatusReversed  TipIntentStatus = "REVERSED"
)

var validTipIntentStatuses = []TipIntentStatus{
	TipIntentStatusPending,
	TipIntentStatusConfirmed,
	TipIntentStatusReversed,
}

// TipIntentStatuses returns every status in lifecycle order.
func TipIntentStatuses() []TipIntentStatus {
	out := make([]TipIntentStatus, len(validTipIntentStatuses))
	copy(out, validTipIntentStatuses)
	return out
}

func (s TipIntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical tip intent status enum.
func (s TipIntentStatus) IsValid() bool {
	for _, candidate := range validTipIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is the single legal successor of s.
// PENDING -> CONFIRMED -> REVERSED; nothing else.
func (s TipIntentStatus) CanTransitionTo(next TipIntentStatus) bool {
	switch s {
	case TipIntentStatusPending:
		return next == TipIntentStatusConfirmed
	case TipIntentStatusConfirmed:
		return next == TipIntentStatusReversed
	default:
		return false
	}
}

// ParseTipIntentStatus converts raw input into TipIntentStatus.
func ParseTipIntentStatus(value string) (TipIntentStatus, error) {
	for _, candidate := range validTipIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tip intent status %q", value)
}
