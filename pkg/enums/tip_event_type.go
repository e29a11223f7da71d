package enums

import "fmt"

// TipEventType identifies a tip lifecycle notification.
type TipEventType string

const (
	TipEventIntentCreated TipEventType = "TIP_INTENT_CREATED"
	TipEventConfirmed     TipEventType = "TIP_CONFIRMED"
	TipEventReversed      TipEventType = "TIP_REVERSED"
)

var validTipEventTypes = []TipEventType{
	TipEventIntentCreated,
	TipEventConfirmed,
	TipEventReversed,
}

func (t TipEventType) IsValid() bool {
	for _, candidate := range validTipEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTipEventType converts raw input into TipEventType.
func ParseTipEventType(value string) (TipEventType, error) {
	for _, candidate := range validTipEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tip event type %q", value)
}
