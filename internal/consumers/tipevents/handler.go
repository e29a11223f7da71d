package tipevents

import (
	"context"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

// LogHandler records each tip event in the structured log. It has no side
// effects beyond logging, so redelivery is harmless.
type LogHandler struct {
	Logger *logger.Logger
}

func (h LogHandler) Handle(ctx context.Context, envelope events.Envelope, data events.TipIntentEventData) error {
	fields := map[string]any{
		"merchant_id": data.MerchantID.String(),
		"status":      data.Status,
		"amount":      data.Amount,
		"table_code":  data.TableCode,
		"occurred_at": envelope.Timestamp,
	}
	if data.EmployeeID != nil {
		fields["employee_id"] = data.EmployeeID.String()
	}
	logCtx := h.Logger.WithFields(ctx, fields)

	switch envelope.EventType {
	case enums.TipEventIntentCreated:
		h.Logger.Info(logCtx, "tip intent created")
	case enums.TipEventConfirmed:
		h.Logger.Info(logCtx, "tip credited to employee")
	case enums.TipEventReversed:
		h.Logger.Info(logCtx, "tip debited from employee")
	}
	return nil
}
