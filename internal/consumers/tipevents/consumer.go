package tipevents

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
)

type processedGuard interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, payload json.RawMessage) (bool, error)
}

// Handler reacts to one decoded tip event. It must be safe to call more than
// once for the same event.
type Handler interface {
	Handle(ctx context.Context, envelope events.Envelope, data events.TipIntentEventData) error
}

// Consumer receives tip events and runs each event id through the handler at
// most once, recording it in processed_events.
type Consumer struct {
	subscription *pubsub.Subscriber
	guard        processedGuard
	handler      Handler
	metrics      *metrics.TipMetrics
	logg         *logger.Logger
}

// NewConsumer builds a tip events consumer.
func NewConsumer(subscription *pubsub.Subscriber, guard processedGuard, handler Handler, m *metrics.TipMetrics, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("tip events subscription required")
	}
	c, err := newConsumer(guard, handler, m, logg)
	if err != nil {
		return nil, err
	}
	c.subscription = subscription
	return c, nil
}

func newConsumer(guard processedGuard, handler Handler, m *metrics.TipMetrics, logg *logger.Logger) (*Consumer, error) {
	if guard == nil {
		return nil, fmt.Errorf("processed event guard required")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{guard: guard, handler: handler, metrics: m, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.ID, msg.Data).Ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Result tells the transport whether to ack or nack a delivery.
type Result struct {
	Ack     bool
	Outcome string
}

func ack(outcome string) Result  { return Result{Ack: true, Outcome: outcome} }
func nack(outcome string) Result { return Result{Ack: false, Outcome: outcome} }

// Process handles one delivery body. Malformed bodies are acked so they do
// not redeliver forever; store and handler failures are nacked.
func (c *Consumer) Process(ctx context.Context, messageID string, body []byte) Result {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	envelope, err := events.DecodeEnvelope(body)
	if err != nil {
		c.logg.Error(logCtx, "dropping malformed tip event", err)
		c.metrics.IncConsumed("", metrics.OutcomeMalformed)
		return ack(metrics.OutcomeMalformed)
	}

	eventType := string(envelope.EventType)
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID)
	logCtx = c.logg.WithField(logCtx, "event_type", eventType)

	result := c.process(ctx, logCtx, envelope, body)
	c.metrics.IncConsumed(eventType, result.Outcome)
	return result
}

func (c *Consumer) process(ctx, logCtx context.Context, envelope events.Envelope, body []byte) Result {
	eventType := string(envelope.EventType)

	already, err := c.guard.IsProcessed(ctx, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "processed event check failed", err)
		return nack(metrics.OutcomeFailed)
	}
	if already {
		c.logg.Info(logCtx, "tip event already processed")
		return ack(metrics.OutcomeReplay)
	}

	outcome := metrics.OutcomeApplied
	if !envelope.EventType.IsValid() {
		c.logg.Warn(logCtx, "unknown tip event type")
		outcome = metrics.OutcomeSkipped
	} else {
		data, err := envelope.TipIntentData()
		if err != nil {
			c.logg.Error(logCtx, "dropping tip event with malformed data", err)
			return ack(metrics.OutcomeMalformed)
		}
		logCtx = c.logg.WithTipIntentID(logCtx, data.TipIntentID.String())
		if err := c.handler.Handle(logCtx, envelope, data); err != nil {
			c.logg.Error(logCtx, "tip event handling failed", err)
			return nack(metrics.OutcomeFailed)
		}
	}

	recorded, err := c.guard.MarkProcessed(ctx, envelope.EventID, eventType, json.RawMessage(body))
	if err != nil {
		c.logg.Error(logCtx, "recording processed event failed", err)
		return nack(metrics.OutcomeFailed)
	}
	if !recorded {
		c.logg.Info(logCtx, "tip event recorded by a concurrent delivery")
		return ack(metrics.OutcomeReplay)
	}
	return ack(outcome)
}
