package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
)

const defaultPublishTimeout = 10 * time.Second

// Publisher hands tip events to the broker. Implementations are called after
// commit; a returned error never affects the committed state.
type Publisher interface {
	Publish(ctx context.Context, eventType enums.TipEventType, data TipIntentEventData) (string, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubPublisher publishes JSON envelopes to a single Pub/Sub topic.
type PubSubPublisher struct {
	topic   topicPublisher
	timeout time.Duration
	metrics *metrics.TipMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewPubSubPublisher wraps a Pub/Sub publisher handle for the tip events topic.
func NewPubSubPublisher(topic *gcppubsub.Publisher, timeout time.Duration, m *metrics.TipMetrics, logg *logger.Logger) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPubSubPublisher(&gcpPublisher{Publisher: topic}, timeout, m, logg)
}

func newPubSubPublisher(topic topicPublisher, timeout time.Duration, m *metrics.TipMetrics, logg *logger.Logger) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("topic publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubPublisher{
		topic:   topic,
		timeout: timeout,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Publish wraps data in a new envelope and waits for the broker ack.
// It returns the envelope event id.
func (p *PubSubPublisher) Publish(ctx context.Context, eventType enums.TipEventType, data TipIntentEventData) (string, error) {
	envelope, err := NewEnvelope(eventType, data, p.now())
	if err != nil {
		p.metrics.IncPublished(string(eventType), metrics.OutcomeFailed)
		return "", err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		p.metrics.IncPublished(string(eventType), metrics.OutcomeFailed)
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":      envelope.EventID,
			"event_type":    string(eventType),
			"tip_intent_id": data.TipIntentID.String(),
			"merchant_id":   data.MerchantID.String(),
			"occurred_at":   envelope.Timestamp.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.topic.Publish(publishCtx, msg)
	if result == nil {
		p.metrics.IncPublished(string(eventType), metrics.OutcomeFailed)
		return envelope.EventID, errors.New("publisher returned nil result")
	}
	serverID, err := result.Get(publishCtx)
	if err != nil {
		p.metrics.IncPublished(string(eventType), metrics.OutcomeFailed)
		return envelope.EventID, fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.metrics.IncPublished(string(eventType), metrics.OutcomeApplied)
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"event_id":      envelope.EventID,
		"event_type":    eventType,
		"message_id":    serverID,
		"tip_intent_id": data.TipIntentID.String(),
	})
	p.logg.Info(logCtx, "tip event published")
	return envelope.EventID, nil
}

// NopPublisher drops events; used when no topic is configured.
type NopPublisher struct {
	Logger *logger.Logger
}

func (n NopPublisher) Publish(ctx context.Context, eventType enums.TipEventType, data TipIntentEventData) (string, error) {
	if n.Logger != nil {
		logCtx := n.Logger.WithFields(ctx, map[string]any{
			"event_type":    eventType,
			"tip_intent_id": data.TipIntentID.String(),
		})
		n.Logger.Debug(logCtx, "tip event publishing disabled; dropping event")
	}
	return "", nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
