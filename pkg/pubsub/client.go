package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds one Pub/Sub v2 connection plus the resolved resource paths
// for the tip events topic and subscription. Either path may be empty when
// the process only publishes or only consumes.
type Client struct {
	ps           *pubsub.Client
	topic        string
	subscription string
}

// NewClient dials Pub/Sub for the configured project. A configured
// subscription must already exist; topics are not checked.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		ps:           ps,
		topic:        qualify(project, kindTopic, cfg.TipEventsTopic),
		subscription: qualify(project, kindSubscription, cfg.TipEventsSubscription),
	}
	if err := c.verify(ctx); err != nil {
		return nil, multierr.Append(err, ps.Close())
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":   project,
			"topic":        c.topic,
			"subscription": c.subscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	if c.subscription == "" {
		return nil
	}
	_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.subscription,
	})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %s does not exist", c.subscription)
	default:
		return fmt.Errorf("looking up subscription %s: %w", c.subscription, err)
	}
}

// TipEventsPublisher returns a publisher bound to the tip events topic, or
// nil when no topic is configured.
func (c *Client) TipEventsPublisher() *pubsub.Publisher {
	if c == nil || c.ps == nil || c.topic == "" {
		return nil
	}
	return c.ps.Publisher(c.topic)
}

// TipEventsSubscription returns the subscriber for tip lifecycle events, or
// nil when no subscription is configured.
func (c *Client) TipEventsSubscription() *pubsub.Subscriber {
	if c == nil || c.ps == nil || c.subscription == "" {
		return nil
	}
	return c.ps.Subscriber(c.subscription)
}

// Ping re-checks that the configured subscription is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// qualify turns a short id into projects/<project>/<kind>/<id>. Names that are
// already fully qualified for kind are returned as given.
func qualify(project, kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return strings.Join([]string{"projects", project, kind, id}, "/")
}
