// Package pubsub opens the Pub/Sub v2 client behind the order events sink and
// the notifier's subscription source. PUBSUB_EMULATOR_HOST is honoured by the
// underlying library, which is how local runs avoid real GCP.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client holds fully qualified names for the order events topic and
// subscription, resolved once from config.
type Client struct {
	ps           *pubsub.Client
	topic        string
	subscription string
}

// NewClient dials Pub/Sub and fails unless the order events topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := qualify(project, "topics", cfg.OrderEventsTopic)
	if topic == "" {
		return nil, errors.New("pubsub order events topic is required")
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		ps:           ps,
		topic:        topic,
		subscription: qualify(project, "subscriptions", cfg.OrderEventsSubscription),
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks the order events topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	return existence("topic", c.topic, err)
}

// CheckSubscription is called by consumers before they start receiving.
func (c *Client) CheckSubscription(ctx context.Context) error {
	if c.subscription == "" {
		return errors.New("pubsub order events subscription is not configured")
	}
	_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
	return existence("subscription", c.subscription, err)
}

func (c *Client) OrderEventsPublisher() *pubsub.Publisher {
	return c.ps.Publisher(c.topic)
}

func (c *Client) OrderEventsSubscriber() *pubsub.Subscriber {
	return c.ps.Subscriber(c.subscription)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func existence(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// qualify expands a bare ID to projects/<project>/<kind>/<id>; names that are
// already qualified pass through.
func qualify(project, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	default:
		return "projects/" + project + "/" + kind + "/" + name
	}
}
