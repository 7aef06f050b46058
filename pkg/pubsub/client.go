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

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoResources       = errors.New("at least one pubsub topic or subscription is required")
)

// Resources lists the topics and subscriptions a process depends on. They are
// checked at startup and on every Ping.
type Resources struct {
	Topics        []string
	Subscriptions []string
}

// PublisherResources are the topics the outbox publisher writes to.
func PublisherResources(cfg config.PubSubConfig) Resources {
	return Resources{Topics: nonBlank(cfg.OrdersTopic, cfg.PayoutsTopic)}
}

// AnalyticsResources are the subscriptions the analytics worker drains.
func AnalyticsResources(cfg config.PubSubConfig) Resources {
	return Resources{Subscriptions: nonBlank(cfg.LedgerSubscription, cfg.PayoutsSubscription)}
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	resources Resources
	logg      *logger.Logger
}

// NewClient creates a Pub/Sub v2 client and verifies every required resource.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, res Resources, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if len(res.Topics) == 0 && len(res.Subscriptions) == 0 {
		return nil, errNoResources
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
		resources: res,
		logg:      logg,
	}
	if err := c.checkResources(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        res.Topics,
			"subscriptions": res.Subscriptions,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) checkResources(ctx context.Context) error {
	for _, name := range c.resources.Topics {
		if err := c.checkTopic(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range c.resources.Subscriptions {
		if err := c.checkSubscription(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "topics", name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	return adminError("topic", name, err)
}

// checkSubscription also warns when ordering is off, since ledger consumers
// rely on per-aggregate order.
func (c *Client) checkSubscription(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	if err := adminError("subscription", name, err); err != nil {
		return err
	}
	if !sub.GetEnableMessageOrdering() && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "subscription", name), "subscription does not enable message ordering")
	}
	return nil
}

func adminError(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Subscription returns a subscriber for an id or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// LedgerSubscription feeds order events to analytics.
func (c *Client) LedgerSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.LedgerSubscription)
}

// PayoutsSubscription feeds payout events to analytics.
func (c *Client) PayoutsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.PayoutsSubscription)
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "topics", name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping re-checks the required resources.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.checkResources(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id to projects/<project>/<kind>/<id>. Full names of
// the same kind pass through unchanged.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
