package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/farmloop-backend/pkg/config"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notification topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection and the single notification publisher
// built on top of it. Close flushes that publisher before disconnecting.
type Client struct {
	conn      *pubsub.Client
	topic     string
	publisher *pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := topicResourceName(project, cfg.NotificationTopic)
	if topic == "" {
		return nil, errNoTopic
	}

	conn, err := pubsub.NewClient(ctx, project, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{conn: conn, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.publisher = conn.Publisher(topic)
	applyBatching(&c.publisher.PublishSettings, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":    topic,
			"emulator": cfg.EmulatorHost != "",
		}), "pubsub.ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// applyBatching leaves library defaults in place for unset values.
func applyBatching(s *pubsub.PublishSettings, cfg config.PubSubConfig) {
	if cfg.BatchDelay > 0 {
		s.DelayThreshold = cfg.BatchDelay
	}
	if cfg.BatchCount > 0 {
		s.CountThreshold = cfg.BatchCount
	}
	if cfg.PublishTimeout > 0 {
		s.Timeout = cfg.PublishTimeout
	}
}

// NotificationPublisher is nil on a nil client.
func (c *Client) NotificationPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.publisher
}

// Ping fails when the topic is missing; topics are provisioned outside the app.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errClosed
	}
	_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", c.topic)
	default:
		return fmt.Errorf("get topic %s: %w", c.topic, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.conn.Close()
}

// topicResourceName accepts a bare topic id or a full projects/x/topics/y name.
func topicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/topics/" + name
}
