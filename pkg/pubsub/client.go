package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/logger"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub audit topic is required")
)

// NewClient creates a Pub/Sub v2 client and ensures the audit topic exists.
func NewClient(ctx context.Context, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.AuditTopic) == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: cfg.ProjectID,
		cfg:       cfg,
	}

	if err := c.ensureTopicExists(ctx, cfg.AuditTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", cfg.AuditTopic), "pubsub client initialized")
	}

	return c, nil
}

func clientOptions(cfg config.PubSubConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ApplicationCredentials))
	}
	return opts
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := topicResourceName(c.projectID, name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}

	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

// Publisher returns a publisher handle for the given topic ID/resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := topicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// AuditPublisher returns the publisher for the configured audit topic.
func (c *Client) AuditPublisher() *MessagePublisher {
	if c == nil {
		return nil
	}
	return NewMessagePublisher(c.Publisher(c.cfg.AuditTopic))
}

// Ping verifies Pub/Sub connectivity by checking the audit topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopicExists(ctx, c.cfg.AuditTopic)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
