// Package pubsub connects to Google Cloud Pub/Sub for domain event delivery.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub domain topic is required")
)

// Client owns the Pub/Sub connection and one publisher per topic. Publishers
// batch in the background, so they are reused and only stopped by Close.
type Client struct {
	api         *pubsub.Client
	projectID   string
	domainTopic string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails fast when the domain topic does not exist.
// PUBSUB_EMULATOR_HOST is honoured by the underlying library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	topic := strings.TrimSpace(cfg.DomainTopic)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case topic == "":
		return nil, errTopicRequired
	}

	api, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{
		api:         api,
		projectID:   projectID,
		domainTopic: topic,
		publishers:  map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", TopicResourceName(projectID, topic)), "pubsub connected")
	}
	return c, nil
}

// clientOptions picks inline JSON credentials over a credentials file. With
// neither, application default credentials apply.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Publisher returns the shared publisher for topic, creating it on first use.
// It returns nil when the client is closed or the name cannot be resolved.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.api == nil {
		return nil
	}
	name := TopicResourceName(c.projectID, topic)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishers == nil {
		return nil
	}
	p, ok := c.publishers[name]
	if !ok {
		p = c.api.Publisher(name)
		c.publishers[name] = p
	}
	return p
}

// Ping looks up the domain topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("pubsub client not initialized")
	}
	name := TopicResourceName(c.projectID, c.domainTopic)
	_, err := c.api.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", name)
	case err != nil:
		return fmt.Errorf("get topic %s: %w", name, err)
	}
	return nil
}

// Close flushes and stops every publisher, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = nil
	c.mu.Unlock()
	return c.api.Close()
}

// TopicResourceName expands a topic id to projects/<p>/topics/<t>. Full
// resource names pass through unchanged.
func TopicResourceName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	projectID = strings.TrimSpace(projectID)
	if topic == "" || projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}
