package client

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubClient publishes assessment events to one Pub/Sub topic.
type PubSubClient struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubClient creates a publisher for topicID. Messages carrying an
// "ordering_key" attribute are delivered in order per key.
func NewPubSubClient(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*PubSubClient, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	topic.EnableMessageOrdering = true
	return &PubSubClient{client: client, topic: topic}, nil
}

// Close flushes pending messages and closes the client.
func (c *PubSubClient) Close() {
	c.topic.Stop()
	c.client.Close()
}

// PublishWithAttributes publishes data as JSON and waits for the server ack.
// An "ordering_key" attribute becomes the message ordering key.
func (c *PubSubClient) PublishWithAttributes(ctx context.Context, data interface{}, attrs map[string]string) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := &pubsub.Message{Data: body, Attributes: attrs}
	if key, ok := attrs["ordering_key"]; ok {
		msg.OrderingKey = key
	}

	if _, err := c.topic.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			// A failed publish pauses its key until resumed.
			c.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Ping checks that the topic exists.
func (c *PubSubClient) Ping(ctx context.Context) error {
	ok, err := c.topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("topic %s does not exist", c.topic.ID())
	}
	return nil
}
