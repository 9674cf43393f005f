// Package pubsub contains concrete adapters for delivering push payloads
// through Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// AttributeMessageID carries a client-visible id on every published push.
const AttributeMessageID = "push_id"

// pubsubTopicClient defines the interface for the underlying pubsub.Publisher.
// This allows us to use a mock for testing.
type pubsubTopicClient interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher serializes push payloads and publishes them to a Pub/Sub topic.
// It stands in for the backend's push service in development.
type Publisher struct {
	topic pubsubTopicClient
}

// NewPublisher is the constructor for the Pub/Sub publisher.
func NewPublisher(topic pubsubTopicClient) *Publisher {
	return &Publisher{
		topic: topic,
	}
}

// Publish sends desc as a JSON push payload and waits for the server to
// accept it. Empty fields are sent as-is; the receiving side applies defaults.
func (p *Publisher) Publish(ctx context.Context, desc orderstatus.NotificationDescriptor) (string, error) {
	payload, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal push payload: %w", err)
	}
	return p.PublishRaw(ctx, payload)
}

// PublishRaw sends data unchanged, which lets callers exercise the plain-text
// fallback.
func (p *Publisher) PublishRaw(ctx context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	message := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{AttributeMessageID: id},
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		return "", fmt.Errorf("failed to publish push payload: %w", err)
	}
	return id, nil
}
