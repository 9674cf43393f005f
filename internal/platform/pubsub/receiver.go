package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"
)

// PushDispatcher handles one inbound push delivery.
type PushDispatcher interface {
	DispatchPush(ctx context.Context, data []byte) error
}

// pubsubSubscriberClient defines the interface for the underlying
// pubsub.Subscriber.
type pubsubSubscriberClient interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Receiver pulls push deliveries from a Pub/Sub subscription and hands each
// one to the background worker. Deliveries whose notification could not be
// shown are nacked so Pub/Sub redelivers them.
type Receiver struct {
	sub        pubsubSubscriberClient
	dispatcher PushDispatcher
	logger     *slog.Logger
}

// NewReceiver is the constructor for the Receiver.
func NewReceiver(sub pubsubSubscriberClient, dispatcher PushDispatcher, logger *slog.Logger) (*Receiver, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("push dispatcher cannot be nil")
	}
	return &Receiver{
		sub:        sub,
		dispatcher: dispatcher,
		logger:     logger.With("component", "push_receiver"),
	}, nil
}

// Run receives until ctx is cancelled. A cancelled ctx is a clean stop and
// returns nil.
func (r *Receiver) Run(ctx context.Context) error {
	r.logger.Info("Push receiver started")
	err := r.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		log := r.logger.With("message_id", msg.ID, "push_id", msg.Attributes[AttributeMessageID])
		if err := r.dispatcher.DispatchPush(ctx, msg.Data); err != nil {
			log.Warn("Push dispatch failed, requesting redelivery", "err", err)
			msg.Nack()
			return
		}
		log.Debug("Push dispatched")
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("push receiver stopped: %w", err)
	}
	r.logger.Info("Push receiver stopped")
	return nil
}
