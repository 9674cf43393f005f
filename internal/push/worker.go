package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

const tracerName = "github.com/tinywideclouds/go-orderstatus-client/internal/push"

// ExtendableEvent is handed to event handlers. Work registered with WaitUntil
// keeps the dispatch alive until it settles; the first failure is reported.
type ExtendableEvent struct {
	ctx   context.Context
	group errgroup.Group
}

func newExtendableEvent(ctx context.Context) *ExtendableEvent {
	return &ExtendableEvent{ctx: ctx}
}

// WaitUntil runs fn in the background and extends the event's lifetime
// until fn returns.
func (e *ExtendableEvent) WaitUntil(fn func(ctx context.Context) error) {
	e.group.Go(func() error {
		return fn(e.ctx)
	})
}

func (e *ExtendableEvent) wait() error {
	return e.group.Wait()
}

// Worker is the background context that receives push and notification-click
// events. It never fails hard: errors are logged and returned for reporting.
type Worker struct {
	gateway  orderstatus.NotificationGateway
	platform orderstatus.NotificationPlatform
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewWorker creates a Worker. platform is used to close notifications the
// user interacted with. Spans go to the global tracer provider.
func NewWorker(gateway orderstatus.NotificationGateway, platform orderstatus.NotificationPlatform, logger *slog.Logger) (*Worker, error) {
	if gateway == nil {
		return nil, fmt.Errorf("notification gateway cannot be nil")
	}
	if platform == nil {
		return nil, fmt.Errorf("notification platform cannot be nil")
	}
	return &Worker{
		gateway:  gateway,
		platform: platform,
		logger:   logger.With("component", "PushWorker"),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// DispatchPush handles one inbound push. data is nil when the push carried no
// payload. It returns once the notification has been handed to the platform.
func (w *Worker) DispatchPush(ctx context.Context, data []byte) error {
	ctx, span := w.tracer.Start(ctx, "push.dispatch")
	defer span.End()

	desc := ParsePayload(data)
	span.SetAttributes(
		attribute.String("notification.tag", desc.Tag),
		attribute.Bool("push.has_data", data != nil),
	)

	event := newExtendableEvent(ctx)
	event.WaitUntil(func(ctx context.Context) error {
		return w.gateway.Display(ctx, desc)
	})

	if err := event.wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "display failed")
		w.logger.Error("Failed to display push notification", "tag", desc.Tag, "err", err)
		return err
	}
	w.logger.Debug("Push notification displayed", "tag", desc.Tag)
	return nil
}

// DispatchNotificationClick handles a user interaction with a notification.
// The notification is closed whatever the action was.
func (w *Worker) DispatchNotificationClick(ctx context.Context, click orderstatus.NotificationClick) error {
	ctx, span := w.tracer.Start(ctx, "push.notification_click")
	defer span.End()

	tag := click.Notification.Tag
	span.SetAttributes(
		attribute.String("notification.tag", tag),
		attribute.String("notification.action", string(click.Action)),
	)
	log := w.logger.With("tag", tag, "action", string(click.Action))

	var closeErr error
	if err := w.platform.CloseNotification(ctx, tag); err != nil {
		closeErr = fmt.Errorf("failed to close notification %q: %w", tag, err)
		span.RecordError(closeErr)
		log.Warn("Failed to close notification", "err", err)
	}

	if click.Action == orderstatus.ActionDismiss {
		return closeErr
	}

	event := newExtendableEvent(ctx)
	event.WaitUntil(func(ctx context.Context) error {
		return w.gateway.RouteInteraction(ctx, click.Action, click.Notification.Data)
	})

	if err := event.wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing failed")
		log.Error("Failed to route notification click", "err", err)
		return errors.Join(closeErr, err)
	}
	return closeErr
}
