package pubsub_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	ps "github.com/tinywideclouds/go-orderstatus-client/internal/platform/pubsub"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/tray"
	"github.com/tinywideclouds/go-orderstatus-client/internal/push"
	"github.com/tinywideclouds/go-orderstatus-client/internal/test/fakes"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

const (
	projectID = "test-project"
	topicID   = "push-topic"
	subID     = "push-sub"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupPubsub starts an in-memory Pub/Sub server with one topic and one
// subscription and returns a client connected to it.
func setupPubsub(t *testing.T, ctx context.Context) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), projectID, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID),
		Topic: topicName,
	})
	require.NoError(t, err)
	return client
}

// countingDispatcher records payloads and fails the first failures calls.
type countingDispatcher struct {
	mu       sync.Mutex
	failures int
	payloads [][]byte
	handled  chan struct{}
	once     sync.Once
}

func (d *countingDispatcher) DispatchPush(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, data)
	if d.failures > 0 {
		d.failures--
		return errors.New("display failed")
	}
	d.once.Do(func() { close(d.handled) })
	return nil
}

func TestPublisherAndReceiver_EndToEnd(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	client := setupPubsub(t, ctx)

	platform := tray.NewMemoryTray()
	renderer, err := push.NewRenderer(platform)
	require.NoError(t, err)
	router, err := push.NewRouter(&fakes.Windows{}, "https://railbite.example", testLogger)
	require.NoError(t, err)
	worker, err := push.NewWorker(push.NewGateway(renderer, router), platform, testLogger)
	require.NoError(t, err)

	receiver, err := ps.NewReceiver(client.Subscriber(subID), worker, testLogger)
	require.NoError(t, err)
	publisher := ps.NewPublisher(client.Publisher(topicID))

	// Act
	id, err := publisher.Publish(ctx, orderstatus.NotificationDescriptor{
		Body:      "Order ORD-42 is out for delivery",
		Tag:       "ORD-42",
		TargetURL: "/order-tracking/ORD-42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- receiver.Run(runCtx) }()

	// Assert
	require.Eventually(t, func() bool { return len(platform.Visible()) == 1 }, 5*time.Second, 10*time.Millisecond)
	shown := platform.Visible()[0]
	assert.Equal(t, "ORD-42", shown.Tag)
	assert.Equal(t, orderstatus.DefaultTitle, shown.Title, "empty title takes the default")
	assert.Equal(t, "/order-tracking/ORD-42", shown.Data.URL)

	stop()
	assert.NoError(t, <-done)
}

func TestReceiver_FailedDispatchIsRedelivered(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	client := setupPubsub(t, ctx)

	dispatcher := &countingDispatcher{failures: 1, handled: make(chan struct{})}
	receiver, err := ps.NewReceiver(client.Subscriber(subID), dispatcher, testLogger)
	require.NoError(t, err)

	_, err = ps.NewPublisher(client.Publisher(topicID)).PublishRaw(ctx, []byte("Your order has shipped"))
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- receiver.Run(runCtx) }()

	select {
	case <-dispatcher.handled:
	case <-ctx.Done():
		t.Fatal("push was not redelivered after a failed dispatch")
	}
	stop()
	require.NoError(t, <-done)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.GreaterOrEqual(t, len(dispatcher.payloads), 2)
	assert.Equal(t, "Your order has shipped", string(dispatcher.payloads[1]))
}

func TestNewReceiver_Validation(t *testing.T) {
	_, err := ps.NewReceiver(nil, &countingDispatcher{}, testLogger)
	assert.Error(t, err)
}
