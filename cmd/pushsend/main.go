// Command pushsend publishes a push payload to the topic the order-status
// client subscribes to. It stands in for the backend push service during
// development, usually against the Pub/Sub emulator (PUBSUB_EMULATOR_HOST).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	psub "github.com/tinywideclouds/go-orderstatus-client/internal/platform/pubsub"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

func main() {
	projectID := flag.String("project", os.Getenv("GCP_PROJECT_ID"), "Google Cloud project id")
	topicID := flag.String("topic", envOr("PUSH_TOPIC_ID", "railbite-push"), "push topic id")
	title := flag.String("title", "", "notification title")
	body := flag.String("body", "", "notification body")
	tag := flag.String("tag", "", "notification tag, usually the order id")
	url := flag.String("url", "", "target path opened on click")
	raw := flag.String("raw", "", "publish this text verbatim instead of a JSON payload")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *projectID == "" {
		logger.Error("A project id is required (-project or GCP_PROJECT_ID)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, *projectID)
	if err != nil {
		logger.Error("Failed to connect to pubsub", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := ensureTopic(ctx, client, *projectID, *topicID, logger); err != nil {
		logger.Error("Failed to prepare topic", "err", err)
		os.Exit(1)
	}

	publisher := psub.NewPublisher(client.Publisher(*topicID))

	var id string
	if *raw != "" {
		id, err = publisher.PublishRaw(ctx, []byte(*raw))
	} else {
		id, err = publisher.Publish(ctx, orderstatus.NotificationDescriptor{
			Title:     *title,
			Body:      *body,
			Tag:       *tag,
			TargetURL: *url,
		})
	}
	if err != nil {
		logger.Error("Failed to publish push", "err", err)
		os.Exit(1)
	}
	logger.Info("Push published", "topic", *topicID, "push_id", id)
}

// ensureTopic creates the push topic if it doesn't already exist.
func ensureTopic(ctx context.Context, client *pubsub.Client, projectID, topicID string, logger *slog.Logger) error {
	name := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	logger.Debug("Ensuring topic exists", "topic", name)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Topic already exists, skipping creation", "topic", name)
			return nil
		}
		return fmt.Errorf("could not create topic %s: %w", name, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
