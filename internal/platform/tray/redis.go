package tray

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// DefaultRedisKey is the hash the tray stores notifications in.
const DefaultRedisKey = "orderstatus:notifications"

// redisClient defines the interface we need from go-redis.
type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisTray stores visible notifications in a Redis hash keyed by tag, so a
// second notification with the same tag overwrites the first. It lets a
// separate UI process render the tray.
type RedisTray struct {
	client redisClient
	key    string
	logger *slog.Logger
}

var _ orderstatus.NotificationPlatform = (*RedisTray)(nil)

// NewRedisTray is the constructor for the RedisTray. An empty key selects
// DefaultRedisKey.
func NewRedisTray(client redisClient, key string, logger *slog.Logger) (*RedisTray, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisTray{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_tray"),
	}, nil
}

// ShowNotification writes n under its tag, replacing any previous entry.
func (t *RedisTray) ShowNotification(ctx context.Context, n orderstatus.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := t.client.HSet(ctx, t.key, n.Tag, payload).Err(); err != nil {
		return fmt.Errorf("failed to store notification %q: %w", n.Tag, err)
	}
	t.logger.Debug("Notification stored", "tag", n.Tag)
	return nil
}

// CloseNotification removes the entry for tag.
func (t *RedisTray) CloseNotification(ctx context.Context, tag string) error {
	if err := t.client.HDel(ctx, t.key, tag).Err(); err != nil {
		return fmt.Errorf("failed to remove notification %q: %w", tag, err)
	}
	return nil
}

// Visible returns the stored notifications keyed by tag. Entries that fail to
// decode are skipped.
func (t *RedisTray) Visible(ctx context.Context) (map[string]orderstatus.Notification, error) {
	raw, err := t.client.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make(map[string]orderstatus.Notification, len(raw))
	for tag, payload := range raw {
		var n orderstatus.Notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			t.logger.Warn("Skipping undecodable notification", "tag", tag, "err", err)
			continue
		}
		out[tag] = n
	}
	return out, nil
}
