// Command orderclient runs the RailBite order-status client: the live channel,
// the push receiver and the local control API.
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-orderstatus-client/internal/app"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/credentials"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/polling"
	psub "github.com/tinywideclouds/go-orderstatus-client/internal/platform/pubsub"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/telemetry"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/tray"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/websocket"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/windows"
	"github.com/tinywideclouds/go-orderstatus-client/internal/push"
	"github.com/tinywideclouds/go-orderstatus-client/internal/realtime"
	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient/config"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

//go:embed config.yaml
var configFile []byte

func main() {
	setToken := flag.String("set-token", "", "store a bearer credential and exit")
	clearToken := flag.Bool("clear-token", false, "remove the stored credential and exit")
	flag.Parse()

	// --- 1. Setup structured logging (slog) ---
	var logLevel slog.Level
	var zLevel zerolog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel, zLevel = slog.LevelDebug, zerolog.DebugLevel
	case "warn", "WARN":
		logLevel, zLevel = slog.LevelWarn, zerolog.WarnLevel
	case "error", "ERROR":
		logLevel, zLevel = slog.LevelError, zerolog.ErrorLevel
	default:
		logLevel, zLevel = slog.LevelInfo, zerolog.InfoLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-orderstatus-client")
	slog.SetDefault(logger)

	// The live channel components log with zerolog.
	zlogger := zerolog.New(os.Stdout).Level(zLevel).With().Timestamp().Str("service", "go-orderstatus-client").Logger()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env file", "err", err)
	}

	// --- 2. Load Configuration ---
	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "err", err)
		}
	}()
	if cfg.Telemetry.OTLPEndpoint != "" {
		logger.Info("Exporting traces", "endpoint", cfg.Telemetry.OTLPEndpoint)
	}

	// --- 3. Credential store ---
	store, err := credentials.OpenSQLite(cfg.CredentialsDB)
	if err != nil {
		logger.Error("Failed to open credential store", "path", cfg.CredentialsDB, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *setToken != "":
		if err := store.Set(ctx, orderstatus.CredentialKey, *setToken); err != nil {
			logger.Error("Failed to store credential", "err", err)
			os.Exit(1)
		}
		logger.Info("Credential stored")
		return
	case *clearToken:
		if err := store.Delete(ctx, orderstatus.CredentialKey); err != nil {
			logger.Error("Failed to remove credential", "err", err)
			os.Exit(1)
		}
		logger.Info("Credential removed")
		return
	}

	// --- 4. Push delivery ---
	platform, err := newPlatform(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create notification platform", "err", err)
		os.Exit(1)
	}
	registry, err := windows.NewRegistry(cfg.Origin, windows.NewSystemBrowser())
	if err != nil {
		logger.Error("Failed to create window registry", "err", err)
		os.Exit(1)
	}
	renderer, err := push.NewRenderer(platform)
	if err != nil {
		logger.Error("Failed to create renderer", "err", err)
		os.Exit(1)
	}
	router, err := push.NewRouter(registry, cfg.Origin, logger.With("component", "router"))
	if err != nil {
		logger.Error("Failed to create interaction router", "err", err)
		os.Exit(1)
	}
	worker, err := push.NewWorker(push.NewGateway(renderer, router), platform, logger)
	if err != nil {
		logger.Error("Failed to create push worker", "err", err)
		os.Exit(1)
	}
	receiver, err := newReceiver(ctx, cfg, worker, logger)
	if err != nil {
		logger.Error("Failed to create push receiver", "err", err)
		os.Exit(1)
	}

	// --- 5. Live channel ---
	transports := make([]transport.Transport, 0, len(cfg.Transports))
	for _, name := range cfg.Transports {
		switch name {
		case websocket.Name:
			transports = append(transports, websocket.New(cfg.Origin, zlogger))
		case polling.Name:
			transports = append(transports, polling.New(nil, cfg.Origin, zlogger))
		}
	}
	manager, err := realtime.Open(ctx, realtime.Config{
		Endpoint: cfg.Endpoint,
		Policy: realtime.ReconnectPolicy{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Delay:       realtime.FixedDelay(cfg.ReconnectDelay),
		},
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, store, transports, zlogger)
	if err != nil {
		logger.Error("Failed to open live channel", "err", err)
		os.Exit(1)
	}
	manager.Subscribe(realtime.EventReconnectFailed, func(realtime.Event) {
		logger.Warn("Live channel gave up reconnecting; push notifications remain active")
	})

	// --- 6. Control API ---
	apiService, err := orderclient.New(cfg, &orderclient.Dependencies{
		Channel: manager,
		Clicks:  worker,
		Windows: registry,
	}, logger)
	if err != nil {
		logger.Error("Failed to create control API", "err", err)
		os.Exit(1)
	}

	// --- 7. Run the application ---
	app.Run(ctx, logger, apiService, manager, receiver)
}

// loadConfig runs the three configuration stages.
func loadConfig(logger *slog.Logger) (*config.AppConfig, error) {
	// Stage 0: Unmarshal
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	// Stage 1: YAML to Base Struct
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration from YAML: %w", err)
	}
	// Stage 2: Env Vars
	return config.UpdateConfigWithEnvOverrides(baseCfg, logger)
}

// newPlatform creates the notification tray based on config.
func newPlatform(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (orderstatus.NotificationPlatform, error) {
	logger.Info("Initializing notification tray...", "type", cfg.Tray.Type)

	switch cfg.Tray.Type {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Tray.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis tray at %s: %w", cfg.Tray.RedisAddr, err)
		}
		logger.Info("Connected to Redis tray", "addr", cfg.Tray.RedisAddr)
		return tray.NewRedisTray(rdb, cfg.Tray.RedisKey, logger)
	default:
		return tray.NewMemoryTray(), nil
	}
}

// newReceiver connects to Pub/Sub when a push subscription is configured.
func newReceiver(ctx context.Context, cfg *config.AppConfig, worker *push.Worker, logger *slog.Logger) (*psub.Receiver, error) {
	if cfg.Push.SubscriptionID == "" {
		logger.Info("No push subscription configured; push receiver disabled")
		return nil, nil
	}
	logger.Debug("Connecting to PubSub", "project_id", cfg.Push.ProjectID)
	client, err := pubsub.NewClient(ctx, cfg.Push.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pubsub: %w", err)
	}
	return psub.NewReceiver(client.Subscriber(cfg.Push.SubscriptionID), worker, logger)
}
