package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type TrayConfig struct {
	Type      string `validate:"oneof=memory redis"`
	RedisAddr string `validate:"required_if=Type redis"`
	RedisKey  string
}

// PushConfig locates the Pub/Sub subscription push deliveries arrive on. An
// empty SubscriptionID disables the push receiver.
type PushConfig struct {
	ProjectID      string `validate:"required_with=SubscriptionID"`
	SubscriptionID string
	TopicID        string
}

// TelemetryConfig controls trace export. An empty OTLPEndpoint keeps tracing
// local: spans are created but never exported.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string `validate:"omitempty,hostname_port"`
	Insecure     bool
}

// AppConfig is the canonical, validated configuration object used throughout
// the application. It is created by NewConfigFromYaml (Stage 1) and finalized
// by UpdateConfigWithEnvOverrides (Stage 2).
type AppConfig struct {
	Endpoint             string        `validate:"required,url"`
	Origin               string        `validate:"required,url"`
	APIPort              string        `validate:"required,numeric"`
	Transports           []string      `validate:"required,min=1,dive,oneof=websocket polling"`
	HandshakeTimeout     time.Duration `validate:"gte=0"`
	ReconnectMaxAttempts int           `validate:"gte=0"`
	ReconnectDelay       time.Duration `validate:"gte=0"`
	CredentialsDB        string        `validate:"required"`
	Tray                 TrayConfig
	Push                 PushConfig
	Telemetry            TelemetryConfig
}

// UpdateConfigWithEnvOverrides takes the base configuration (created from YAML)
// and completes it by applying environment variables and final validation.
// This function completes "Stage 2" of configuration loading.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("Applying environment variable overrides...")

	override := func(key string, apply func(string)) {
		if v := os.Getenv(key); v != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			apply(v)
		}
	}

	override("ORDERSTATUS_ENDPOINT", func(v string) { cfg.Endpoint = v })
	override("ORDERSTATUS_ORIGIN", func(v string) { cfg.Origin = v })
	override("API_PORT", func(v string) { cfg.APIPort = v })
	override("CREDENTIALS_DB", func(v string) { cfg.CredentialsDB = v })
	override("GCP_PROJECT_ID", func(v string) { cfg.Push.ProjectID = v })
	override("PUSH_SUBSCRIPTION_ID", func(v string) { cfg.Push.SubscriptionID = v })
	override("PUSH_TOPIC_ID", func(v string) { cfg.Push.TopicID = v })
	override("ORDERSTATUS_OTLP_ENDPOINT", func(v string) { cfg.Telemetry.OTLPEndpoint = v })
	override("REDIS_ADDR", func(v string) {
		cfg.Tray.Type = "redis"
		cfg.Tray.RedisAddr = v
	})
	override("ORDERSTATUS_TRANSPORTS", func(v string) {
		var transports []string
		for _, t := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				transports = append(transports, trimmed)
			}
		}
		cfg.Transports = transports
	})

	if v := os.Getenv("RECONNECT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONNECT_MAX_ATTEMPTS %q: %w", v, err)
		}
		logger.Debug("Overriding config value", "key", "RECONNECT_MAX_ATTEMPTS", "source", "env")
		cfg.ReconnectMaxAttempts = n
	}
	if v := os.Getenv("RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONNECT_DELAY %q: %w", v, err)
		}
		logger.Debug("Overriding config value", "key", "RECONNECT_DELAY", "source", "env")
		cfg.ReconnectDelay = d
	}

	if v := os.Getenv("ORDERSTATUS_OTLP_INSECURE"); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ORDERSTATUS_OTLP_INSECURE %q: %w", v, err)
		}
		logger.Debug("Overriding config value", "key", "ORDERSTATUS_OTLP_INSECURE", "source", "env")
		cfg.Telemetry.Insecure = insecure
	}

	if cfg.Tray.Type == "" {
		cfg.Tray.Type = "memory"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "go-orderstatus-client"
	}

	if err := validator.New().Struct(cfg); err != nil {
		logger.Error("Final config validation failed", "err", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
