package config

import (
	"fmt"
	"log/slog"
	"time"
)

// --- YAML-Specific Structs ---

type YamlRedisConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}

type YamlTrayConfig struct {
	Type  string          `yaml:"type"` // "memory" or "redis"
	Redis YamlRedisConfig `yaml:"redis"`
}

type YamlReconnectConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Delay       string `yaml:"delay"`
}

type YamlPushConfig struct {
	ProjectID      string `yaml:"project_id"`
	SubscriptionID string `yaml:"subscription_id"`
	TopicID        string `yaml:"topic_id"`
}

type YamlTelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml file.
type YamlConfig struct {
	Endpoint         string              `yaml:"endpoint"`
	Origin           string              `yaml:"origin"`
	APIPort          string              `yaml:"api_port"`
	Transports       []string            `yaml:"transports"`
	HandshakeTimeout string              `yaml:"handshake_timeout"`
	Reconnect        YamlReconnectConfig `yaml:"reconnect"`
	CredentialsDB    string              `yaml:"credentials_db"`
	Tray             YamlTrayConfig      `yaml:"tray"`
	Push             YamlPushConfig      `yaml:"push"`
	Telemetry        YamlTelemetryConfig `yaml:"telemetry"`
}

// --- Stage 1 Function ---

// NewConfigFromYaml converts the raw unmarshaled data (YamlConfig) into a base
// AppConfig. Durations are parsed here; environment overrides come later.
func NewConfigFromYaml(yamlCfg *YamlConfig, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("Mapping YAML config to base config struct")

	reconnectDelay, err := parseDuration("reconnect.delay", yamlCfg.Reconnect.Delay)
	if err != nil {
		return nil, err
	}
	handshakeTimeout, err := parseDuration("handshake_timeout", yamlCfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}

	appCfg := &AppConfig{
		Endpoint:             yamlCfg.Endpoint,
		Origin:               yamlCfg.Origin,
		APIPort:              yamlCfg.APIPort,
		Transports:           yamlCfg.Transports,
		HandshakeTimeout:     handshakeTimeout,
		ReconnectMaxAttempts: yamlCfg.Reconnect.MaxAttempts,
		ReconnectDelay:       reconnectDelay,
		CredentialsDB:        yamlCfg.CredentialsDB,
		Tray: TrayConfig{
			Type:      yamlCfg.Tray.Type,
			RedisAddr: yamlCfg.Tray.Redis.Addr,
			RedisKey:  yamlCfg.Tray.Redis.Key,
		},
		Push: PushConfig{
			ProjectID:      yamlCfg.Push.ProjectID,
			SubscriptionID: yamlCfg.Push.SubscriptionID,
			TopicID:        yamlCfg.Push.TopicID,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  yamlCfg.Telemetry.ServiceName,
			OTLPEndpoint: yamlCfg.Telemetry.OTLPEndpoint,
			Insecure:     yamlCfg.Telemetry.Insecure,
		},
	}

	logger.Debug("YAML config mapping complete",
		"endpoint", appCfg.Endpoint,
		"origin", appCfg.Origin,
		"api_port", appCfg.APIPort,
		"transports", appCfg.Transports,
		"tray_type", appCfg.Tray.Type,
	)

	return appCfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
