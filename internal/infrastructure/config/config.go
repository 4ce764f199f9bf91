package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Platform  PlatformConfig
	Storage   StorageConfig
	Playback  PlaybackConfig
	Notify    NotifyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8750"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
	// AllowedOrigins is a comma-separated list of origins permitted to
	// call the API from a browser. "*" allows any origin.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// PlatformConfig selects the platform driver used for focus watching,
// window introspection and input injection.
type PlatformConfig struct {
	// Driver is "sim" (in-process simulator) or "remote" (native driver
	// process reached over WebSocket).
	Driver     string        `envconfig:"PLATFORM_DRIVER" default:"sim"`
	RemoteURL  string        `envconfig:"PLATFORM_REMOTE_URL" default:"ws://127.0.0.1:8751/driver"`
	CallWindow time.Duration `envconfig:"PLATFORM_CALL_TIMEOUT" default:"3s"`
}

// StorageConfig holds on-disk layout configuration.
type StorageConfig struct {
	RegistryDir string `envconfig:"REGISTRY_DIR" default:"./data/registry"`
	SnapshotDir string `envconfig:"SNAPSHOT_DIR" default:"./data/snapshots"`
	ScenarioDir string `envconfig:"SCENARIO_DIR" default:"./data/scenarios"`
	// SeedFile preregisters applications at startup. Missing file is fine.
	SeedFile string `envconfig:"SEED_FILE" default:"./data/applications.json"`
}

// PlaybackConfig holds playback tuning.
type PlaybackConfig struct {
	// FocusEventBuffer sizes the focus event channel between the monitor
	// and the controller's event pump.
	FocusEventBuffer int `envconfig:"FOCUS_EVENT_BUFFER" default:"64"`
	// ActionsPerSecond paces injected actions during scenario runs.
	ActionsPerSecond float64       `envconfig:"ACTIONS_PER_SECOND" default:"10"`
	ActionBurst      int           `envconfig:"ACTION_BURST" default:"1"`
	PausePollEvery   time.Duration `envconfig:"PAUSE_POLL_INTERVAL" default:"100ms"`
	HealthCheckEvery time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"2s"`
}

// NotifyConfig holds the outbound webhook notifier configuration.
type NotifyConfig struct {
	WebhookURL     string        `envconfig:"NOTIFY_WEBHOOK_URL" default:""`
	WebhookTimeout time.Duration `envconfig:"NOTIFY_WEBHOOK_TIMEOUT" default:"5s"`
	WebhookRPS     float64       `envconfig:"NOTIFY_WEBHOOK_RPS" default:"5"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Scope is "per_ip" or "global". A localhost-only daemon usually
	// wants global; per_ip matters once the API is exposed on a LAN.
	Scope string `envconfig:"RATE_LIMIT_SCOPE" default:"per_ip"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8750",
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"*"},
		},
		Platform: PlatformConfig{
			Driver:     "sim",
			RemoteURL:  "ws://127.0.0.1:8751/driver",
			CallWindow: 3 * time.Second,
		},
		Storage: StorageConfig{
			RegistryDir: "./data/registry",
			SnapshotDir: "./data/snapshots",
			ScenarioDir: "./data/scenarios",
			SeedFile:    "./data/applications.json",
		},
		Playback: PlaybackConfig{
			FocusEventBuffer: 64,
			ActionsPerSecond: 10,
			ActionBurst:      1,
			PausePollEvery:   100 * time.Millisecond,
			HealthCheckEvery: 2 * time.Second,
		},
		Notify: NotifyConfig{
			WebhookTimeout: 5 * time.Second,
			WebhookRPS:     5,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			Scope:             "per_ip",
		},
	}
}
