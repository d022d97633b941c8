package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// STOREFRONT_API_BASE_URL overrides api.base_url.
const EnvPrefix = "STOREFRONT"

// APIConfig holds settings for the backend REST boundary.
type APIConfig struct {
	// BaseURL is the root URL of the storefront backend, e.g. https://shop.example.com/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RealtimeURL is the WebSocket endpoint for notifications and chat.
	// When empty it is derived from BaseURL.
	RealtimeURL string `mapstructure:"realtime_url" yaml:"realtime_url"`

	// RequestTimeoutSec bounds each individual network call.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`

	// MaxRetries is how many times a rate-limited (429) call is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// RequestTimeout returns the per-call timeout as a duration.
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// WebSocketURL returns RealtimeURL, or BaseURL with its scheme switched
// to ws/wss and "/ws/notifications" appended.
func (c APIConfig) WebSocketURL() string {
	if c.RealtimeURL != "" {
		return c.RealtimeURL
	}
	base := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/notifications"
}

// RealtimeConfig holds reconnection and keepalive settings.
type RealtimeConfig struct {
	ReconnectMinMs int `mapstructure:"reconnect_min_ms" yaml:"reconnect_min_ms"`
	ReconnectMaxMs int `mapstructure:"reconnect_max_ms" yaml:"reconnect_max_ms"`
	PongWaitSec    int `mapstructure:"pong_wait_sec" yaml:"pong_wait_sec"`
}

// NotificationsConfig holds pull-mode settings.
type NotificationsConfig struct {
	// PollIntervalSec is how often the full list is re-fetched.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// DriftCheckSec is how often the server unread count is compared to
	// the local one.
	DriftCheckSec int `mapstructure:"drift_check_sec" yaml:"drift_check_sec"`
}

// StorageConfig holds durable client-side state locations.
type StorageConfig struct {
	DBPath         string `mapstructure:"db_path" yaml:"db_path"`
	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service"`
	KeyringDir     string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File is where logs go while the terminal UI owns stdout.
	File string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	ToastSec int `mapstructure:"toast_sec" yaml:"toast_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// configDir returns ~/.config/storefront, or "." when the home directory
// cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "storefront")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/storefront/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// setDefaults registers every default on v so that missing keys and
// environment overrides resolve consistently.
func setDefaults(v *viper.Viper) {
	dir := configDir()

	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.realtime_url", "")
	v.SetDefault("api.request_timeout_sec", 15)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("realtime.reconnect_min_ms", 500)
	v.SetDefault("realtime.reconnect_max_ms", 30000)
	v.SetDefault("realtime.pong_wait_sec", 60)
	v.SetDefault("notifications.poll_interval_sec", 120)
	v.SetDefault("notifications.drift_check_sec", 30)
	v.SetDefault("storage.db_path", filepath.Join(dir, "storefront.db"))
	v.SetDefault("storage.keyring_service", "storefront")
	v.SetDefault("storage.keyring_dir", filepath.Join(dir, "credentials"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", filepath.Join(dir, "storefront.log"))
	v.SetDefault("display.toast_sec", 5)
}

// NewViper returns a viper instance with defaults and STOREFRONT_*
// environment overrides bound, reading from path.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigFrom(NewViper(path))
}

// LoadConfigFrom decodes the configuration held by an already prepared
// viper instance, e.g. one with command-line flags bound.
func LoadConfigFrom(v *viper.Viper) (*AppConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", v.ConfigFileUsed(), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *AppConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("config: api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.RequestTimeoutSec <= 0 {
		return fmt.Errorf("config: api.request_timeout_sec must be positive, got %d", c.API.RequestTimeoutSec)
	}
	if c.Realtime.ReconnectMinMs <= 0 || c.Realtime.ReconnectMaxMs < c.Realtime.ReconnectMinMs {
		return fmt.Errorf(
			"config: realtime.reconnect_min_ms (%d) must be positive and <= reconnect_max_ms (%d)",
			c.Realtime.ReconnectMinMs, c.Realtime.ReconnectMaxMs,
		)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
