package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Role      string          `yaml:"role"` // "central" or "peripheral"
	BLE       BLEConfig       `yaml:"ble"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Display   DisplayConfig   `yaml:"display"`
	LogLevel  string          `yaml:"log_level"`
}

// BLEConfig holds link negotiation settings.
type BLEConfig struct {
	MTU            int           `yaml:"mtu"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ReconnectConfig holds the reconnect policy applied after a link drop.
type ReconnectConfig struct {
	Delay       time.Duration `yaml:"delay"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = retry forever
}

// DisplayConfig holds presentation settings.
type DisplayConfig struct {
	QueueSize     int    `yaml:"queue_size"`
	WebSocketAddr string `yaml:"websocket_addr"` // empty disables the hub
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blesensor")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Role: "central",
		BLE: BLEConfig{
			MTU:            512,
			SettleDelay:    500 * time.Millisecond,
			ConnectTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			Delay:       2 * time.Second,
			MaxAttempts: 0,
		},
		Display: DisplayConfig{
			QueueSize: 64,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Role {
	case "central", "peripheral":
	default:
		return fmt.Errorf("role must be \"central\" or \"peripheral\", got %q", c.Role)
	}

	if c.BLE.MTU < 23 || c.BLE.MTU > 517 {
		return fmt.Errorf("ble.mtu must be between 23 and 517, got %d", c.BLE.MTU)
	}

	if c.BLE.SettleDelay <= 0 {
		return fmt.Errorf("ble.settle_delay must be > 0")
	}

	if c.BLE.ConnectTimeout <= 0 {
		return fmt.Errorf("ble.connect_timeout must be > 0")
	}

	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("reconnect.delay must be > 0")
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0")
	}

	if c.Display.QueueSize <= 0 {
		return fmt.Errorf("display.queue_size must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigTemplate = `# blesensor configuration
# Reads battery, temperature and humidity from BLE sensor peripherals.

# central: match peripherals advertising the sensor service UUID
# peripheral: match peripherals named "BLE Client" and read the battery service
role: central

ble:
  mtu: 512
  # wait after connecting before service discovery
  settle_delay: 500ms
  connect_timeout: 10s

reconnect:
  delay: 2s
  # 0 retries forever
  max_attempts: 0

display:
  queue_size: 64
  # e.g. ":8080" to stream readings to websocket clients at /ws
  websocket_addr: ""

log_level: info
`

// WriteDefault writes the default config file if none exists yet. It
// returns the path written, or "" if a config file was already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
