// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the daemon configuration. Flags override file values,
// file values override defaults.
type Config struct {
	// Input obfuscation settings
	Input InputConfig `mapstructure:"input"`

	// Overlay cursor settings
	Cursor CursorConfig `mapstructure:"cursor"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// InputConfig contains the delay and shutdown settings.
type InputConfig struct {
	// MaxDelayMS is the maximum additional delay applied per event.
	MaxDelayMS int64 `mapstructure:"max_delay_ms"`

	// StartDelayMS is slept before devices are grabbed, so the session
	// can finish coming up.
	StartDelayMS int64 `mapstructure:"start_delay_ms"`

	// EscapeKeyCombo stops the daemon: comma-separated slots of
	// |-separated evdev key name aliases.
	EscapeKeyCombo string `mapstructure:"escape_key_combo"`

	// DeviceDir is where evdev nodes live.
	DeviceDir string `mapstructure:"device_dir"`
}

// CursorConfig contains overlay cursor settings.
type CursorConfig struct {
	// Color is the crosshair color as AARRGGBB hex.
	Color string `mapstructure:"color"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Loaded but not applied; the logger level comes from LOG_LEVEL only
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Input: InputConfig{
			MaxDelayMS:     100,
			StartDelayMS:   500,
			EscapeKeyCombo: "KEY_LEFTSHIFT,KEY_RIGHTSHIFT,KEY_ESC",
			DeviceDir:      "/dev/input",
		},
		Cursor: CursorConfig{
			Color: "FFFF0000",
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("wayveil")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/wayveil") // System config directory (primary)

		// The daemon normally runs as root; still honor the invoking
		// user's config when launched via sudo.
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			viper.AddConfigPath(fmt.Sprintf("/home/%s/.config/wayveil", sudoUser))
		} else if home := os.Getenv("HOME"); home != "" && home != "/root" {
			viper.AddConfigPath(filepath.Join(home, ".config", "wayveil"))
		}

		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	viper.SetDefault("input.max_delay_ms", DefaultConfig.Input.MaxDelayMS)
	viper.SetDefault("input.start_delay_ms", DefaultConfig.Input.StartDelayMS)
	viper.SetDefault("input.escape_key_combo", DefaultConfig.Input.EscapeKeyCombo)
	viper.SetDefault("input.device_dir", DefaultConfig.Input.DeviceDir)
	viper.SetDefault("cursor.color", DefaultConfig.Cursor.Color)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return cfg.Validate()
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Validate checks the ranges the rest of the daemon relies on.
func (c *Config) Validate() error {
	if c.Input.MaxDelayMS < 0 || c.Input.MaxDelayMS > math.MaxInt32 {
		return fmt.Errorf("invalid value '%d' passed to parameter 'delay'", c.Input.MaxDelayMS)
	}
	if c.Input.StartDelayMS < 0 || c.Input.StartDelayMS > math.MaxInt32 {
		return fmt.Errorf("invalid value '%d' passed to parameter 'start-delay'", c.Input.StartDelayMS)
	}
	if _, err := ParseColor(c.Cursor.Color); err != nil {
		return err
	}
	if strings.TrimSpace(c.Input.EscapeKeyCombo) == "" {
		return fmt.Errorf("escape key combo must not be empty")
	}
	return nil
}

// ParseColor parses an AARRGGBB hex string into a pixel value.
func ParseColor(s string) (uint32, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != 8 {
		return 0, fmt.Errorf("invalid color '%s': want 8 hex digits (AARRGGBB)", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color '%s': %w", s, err)
	}
	return uint32(v), nil
}
