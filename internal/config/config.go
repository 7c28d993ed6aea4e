// Package config handles quickpanel configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "250ms", "5s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '250ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the quickpanel configuration.
// Loaded from ~/.config/quickpanel/quickpanel.toml
type Config struct {
	HeadsUp   HeadsUpConfig   `toml:"headsup"`
	Animation AnimationConfig `toml:"animation"`
	LED       LEDConfig       `toml:"led"`
	Sound     SoundConfig     `toml:"sound"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// HeadsUpConfig contains banner settings.
type HeadsUpConfig struct {
	Enabled       bool     `toml:"enabled"`
	CloseDuration Duration `toml:"close_duration"` // Display time when a record has no timeout
	MinVisible    Duration `toml:"min_visible"`    // Shortest time a banner stays up
}

// AnimationConfig contains list animation and layout settings.
type AnimationConfig struct {
	Translate     Duration `toml:"translate"`
	Fade          Duration `toml:"fade"`
	Width         int      `toml:"width"`
	ItemHeight    int      `toml:"item_height"`
	OngoingHeight int      `toml:"ongoing_height"`
	Gap           int      `toml:"gap"`
}

// LEDConfig contains indicator LED settings.
type LEDConfig struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"` // "sysfs" or "log"
	Path    string `toml:"path"`   // LED class device for the sysfs driver
	Color   string `toml:"color"`  // Default colour, "#rrggbb"
	OnMs    int    `toml:"on_ms"`
	OffMs   int    `toml:"off_ms"`
}

// SoundConfig contains banner sound settings.
type SoundConfig struct {
	Enabled bool   `toml:"enabled"`
	Volume  int    `toml:"volume"`  // 0-100
	Default string `toml:"default"` // Played when a record names no sound
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Listen string `toml:"listen"` // Empty disables the endpoint
}

// LED driver names.
const (
	DriverSysfs = "sysfs"
	DriverLog   = "log"
)

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		HeadsUp: HeadsUpConfig{
			Enabled:       true,
			CloseDuration: Duration(5 * time.Second),
			MinVisible:    Duration(time.Second),
		},
		Animation: AnimationConfig{
			Translate:     Duration(200 * time.Millisecond),
			Fade:          Duration(250 * time.Millisecond),
			Width:         360,
			ItemHeight:    64,
			OngoingHeight: 80,
			Gap:           4,
		},
		LED: LEDConfig{
			Enabled: true,
			Driver:  DriverLog,
			Path:    "/sys/class/leds/notification",
			Color:   "#00ff00",
			OnMs:    500,
			OffMs:   2000,
		},
		Sound: SoundConfig{
			Enabled: true,
			Volume:  80,
		},
	}
}

// Path returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "quickpanel", "quickpanel.toml")
}

// Load loads configuration from path, or the default path when empty.
// If the file doesn't exist, returns the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path, or the default path when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HeadsUp.CloseDuration < 0 || c.HeadsUp.MinVisible < 0 {
		return fmt.Errorf("heads-up durations must not be negative")
	}
	if c.HeadsUp.Enabled && c.HeadsUp.CloseDuration == 0 {
		return fmt.Errorf("close_duration must be positive while heads-up is enabled")
	}
	if c.HeadsUp.MinVisible > c.HeadsUp.CloseDuration && c.HeadsUp.CloseDuration > 0 {
		return fmt.Errorf("min_visible (%s) must not exceed close_duration (%s)",
			c.HeadsUp.MinVisible.Duration(), c.HeadsUp.CloseDuration.Duration())
	}

	if c.Animation.Translate < 0 || c.Animation.Fade < 0 {
		return fmt.Errorf("animation durations must not be negative")
	}
	if c.Animation.Width < 1 || c.Animation.ItemHeight < 1 {
		return fmt.Errorf("width and item_height must be positive, got %dx%d", c.Animation.Width, c.Animation.ItemHeight)
	}
	if c.Animation.Gap < 0 {
		return fmt.Errorf("gap must not be negative, got %d", c.Animation.Gap)
	}

	switch c.LED.Driver {
	case DriverSysfs, DriverLog:
	default:
		return fmt.Errorf("invalid led driver %q, must be %q or %q", c.LED.Driver, DriverSysfs, DriverLog)
	}
	if _, err := ParseColor(c.LED.Color); err != nil {
		return err
	}
	if c.LED.OnMs < 0 || c.LED.OffMs < 0 {
		return fmt.Errorf("led duty cycle must not be negative")
	}

	if c.Sound.Volume < 0 || c.Sound.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Sound.Volume)
	}

	return nil
}

// LEDColor returns the parsed default LED colour.
func (c *Config) LEDColor() uint32 {
	color, _ := ParseColor(c.LED.Color)
	return color
}

// DefaultSound returns the default sound path with ~ expanded.
func (c *Config) DefaultSound() string {
	return ExpandPath(c.Sound.Default)
}

// ParseColor parses "#rrggbb" or "rrggbb" into 0xRRGGBB.
func ParseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("invalid color %q, must be #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return uint32(v), nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
