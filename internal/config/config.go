package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"remotedesk/internal/frame"
)

// Default values for Config.
const (
	DefaultListen   = ":7417"
	DefaultQuality  = 75
	DefaultWidth    = 512
	DefaultHeight   = 512
	DefaultFPS      = 20
	DefaultTopology = TopologySplit
	DefaultModel    = ModelPull
	DefaultLogLevel = "info"

	MinFPS = 1
	MaxFPS = 60
)

// Topology values.
const (
	// TopologySplit serves separate input and view connections.
	TopologySplit = "split"
	// TopologyCombined serves one connection carrying both.
	TopologyCombined = "combined"
)

// Model values.
const (
	// ModelPull answers each frame request with one frame.
	ModelPull = "pull"
	// ModelPush sends frames at a fixed rate, throttled by client acks.
	ModelPush = "push"
)

// Log configures the process logger.
type Log struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

// Config is the on-disk server configuration.
type Config struct {
	Listen        string `yaml:"listen"`
	ControlSecret string `yaml:"control_secret"`
	ViewSecret    string `yaml:"view_secret"`
	Topology      string `yaml:"topology"`
	Model         string `yaml:"model"`

	Quality    int  `yaml:"quality"`
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	FPS        int  `yaml:"fps"`
	Fullscreen bool `yaml:"fullscreen"`
	Display    int  `yaml:"display"`

	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	PartialThreshold int           `yaml:"partial_threshold"`
	EmptyThreshold   int           `yaml:"empty_threshold"`

	Log Log `yaml:"log"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Listen:           DefaultListen,
		Topology:         DefaultTopology,
		Model:            DefaultModel,
		Quality:          DefaultQuality,
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		FPS:              DefaultFPS,
		PartialThreshold: frame.DefaultPartialThreshold,
		EmptyThreshold:   frame.DefaultEmptyThreshold,
		Log:              Log{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads a YAML config file over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Clamp()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Clamp pulls numeric settings into their accepted ranges.
func (c *Config) Clamp() {
	c.Quality = min(max(c.Quality, 1), 100)
	c.Width = min(max(c.Width, frame.MinViewport), frame.MaxViewport)
	c.Height = min(max(c.Height, frame.MinViewport), frame.MaxViewport)
	c.FPS = min(max(c.FPS, MinFPS), MaxFPS)
	if c.Display < 0 {
		c.Display = 0
	}
}

// Validate checks the settings that cannot be clamped.
func Validate(c *Config) error {
	if c.Listen == "" {
		return ValidationError{Field: "listen", Message: "must not be empty"}
	}
	switch c.Topology {
	case TopologySplit, TopologyCombined:
	default:
		return ValidationError{Field: "topology", Message: fmt.Sprintf("must be %q or %q", TopologySplit, TopologyCombined)}
	}
	switch c.Model {
	case ModelPull, ModelPush:
	default:
		return ValidationError{Field: "model", Message: fmt.Sprintf("must be %q or %q", ModelPull, ModelPush)}
	}
	if c.IdleTimeout < 0 {
		return ValidationError{Field: "idle_timeout", Message: "must not be negative"}
	}
	if c.PartialThreshold <= 0 {
		return ValidationError{Field: "partial_threshold", Message: "must be positive"}
	}
	if c.EmptyThreshold <= 0 {
		return ValidationError{Field: "empty_threshold", Message: "must be positive"}
	}
	if c.ViewSecret != "" && c.ViewSecret == c.ControlSecret {
		return ValidationError{Field: "view_secret", Message: "must differ from control_secret"}
	}
	return nil
}

// Thresholds returns the full-frame resync budgets.
func (c *Config) Thresholds() frame.Thresholds {
	return frame.Thresholds{Partial: c.PartialThreshold, Empty: c.EmptyThreshold}
}

// FrameInterval is the push model tick.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(max(c.FPS, 1))
}

// AckTimeout is how long the push model waits for an ack before resending.
func (c *Config) AckTimeout() time.Duration {
	return 10 * c.FrameInterval()
}
