// ABOUTME: YAML configuration for the sales coach client
// ABOUTME: Defaults, file loading, validation and API key resolution
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the hosted live speech service
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the live model requested in setup
	DefaultModel = "models/gemini-2.0-flash-live-001"
)

// APIKeyEnvVars are consulted in order when the config file has no key
var APIKeyEnvVars = []string{"COACH_API_KEY", "GEMINI_API_KEY", "API_KEY"}

// ErrMissingAPIKey is returned when no API key is configured
var ErrMissingAPIKey = errors.New("no API key configured")

// Config represents the complete client configuration
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Audio     AudioConfig     `yaml:"audio"`
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	UI        UIConfig        `yaml:"ui"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// ServiceConfig describes the live speech service
type ServiceConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Voice             string        `yaml:"voice"`
	SystemInstruction string        `yaml:"system_instruction"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
}

// AudioConfig contains capture and playback parameters
type AudioConfig struct {
	// Source is "mic", "tone", or a path to a wav/mp3/flac/ogg file
	Source           string `yaml:"source"`
	Backend          string `yaml:"backend"` // malgo or portaudio
	Device           string `yaml:"device"`
	CaptureRate      int    `yaml:"capture_rate"` // 0 = device native
	BlockSize        int    `yaml:"block_size"`
	PlaybackRate     int    `yaml:"playback_rate"`
	PlaybackChannels int    `yaml:"playback_channels"`
	SendQueue        int    `yaml:"send_queue"`
	Realtime         bool   `yaml:"realtime"`
	Mute             bool   `yaml:"mute"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// HTTPConfig contains the status server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// UIConfig controls the terminal UI
type UIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DiscoveryConfig controls mDNS relay discovery
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Endpoint:         DefaultEndpoint,
			Model:            DefaultModel,
			HandshakeTimeout: 10 * time.Second,
		},
		Audio: AudioConfig{
			Source:           "mic",
			Backend:          "malgo",
			BlockSize:        4096,
			PlaybackRate:     24000,
			PlaybackChannels: 1,
			SendQueue:        64,
			Realtime:         true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		HTTP: HTTPConfig{
			Address: "127.0.0.1:9464",
		},
		UI: UIConfig{
			Enabled: true,
		},
		Discovery: DiscoveryConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads the configuration file over the defaults
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ResolveAPIKey returns the configured key, falling back to the
// environment variables in APIKeyEnvVars order
func (c *Config) ResolveAPIKey(getenv func(string) string) (string, error) {
	if c.Service.APIKey != "" {
		return c.Service.APIKey, nil
	}
	for _, name := range APIKeyEnvVars {
		if v := getenv(name); v != "" {
			return v, nil
		}
	}
	return "", ErrMissingAPIKey
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	return nil
}

// Validate validates service configuration
func (s *ServiceConfig) Validate() error {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint is not a URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}

	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if s.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout cannot be negative, got %s", s.HandshakeTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}

	if a.Backend != "malgo" && a.Backend != "portaudio" {
		return fmt.Errorf("backend must be malgo or portaudio, got %q", a.Backend)
	}

	if a.CaptureRate < 0 {
		return fmt.Errorf("capture_rate cannot be negative, got %d", a.CaptureRate)
	}

	if a.BlockSize < 256 || a.BlockSize > 65536 {
		return fmt.Errorf("block_size must be between 256 and 65536, got %d", a.BlockSize)
	}

	if a.PlaybackRate < 8000 || a.PlaybackRate > 192000 {
		return fmt.Errorf("playback_rate must be between 8000 and 192000 Hz, got %d", a.PlaybackRate)
	}

	if a.PlaybackChannels != 1 && a.PlaybackChannels != 2 {
		return fmt.Errorf("playback_channels must be 1 or 2, got %d", a.PlaybackChannels)
	}

	if a.SendQueue < 1 {
		return fmt.Errorf("send_queue must be at least 1, got %d", a.SendQueue)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("level must be one of trace, debug, info, warn, error, got %q", l.Level)
	}
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled && h.Address == "" {
		return fmt.Errorf("address cannot be empty when HTTP is enabled")
	}
	return nil
}
