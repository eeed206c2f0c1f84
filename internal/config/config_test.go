package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if config.Audio.BlockSize != 4096 || config.Audio.PlaybackRate != 24000 || config.Audio.PlaybackChannels != 1 {
		t.Errorf("audio defaults = %+v", config.Audio)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(c *Config)
		errorMsg string
	}{
		{
			name:     "http endpoint",
			modify:   func(c *Config) { c.Service.Endpoint = "https://example.com" },
			errorMsg: "endpoint scheme must be ws or wss",
		},
		{
			name:     "empty model",
			modify:   func(c *Config) { c.Service.Model = "" },
			errorMsg: "model cannot be empty",
		},
		{
			name:     "block size too small",
			modify:   func(c *Config) { c.Audio.BlockSize = 16 },
			errorMsg: "block_size must be between",
		},
		{
			name:     "bad backend",
			modify:   func(c *Config) { c.Audio.Backend = "alsa" },
			errorMsg: "backend must be malgo or portaudio",
		},
		{
			name:     "three playback channels",
			modify:   func(c *Config) { c.Audio.PlaybackChannels = 3 },
			errorMsg: "playback_channels must be 1 or 2",
		},
		{
			name:     "zero send queue",
			modify:   func(c *Config) { c.Audio.SendQueue = 0 },
			errorMsg: "send_queue must be at least 1",
		},
		{
			name:     "bad log level",
			modify:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level must be one of",
		},
		{
			name: "http enabled without address",
			modify: func(c *Config) {
				c.HTTP.Enabled = true
				c.HTTP.Address = ""
			},
			errorMsg: "address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(&config)

			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.errorMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.yaml")
	content := `
service:
  endpoint: ws://127.0.0.1:8930/live
  model: models/test
  handshake_timeout: 3s
audio:
  source: tone
  block_size: 2048
logging:
  level: debug
http:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Service.Endpoint != "ws://127.0.0.1:8930/live" || config.Service.Model != "models/test" {
		t.Errorf("service = %+v", config.Service)
	}
	if config.Service.HandshakeTimeout != 3*time.Second {
		t.Errorf("handshake timeout = %v, want 3s", config.Service.HandshakeTimeout)
	}
	if config.Audio.Source != "tone" || config.Audio.BlockSize != 2048 {
		t.Errorf("audio = %+v", config.Audio)
	}
	// unset keys keep their defaults
	if config.Audio.PlaybackRate != 24000 || config.HTTP.Address != "127.0.0.1:9464" {
		t.Errorf("defaults lost: %+v %+v", config.Audio, config.HTTP)
	}
	if !config.HTTP.Enabled || config.Logging.Level != "debug" {
		t.Errorf("overrides lost: %+v %+v", config.HTTP, config.Logging)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("service: [unclosed"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("audio:\n  block_size: 1\n"), 0644)
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("error = %v, want validation failure", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		env     map[string]string
		want    string
		wantErr error
	}{
		{
			name:   "config wins",
			config: "from-config",
			env:    map[string]string{"COACH_API_KEY": "from-env"},
			want:   "from-config",
		},
		{
			name: "first env var wins",
			env:  map[string]string{"GEMINI_API_KEY": "gemini", "API_KEY": "generic"},
			want: "gemini",
		},
		{
			name: "last fallback",
			env:  map[string]string{"API_KEY": "generic"},
			want: "generic",
		},
		{
			name:    "missing",
			env:     map[string]string{},
			wantErr: ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			config.Service.APIKey = tt.config

			got, err := config.ResolveAPIKey(func(k string) string { return tt.env[k] })
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}
