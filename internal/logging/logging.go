// ABOUTME: Zerolog setup for the client and fake server
// ABOUTME: Console output plus an optional JSON log file
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log output
type Config struct {
	// Level is a zerolog level name (debug, info, warn, error)
	Level string

	// File, when set, receives JSON logs
	File string

	// Console receives human-readable logs; nil disables console output
	Console io.Writer
}

// New creates a logger; the returned closer releases the log file
func New(config Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if config.Level != "" {
		parsed, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level = parsed
	}

	var writers []io.Writer
	if config.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: config.Console, TimeFormat: time.RFC3339})
	}

	var closer io.Closer = nopCloser{}
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// DefaultLogPath returns the platform-specific log file path
func DefaultLogPath(app string) string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Logs")
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".local", "state")
		}
	}

	return filepath.Join(base, app, app+".log")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
