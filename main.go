// ABOUTME: Entry point for the sales coach client
// ABOUTME: Parses CLI flags, wires capture and playback, runs the live session
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/internal/config"
	"github.com/harperreed/salescoach/internal/discovery"
	"github.com/harperreed/salescoach/internal/httpapi"
	"github.com/harperreed/salescoach/internal/logging"
	"github.com/harperreed/salescoach/internal/metrics"
	"github.com/harperreed/salescoach/internal/ui"
	"github.com/harperreed/salescoach/internal/version"
	"github.com/harperreed/salescoach/pkg/audio/capture"
	"github.com/harperreed/salescoach/pkg/audio/output"
	"github.com/harperreed/salescoach/pkg/coach"
	"github.com/harperreed/salescoach/pkg/protocol"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	endpoint    = flag.String("endpoint", "", "Live service WebSocket URL")
	model       = flag.String("model", "", "Live model name")
	source      = flag.String("source", "", "Audio source: mic, tone, or a wav/mp3/flac/ogg file")
	backend     = flag.String("backend", "", "Microphone backend: malgo or portaudio")
	device      = flag.String("device", "", "Input device name (portaudio only)")
	blockSize   = flag.Int("block-size", 0, "Frames per captured block")
	realtime    = flag.Bool("realtime", true, "Pace file and tone sources in real time")
	mute        = flag.Bool("mute", false, "Discard model audio instead of playing it")
	discover    = flag.Bool("discover", false, "Find a relay on the LAN via mDNS")
	metricsAddr = flag.String("metrics-addr", "", "Serve /healthz, /status and /metrics on this address")
	logFile     = flag.String("log-file", "", "Log file path (default: platform log dir)")
	logLevel    = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	useTUI := cfg.UI.Enabled

	// TUI mode: log only to file
	var console io.Writer = os.Stderr
	if useTUI {
		console = nil
	}
	logger, closer, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	if err := run(cfg, logger, useTUI); err != nil {
		logger.Error().Err(err).Msg("Sales coach exited with error")
		if useTUI {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig layers explicitly set flags over the config file or defaults
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = logging.DefaultLogPath("salescoach")
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "endpoint":
			cfg.Service.Endpoint = *endpoint
		case "model":
			cfg.Service.Model = *model
		case "source":
			cfg.Audio.Source = *source
		case "backend":
			cfg.Audio.Backend = *backend
		case "device":
			cfg.Audio.Device = *device
		case "block-size":
			cfg.Audio.BlockSize = *blockSize
		case "realtime":
			cfg.Audio.Realtime = *realtime
		case "mute":
			cfg.Audio.Mute = *mute
		case "discover":
			cfg.Discovery.Enabled = *discover
		case "metrics-addr":
			cfg.HTTP.Enabled = *metricsAddr != ""
			cfg.HTTP.Address = *metricsAddr
		case "log-file":
			cfg.Logging.File = *logFile
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "no-tui":
			cfg.UI.Enabled = !*noTUI
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(cfg *config.Config, logger zerolog.Logger, useTUI bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", version.Version).Str("source", cfg.Audio.Source).Msg("Starting Sales Coach")

	if cfg.Discovery.Enabled {
		disc := discovery.NewManager(discovery.Config{Logger: logger})
		discoverCtx, cancel := context.WithTimeout(ctx, cfg.Discovery.Timeout)
		server, err := disc.Discover(discoverCtx)
		cancel()
		if err != nil {
			return err
		}
		cfg.Service.Endpoint = server.Endpoint()
		logger.Info().Str("relay", server.Name).Str("endpoint", cfg.Service.Endpoint).Msg("Discovered relay")
	}

	apiKey, err := cfg.ResolveAPIKey(os.Getenv)
	if err != nil {
		return fmt.Errorf("%w: set api_key or one of %v", err, config.APIKeyEnvVars)
	}

	if u, err := url.Parse(cfg.Service.Endpoint); err == nil && u.Scheme == "ws" {
		logger.Warn().Str("endpoint", cfg.Service.Endpoint).Msg("Endpoint is not encrypted; the API key travels in cleartext")
	}

	src, err := newCapture(cfg, logger)
	if err != nil {
		return err
	}

	var out output.Output
	if cfg.Audio.Mute {
		out = output.NewDiscard()
	}

	// Helper to update TUI
	var tuiProg *tea.Program
	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	sessionConfig := coach.Config{
		Endpoint:           cfg.Service.Endpoint,
		APIKey:             apiKey,
		Model:              cfg.Service.Model,
		SystemInstruction:  cfg.Service.SystemInstruction,
		Voice:              cfg.Service.Voice,
		BlockSize:          cfg.Audio.BlockSize,
		PlaybackSampleRate: cfg.Audio.PlaybackRate,
		PlaybackChannels:   cfg.Audio.PlaybackChannels,
		SendQueueSize:      cfg.Audio.SendQueue,
		HandshakeTimeout:   cfg.Service.HandshakeTimeout,
		Capture:            src,
		Output:             out,
		Logger:             logger,
	}

	if useTUI {
		sessionConfig.OnTranscript, sessionConfig.OnSuggestion, sessionConfig.OnStateChange, sessionConfig.OnError = ui.Hooks(updateTUI)
	} else {
		sessionConfig.OnTranscript = func(t protocol.Transcript) {
			logger.Info().Str("speaker", string(t.Source)).Msg(t.Text)
		}
		sessionConfig.OnSuggestion = func(sg coach.Suggestion) {
			logger.Info().Str("source", string(sg.Source)).Msg("Suggestion: " + sg.Text)
		}
		sessionConfig.OnError = func(err error) {
			logger.Error().Err(err).Msg("Session error")
		}
	}

	session, err := coach.NewSession(sessionConfig)
	if err != nil {
		_ = src.Close()
		return err
	}

	if useTUI {
		tuiProg = ui.Run(session.ID(), cfg.Service.Endpoint)
	}

	if cfg.HTTP.Enabled {
		api := httpapi.New(httpapi.Config{
			Address: cfg.HTTP.Address,
			Stats:   session.Stats,
			Metrics: metrics.New(session.Stats).Handler(),
			Logger:  logger,
		})
		go func() {
			if err := api.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("Status API failed")
			}
		}()
	}

	// The program must be running before session callbacks send to it
	tuiDone := make(chan struct{})
	if tuiProg != nil {
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				logger.Error().Err(err).Msg("TUI failed")
			}
			stop()
		}()
	} else {
		close(tuiDone)
	}

	if err := session.Start(ctx); err != nil {
		if tuiProg != nil {
			tuiProg.Quit()
			<-tuiDone
		}
		return err
	}

	if tuiProg != nil {
		go ui.PollStats(ctx, tuiProg, session.Stats, 500*time.Millisecond)
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	stopErr := session.Stop()
	if tuiProg != nil {
		tuiProg.Quit()
		<-tuiDone
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop session: %w", stopErr)
	}

	st := session.Stats()
	logger.Info().
		Int64("blocks_sent", st.BlocksSent).
		Int64("blocks_dropped", st.BlocksDropped).
		Int64("buffers_scheduled", st.BuffersScheduled).
		Msg("Session stopped")
	return nil
}

// newCapture builds the configured audio source
func newCapture(cfg *config.Config, logger zerolog.Logger) (capture.Capture, error) {
	switch cfg.Audio.Source {
	case "mic":
		if cfg.Audio.Backend == "portaudio" {
			return capture.NewPortAudio(cfg.Audio.Device, logger)
		}
		return capture.NewMalgo(capture.MalgoConfig{
			SampleRate: cfg.Audio.CaptureRate,
			Logger:     logger,
		}), nil
	case "tone":
		return capture.NewTone(capture.ToneConfig{
			SampleRate: cfg.Audio.CaptureRate,
			Realtime:   cfg.Audio.Realtime,
		}), nil
	default:
		f, err := capture.NewFile(capture.FileConfig{
			Path:     cfg.Audio.Source,
			Realtime: cfg.Audio.Realtime,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
