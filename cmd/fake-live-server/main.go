// ABOUTME: Entry point for the local fake live speech server
// ABOUTME: Parses CLI flags and serves scripted coaching turns for offline testing
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/salescoach/internal/fakelive"
	"github.com/harperreed/salescoach/internal/logging"
)

var (
	port       = flag.Int("port", 8765, "WebSocket server port")
	path       = flag.String("path", "/live", "WebSocket path")
	name       = flag.String("name", "", "Server friendly name (default: hostname-fake-live)")
	apiKey     = flag.String("api-key", "", "Require this key in the key query parameter")
	turnChunks = flag.Int("turn-chunks", fakelive.DefaultTurnChunks, "Audio chunks per caller turn")
	replyMs    = flag.Int("reply-ms", 500, "Length of the spoken reply in milliseconds")
	replyRate  = flag.Int("reply-rate", 24000, "Sample rate of reply audio")
	interrupt  = flag.Bool("interrupt", false, "Send an interrupted event after every reply")
	logFile    = flag.String("log-file", "fake-live-server.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}

	// Log to both file and stderr
	logger, closer, err := logging.New(logging.Config{
		Level:   level,
		File:    *logFile,
		Console: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	// Determine server name
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-fake-live", hostname)
	}

	logger.Info().
		Str("name", serverName).
		Int("port", *port).
		Str("log_file", *logFile).
		Msg("Starting fake live server, press Ctrl-C to stop")

	srv := fakelive.New(fakelive.Config{
		Port:          *port,
		Path:          *path,
		Name:          serverName,
		APIKey:        *apiKey,
		TurnChunks:    *turnChunks,
		ReplyDuration: time.Duration(*replyMs) * time.Millisecond,
		ReplyRate:     *replyRate,
		Interrupt:     *interrupt,
		EnableMDNS:    !*noMDNS,
		Logger:        logger,
	})

	// Handle shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}

	st := srv.Stats()
	logger.Info().
		Int64("connections", st.Connections).
		Int64("chunks", st.Chunks).
		Int64("turns", st.Turns).
		Msg("Server stopped")
}
