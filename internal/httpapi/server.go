// ABOUTME: HTTP status API for a running coaching session
// ABOUTME: Serves health, Prometheus metrics and JSON stats over chi
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/internal/version"
	"github.com/harperreed/salescoach/pkg/coach"
)

// Config holds status server configuration
type Config struct {
	Address string

	// Stats returns the current session snapshot
	Stats func() coach.Stats

	// Metrics serves /metrics when set
	Metrics http.Handler

	Logger zerolog.Logger
}

// Server serves the status API
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
}

// New builds the router
func New(config Config) *Server {
	s := &Server{config: config}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	if config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", config.Metrics)
	}

	s.router = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	s.config.Logger.Info().Str("address", listener.Addr().String()).Msg("Status API listening")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("status API error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

type statusResponse struct {
	SessionID        string `json:"session_id"`
	State            string `json:"state"`
	CaptureRate      int    `json:"capture_rate"`
	BlocksCaptured   int64  `json:"blocks_captured"`
	BlocksSent       int64  `json:"blocks_sent"`
	BlocksDropped    int64  `json:"blocks_dropped"`
	BytesSent        int64  `json:"bytes_sent"`
	BuffersDecoded   int64  `json:"buffers_decoded"`
	BuffersScheduled int64  `json:"buffers_scheduled"`
	DecodeErrors     int64  `json:"decode_errors"`
	StaleChunks      int64  `json:"stale_chunks"`
	Interruptions    int64  `json:"interruptions"`
	ToolCalls        int64  `json:"tool_calls"`
	TurnsCompleted   int64  `json:"turns_completed"`
	ActiveSources    int    `json:"active_sources"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if s.config.Stats == nil {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}

	st := s.config.Stats()
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:        st.SessionID,
		State:            string(st.State),
		CaptureRate:      st.CaptureRate,
		BlocksCaptured:   st.BlocksCaptured,
		BlocksSent:       st.BlocksSent,
		BlocksDropped:    st.BlocksDropped,
		BytesSent:        st.BytesSent,
		BuffersDecoded:   st.BuffersDecoded,
		BuffersScheduled: st.BuffersScheduled,
		DecodeErrors:     st.DecodeErrors,
		StaleChunks:      st.StaleChunks,
		Interruptions:    st.Interruptions,
		ToolCalls:        st.ToolCalls,
		TurnsCompleted:   st.TurnsCompleted,
		ActiveSources:    st.ActiveSources,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.config.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
