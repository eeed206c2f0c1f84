// ABOUTME: Local stand-in for the hosted live speech service
// ABOUTME: Speaks the live protocol, counts audio and answers with scripted turns
package fakelive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/internal/discovery"
	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/decode"
	"github.com/harperreed/salescoach/pkg/protocol"
)

const (
	// DefaultTurnChunks is how many audio chunks make one caller turn
	DefaultTurnChunks = 8

	// DefaultReplyDuration is the length of the spoken reply tone
	DefaultReplyDuration = 500 * time.Millisecond

	replyFrequency = 330.0
	replyAmplitude = 0.3
)

// DefaultSuggestions are rotated through on each turn
var DefaultSuggestions = []string{
	"Ask what success looks like for them this quarter.",
	"Acknowledge the price concern, then anchor on ROI.",
	"Confirm who else is involved in the decision.",
	"Summarize the pain points before proposing next steps.",
}

// Config holds server configuration
type Config struct {
	Port int
	Path string
	Name string

	// APIKey, when set, must match the key query parameter
	APIKey string

	TurnChunks    int
	ReplyDuration time.Duration
	ReplyRate     int
	Suggestions   []string

	// Interrupt sends an interrupted event after each reply
	Interrupt bool

	EnableMDNS bool
	Logger     zerolog.Logger
}

// Stats counts traffic across all connections
type Stats struct {
	Connections   int64
	Chunks        int64
	Samples       int64
	Turns         int64
	ToolResponses int64
	LastRMS       float64
}

// Server implements the live protocol over WebSocket
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	httpServer  *http.Server
	mdnsManager *discovery.Manager

	connections   atomic.Int64
	chunks        atomic.Int64
	samples       atomic.Int64
	turns         atomic.Int64
	toolResponses atomic.Int64
	lastRMS       atomic.Uint64

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	wg sync.WaitGroup
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.Name == "" {
		config.Name = "salescoach-fake-live"
	}
	if config.TurnChunks <= 0 {
		config.TurnChunks = DefaultTurnChunks
	}
	if config.ReplyDuration <= 0 {
		config.ReplyDuration = DefaultReplyDuration
	}
	if config.ReplyRate <= 0 {
		config.ReplyRate = audio.DefaultPlaybackRate
	}
	if len(config.Suggestions) == 0 {
		config.Suggestions = DefaultSuggestions
	}

	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// Local development relay; browsers and CLI clients alike
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:   http.NewServeMux(),
		conns: make(map[*websocket.Conn]struct{}),
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the live endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Path:        s.config.Path,
			Logger:      s.config.Logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.config.Logger.Warn().Err(err).Msg("Failed to start mDNS advertisement")
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.config.Logger.Info().Int("port", port).Str("path", s.config.Path).Msg("Fake live server listening")

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
			return fmt.Errorf("server error: %w", err)
		}
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.httpServer.Shutdown(shutdownCtx)

	// Shutdown does not track hijacked connections
	s.CloseConnections()
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// CloseConnections drops every open client connection
func (s *Server) CloseConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Stats returns a snapshot of traffic counters
func (s *Server) Stats() Stats {
	return Stats{
		Connections:   s.connections.Load(),
		Chunks:        s.chunks.Load(),
		Samples:       s.samples.Load(),
		Turns:         s.turns.Load(),
		ToolResponses: s.toolResponses.Load(),
		LastRMS:       math.Float64frombits(s.lastRMS.Load()),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.APIKey != "" && r.URL.Query().Get("key") != s.config.APIKey {
		http.Error(w, "invalid API key", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.connections.Add(1)

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	c := &connection{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
	}
	c.logger = s.config.Logger.With().Str("conn_id", c.id).Logger()
	c.serve()
}

// connection is one client session; all writes happen on its read goroutine
type connection struct {
	id     string
	server *Server
	conn   *websocket.Conn
	logger zerolog.Logger

	chunksInTurn  int
	secondsInTurn float64
	turn          int
}

func (c *connection) serve() {
	defer c.conn.Close()

	var first protocol.ClientMessage
	if err := c.conn.ReadJSON(&first); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to read setup")
		return
	}
	if first.Setup == nil {
		c.logger.Warn().Msg("First message was not setup")
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "setup required"))
		return
	}
	c.logger.Info().Str("model", first.Setup.Model).Msg("Client setup")

	if err := c.send(protocol.ServerMessage{SetupComplete: &struct{}{}}); err != nil {
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Msg("Connection closed")
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse client message")
			continue
		}

		switch {
		case msg.RealtimeInput != nil:
			if err := c.handleRealtimeInput(msg.RealtimeInput); err != nil {
				return
			}
		case msg.ToolResponse != nil:
			c.server.toolResponses.Add(int64(len(msg.ToolResponse.FunctionResponses)))
		case msg.Setup != nil:
			c.logger.Warn().Msg("Duplicate setup ignored")
		}
	}
}

func (c *connection) handleRealtimeInput(input *protocol.RealtimeInput) error {
	for _, chunk := range input.MediaChunks {
		rate, ok := protocol.ParseRate(chunk.MimeType)
		if !ok {
			rate = audio.TargetSampleRate
		}

		buf, err := decode.DecodeText(context.Background(), chunk.Data, rate, 1)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Invalid audio chunk")
			continue
		}

		c.server.chunks.Add(1)
		c.server.samples.Add(int64(buf.Length()))
		c.server.lastRMS.Store(math.Float64bits(rms(buf.ChannelData(0))))

		c.chunksInTurn++
		c.secondsInTurn += buf.Duration().Seconds()
		if c.chunksInTurn >= c.server.config.TurnChunks {
			if err := c.reply(); err != nil {
				return err
			}
		}
	}
	return nil
}

// reply plays out one scripted model turn
func (c *connection) reply() error {
	cfg := c.server.config
	suggestion := cfg.Suggestions[c.turn%len(cfg.Suggestions)]
	c.turn++
	c.server.turns.Add(1)

	heard := c.secondsInTurn
	c.chunksInTurn = 0
	c.secondsInTurn = 0

	messages := []protocol.ServerMessage{
		{ServerContent: &protocol.ServerContent{
			InputTranscription: &protocol.Transcription{Text: fmt.Sprintf("[turn %d: %.1fs of audio]", c.turn, heard)},
		}},
		{ToolCall: &protocol.ToolCall{FunctionCalls: []protocol.FunctionCall{{
			ID:   uuid.NewString(),
			Name: "suggest",
			Args: map[string]any{"text": suggestion},
		}}}},
		{ServerContent: &protocol.ServerContent{
			ModelTurn: &protocol.Content{Parts: []protocol.Part{{
				InlineData: replyAudio(cfg.ReplyRate, cfg.ReplyDuration),
			}}},
			OutputTranscription: &protocol.Transcription{Text: suggestion},
		}},
	}
	if cfg.Interrupt {
		messages = append(messages, protocol.ServerMessage{
			ServerContent: &protocol.ServerContent{Interrupted: true},
		})
	}
	messages = append(messages, protocol.ServerMessage{
		ServerContent: &protocol.ServerContent{TurnComplete: true},
	})

	for _, msg := range messages {
		if err := c.send(msg); err != nil {
			return err
		}
	}

	c.logger.Debug().Int("turn", c.turn).Str("suggestion", suggestion).Msg("Sent reply")
	return nil
}

func (c *connection) send(msg protocol.ServerMessage) error {
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Msg("Write failed")
		return err
	}
	return nil
}

// replyAudio renders a short tone as base64 PCM
func replyAudio(rate int, duration time.Duration) *audio.Payload {
	frames := int(duration.Seconds() * float64(rate))
	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(rate)
		v := audio.Float32ToInt16(float32(replyAmplitude * math.Sin(2*math.Pi*replyFrequency*t)))
		data[i*2] = byte(v)
		data[i*2+1] = byte(uint16(v) >> 8)
	}
	return &audio.Payload{
		Data:     audio.BytesToText(data),
		MimeType: audio.PCMMimeType(rate),
	}
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
