// ABOUTME: WebSocket client for the live speech protocol
// ABOUTME: Handles connection, setup handshake, send queue and message routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
)

const (
	// DefaultSendQueueSize bounds outbound messages waiting for the writer
	DefaultSendQueueSize = 64

	// DefaultInboundQueueSize bounds routed items waiting for the consumer
	DefaultInboundQueueSize = 256

	// DefaultHandshakeTimeout bounds the wait for setupComplete
	DefaultHandshakeTimeout = 10 * time.Second

	closeTimeout = time.Second
)

var (
	// ErrNotConnected is returned when sending before setup completes or after Close
	ErrNotConnected = errors.New("not connected")

	// ErrQueueFull is returned when the send queue has no room
	ErrQueueFull = errors.New("send queue full")
)

// Config holds client configuration
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the live service
	Endpoint string

	// APIKey is appended as the key query parameter when set
	APIKey string

	// Setup is sent as the first message
	Setup Setup

	SendQueueSize    int
	HandshakeTimeout time.Duration

	Logger zerolog.Logger
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Inbound carries every routed server item in arrival order
	Inbound chan Inbound

	sendQueue chan ClientMessage

	// interrupts counts interrupted markers; audio received under an
	// older count belongs to a cut-off turn
	interrupts atomic.Uint64

	// State
	connected bool
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = DefaultSendQueueSize
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:    config,
		Inbound:   make(chan Inbound, DefaultInboundQueueSize),
		sendQueue: make(chan ClientMessage, config.SendQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect establishes the WebSocket connection and performs the setup handshake
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	u, err := c.dialURL()
	if err != nil {
		return err
	}
	c.config.Logger.Info().Str("endpoint", c.config.Endpoint).Msg("Connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readMessages()
	go c.writeMessages()

	return nil
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid endpoint scheme %q (want ws or wss)", u.Scheme)
	}
	if c.config.APIKey != "" {
		q := u.Query()
		q.Set("key", c.config.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// handshake sends setup and waits for setupComplete
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	setup := c.config.Setup
	if err := conn.WriteJSON(ClientMessage{Setup: &setup}); err != nil {
		return fmt.Errorf("failed to send setup: %w", err)
	}

	deadline := time.Now().Add(c.config.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read setupComplete: %w", err)
	}
	conn.SetReadDeadline(time.Time{}) // Clear deadline

	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse setupComplete: %w", err)
	}
	if msg.SetupComplete == nil {
		return fmt.Errorf("expected setupComplete, got %s", truncate(data, 120))
	}

	c.config.Logger.Info().Str("model", setup.Model).Msg("Setup complete")
	return nil
}

// enqueue hands a message to the writer without blocking
func (c *Client) enqueue(msg ClientMessage) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	select {
	case c.sendQueue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// SendAudio queues one realtime input chunk
func (c *Client) SendAudio(payload audio.Payload) error {
	return c.enqueue(ClientMessage{
		RealtimeInput: &RealtimeInput{MediaChunks: []audio.Payload{payload}},
	})
}

// SendToolResponse queues replies to function calls
func (c *Client) SendToolResponse(responses ...FunctionResponse) error {
	return c.enqueue(ClientMessage{
		ToolResponse: &ToolResponse{FunctionResponses: responses},
	})
}

// writeMessages is the only writer of data frames, preserving queue order
func (c *Client) writeMessages() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.sendQueue:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.config.Logger.Warn().Err(err).Msg("Write error")
				c.disconnect(fmt.Errorf("write failed: %w", err))
				return
			}
		}
	}
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.wg.Done()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.config.Logger.Warn().Err(err).Msg("Read error")
				c.disconnect(fmt.Errorf("read failed: %w", err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			c.handleMessage(data)
		default:
			c.config.Logger.Debug().Int("type", messageType).Msg("Unknown WebSocket message type")
		}
	}
}

// handleMessage routes a JSON server message
func (c *Client) handleMessage(data []byte) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.config.Logger.Warn().Err(err).Msg("Failed to parse server message")
		return
	}

	if msg.SetupComplete != nil {
		c.config.Logger.Debug().Msg("Duplicate setupComplete ignored")
	}

	if sc := msg.ServerContent; sc != nil {
		c.handleServerContent(sc)
	}

	if msg.ToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			c.config.Logger.Debug().Str("name", call.Name).Str("id", call.ID).Msg("Tool call")
			if !c.emit(Inbound{Kind: InboundToolCall, ToolCall: call}) {
				return
			}
		}
	}

	if msg.ToolCallCancellation != nil {
		c.config.Logger.Debug().Strs("ids", msg.ToolCallCancellation.IDs).Msg("Tool calls cancelled")
	}

	if msg.GoAway != nil {
		c.config.Logger.Warn().Str("time_left", msg.GoAway.TimeLeft).Msg("Server going away")
		c.emitEvent(Event{Type: EventGoAway, TimeLeft: msg.GoAway.TimeLeft})
	}
}

func (c *Client) handleServerContent(sc *ServerContent) {
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		c.emit(Inbound{Kind: InboundTranscript, Transcript: Transcript{Source: TranscriptInput, Text: sc.InputTranscription.Text}})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		c.emit(Inbound{Kind: InboundTranscript, Transcript: Transcript{Source: TranscriptOutput, Text: sc.OutputTranscription.Text}})
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && IsAudio(part.InlineData.MimeType) {
				item := Inbound{Kind: InboundAudio, Audio: *part.InlineData, epoch: c.interrupts.Load()}
				if !c.emit(item) {
					return
				}
			}
			if part.Text != "" {
				if !c.emit(Inbound{Kind: InboundText, Text: part.Text}) {
					return
				}
			}
		}
	}

	if sc.Interrupted {
		// Audio still queued ahead of this marker is now stale
		c.interrupts.Add(1)
		c.config.Logger.Debug().Int("queued", len(c.Inbound)).Msg("Model output interrupted")
		c.emitEvent(Event{Type: EventInterrupted})
	}
	if sc.GenerationComplete {
		c.emitEvent(Event{Type: EventGenerationComplete})
	}
	if sc.TurnComplete {
		c.emitEvent(Event{Type: EventTurnComplete})
	}
}

// Stale reports whether item is audio from a turn that was interrupted
// after it was received. Consumers skip stale audio.
func (c *Client) Stale(item Inbound) bool {
	return item.Kind == InboundAudio && item.epoch < c.interrupts.Load()
}

// emit blocks until the consumer has room; false once the client shuts down
func (c *Client) emit(item Inbound) bool {
	select {
	case c.Inbound <- item:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) emitEvent(e Event) {
	c.emit(Inbound{Kind: InboundEvent, Event: e})
}

// disconnect tears down after a transport failure and reports it once
func (c *Client) disconnect(err error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.mu.Unlock()

	select {
	case c.Inbound <- Inbound{Kind: InboundEvent, Event: Event{Type: EventDisconnected, Err: err}}:
	default:
		c.config.Logger.Warn().Err(err).Msg("Inbound channel full, disconnect not reported")
	}
	c.cancel()
	c.conn.Close()
}

// Close closes the connection; safe to call more than once
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.connected
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.cancel()

	var err error
	if conn != nil && wasConnected {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		err = conn.Close()
	}
	c.wg.Wait()

	c.config.Logger.Info().Msg("Connection closed")
	return err
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
