// ABOUTME: Capture/playback session for live coaching
// ABOUTME: Owns the block loop, ready-gated sending, inbound routing and ordered shutdown
package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/capture"
	"github.com/harperreed/salescoach/pkg/audio/decode"
	"github.com/harperreed/salescoach/pkg/audio/encode"
	"github.com/harperreed/salescoach/pkg/audio/output"
	"github.com/harperreed/salescoach/pkg/protocol"
)

const (
	// DefaultModel is the live model requested in setup
	DefaultModel = "models/gemini-2.0-flash-live-001"

	// DefaultSuggestionTool is the function the model calls to surface advice
	DefaultSuggestionTool = "suggest"

	// DefaultSystemInstruction primes the model as a sales coach
	DefaultSystemInstruction = "You are a real-time sales coach listening to a salesperson's call. " +
		"When you hear an objection, a buying signal, or a missed opportunity, call the suggest " +
		"function with one short, actionable suggestion. Keep spoken replies brief."
)

var (
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("session already started")

	// ErrStopped is returned when starting a stopped session
	ErrStopped = errors.New("session stopped")
)

// State describes the session lifecycle
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateDisconnected State = "disconnected"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
)

// SuggestionSource tells how a suggestion arrived
type SuggestionSource string

const (
	SuggestionFromText SuggestionSource = "text"
	SuggestionFromTool SuggestionSource = "tool"
)

// Suggestion is one piece of coaching advice
type Suggestion struct {
	Text   string
	Source SuggestionSource
	At     time.Time
}

// Config holds session configuration
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the live service
	Endpoint string

	// APIKey is resolved by the caller and passed in explicitly
	APIKey string

	Model             string
	SystemInstruction string
	Voice             string

	// SuggestionTool is the function name treated as a suggestion
	SuggestionTool string

	// BlockSize is the number of captured frames per block (default: 4096)
	BlockSize int

	// PlaybackSampleRate and PlaybackChannels open the output device and
	// describe inbound audio whose mime type carries no rate (default:
	// 24000 Hz mono). Audio declared at another rate is decoded at that
	// rate; the output converts it to the device rate.
	PlaybackSampleRate int
	PlaybackChannels   int

	// SendQueueSize bounds blocks waiting for the socket (default: 64)
	SendQueueSize int

	// HandshakeTimeout bounds the wait for setupComplete
	HandshakeTimeout time.Duration

	Capture capture.Capture
	Output  output.Output

	Logger zerolog.Logger

	// OnTranscript is called for every transcription fragment
	OnTranscript func(protocol.Transcript)

	// OnSuggestion is called for model text and suggestion tool calls
	OnSuggestion func(Suggestion)

	// OnStateChange is called when the lifecycle state changes
	OnStateChange func(State)

	// OnError is called when background errors occur
	OnError func(error)
}

// Stats is a snapshot of session counters
type Stats struct {
	SessionID        string
	State            State
	CaptureRate      int
	BlocksCaptured   int64
	BlocksSent       int64
	BlocksDropped    int64
	BytesSent        int64
	BuffersDecoded   int64
	BuffersScheduled int64
	DecodeErrors     int64
	StaleChunks      int64
	Interruptions    int64
	ToolCalls        int64
	TurnsCompleted   int64
	ActiveSources    int
}

// Session streams captured audio and plays replies
type Session struct {
	config    Config
	id        string
	logger    zerolog.Logger
	client    *protocol.Client
	capture   capture.Capture
	output    output.Output
	scheduler *Scheduler

	ready atomic.Bool

	blocksCaptured   atomic.Int64
	blocksSent       atomic.Int64
	blocksDropped    atomic.Int64
	bytesSent        atomic.Int64
	buffersDecoded   atomic.Int64
	buffersScheduled atomic.Int64
	decodeErrors     atomic.Int64
	staleChunks      atomic.Int64
	interruptions    atomic.Int64
	toolCalls        atomic.Int64
	turnsCompleted   atomic.Int64

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession creates a session, applying defaults
func NewSession(config Config) (*Session, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Capture == nil {
		return nil, fmt.Errorf("capture is required")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.SystemInstruction == "" {
		config.SystemInstruction = DefaultSystemInstruction
	}
	if config.SuggestionTool == "" {
		config.SuggestionTool = DefaultSuggestionTool
	}
	if config.BlockSize <= 0 {
		config.BlockSize = capture.DefaultBlockSize
	}
	if config.PlaybackSampleRate <= 0 {
		config.PlaybackSampleRate = audio.DefaultPlaybackRate
	}
	if config.PlaybackChannels <= 0 {
		config.PlaybackChannels = audio.DefaultPlaybackChannels
	}
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = protocol.DefaultSendQueueSize
	}
	if config.Output == nil {
		config.Output = output.NewOto(config.Logger)
	}

	id := uuid.NewString()
	logger := config.Logger.With().Str("session_id", id).Logger()

	client := protocol.NewClient(protocol.Config{
		Endpoint:         config.Endpoint,
		APIKey:           config.APIKey,
		Setup:            buildSetup(config),
		SendQueueSize:    config.SendQueueSize,
		HandshakeTimeout: config.HandshakeTimeout,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		config:    config,
		id:        id,
		logger:    logger,
		client:    client,
		capture:   config.Capture,
		output:    config.Output,
		scheduler: NewScheduler(config.Output, logger),
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// buildSetup describes the session to the live service
func buildSetup(config Config) protocol.Setup {
	setup := protocol.Setup{
		Model: config.Model,
		GenerationConfig: &protocol.GenerationConfig{
			ResponseModalities: []string{protocol.ModalityAudio},
		},
		SystemInstruction: &protocol.Content{
			Parts: []protocol.Part{{Text: config.SystemInstruction}},
		},
		Tools: []protocol.Tool{{
			FunctionDeclarations: []protocol.FunctionDeclaration{{
				Name:        config.SuggestionTool,
				Description: "Show one short coaching suggestion to the salesperson.",
				Parameters: &protocol.Schema{
					Type: "OBJECT",
					Properties: map[string]*protocol.Schema{
						"text": {Type: "STRING", Description: "The suggestion, one sentence."},
					},
					Required: []string{"text"},
				},
			}},
		}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}

	if config.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &protocol.SpeechConfig{
			VoiceConfig: protocol.VoiceConfig{
				PrebuiltVoiceConfig: protocol.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}

	return setup
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Start opens playback, starts capture and connects. Blocks captured
// before setup completes are dropped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.setState(StateConnecting)

	if err := s.output.Open(s.config.PlaybackSampleRate, s.config.PlaybackChannels); err != nil {
		s.Stop()
		return fmt.Errorf("failed to open output: %w", err)
	}

	if err := s.capture.Start(s.ctx, s.config.BlockSize, s.handleBlock); err != nil {
		s.Stop()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	if err := s.client.Connect(ctx); err != nil {
		s.Stop()
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.ready.Store(true)
	s.mu.Unlock()
	go s.dispatch()

	s.setState(StateReady)

	s.logger.Info().
		Int("capture_rate", s.capture.SampleRate()).
		Int("block_size", s.config.BlockSize).
		Msg("Session ready")

	return nil
}

// handleBlock encodes one captured block and hands it to the client.
// Runs on the capture goroutine.
func (s *Session) handleBlock(block []float32) {
	s.blocksCaptured.Add(1)

	if !s.ready.Load() {
		s.blocksDropped.Add(1)
		return
	}

	payload := encode.EncodePCM(block, s.capture.SampleRate())
	if err := s.client.SendAudio(payload); err != nil {
		s.blocksDropped.Add(1)
		if errors.Is(err, protocol.ErrQueueFull) {
			s.logger.Debug().Msg("Send queue full, dropping block")
		}
		return
	}

	s.blocksSent.Add(1)
	s.bytesSent.Add(int64(len(payload.Data)))
}

// dispatch routes inbound client traffic in arrival order
func (s *Session) dispatch() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case item := <-s.client.Inbound:
			s.route(item)
		}
	}
}

func (s *Session) route(item protocol.Inbound) {
	switch item.Kind {
	case protocol.InboundAudio:
		if s.client.Stale(item) {
			s.staleChunks.Add(1)
			return
		}
		s.handleAudio(item.Audio)

	case protocol.InboundText:
		s.suggest(Suggestion{Text: item.Text, Source: SuggestionFromText, At: time.Now()})

	case protocol.InboundTranscript:
		if s.config.OnTranscript != nil {
			s.config.OnTranscript(item.Transcript)
		}

	case protocol.InboundToolCall:
		s.handleToolCall(item.ToolCall)

	case protocol.InboundEvent:
		s.handleEvent(item.Event)
	}
}

func (s *Session) handleAudio(payload audio.Payload) {
	rate, ok := protocol.ParseRate(payload.MimeType)
	if !ok {
		rate = s.config.PlaybackSampleRate
	}

	buf, err := decode.DecodeText(s.ctx, payload.Data, rate, s.config.PlaybackChannels)
	if err != nil {
		s.decodeErrors.Add(1)
		s.reportError(fmt.Errorf("failed to decode model audio: %w", err))
		return
	}
	s.buffersDecoded.Add(1)

	if err := s.scheduler.Schedule(buf); err != nil {
		s.reportError(fmt.Errorf("failed to schedule playback: %w", err))
		return
	}
	s.buffersScheduled.Add(1)
}

func (s *Session) handleToolCall(call protocol.FunctionCall) {
	s.toolCalls.Add(1)

	response := protocol.FunctionResponse{ID: call.ID, Name: call.Name}
	if call.Name == s.config.SuggestionTool {
		text, _ := call.Args["text"].(string)
		if text != "" {
			s.suggest(Suggestion{Text: text, Source: SuggestionFromTool, At: time.Now()})
		}
		response.Response = map[string]any{"result": "shown"}
	} else {
		s.logger.Warn().Str("name", call.Name).Msg("Unknown tool call")
		response.Response = map[string]any{"error": "unknown function " + call.Name}
	}

	if err := s.client.SendToolResponse(response); err != nil {
		s.reportError(fmt.Errorf("failed to answer tool call: %w", err))
	}
}

func (s *Session) handleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventInterrupted:
		s.interruptions.Add(1)
		stopped := s.scheduler.StopAll()
		s.logger.Debug().Int("stopped", stopped).Msg("Playback interrupted")

	case protocol.EventTurnComplete:
		s.turnsCompleted.Add(1)

	case protocol.EventGoAway:
		s.logger.Warn().Str("time_left", ev.TimeLeft).Msg("Service will disconnect soon")

	case protocol.EventDisconnected:
		s.ready.Store(false)
		s.setState(StateDisconnected)
		s.reportError(ev.Err)
	}
}

func (s *Session) suggest(sg Suggestion) {
	if s.config.OnSuggestion != nil {
		s.config.OnSuggestion(sg)
	}
}

func (s *Session) reportError(err error) {
	s.logger.Error().Err(err).Msg("Session error")
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(state)
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop shuts the session down: active sources first, then the capture and
// playback devices, then the microphone backend, then the transport.
// Safe to call more than once and before Start.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.setState(StateStopping)
	s.ready.Store(false)

	s.cancel()
	s.wg.Wait()

	var errs []error

	s.scheduler.Close()

	if err := s.capture.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop capture: %w", err))
	}
	if err := s.output.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}

	if err := s.capture.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close capture: %w", err))
	}

	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}

	s.setState(StateStopped)

	s.logger.Info().
		Int64("blocks_sent", s.blocksSent.Load()).
		Int64("blocks_dropped", s.blocksDropped.Load()).
		Msg("Session stopped")

	return errors.Join(errs...)
}

// Stats returns a snapshot of session counters
func (s *Session) Stats() Stats {
	return Stats{
		SessionID:        s.id,
		State:            s.State(),
		CaptureRate:      s.capture.SampleRate(),
		BlocksCaptured:   s.blocksCaptured.Load(),
		BlocksSent:       s.blocksSent.Load(),
		BlocksDropped:    s.blocksDropped.Load(),
		BytesSent:        s.bytesSent.Load(),
		BuffersDecoded:   s.buffersDecoded.Load(),
		BuffersScheduled: s.buffersScheduled.Load(),
		DecodeErrors:     s.decodeErrors.Load(),
		StaleChunks:      s.staleChunks.Load(),
		Interruptions:    s.interruptions.Load(),
		ToolCalls:        s.toolCalls.Load(),
		TurnsCompleted:   s.turnsCompleted.Load(),
		ActiveSources:    s.scheduler.Active(),
	}
}
