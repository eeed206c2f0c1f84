// ABOUTME: Live protocol message type definitions
// ABOUTME: Client setup, realtime input, tool responses and server content
package protocol

import (
	"mime"
	"strconv"
	"strings"

	"github.com/harperreed/salescoach/pkg/audio"
)

// Response modalities
const (
	ModalityAudio = "AUDIO"
	ModalityText  = "TEXT"
)

// ClientMessage is the top-level wrapper for client to server messages.
// Exactly one field is set.
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// Setup is the first message on a connection
type Setup struct {
	Model                    string            `json:"model"`
	GenerationConfig         *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *Content          `json:"systemInstruction,omitempty"`
	Tools                    []Tool            `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

// GenerationConfig selects output modalities and voice
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects a voice
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

// VoiceConfig wraps a prebuilt voice
type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

// PrebuiltVoiceConfig names a hosted voice
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// Content is a sequence of parts
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part carries either text or inline media
type Part struct {
	Text       string         `json:"text,omitempty"`
	InlineData *audio.Payload `json:"inlineData,omitempty"`
}

// Tool declares functions the model may call
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// FunctionDeclaration describes one callable function
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the subset of JSON schema used for parameters
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// RealtimeInput streams media chunks
type RealtimeInput struct {
	MediaChunks []audio.Payload `json:"mediaChunks"`
}

// ToolResponse answers one or more function calls
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// FunctionResponse is the result of a function call
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ServerMessage is the top-level wrapper for server to client messages
type ServerMessage struct {
	SetupComplete        *struct{}             `json:"setupComplete,omitempty"`
	ServerContent        *ServerContent        `json:"serverContent,omitempty"`
	ToolCall             *ToolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation,omitempty"`
	GoAway               *GoAway               `json:"goAway,omitempty"`
}

// ServerContent is incremental model output
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is a fragment of recognized speech
type Transcription struct {
	Text string `json:"text"`
}

// ToolCall requests function calls
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionCall is one requested call
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolCallCancellation withdraws earlier calls
type ToolCallCancellation struct {
	IDs []string `json:"ids"`
}

// GoAway warns that the server will disconnect
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// TranscriptSource tells whose speech a transcript belongs to
type TranscriptSource string

const (
	// TranscriptInput is the local speaker
	TranscriptInput TranscriptSource = "input"
	// TranscriptOutput is the model's spoken reply
	TranscriptOutput TranscriptSource = "output"
)

// Transcript is a routed transcription fragment
type Transcript struct {
	Source TranscriptSource
	Text   string
}

// EventType enumerates turn and connection events
type EventType string

const (
	EventTurnComplete       EventType = "turn_complete"
	EventGenerationComplete EventType = "generation_complete"
	EventInterrupted        EventType = "interrupted"
	EventGoAway             EventType = "go_away"
	EventDisconnected       EventType = "disconnected"
)

// Event is a routed turn or connection event
type Event struct {
	Type     EventType
	TimeLeft string
	Err      error
}

// InboundKind tags what an Inbound item carries
type InboundKind string

const (
	InboundAudio      InboundKind = "audio"
	InboundText       InboundKind = "text"
	InboundTranscript InboundKind = "transcript"
	InboundToolCall   InboundKind = "tool_call"
	InboundEvent      InboundKind = "event"
)

// Inbound is one routed server item. Items arrive on a single channel in
// the order the server sent them; only the field named by Kind is set.
type Inbound struct {
	Kind       InboundKind
	Audio      audio.Payload
	Text       string
	Transcript Transcript
	ToolCall   FunctionCall
	Event      Event

	// epoch is the number of interruptions seen when audio was received
	epoch uint64
}

// ParseRate extracts the rate parameter from a mime type such as
// "audio/pcm;rate=24000". ok is false when absent or invalid.
func ParseRate(mimeType string) (rate int, ok bool) {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, false
	}
	v, found := params["rate"]
	if !found {
		return 0, false
	}
	rate, err = strconv.Atoi(v)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// IsAudio reports whether the mime type is an audio type
func IsAudio(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/")
}
