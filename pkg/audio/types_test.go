// ABOUTME: Tests for audio types
// ABOUTME: Tests sample quantization and playback buffer helpers
package audio

import (
	"math"
	"testing"
	"time"
)

func TestFloat32ToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"full positive", 1.0, 32767},
		{"full negative", -1.0, -32768},
		{"clamped positive", 1.5, 32767},
		{"clamped negative", -1.5, -32768},
		{"half positive truncates", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"tiny positive truncates to zero", 0.00001, 0},
		{"tiny negative truncates to zero", -0.00001, 0},
		{"nan", float32(math.NaN()), 0},
		{"positive infinity", float32(math.Inf(1)), 0},
		{"negative infinity", float32(math.Inf(-1)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Float32ToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestInt16ToFloat32(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"min", -32768, -1.0},
		{"max", 32767, 32767.0 / 32768.0},
		{"half", 16384, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Int16ToFloat32(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestPCMMimeType(t *testing.T) {
	if got := PCMMimeType(TargetSampleRate); got != "audio/pcm;rate=16000" {
		t.Errorf("expected audio/pcm;rate=16000, got %s", got)
	}
}

func TestNewPlaybackBuffer(t *testing.T) {
	buf := NewPlaybackBuffer(2, 24000, 24000)

	if buf.NumberOfChannels() != 2 {
		t.Errorf("expected 2 channels, got %d", buf.NumberOfChannels())
	}
	if buf.Length() != 24000 {
		t.Errorf("expected 24000 frames, got %d", buf.Length())
	}
	if buf.Duration() != time.Second {
		t.Errorf("expected 1s duration, got %v", buf.Duration())
	}
}

func TestPlaybackBufferEmpty(t *testing.T) {
	buf := &PlaybackBuffer{}
	if buf.Length() != 0 {
		t.Errorf("expected 0 frames, got %d", buf.Length())
	}
	if buf.Duration() != 0 {
		t.Errorf("expected zero duration, got %v", buf.Duration())
	}
	if len(buf.Interleaved()) != 0 {
		t.Error("expected no bytes for empty buffer")
	}
}

func TestPlaybackBufferInterleaved(t *testing.T) {
	buf := &PlaybackBuffer{
		SampleRate: 24000,
		Channels: [][]float32{
			{0, -1},
			{1, 0.5},
		},
	}

	out := buf.Interleaved()
	if len(out) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(out))
	}

	expected := []int16{0, 32767, -32768, 16383}
	for i, want := range expected {
		got := int16(uint16(out[i*2]) | uint16(out[i*2+1])<<8)
		if got != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, got)
		}
	}
}
