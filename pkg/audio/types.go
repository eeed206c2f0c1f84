// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, wire payloads and playback buffers
package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	// TargetSampleRate is the rate every outbound chunk is downsampled to
	TargetSampleRate = 16000

	// DefaultPlaybackRate is the assumed rate of audio returned by the service
	DefaultPlaybackRate = 24000

	// DefaultPlaybackChannels is the assumed channel count of returned audio
	DefaultPlaybackChannels = 1

	// 16-bit quantization scales. Negative samples use the full 2^15 range.
	NegativeScale = 32768.0
	PositiveScale = 32767.0
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Payload is one encoded chunk crossing the boundary to the speech service
type Payload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// PCMMimeType returns the mime tag for raw 16-bit PCM at the given rate
func PCMMimeType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// PlaybackBuffer holds decoded audio as independent float channels
type PlaybackBuffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewPlaybackBuffer allocates a zeroed buffer with the given shape
func NewPlaybackBuffer(channels, frames, sampleRate int) *PlaybackBuffer {
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	return &PlaybackBuffer{
		SampleRate: sampleRate,
		Channels:   data,
	}
}

// NumberOfChannels returns the channel count
func (b *PlaybackBuffer) NumberOfChannels() int {
	return len(b.Channels)
}

// Length returns the number of frames per channel
func (b *PlaybackBuffer) Length() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer
func (b *PlaybackBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Length()) * time.Second / time.Duration(b.SampleRate)
}

// ChannelData returns the samples of channel c
func (b *PlaybackBuffer) ChannelData(c int) []float32 {
	return b.Channels[c]
}

// Interleaved returns the buffer as interleaved signed 16-bit little-endian bytes
func (b *PlaybackBuffer) Interleaved() []byte {
	channels := b.NumberOfChannels()
	frames := b.Length()
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			s := Float32ToInt16(b.Channels[c][i])
			off := (i*channels + c) * 2
			out[off] = byte(s)
			out[off+1] = byte(s >> 8)
		}
	}
	return out
}

// Float32ToInt16 quantizes one sample to 16-bit PCM.
// Non-finite input maps to 0. The result is truncated toward zero.
func Float32ToInt16(s float32) int16 {
	x := float64(s)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	if x < 0 {
		return int16(x * NegativeScale)
	}
	return int16(x * PositiveScale)
}

// Int16ToFloat32 maps a 16-bit sample back to [-1, 1)
func Int16ToFloat32(s int16) float32 {
	return float32(float64(s) / NegativeScale)
}
