// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit little-endian PCM to multi-channel float buffers
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/harperreed/salescoach/pkg/audio"
)

// ErrDecodeFailed is returned when no playback buffer could be produced
var ErrDecodeFailed = errors.New("decode failed")

// PCMDecoder decodes 16-bit PCM at a fixed rate and channel count
type PCMDecoder struct {
	sampleRate int
	channels   int
	allocate   Allocator
}

// NewPCM creates a new PCM decoder. Zero rate and channels default to 24kHz mono.
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "" && format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 0 && format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	if format.SampleRate < 0 || format.Channels < 0 {
		return nil, fmt.Errorf("invalid format: %dHz %dch", format.SampleRate, format.Channels)
	}

	d := &PCMDecoder{
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		allocate:   DefaultAllocator,
	}
	if d.sampleRate == 0 {
		d.sampleRate = audio.DefaultPlaybackRate
	}
	if d.channels == 0 {
		d.channels = audio.DefaultPlaybackChannels
	}

	return d, nil
}

// WithAllocator replaces the buffer allocator
func (d *PCMDecoder) WithAllocator(alloc Allocator) *PCMDecoder {
	if alloc != nil {
		d.allocate = alloc
	}
	return d
}

// SampleRate returns the rate decoded buffers are tagged with
func (d *PCMDecoder) SampleRate() int {
	return d.sampleRate
}

// Channels returns the channel count of decoded buffers
func (d *PCMDecoder) Channels() int {
	return d.channels
}

// Decode converts PCM bytes to a playback buffer
func (d *PCMDecoder) Decode(ctx context.Context, data []byte) (*audio.PlaybackBuffer, error) {
	numSamples := len(data) / 2
	frames := numSamples / d.channels

	buf, err := d.allocate(ctx, d.channels, frames, d.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if buf == nil || buf.NumberOfChannels() != d.channels || buf.Length() != frames {
		return nil, fmt.Errorf("%w: allocator returned wrong shape", ErrDecodeFailed)
	}

	for c := 0; c < d.channels; c++ {
		channel := buf.Channels[c]
		for i := 0; i < frames; i++ {
			off := (i*d.channels + c) * 2
			channel[i] = audio.Int16ToFloat32(int16(binary.LittleEndian.Uint16(data[off:])))
		}
	}

	return buf, nil
}

// DecodeText base64-decodes text and then decodes the PCM bytes
func (d *PCMDecoder) DecodeText(ctx context.Context, text string) (*audio.PlaybackBuffer, error) {
	data, err := audio.TextToBytes(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return d.Decode(ctx, data)
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// DecodePCM decodes PCM bytes at sampleRate with numChannels interleaved channels.
// Zero values default to 24kHz mono.
func DecodePCM(ctx context.Context, data []byte, sampleRate, numChannels int) (*audio.PlaybackBuffer, error) {
	d, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: sampleRate, Channels: numChannels, BitDepth: 16})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return d.Decode(ctx, data)
}

// DecodeText decodes base64 text holding PCM bytes
func DecodeText(ctx context.Context, text string, sampleRate, numChannels int) (*audio.PlaybackBuffer, error) {
	d, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: sampleRate, Channels: numChannels, BitDepth: 16})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return d.DecodeText(ctx, text)
}
