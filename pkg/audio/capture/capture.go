// ABOUTME: Capture interface definition and block framing helper
// ABOUTME: Regroups arbitrary driver periods into fixed-size blocks
package capture

import (
	"context"
	"errors"
)

// DefaultBlockSize is the number of frames per delivered block
const DefaultBlockSize = 4096

var (
	// ErrUnsupportedFormat is returned for files no decoder handles
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("capture already started")
)

// BlockFunc receives one captured block
type BlockFunc func(block []float32)

// Capture is an audio input source
type Capture interface {
	// Start begins delivering blocks of blockSize frames to onBlock
	Start(ctx context.Context, blockSize int, onBlock BlockFunc) error

	// SampleRate returns the rate of delivered blocks
	SampleRate() int

	// Stop stops block delivery and releases the processing device
	Stop() error

	// Close releases the hardware stream
	Close() error
}

// blocker accumulates samples and emits fixed-size blocks
type blocker struct {
	size    int
	pending []float32
	emit    BlockFunc
}

func newBlocker(size int, emit BlockFunc) *blocker {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &blocker{
		size:    size,
		pending: make([]float32, 0, size),
		emit:    emit,
	}
}

// push appends samples, emitting every completed block
func (b *blocker) push(samples []float32) {
	for len(samples) > 0 {
		n := b.size - len(b.pending)
		if n > len(samples) {
			n = len(samples)
		}
		b.pending = append(b.pending, samples[:n]...)
		samples = samples[n:]

		if len(b.pending) == b.size {
			b.emit(b.pending)
			b.pending = make([]float32, 0, b.size)
		}
	}
}

// flush emits the pending partial block zero-padded to full size
func (b *blocker) flush() {
	if len(b.pending) == 0 {
		return
	}
	block := make([]float32, b.size)
	copy(block, b.pending)
	b.pending = b.pending[:0]
	b.emit(block)
}

// downmix averages interleaved frames to mono
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
