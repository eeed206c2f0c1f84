// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends and per-buffer sources
package output

import (
	"errors"
	"sync"
	"time"

	"github.com/harperreed/salescoach/pkg/audio"
)

var (
	// ErrNotOpen is returned when creating a source before Open
	ErrNotOpen = errors.New("output not open")

	// ErrFormatMismatch is returned when a buffer does not match the device format
	ErrFormatMismatch = errors.New("buffer format does not match output")
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// NewSource prepares a buffer for playback without starting it
	NewSource(buf *audio.PlaybackBuffer) (Source, error)

	// Close releases output resources
	Close() error
}

// Source is one playable buffer
type Source interface {
	// Play starts playback
	Play()

	// Stop halts playback; safe to call more than once
	Stop() error

	// Duration is the buffer's play time
	Duration() time.Duration
}

// Discard is an Output that accepts buffers and plays nothing
type Discard struct {
	mu         sync.Mutex
	open       bool
	sampleRate int
	channels   int
	sources    int
}

// NewDiscard creates a silent output
func NewDiscard() *Discard {
	return &Discard{}
}

// Open records the format
func (d *Discard) Open(sampleRate, channels int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	d.sampleRate = sampleRate
	d.channels = channels
	return nil
}

// NewSource returns a silent source for buf
func (d *Discard) NewSource(buf *audio.PlaybackBuffer) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, ErrNotOpen
	}
	d.sources++
	return &discardSource{duration: buf.Duration()}, nil
}

// Sources returns how many sources were created
func (d *Discard) Sources() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sources
}

// Close marks the output closed
func (d *Discard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

type discardSource struct {
	duration time.Duration
}

func (s *discardSource) Play()                   {}
func (s *discardSource) Stop() error             { return nil }
func (s *discardSource) Duration() time.Duration { return s.duration }
