// ABOUTME: Test tone generator capture
// ABOUTME: Generates a sine wave for demos without a microphone
package capture

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	// DefaultToneFrequency is A4
	DefaultToneFrequency = 440.0

	// DefaultToneSampleRate matches a typical 48 kHz microphone
	DefaultToneSampleRate = 48000

	// DefaultToneAmplitude is 50% volume
	DefaultToneAmplitude = 0.5
)

// ToneConfig configures the tone generator
type ToneConfig struct {
	Frequency  float64
	SampleRate int
	Amplitude  float64

	// Realtime paces blocks at SampleRate
	Realtime bool
}

// Tone generates a continuous sine wave
type Tone struct {
	config      ToneConfig
	sampleIndex uint64
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// NewTone creates a tone generator, applying defaults
func NewTone(config ToneConfig) *Tone {
	if config.Frequency <= 0 {
		config.Frequency = DefaultToneFrequency
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultToneSampleRate
	}
	if config.Amplitude <= 0 {
		config.Amplitude = DefaultToneAmplitude
	}
	return &Tone{config: config}
}

// Next returns the next n samples of the tone
func (t *Tone) Next(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		ts := float64(t.sampleIndex+uint64(i)) / float64(t.config.SampleRate)
		out[i] = float32(t.config.Amplitude * math.Sin(2*math.Pi*t.config.Frequency*ts))
	}
	t.sampleIndex += uint64(n)
	return out
}

// Start begins generating blocks until Stop or ctx cancellation
func (t *Tone) Start(ctx context.Context, blockSize int, onBlock BlockFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyStarted
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		var tick <-chan time.Time
		if t.config.Realtime {
			period := time.Duration(float64(blockSize) / float64(t.config.SampleRate) * float64(time.Second))
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if tick != nil {
				select {
				case <-runCtx.Done():
					return
				case <-tick:
				}
			} else {
				select {
				case <-runCtx.Done():
					return
				default:
				}
			}
			onBlock(t.Next(blockSize))
		}
	}()

	return nil
}

// SampleRate returns the generator rate
func (t *Tone) SampleRate() int { return t.config.SampleRate }

// Stop halts generation
func (t *Tone) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}

// Close is a no-op
func (t *Tone) Close() error { return nil }
