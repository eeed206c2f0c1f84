// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays each decoded buffer through its own oto player
package output

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/resample"
)

// oto only allows one context per process
var (
	sharedMu       sync.Mutex
	sharedCtx      *oto.Context
	sharedRate     int
	sharedChannels int
)

// Oto output implementation using oto library
type Oto struct {
	logger     zerolog.Logger
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	ready      bool
	mu         sync.Mutex
}

// NewOto creates a new Oto output
func NewOto(logger zerolog.Logger) *Oto {
	return &Oto{logger: logger}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}

	ctx, err := sharedContext(sampleRate, channels)
	if err != nil {
		return err
	}

	if sharedRate != sampleRate || sharedChannels != channels {
		o.logger.Warn().
			Int("requested_rate", sampleRate).
			Int("requested_channels", channels).
			Int("rate", sharedRate).
			Int("channels", sharedChannels).
			Msg("oto doesn't support reinitialization, continuing with existing context")
	}

	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	o.otoCtx = ctx
	o.sampleRate = sharedRate
	o.channels = sharedChannels
	o.ready = true

	o.logger.Info().Int("sample_rate", o.sampleRate).Int("channels", o.channels).Msg("Audio output initialized")
	return nil
}

func sharedContext(sampleRate, channels int) (*oto.Context, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedCtx != nil {
		return sharedCtx, nil
	}

	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	sharedCtx = ctx
	sharedRate = sampleRate
	sharedChannels = channels
	return ctx, nil
}

// NewSource converts buf to S16LE at the device rate and wraps it in a
// paused player. The channel count must match the device.
func (o *Oto) NewSource(buf *audio.PlaybackBuffer) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil, ErrNotOpen
	}
	if buf.NumberOfChannels() != o.channels {
		return nil, fmt.Errorf("%w: %dch, device %dch", ErrFormatMismatch,
			buf.NumberOfChannels(), o.channels)
	}
	if buf.SampleRate != o.sampleRate {
		o.logger.Debug().Int("from", buf.SampleRate).Int("to", o.sampleRate).Msg("Converting buffer to device rate")
		buf = convertRate(buf, o.sampleRate)
	}

	player := o.otoCtx.NewPlayer(bytes.NewReader(buf.Interleaved()))
	return &otoSource{player: player, duration: buf.Duration()}, nil
}

// convertRate resamples every channel of buf to rate
func convertRate(buf *audio.PlaybackBuffer, rate int) *audio.PlaybackBuffer {
	channels := make([][]float32, len(buf.Channels))
	for c, data := range buf.Channels {
		channels[c] = resample.Linear(data, buf.SampleRate, rate)
	}
	return &audio.PlaybackBuffer{SampleRate: rate, Channels: channels}
}

// Close suspends the device; the process-wide context stays allocated
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil
	}
	o.ready = false
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

type otoSource struct {
	player   *oto.Player
	duration time.Duration
	stopped  bool
	mu       sync.Mutex
}

func (s *otoSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.player.Play()
	}
}

func (s *otoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.player.Pause()
	return s.player.Close()
}

func (s *otoSource) Duration() time.Duration { return s.duration }
