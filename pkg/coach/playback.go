// ABOUTME: Back-to-back playback scheduler for decoded model audio
// ABOUTME: Tracks active sources so interruption and shutdown can stop them
package coach

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/output"
)

// ErrSchedulerClosed is returned when scheduling after Close
var ErrSchedulerClosed = errors.New("scheduler closed")

// timer is the part of *time.Timer the scheduler needs
type timer interface {
	Stop() bool
}

// Scheduler plays buffers back-to-back on an output
type Scheduler struct {
	output output.Output
	logger zerolog.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) timer

	mu        sync.Mutex
	nextStart time.Time
	active    map[uint64]*scheduledSource
	nextID    uint64
	closed    bool
}

type scheduledSource struct {
	source output.Source
	start  timer
	end    timer
}

// NewScheduler creates a scheduler for out
func NewScheduler(out output.Output, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		output: out,
		logger: logger,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		active: make(map[uint64]*scheduledSource),
	}
}

// Schedule queues buf to start when the previous buffer ends, or now if idle
func (s *Scheduler) Schedule(buf *audio.PlaybackBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	src, err := s.output.NewSource(buf)
	if err != nil {
		return err
	}

	now := s.now()
	if s.nextStart.Before(now) {
		s.nextStart = now
	}
	delay := s.nextStart.Sub(now)
	duration := src.Duration()

	id := s.nextID
	s.nextID++

	entry := &scheduledSource{source: src}
	s.active[id] = entry
	entry.start = s.afterFunc(delay, src.Play)
	entry.end = s.afterFunc(delay+duration, func() { s.finish(id) })

	s.nextStart = s.nextStart.Add(duration)

	s.logger.Debug().
		Uint64("id", id).
		Dur("delay", delay).
		Dur("duration", duration).
		Int("active", len(s.active)).
		Msg("Scheduled playback")

	return nil
}

// finish removes a source that played to its end
func (s *Scheduler) finish(id uint64) {
	s.mu.Lock()
	entry, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if ok {
		if err := entry.source.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("Source release error")
		}
	}
}

// StopAll stops every active source and resets the play cursor
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	entries := s.active
	s.active = make(map[uint64]*scheduledSource)
	s.nextStart = time.Time{}
	s.mu.Unlock()

	for _, entry := range entries {
		entry.start.Stop()
		entry.end.Stop()
		if err := entry.source.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("Source stop error")
		}
	}

	if len(entries) > 0 {
		s.logger.Debug().Int("stopped", len(entries)).Msg("Stopped active sources")
	}
	return len(entries)
}

// Active returns the number of scheduled or playing sources
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close stops all sources and rejects further scheduling
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.StopAll()
}
