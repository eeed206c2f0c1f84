// ABOUTME: Audio output interface tests
// ABOUTME: Verifies implementations, rate conversion and the discard output
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
)

func TestImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Discard)(nil)
	var _ Source = (*otoSource)(nil)
	var _ Source = (*discardSource)(nil)
}

func TestOtoNewSourceBeforeOpen(t *testing.T) {
	out := NewOto(zerolog.Nop())
	_, err := out.NewSource(audio.NewPlaybackBuffer(1, 10, 24000))
	if !errors.Is(err, ErrNotOpen) {
		t.Errorf("error = %v, want ErrNotOpen", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close before Open failed: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	out := NewDiscard()

	buf := audio.NewPlaybackBuffer(1, 24000, 24000)
	if _, err := out.NewSource(buf); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("error = %v, want ErrNotOpen", err)
	}

	if err := out.Open(24000, 1); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	src, err := out.NewSource(buf)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", src.Duration())
	}
	src.Play()
	if err := src.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	if out.Sources() != 1 {
		t.Errorf("sources = %d, want 1", out.Sources())
	}

	if err := out.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestConvertRate(t *testing.T) {
	// 16 kHz reply played on a 24 kHz device
	buf := audio.NewPlaybackBuffer(2, 16000, 16000)
	for i := range buf.Channels[0] {
		buf.Channels[0][i] = 0.5
		buf.Channels[1][i] = -0.5
	}

	got := convertRate(buf, 24000)
	if got.SampleRate != 24000 {
		t.Errorf("rate = %d, want 24000", got.SampleRate)
	}
	if got.NumberOfChannels() != 2 || got.Length() != 24000 {
		t.Fatalf("shape = %dch x %d, want 2ch x 24000", got.NumberOfChannels(), got.Length())
	}
	if got.Duration() != buf.Duration() {
		t.Errorf("duration = %v, want %v", got.Duration(), buf.Duration())
	}
	if got.Channels[0][100] != 0.5 || got.Channels[1][100] != -0.5 {
		t.Errorf("samples = %v, %v, want 0.5, -0.5", got.Channels[0][100], got.Channels[1][100])
	}
	if buf.SampleRate != 16000 || buf.Length() != 16000 {
		t.Error("source buffer modified")
	}
}
