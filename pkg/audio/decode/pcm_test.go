// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests scaling, channel de-interleave, truncation and round trips
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/encode"
	"github.com/harperreed/salescoach/pkg/audio/resample"
)

func pcmBytes(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestNewPCM(t *testing.T) {
	decoder, err := NewPCM(audio.Format{})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder.SampleRate() != 24000 {
		t.Errorf("expected default rate 24000, got %d", decoder.SampleRate())
	}
	if decoder.Channels() != 1 {
		t.Errorf("expected default channels 1, got %d", decoder.Channels())
	}
}

func TestNewPCM_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		errMsg string
	}{
		{"invalid codec", audio.Format{Codec: "opus"}, "invalid codec for PCM decoder: opus"},
		{"unsupported bit depth", audio.Format{Codec: "pcm", BitDepth: 24}, "unsupported bit depth: 24 (supported: 16)"},
		{"negative channels", audio.Format{Codec: "pcm", Channels: -1}, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if decoder != nil {
				t.Fatal("expected decoder to be nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestDecodePCMMono(t *testing.T) {
	buf, err := DecodePCM(context.Background(), pcmBytes(0, 16384, -32768, 32767), 0, 0)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.SampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", buf.SampleRate)
	}
	if buf.NumberOfChannels() != 1 {
		t.Fatalf("expected 1 channel, got %d", buf.NumberOfChannels())
	}

	expected := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	data := buf.ChannelData(0)
	if len(data) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(data))
	}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("frame %d: expected %v, got %v", i, expected[i], data[i])
		}
	}
}

func TestDecodePCMDeinterleave(t *testing.T) {
	ints := []int16{100, -200, 300, -400, 500, -600}
	buf, err := DecodePCM(context.Background(), pcmBytes(ints...), 24000, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.NumberOfChannels() != 2 || buf.Length() != 3 {
		t.Fatalf("expected 2x3 buffer, got %dx%d", buf.NumberOfChannels(), buf.Length())
	}

	for i := 0; i < 3; i++ {
		left := float32(ints[i*2]) / 32768.0
		right := float32(ints[i*2+1]) / 32768.0
		if buf.ChannelData(0)[i] != left {
			t.Errorf("channel 0 frame %d: expected %v, got %v", i, left, buf.ChannelData(0)[i])
		}
		if buf.ChannelData(1)[i] != right {
			t.Errorf("channel 1 frame %d: expected %v, got %v", i, right, buf.ChannelData(1)[i])
		}
	}
}

func TestDecodePCMTruncatesPartialFrame(t *testing.T) {
	tests := []struct {
		name     string
		samples  int
		channels int
		frames   int
	}{
		{"stereo odd samples", 7, 2, 3},
		{"three channels", 10, 3, 3},
		{"fewer samples than channels", 1, 2, 0},
		{"empty", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := DecodePCM(context.Background(), pcmBytes(make([]int16, tt.samples)...), 24000, tt.channels)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if buf.Length() != tt.frames {
				t.Errorf("expected %d frames, got %d", tt.frames, buf.Length())
			}
			if buf.NumberOfChannels() != tt.channels {
				t.Errorf("expected %d channels, got %d", tt.channels, buf.NumberOfChannels())
			}
		})
	}
}

func TestDecodePCMIgnoresTrailingByte(t *testing.T) {
	data := append(pcmBytes(1000, 2000), 0x7f)
	buf, err := DecodePCM(context.Background(), data, 16000, 1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Length() != 2 {
		t.Errorf("expected 2 frames, got %d", buf.Length())
	}
}

func TestDecodeAllocatorFailure(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	boom := errors.New("device lost")
	decoder.WithAllocator(func(ctx context.Context, channels, frames, sampleRate int) (*audio.PlaybackBuffer, error) {
		return nil, boom
	})

	buf, err := decoder.Decode(context.Background(), pcmBytes(1, 2, 3))
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
	if buf != nil {
		t.Error("expected no buffer on failure")
	}
}

func TestDecodeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf, err := DecodePCM(ctx, pcmBytes(1, 2), 24000, 1)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
	if buf != nil {
		t.Error("expected no buffer on failure")
	}
}

func TestDecodeTextInvalid(t *testing.T) {
	_, err := DecodeText(context.Background(), "%%%", 24000, 1)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ctx := context.Background()

	for i := -100; i <= 100; i++ {
		s := float32(i) / 100
		payload := encode.EncodePCM([]float32{s}, audio.TargetSampleRate)

		buf, err := DecodeText(ctx, payload.Data, audio.TargetSampleRate, 1)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if buf.Length() != 1 {
			t.Fatalf("expected 1 frame, got %d", buf.Length())
		}

		got := buf.ChannelData(0)[0]
		diff := math.Abs(float64(got - s))

		// Negative samples use the same 32768 scale both ways. Positive
		// samples are scaled by 32767 and truncated, costing up to 2 LSB.
		bound := 1.0 / 32768
		if s > 0 {
			bound = 2.0 / 32768
		}
		if diff > bound {
			t.Errorf("sample %v decoded to %v (error %v > %v)", s, got, diff, bound)
		}

		if math.Abs(float64(s)) > 2.0/32768 && (got > 0) != (s > 0) {
			t.Errorf("sample %v changed sign: %v", s, got)
		}
	}
}

func TestEndToEndSine(t *testing.T) {
	const (
		inputRate = 48000
		seconds   = 2
		freq      = 440.0
	)

	input := make([]float32, inputRate*seconds)
	var sourceEnergy float64
	for i := range input {
		s := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/inputRate)
		input[i] = float32(s)
		sourceEnergy += s * s
	}
	sourceRMS := math.Sqrt(sourceEnergy / float64(len(input)))

	resampled := resample.Downsample(input, inputRate, audio.TargetSampleRate)
	if len(resampled) != 32000 {
		t.Fatalf("expected 32000 resampled samples, got %d", len(resampled))
	}

	payload := encode.EncodePCM(input, inputRate)
	buf, err := DecodeText(context.Background(), payload.Data, audio.TargetSampleRate, 1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.Length() != len(resampled) {
		t.Fatalf("expected %d frames, got %d", len(resampled), buf.Length())
	}
	if buf.SampleRate != audio.TargetSampleRate {
		t.Errorf("expected rate %d, got %d", audio.TargetSampleRate, buf.SampleRate)
	}

	var outEnergy float64
	for _, s := range buf.ChannelData(0) {
		outEnergy += float64(s) * float64(s)
	}
	outRMS := math.Sqrt(outEnergy / float64(buf.Length()))

	if math.Abs(outRMS-sourceRMS)/sourceRMS > 0.01 {
		t.Errorf("RMS drifted: source %.5f, decoded %.5f", sourceRMS, outRMS)
	}
}
