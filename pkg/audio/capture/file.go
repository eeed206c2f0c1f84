// ABOUTME: File replay capture for demos and tests
// ABOUTME: Decodes WAV, MP3, FLAC and Ogg Vorbis files into mono blocks
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/rs/zerolog"
)

// FileConfig configures file replay
type FileConfig struct {
	Path string

	// Realtime paces blocks at the file's sample rate instead of as fast as possible
	Realtime bool

	Logger zerolog.Logger
}

// File replays a decoded audio file as if it were a microphone
type File struct {
	config     FileConfig
	samples    []float32
	sampleRate int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
}

// NewFile decodes the file at config.Path
func NewFile(config FileConfig) (*File, error) {
	samples, rate, err := decodeFile(config.Path)
	if err != nil {
		return nil, err
	}

	config.Logger.Info().
		Str("path", config.Path).
		Int("sample_rate", rate).
		Int("frames", len(samples)).
		Msg("Loaded capture file")

	return &File{
		config:     config,
		samples:    samples,
		sampleRate: rate,
	}, nil
}

// Start begins replaying the file
func (f *File) Start(ctx context.Context, blockSize int, onBlock BlockFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	frames := newBlocker(blockSize, onBlock)
	f.wg.Add(1)
	go f.run(runCtx, frames)

	return nil
}

func (f *File) run(ctx context.Context, frames *blocker) {
	defer f.wg.Done()

	var ticker *time.Ticker
	if f.config.Realtime {
		period := time.Duration(float64(frames.size) / float64(f.sampleRate) * float64(time.Second))
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for pos := 0; pos < len(f.samples); pos += frames.size {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		end := pos + frames.size
		if end > len(f.samples) {
			end = len(f.samples)
		}
		frames.push(f.samples[pos:end])
	}
	frames.flush()

	f.config.Logger.Debug().Str("path", f.config.Path).Msg("Capture file finished")
}

// SampleRate returns the file's sample rate
func (f *File) SampleRate() int {
	return f.sampleRate
}

// Stop halts replay and waits for the replay goroutine
func (f *File) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
	return nil
}

// Wait blocks until replay finishes or is stopped
func (f *File) Wait() {
	f.wg.Wait()
}

// Close is a no-op; the file is fully decoded at construction
func (f *File) Close() error {
	return nil
}

// decodeFile picks a decoder by extension and returns mono samples
func decodeFile(path string) ([]float32, int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3", ".flac", ".ogg":
	default:
		return nil, 0, fmt.Errorf("%w: %s (supported: .wav, .mp3, .flac, .ogg)", ErrUnsupportedFormat, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	switch ext {
	case ".wav":
		return decodeWAV(file)
	case ".mp3":
		return decodeMP3(file)
	case ".flac":
		return decodeFLAC(file)
	default:
		return decodeOgg(file)
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	interleaved := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float32(v) / scale
	}
	return downmix(interleaved, int(dec.NumChans)), int(dec.SampleRate), nil
}

func decodeMP3(r io.Reader) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read MP3: %w", err)
	}

	interleaved := make([]float32, len(raw)/2)
	for i := range interleaved {
		interleaved[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}
	return downmix(interleaved, 2), dec.SampleRate(), nil
}

func decodeFLAC(r io.Reader) ([]float32, int, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var mono []float32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			mono = append(mono, sum/float32(channels))
		}
	}
	return mono, int(stream.Info.SampleRate), nil
}

func decodeOgg(r io.Reader) ([]float32, int, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return downmix(data, format.Channels), format.SampleRate, nil
}
