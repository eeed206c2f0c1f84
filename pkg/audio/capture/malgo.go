// ABOUTME: Malgo-based microphone capture
// ABOUTME: Uses miniaudio via malgo to capture mono float32 at the device rate
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// MalgoConfig configures microphone capture
type MalgoConfig struct {
	// SampleRate requests a capture rate. Zero uses the device's native rate.
	SampleRate int

	Logger zerolog.Logger
}

// Malgo captures from the default input device
type Malgo struct {
	config     MalgoConfig
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	started    bool
	done       chan struct{}
	mu         sync.Mutex
}

// NewMalgo creates a new Malgo capture
func NewMalgo(config MalgoConfig) *Malgo {
	return &Malgo{config: config}
}

// Start opens the input device and begins delivering blocks
func (m *Malgo) Start(ctx context.Context, blockSize int, onBlock BlockFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	if m.malgoCtx == nil {
		mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = mctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	frames := newBlocker(blockSize, onBlock)
	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		frames.push(bytesToFloat32(pInputSamples, int(frameCount)))
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.device = device
	m.sampleRate = int(device.SampleRate())
	m.started = true
	m.done = make(chan struct{})

	m.config.Logger.Info().
		Int("sample_rate", m.sampleRate).
		Int("block_size", frames.size).
		Msg("Microphone capture started")

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-done:
		}
	}(m.done)

	return nil
}

// SampleRate returns the device capture rate
func (m *Malgo) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// Stop stops and uninitializes the capture device
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.config.Logger.Warn().Err(err).Msg("Capture device stop error")
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.started = false
	return nil
}

// Close releases the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.config.Logger.Warn().Err(err).Msg("Malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// bytesToFloat32 converts little-endian F32 frames to samples
func bytesToFloat32(data []byte, frames int) []float32 {
	if frames*4 > len(data) {
		frames = len(data) / 4
	}
	out := make([]float32, frames)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
