//go:build portaudio

// ABOUTME: PortAudio microphone capture
// ABOUTME: Cross-platform input using PortAudio blocking reads
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// PortAudio captures from an input device through PortAudio
type PortAudio struct {
	deviceName string
	logger     zerolog.Logger
	stream     *portaudio.Stream
	sampleRate int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	terminated bool
}

// NewPortAudio initializes PortAudio. An empty deviceName selects the default input.
func NewPortAudio(deviceName string, logger zerolog.Logger) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{deviceName: deviceName, logger: logger}, nil
}

// Start opens the input stream at the device's default rate
func (p *PortAudio) Start(ctx context.Context, blockSize int, onBlock BlockFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return ErrAlreadyStarted
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	device, err := p.findDevice()
	if err != nil {
		return err
	}

	buffer := make([]float32, blockSize)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: len(buffer),
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	p.stream = stream
	p.sampleRate = int(device.DefaultSampleRate)

	readCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info().Str("device", device.Name).Int("sample_rate", p.sampleRate).Msg("PortAudio capture started")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-readCtx.Done():
				return
			default:
			}
			if err := stream.Read(); err != nil {
				p.logger.Debug().Err(err).Msg("PortAudio read ended")
				return
			}
			block := make([]float32, len(buffer))
			copy(block, buffer)
			onBlock(block)
		}
	}()

	return nil
}

func (p *PortAudio) findDevice() (*portaudio.DeviceInfo, error) {
	if p.deviceName == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == p.deviceName && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", p.deviceName)
}

// SampleRate returns the stream rate
func (p *PortAudio) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sampleRate
}

// Stop stops the stream and waits for the read loop
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		p.logger.Warn().Err(err).Msg("PortAudio stop error")
	}
	p.wg.Wait()
	return stream.Close()
}

// Close terminates PortAudio
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return nil
	}
	p.terminated = true
	return portaudio.Terminate()
}
