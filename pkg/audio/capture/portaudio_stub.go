//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package capture

import (
	"errors"

	"github.com/rs/zerolog"
)

// ErrPortAudioDisabled is returned when the binary was built without PortAudio
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// NewPortAudio reports that PortAudio is unavailable
func NewPortAudio(deviceName string, logger zerolog.Logger) (Capture, error) {
	return nil, ErrPortAudioDisabled
}
