// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for inbound audio decoders
package decode

import (
	"context"

	"github.com/harperreed/salescoach/pkg/audio"
)

// Decoder decodes inbound audio into playback buffers
type Decoder interface {
	// Decode converts raw audio bytes to a playback buffer
	Decode(ctx context.Context, data []byte) (*audio.PlaybackBuffer, error)

	// Close releases decoder resources
	Close() error
}

// Allocator creates the output buffer for a decode. Platform backends may
// block or fail here; a failure aborts the decode.
type Allocator func(ctx context.Context, channels, frames, sampleRate int) (*audio.PlaybackBuffer, error)

// DefaultAllocator allocates a plain in-memory buffer
func DefaultAllocator(ctx context.Context, channels, frames, sampleRate int) (*audio.PlaybackBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return audio.NewPlaybackBuffer(channels, frames, sampleRate), nil
}
