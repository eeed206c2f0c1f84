// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for outbound audio encoders
package encode

import "github.com/harperreed/salescoach/pkg/audio"

// Encoder encodes captured float samples into transport payloads
type Encoder interface {
	// Encode converts one captured block to a payload
	Encode(samples []float32) (audio.Payload, error)

	// Close releases encoder resources
	Close() error
}
