// ABOUTME: PCM audio encoder
// ABOUTME: Downsamples float samples and encodes them as base64 16-bit PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/harperreed/salescoach/pkg/audio"
	"github.com/harperreed/salescoach/pkg/audio/resample"
)

// PCMEncoder encodes capture blocks at a fixed input rate
type PCMEncoder struct {
	downsampler *resample.Downsampler
}

// NewPCM creates a new PCM encoder. format.SampleRate is the capture rate.
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", format.SampleRate)
	}

	return &PCMEncoder{
		downsampler: resample.New(format.SampleRate, audio.TargetSampleRate),
	}, nil
}

// Encode converts float samples to a PCM payload
func (e *PCMEncoder) Encode(samples []float32) (audio.Payload, error) {
	pcm := Quantize(e.downsampler.Process(samples))
	return audio.Payload{
		Data:     audio.BytesToText(Int16ToBytes(pcm)),
		MimeType: audio.PCMMimeType(e.downsampler.OutputRate()),
	}, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

// EncodePCM downsamples samples captured at inputRate to 16 kHz and encodes them.
// Input below 16 kHz, or with a non-positive rate, is not upsampled: the
// samples pass through and the mime tag carries the input rate, for example
// audio/pcm;rate=8000.
func EncodePCM(samples []float32, inputRate int) audio.Payload {
	d := resample.New(inputRate, audio.TargetSampleRate)
	pcm := Quantize(d.Process(samples))
	return audio.Payload{
		Data:     audio.BytesToText(Int16ToBytes(pcm)),
		MimeType: audio.PCMMimeType(d.OutputRate()),
	}
}

// Quantize converts float samples to 16-bit integers
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = audio.Float32ToInt16(s)
	}
	return out
}

// Int16ToBytes serializes samples as little-endian, 2 bytes per sample
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
