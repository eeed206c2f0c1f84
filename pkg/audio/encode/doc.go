// ABOUTME: Audio encoder package for the outbound transport
// ABOUTME: Provides Encoder interface and the 16-bit PCM implementation
// Package encode turns captured float samples into transport payloads.
//
// The PCM encoder downsamples to 16 kHz, quantizes to signed 16-bit
// little-endian integers and base64-encodes the bytes. The resulting
// audio.Payload carries the mime tag "audio/pcm;rate=16000".
//
// Example:
//
//	payload := encode.EncodePCM(block, 48000)
//
//	encoder, err := encode.NewPCM(audio.Format{Codec: "pcm", SampleRate: 44100, BitDepth: 16})
//	payload, err := encoder.Encode(block)
package encode
