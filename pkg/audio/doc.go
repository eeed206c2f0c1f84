// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Payload, PlaybackBuffer and sample conversion functions
// Package audio provides the fundamental audio types shared by the coaching pipeline.
//
// This package defines:
//   - Format: Describes an audio stream (codec, sample rate, channels, bit depth)
//   - Payload: A base64 PCM chunk tagged with its mime type, as sent on the wire
//   - PlaybackBuffer: Decoded multi-channel float audio ready for an output device
//
// It also provides the sample conversions every stage agrees on:
//   - float32 -> int16 quantization (clamped, negative x32768, positive x32767)
//   - int16 -> float32 (always divided by 32768)
//   - bytes <-> text (standard padded base64)
//
// Example:
//
//	s16 := audio.Float32ToInt16(0.5)      // 16383
//	f := audio.Int16ToFloat32(s16)        // 0.49997
//	text := audio.BytesToText(pcmBytes)   // safe for JSON
package audio
