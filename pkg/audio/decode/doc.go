// ABOUTME: Audio decoder package for inbound service audio
// ABOUTME: Provides Decoder interface and the 16-bit PCM implementation
// Package decode turns 16-bit PCM returned by the speech service into
// playable float buffers.
//
// Samples are divided by exactly 32768, so -32768 maps to -1.0 and the
// largest positive value lands just below 1.0. Interleaved channels are
// split into independent slices; a trailing partial frame is dropped.
//
// Example:
//
//	buf, err := decode.DecodePCM(ctx, raw, 24000, 1)
//	buf, err := decode.DecodeText(ctx, payload.Data, 24000, 1)
package decode
