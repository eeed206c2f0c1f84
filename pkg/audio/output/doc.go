// ABOUTME: Audio output package for playing decoded buffers
// ABOUTME: Provides Output and Source interfaces with an oto implementation
// Package output plays decoded playback buffers.
//
// Each buffer becomes its own Source so a scheduler can start and stop
// buffers independently.
//
// Example:
//
//	out := output.NewOto(logger)
//	err := out.Open(24000, 1)
//	src, err := out.NewSource(buf)
//	src.Play()
package output
