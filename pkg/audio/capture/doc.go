// ABOUTME: Audio capture package for microphone and replay sources
// ABOUTME: Provides Capture interface and malgo, PortAudio, file and tone backends
// Package capture delivers fixed-size mono float32 blocks at a source's
// native sample rate.
//
// Every backend invokes the registered BlockFunc synchronously, once per
// block, in capture order. Each block is a fresh slice the callee may keep.
//
// Backends:
//   - Malgo: default microphone capture via miniaudio
//   - PortAudio: microphone capture (build with -tags portaudio)
//   - File: replays .wav, .mp3, .flac or .ogg recordings
//   - Tone: sine generator for demos and tests
//
// Example:
//
//	mic := capture.NewMalgo(capture.MalgoConfig{})
//	err := mic.Start(ctx, 4096, func(block []float32) {
//	    payload := encode.EncodePCM(block, mic.SampleRate())
//	    _ = payload
//	})
//	defer mic.Close()
//	defer mic.Stop()
package capture
