// ABOUTME: Audio downsampling package using block averaging
// ABOUTME: Converts capture-rate audio to the fixed transport rate
// Package resample provides audio sample rate reduction.
//
// Each output sample is the mean of a contiguous window of input samples.
// Windows never overlap and cover the input exactly once, so a block can be
// processed in a single pass with no lookahead. Ratios do not need to be
// integers: 44100 -> 16000 uses windows of 2 or 3 samples.
//
// Linear converts in either direction by interpolating between neighbouring
// samples. Playback uses it to bring replies to the device rate.
//
// Example:
//
//	out := resample.Downsample(block, 48000, 16000)
//
//	d := resample.New(44100, 16000)
//	out = d.Process(block)
package resample
