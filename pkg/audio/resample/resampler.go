// ABOUTME: Block-averaging downsampler for converting audio sample rates
// ABOUTME: Pure functions plus a fixed-rate wrapper used by the capture loop
package resample

import "math"

// Downsample reduces samples from inputRate to outputRate by averaging
// contiguous windows. Equal rates return the input unchanged. Upsampling
// and non-positive rates are not supported and also return the input.
func Downsample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || outputRate > inputRate {
		return samples
	}

	ratio := float64(inputRate) / float64(outputRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	result := make([]float32, outLen)

	offset := 0
	for j := 0; j < outLen; j++ {
		next := int(math.Round(float64(j+1) * ratio))
		if next > len(samples) {
			next = len(samples)
		}

		var sum float64
		count := 0
		for i := offset; i < next; i++ {
			s := float64(samples[i])
			if !math.IsNaN(s) && !math.IsInf(s, 0) {
				sum += s
			}
			count++
		}

		if count > 0 {
			result[j] = float32(sum / float64(count))
		}
		if next > offset {
			offset = next
		}
	}

	return result
}

// OutputLength reports how many samples Downsample produces for n inputs
func OutputLength(n, inputRate, outputRate int) int {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || outputRate > inputRate {
		return n
	}
	ratio := float64(inputRate) / float64(outputRate)
	return int(math.Round(float64(n) / ratio))
}

// Downsampler binds Downsample to a fixed rate pair
type Downsampler struct {
	inputRate  int
	outputRate int
}

// New creates a downsampler for the given rates
func New(inputRate, outputRate int) *Downsampler {
	return &Downsampler{
		inputRate:  inputRate,
		outputRate: outputRate,
	}
}

// Process downsamples one block. Blocks are independent; no state carries over.
func (d *Downsampler) Process(block []float32) []float32 {
	return Downsample(block, d.inputRate, d.outputRate)
}

// InputRate returns the configured input rate
func (d *Downsampler) InputRate() int {
	return d.inputRate
}

// OutputRate returns the rate Process produces
func (d *Downsampler) OutputRate() int {
	if d.outputRate > d.inputRate || d.outputRate <= 0 || d.inputRate <= 0 {
		return d.inputRate
	}
	return d.outputRate
}

// OutputSamplesNeeded calculates how many output samples a block of inputSamples yields
func (d *Downsampler) OutputSamplesNeeded(inputSamples int) int {
	return OutputLength(inputSamples, d.inputRate, d.outputRate)
}

// Linear converts samples from inputRate to outputRate in either direction
// by interpolating between neighbouring samples. Positions past the last
// input sample repeat it. Equal or non-positive rates return the input.
func Linear(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}

	outLen := int(float64(len(samples)) * float64(outputRate) / float64(inputRate))
	result := make([]float32, outLen)
	ratio := float64(inputRate) / float64(outputRate)
	last := len(samples) - 1

	for i := range result {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			result[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		result[i] = samples[idx] + frac*(samples[idx+1]-samples[idx])
	}
	return result
}
