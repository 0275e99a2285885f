package audio

import "math"

// Post-decode processing mirrors the conditioning pipeline the engine was
// trained against: mono downmix, one-directional resample to 16 kHz, energy
// trim, peak limiting.

// Trim and normalization parameters. Changing these changes what the engine
// hears, so they are fixed rather than configurable.
const (
	trimTopDB      = 60.0
	trimFrameLen   = 440
	trimHopLen     = 220
	peakCeiling    = 0.8
	minAdvisoryDur = 1.0
	maxAdvisoryDur = 60.0
)

// downmix averages interleaved channels into a mono buffer.
func downmix(p *pcm) []float64 {
	if p.channels <= 1 {
		return p.samples
	}
	frames := len(p.samples) / p.channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < p.channels; c++ {
			sum += p.samples[i*p.channels+c]
		}
		out[i] = sum / float64(p.channels)
	}
	return out
}

// Resample converts samples from srcRate to dstRate by linear interpolation.
// Quality is adequate for speech conditioning audio; the engine's own vocoder
// dominates output fidelity.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	newLen := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	return ResampleLength(samples, newLen)
}

// ResampleLength stretches or compresses samples to exactly newLen points by
// linear interpolation along the time axis.
func ResampleLength(samples []float64, newLen int) []float64 {
	if newLen <= 0 || len(samples) == 0 {
		return nil
	}
	if newLen == len(samples) {
		return samples
	}
	out := make([]float64, newLen)
	scale := float64(len(samples)-1) / float64(newLen-1)
	if newLen == 1 {
		out[0] = samples[0]
		return out
	}
	for i := range out {
		pos := float64(i) * scale
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// TrimSilence removes leading and trailing frames whose energy falls more
// than topDB below the loudest frame.
func TrimSilence(samples []float64, topDB float64, frameLen, hopLen int) []float64 {
	if len(samples) == 0 || frameLen <= 0 || hopLen <= 0 {
		return samples
	}

	var rms []float64
	for start := 0; start < len(samples); start += hopLen {
		end := start + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s * s
		}
		rms = append(rms, math.Sqrt(sum/float64(end-start)))
	}

	var maxRMS float64
	for _, v := range rms {
		if v > maxRMS {
			maxRMS = v
		}
	}
	if maxRMS == 0 {
		return samples
	}

	threshold := maxRMS * math.Pow(10, -topDB/20)
	first, last := -1, -1
	for i, v := range rms {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return samples
	}

	start := first * hopLen
	end := last*hopLen + frameLen
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}

// LimitPeak scales the buffer down so the maximum absolute sample does not
// exceed ceiling. Quieter audio is left untouched to preserve dynamics.
func LimitPeak(samples []float64, ceiling float64) []float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak <= ceiling || peak == 0 {
		return samples
	}
	scale := ceiling / peak
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// Silence returns a silent mono waveform of the given length.
func Silence(seconds float64, rate int) Waveform {
	n := int(seconds * float64(rate))
	if n < 0 {
		n = 0
	}
	return Waveform{Samples: make([]float64, n), SampleRate: rate}
}
