package audio

// Resample converts samples from srcRate to dstRate using linear
// interpolation: output index i reads source position i*(srcRate/dstRate)
// and blends the two bracketing samples. When the rates match the input is
// returned unchanged. The transform is lossy and not invertible.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	step := float64(srcRate) / float64(dstRate)
	n := int(float64(len(samples)) * float64(dstRate) / float64(srcRate))
	if n < 1 {
		n = 1
	}

	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = float32(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}
