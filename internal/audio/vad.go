package audio

// DetectVoice is a coarse energy detector for local capture, where no
// upstream VAD exists. Remote streams carry their own VADResult.
func DetectVoice(samples []float32, threshold float64) VADResult {
	if threshold <= 0 || len(samples) == 0 {
		return VADResult{}
	}
	rms := RMS(samples)
	prob := rms / (2 * threshold)
	if prob > 1 {
		prob = 1
	}

	q := QualityPoor
	switch {
	case rms >= 4*threshold:
		q = QualityGood
	case rms >= 2*threshold:
		q = QualityFair
	}
	return VADResult{IsVoice: rms >= threshold, Probability: prob, Quality: q}
}
