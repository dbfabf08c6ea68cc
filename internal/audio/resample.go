package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples between rates. The output length is pinned
// to round(len × to/from) so buffered duration stays exact across the
// conversion. The filter tail is flushed and its leading delay skipped, so
// the end of the input is not replaced by silence.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", from, to, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush %d -> %d: %w", from, to, err)
	}
	output = append(output, tail...)

	want := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	skip := min(max(r.GetLatency(), 0), max(len(output)-want, 0))
	output = output[skip:]

	out := make([]float32, want)
	for i := 0; i < want && i < len(output); i++ {
		out[i] = float32(output[i])
	}
	return out, nil
}
