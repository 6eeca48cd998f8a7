package goimpsweep

import "gonum.org/v1/gonum/floats"

// FrequencyGrid builds the log-spaced frequency grid for one sweep. The sweep
// convention is high-to-low, so start > end is the expected call, but the grid
// is valid either way as long as both bounds are positive.
func FrequencyGrid(startFreq, endFreq float64, points int) ([]float64, error) {
	if points < 2 {
		return nil, ErrFreqPoints
	}
	if startFreq <= 0 || endFreq <= 0 {
		return nil, ErrFreqBounds
	}
	freqs := make([]float64, points)
	floats.LogSpan(freqs, startFreq, endFreq)
	return freqs, nil
}
