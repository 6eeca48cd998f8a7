package goimpsweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyGridValidation(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		end     float64
		points  int
		wantErr error
	}{
		{"valid", 1e6, 1e-2, 23, nil},
		{"two points", 100, 1, 2, nil},
		{"one point", 1e6, 1e-2, 1, ErrFreqPoints},
		{"zero points", 1e6, 1e-2, 0, ErrFreqPoints},
		{"zero start", 0, 1e-2, 5, ErrFreqBounds},
		{"negative end", 1e6, -1, 5, ErrFreqBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FrequencyGrid(tt.start, tt.end, tt.points)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFrequencyGridLogSpacing(t *testing.T) {
	freqs, err := FrequencyGrid(1e6, 1e-2, 9)
	require.NoError(t, err)
	require.Len(t, freqs, 9)

	assert.InEpsilon(t, 1e6, freqs[0], 1e-12)
	assert.InEpsilon(t, 1e-2, freqs[8], 1e-12)

	// Strictly decreasing, constant ratio between neighbors.
	ratio := freqs[1] / freqs[0]
	for i := 1; i < len(freqs); i++ {
		assert.Less(t, freqs[i], freqs[i-1], "grid must decrease at index %d", i)
		assert.InEpsilon(t, ratio, freqs[i]/freqs[i-1], 1e-9)
	}
	// 8 equal decades over 8 intervals: each step is one decade down.
	assert.InEpsilon(t, 0.1, ratio, 1e-9)
}

func TestFrequencyGridIncreasingBoundsAccepted(t *testing.T) {
	freqs, err := FrequencyGrid(1, 1000, 4)
	require.NoError(t, err)
	for i := 1; i < len(freqs); i++ {
		assert.Greater(t, freqs[i], freqs[i-1])
	}
	assert.InEpsilon(t, 10.0, freqs[1], 1e-9)
}
