package goimpsweep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTrace builds a clean synthetic trace bias + amp*sin(w*t + phase) over
// an integer number of drive periods, shared by the extraction and controller
// tests.
func makeTrace(bias, amp, phase, freq float64, periods, pointsPerPeriod int) *Trace {
	omega := 2 * math.Pi * freq
	period := 1 / freq
	n := 1 + pointsPerPeriod*periods
	dt := period / float64(pointsPerPeriod)

	tr := &Trace{
		Time:    make([]float64, n),
		Current: make([]float64, n),
		MaxTime: float64(periods) * period,
	}
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		tr.Time[i] = t
		tr.Current[i] = bias + amp*math.Sin(omega*t+phase)
	}
	return tr
}

func TestExtractRoundTrip(t *testing.T) {
	const freq = 100.0
	omega := 2 * math.Pi * freq

	tests := []struct {
		name  string
		bias  float64
		amp   float64
		phase float64
	}{
		{"mid phase", -1e-3, -2e-4, 0.7},
		{"near quadrature", -5e-4, -1e-4, 1.45},
		{"small phase", -1e-3, -3e-4, 0.02},
		{"zero bias", 0, -1e-4, 1.0},
	}

	for _, method := range []ExtractMethod{MethodFitting, MethodDemodulation} {
		for _, tt := range tests {
			t.Run(method.String()+"/"+tt.name, func(t *testing.T) {
				trace := makeTrace(tt.bias, tt.amp, tt.phase, freq, 25, 40)
				coeff, _, err := ExtractCoefficients(trace, omega, method, false)
				require.NoError(t, err)

				assert.InDelta(t, tt.bias, coeff.Bias, math.Abs(tt.amp)*0.01)
				assert.InEpsilon(t, tt.amp, coeff.Amplitude, 0.01)
				assert.InDelta(t, tt.phase, coeff.Phase, 0.01)
			})
		}
	}
}

func TestExtractForcesAmplitudeSign(t *testing.T) {
	const freq = 50.0
	omega := 2 * math.Pi * freq
	// Positive-amplitude form of the same signal: amp*sin(wt+p) with amp > 0
	// must come back as a negative amplitude and a pi-shifted, wrapped phase.
	trace := makeTrace(-2e-3, 2e-4, 0.3, freq, 25, 40)

	for _, method := range []ExtractMethod{MethodFitting, MethodDemodulation} {
		t.Run(method.String(), func(t *testing.T) {
			coeff, _, err := ExtractCoefficients(trace, omega, method, false)
			require.NoError(t, err)

			assert.Negative(t, coeff.Amplitude)
			assert.InEpsilon(t, -2e-4, coeff.Amplitude, 0.01)
			assert.InDelta(t, 0.3-math.Pi, coeff.Phase, 0.01)
			assert.Greater(t, coeff.Phase, -math.Pi)
			assert.LessOrEqual(t, coeff.Phase, math.Pi)
		})
	}
}

func TestExtractIonicComponent(t *testing.T) {
	const freq = 10.0
	omega := 2 * math.Pi * freq
	trace := makeTrace(-1e-3, -2e-4, 0.9, freq, 25, 40)

	// Ionic component with its own coefficients.
	ionic := makeTrace(0, -5e-5, 1.2, freq, 25, 40)
	trace.IonicCurrent = ionic.Current

	coeff, ion, err := ExtractCoefficients(trace, omega, MethodDemodulation, true)
	require.NoError(t, err)

	assert.InEpsilon(t, -2e-4, coeff.Amplitude, 0.01)
	assert.InEpsilon(t, -5e-5, ion.Amplitude, 0.01)
	assert.InDelta(t, 1.2, ion.Phase, 0.01)
}

func TestExtractInputValidation(t *testing.T) {
	omega := 2 * math.Pi * 10.0
	trace := makeTrace(0, -1e-4, 0.5, 10, 22, 30)

	_, _, err := ExtractCoefficients(nil, omega, MethodFitting, false)
	assert.ErrorIs(t, err, ErrEmptyTrace)

	_, _, err = ExtractCoefficients(&Trace{}, omega, MethodFitting, false)
	assert.ErrorIs(t, err, ErrEmptyTrace)

	_, _, err = ExtractCoefficients(trace, omega, MethodFitting, true)
	assert.ErrorIs(t, err, ErrNoIonicTrace)
}

func TestDemodulationShortTrace(t *testing.T) {
	// Two periods only: the transient skip must back off rather than leave an
	// empty window.
	const freq = 5.0
	omega := 2 * math.Pi * freq
	trace := makeTrace(-1e-3, -1e-4, 0.6, freq, 2, 60)

	coeff, _, err := ExtractCoefficients(trace, omega, MethodDemodulation, false)
	require.NoError(t, err)
	assert.InEpsilon(t, -1e-4, coeff.Amplitude, 0.01)
	assert.InDelta(t, 0.6, coeff.Phase, 0.01)
}

func TestWrapPhase(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{math.Pi + 0.1, -math.Pi + 0.1},
		{2 * math.Pi, 0},
		{-2.5 * math.Pi, -0.5 * math.Pi},
		{5 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapPhase(tt.in), 1e-12, "wrapPhase(%g)", tt.in)
	}
}
