package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kacperjurak/goimpsweep"
)

func sampleResult() *goimpsweep.SweepResult {
	freqs := mat.NewDense(2, 3, []float64{1e4, 1e2, 1, 1e4, 1e2, 1})
	amp := mat.NewDense(2, 3, []float64{-1e-4, -2e-4, -5e-4, -1e-5, -2e-5, -5e-5})
	phase := mat.NewDense(2, 3, []float64{1.2, 0.8, 0.4, 1.3, 0.9, 0.5})

	return &goimpsweep.SweepResult{
		Intensities: []float64{1, 0},
		Voc:         []float64{0.9, 0},
		Freqs:       freqs,
		Total: goimpsweep.CurrentMatrices{
			Bias:      mat.NewDense(2, 3, nil),
			Amplitude: amp,
			Phase:     phase,
			Impedance: goimpsweep.DeriveImpedance(amp, phase, freqs, 1e-3),
		},
		Attempts:    mat.NewDense(2, 3, []float64{1, 1, 1, 1, 1, 1}),
		Flagged:     mat.NewDense(2, 3, nil),
		MaxTimes:    mat.NewDense(2, 3, nil),
		SunIndex:    0,
		SampleCount: 961,
		DeltaV:      1e-3,
	}
}

func TestRendererWritesPlots(t *testing.T) {
	dir := t.TempDir()
	r := New(Context{Dir: dir, Size: 400})
	res := sampleResult()

	require.NoError(t, r.VsFrequency(res))
	require.NoError(t, r.Nyquist(res))

	for _, name := range []string{"capacitance_vs_frequency.png", "nyquist.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to be written", name)
		assert.Positive(t, info.Size())
	}
}

func TestRendererSkipsNonFiniteCells(t *testing.T) {
	dir := t.TempDir()
	r := New(Context{Dir: dir})

	// A zero amplitude produces Inf impedance; the renderer must skip the
	// cell instead of failing.
	res := sampleResult()
	res.Total.Amplitude.Set(0, 0, 0)
	res.Total.Impedance = goimpsweep.DeriveImpedance(res.Total.Amplitude, res.Total.Phase, res.Freqs, 1e-3)

	require.NoError(t, r.VsFrequency(res))
	require.NoError(t, r.Nyquist(res))
}

func TestRendererDefaultSize(t *testing.T) {
	r := New(Context{Dir: "."})
	assert.Equal(t, uint(800), r.Ctx.Size)
}
