package goimpsweep

import "gonum.org/v1/gonum/mat"

// CurrentMatrices collects the per-cell fit coefficients and derived
// quantities for one current component. All matrices share the sweep shape
// (num intensities x num frequencies).
type CurrentMatrices struct {
	Bias      *mat.Dense // A
	Amplitude *mat.Dense // A, negative by convention
	Phase     *mat.Dense // rad
	Impedance ImpedanceMatrices
}

// SweepResult is the immutable output aggregate of one sweep invocation.
type SweepResult struct {
	Intensities []float64 // suns, one per row
	Voc         []float64 // V, only set for rows that went through asymmetrization
	Freqs       *mat.Dense

	Total CurrentMatrices
	Ionic *CurrentMatrices // nil unless ionic current was requested

	Attempts *mat.Dense // solver attempts spent per cell (1..3)
	Flagged  *mat.Dense // 1 where the retry budget ran out with a suspect phase
	MaxTimes *mat.Dense // s, maximum simulated time per cell

	// SunIndex is the row whose intensity is exactly 1, or -1 if absent.
	SunIndex int
	// SampleCount is the intended trace length, 1 + points-per-period * periods.
	SampleCount int
	DeltaV      float64
}

type rowMatrices struct {
	bias, amplitude, phase *mat.Dense
}

func newRowMatrices(rows, cols int) rowMatrices {
	return rowMatrices{
		bias:      mat.NewDense(rows, cols, nil),
		amplitude: mat.NewDense(rows, cols, nil),
		phase:     mat.NewDense(rows, cols, nil),
	}
}

func (m rowMatrices) set(i, j int, c FitCoefficients) {
	m.bias.Set(i, j, c.Bias)
	m.amplitude.Set(i, j, c.Amplitude)
	m.phase.Set(i, j, c.Phase)
}

// aggregate assembles the final record: derives impedance and capacitance for
// both current components and locates the reference (1 sun) row.
func (r *sweepRun) aggregate() *SweepResult {
	res := &SweepResult{
		Intensities: r.intensities,
		Voc:         r.vocs,
		Freqs:       r.freqs,
		Total: CurrentMatrices{
			Bias:      r.total.bias,
			Amplitude: r.total.amplitude,
			Phase:     r.total.phase,
			Impedance: DeriveImpedance(r.total.amplitude, r.total.phase, r.freqs, r.req.DeltaV),
		},
		Attempts:    r.attempts,
		Flagged:     r.flagged,
		MaxTimes:    r.maxTimes,
		SunIndex:    sunIndex(r.intensities),
		SampleCount: 1 + r.req.PointsPerPeriod*r.req.Periods,
		DeltaV:      r.req.DeltaV,
	}
	if r.req.CalcIonicCurrent {
		res.Ionic = &CurrentMatrices{
			Bias:      r.ionic.bias,
			Amplitude: r.ionic.amplitude,
			Phase:     r.ionic.phase,
			Impedance: DeriveImpedance(r.ionic.amplitude, r.ionic.phase, r.freqs, r.req.DeltaV),
		}
	}
	return res
}

func sunIndex(intensities []float64) int {
	for i, v := range intensities {
		if v == 1 {
			return i
		}
	}
	return -1
}
