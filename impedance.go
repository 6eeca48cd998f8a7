package goimpsweep

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ImpedanceMatrices holds the elementwise-derived impedance and capacitance
// for one current component, shaped like the input matrices.
type ImpedanceMatrices struct {
	Magnitude   *mat.Dense // ohm
	Real        *mat.Dense // ohm
	Imag        *mat.Dense // ohm
	Capacitance *mat.Dense // F
}

// DeriveImpedance converts amplitude/phase matrices into impedance and
// capacitance. Pure function: inputs are untouched and the same inputs always
// produce bit-identical output. Zero amplitudes are not guarded; the resulting
// Inf/NaN values propagate into the output as-is.
func DeriveImpedance(amplitude, phase, freqs *mat.Dense, deltaV float64) ImpedanceMatrices {
	rows, cols := amplitude.Dims()
	out := ImpedanceMatrices{
		Magnitude:   mat.NewDense(rows, cols, nil),
		Real:        mat.NewDense(rows, cols, nil),
		Imag:        mat.NewDense(rows, cols, nil),
		Capacitance: mat.NewDense(rows, cols, nil),
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := phase.At(i, j)
			zmag := -deltaV / amplitude.At(i, j)
			omega := 2 * math.Pi * freqs.At(i, j)
			out.Magnitude.Set(i, j, zmag)
			out.Real.Set(i, j, zmag*math.Cos(p))
			out.Imag.Set(i, j, zmag*math.Sin(p))
			out.Capacitance.Set(i, j, math.Sin(p)/(omega*zmag))
		}
	}
	return out
}
