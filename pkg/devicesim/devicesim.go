// Package devicesim provides a reference transient solver and device state
// builder for the sweep engine: an analytic small-signal device model (series
// resistance feeding a recombination resistance, geometric capacitance and an
// ionic branch in parallel) that synthesizes the transient current trace a
// drift-diffusion solver would produce, including a settling artifact whose
// size scales with the requested tolerance.
package devicesim

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/kacperjurak/goimpsweep"
)

var (
	ErrBadDrive = errors.New("devicesim: frequency, periods and points per period must be positive")
	ErrBadTol   = errors.New("devicesim: relative tolerance must be positive")
)

// Simulator is an analytic TransientSolver. All fields are small-signal
// circuit parameters of the synthetic device.
type Simulator struct {
	Rseries  float64 // ohm
	Cgeo     float64 // F, geometric capacitance
	RrecDark float64 // ohm, recombination resistance in the dark
	KneeSun  float64 // suns, intensity scale of the recombination resistance drop
	RionCoef float64 // ohm * cm2/(V s), ionic branch resistance = RionCoef / mobility
	Cion     float64 // F, ionic branch capacitance
	Isc1Sun  float64 // A, short-circuit current magnitude at 1 sun

	// SettleGain scales the spurious settling transient added to the trace;
	// its amplitude is SettleGain * RelTol relative to the signal amplitude,
	// so tightening the tolerance genuinely improves phase fidelity.
	SettleGain float64
	// SettleTau is the transient decay constant in drive periods.
	SettleTau float64
}

// New returns a simulator with parameters typical of a thin-film cell.
func New() *Simulator {
	return &Simulator{
		Rseries:    10,
		Cgeo:       1e-7,
		RrecDark:   1e6,
		KneeSun:    0.01,
		RionCoef:   1e-8,
		Cion:       1e-6,
		Isc1Sun:    2e-2,
		SettleGain: 1e3,
		SettleTau:  1.5,
	}
}

// transfer returns the drive-to-current transfer admittances at the given
// angular frequency: hTotal for the total current and hIon for the ionic
// branch, which only sees the voltage left across the parallel section after
// the series drop.
func (s *Simulator) transfer(state *goimpsweep.DeviceState, omega float64) (hTotal, hIon complex128) {
	jw := complex(0, omega)

	rrec := s.RrecDark / (1 + state.LightIntensity/s.KneeSun)
	y := complex(1/rrec, 0) + jw*complex(s.Cgeo, 0)

	var yIon complex128
	if state.IonMobility > 0 {
		rion := s.RionCoef / state.IonMobility
		yIon = 1 / (complex(rion, 0) + 1/(jw*complex(s.Cion, 0)))
		y += yIon
	}

	zpar := 1 / y
	z := complex(s.Rseries, 0) + zpar
	return 1 / z, zpar / z * yIon
}

// Solve synthesizes the transient current trace for one oscillation run. The
// trace carries 1 + PointsPerPeriod*Periods samples spanning an integer
// number of drive periods. The current sign follows the device convention:
// negative response under increasing drive voltage.
func (s *Simulator) Solve(state *goimpsweep.DeviceState, req goimpsweep.SolveRequest) (*goimpsweep.Trace, error) {
	if req.Frequency <= 0 || req.Periods <= 0 || req.PointsPerPeriod <= 0 {
		return nil, fmt.Errorf("%w: f=%g periods=%d points=%d", ErrBadDrive, req.Frequency, req.Periods, req.PointsPerPeriod)
	}
	if req.RelTol <= 0 {
		return nil, ErrBadTol
	}

	omega := 2 * math.Pi * req.Frequency
	hTotal, hIon := s.transfer(state, omega)

	amp := -req.DeltaV * cmplx.Abs(hTotal)
	phase := cmplx.Phase(hTotal)
	bias := -s.Isc1Sun * state.LightIntensity

	ampIon := -req.DeltaV * cmplx.Abs(hIon)
	phaseIon := cmplx.Phase(hIon)

	period := 1 / req.Frequency
	tau := s.SettleTau * period
	artifact := s.SettleGain * req.RelTol * math.Abs(amp)

	n := 1 + req.PointsPerPeriod*req.Periods
	dt := period / float64(req.PointsPerPeriod)
	trace := &goimpsweep.Trace{
		Time:    make([]float64, n),
		Current: make([]float64, n),
		MaxTime: float64(req.Periods) * period,
	}
	if req.CalcIonicCurrent {
		trace.IonicCurrent = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		trace.Time[i] = t
		trace.Current[i] = bias + amp*math.Sin(omega*t+phase) + artifact*math.Exp(-t/tau)
		if req.CalcIonicCurrent {
			trace.IonicCurrent[i] = ampIon * math.Sin(omega*t+phaseIon)
		}
	}
	return trace, nil
}

// Builder is a reference DeviceStateBuilder: it marks the state as biased and
// reports a diode-law open-circuit voltage for the state's intensity.
type Builder struct {
	VocRef  float64 // V, open-circuit voltage at 1 sun
	Thermal float64 // V, thermal voltage scale of the Voc intensity dependence
}

// NewBuilder returns a builder with a 0.9 V reference Voc.
func NewBuilder() *Builder {
	return &Builder{VocRef: 0.9, Thermal: 0.0257}
}

// Asymmetricize splits a symmetric open-circuit state into a biased one.
func (b *Builder) Asymmetricize(state *goimpsweep.DeviceState, bc goimpsweep.BoundaryCondition) (*goimpsweep.DeviceState, float64, error) {
	asym := state.Clone()
	asym.OpenCircuit = false

	voc := 0.0
	if state.LightIntensity > 0 {
		voc = b.VocRef + b.Thermal*math.Log(state.LightIntensity)
	}
	return asym, voc, nil
}
