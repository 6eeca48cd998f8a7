package goimpsweep

import (
	"log"
	"math"
)

// Retry policy constants. A near-zero (or negative) extracted phase is a known
// demodulation artifact when the true phase approaches the 90 degree
// capacitive limit and the oscillation has not settled; tightening the solver
// tolerance improves settling fidelity without changing the physical setup.
const (
	maxAttempts          = 3
	lowPhaseThreshold    = 0.03  // rad, wide check after the first attempt
	strictPhaseThreshold = 0.003 // rad, strict check after the second attempt
	quadratureBand       = 0.06  // rad below pi/2 counted as suspiciously close to quadrature
	tolTightenFactor     = 100
)

// CellResult is the outcome of one (intensity, frequency) task.
type CellResult struct {
	Coeff    FitCoefficients // total current
	Ionic    FitCoefficients // ionic-drift current, zero unless requested
	Attempts int
	Flagged  bool // retry budget exhausted with the phase still suspect
	MaxTime  float64
	Trace    *Trace // final attempt's trace
}

// phaseSuspect is the wide quality check: a phase at or below the low
// threshold, or within the quadrature band just under pi/2.
func phaseSuspect(phase float64) bool {
	return phase <= lowPhaseThreshold ||
		(phase > math.Pi/2-quadratureBand && phase < math.Pi/2)
}

// retryAfter decides whether the given attempt's phase warrants another run.
// The wide check applies after attempt 1; after attempt 2 only an extremely
// small phase justifies spending the last attempt.
func retryAfter(attempt int, phase float64) bool {
	switch attempt {
	case 1:
		return phaseSuspect(phase)
	case 2:
		return phase < strictPhaseThreshold
	}
	return false
}

// AdaptiveSolve runs the transient solver and signal extraction for a single
// frequency task, re-running at 100x tighter tolerance while the extracted
// phase looks degenerate, up to 3 attempts in total. The final attempt's
// coefficients are accepted regardless of quality; Flagged marks cells where
// the budget ran out with the phase still failing the wide check.
func AdaptiveSolve(solver TransientSolver, state *DeviceState, req SolveRequest, method ExtractMethod) (CellResult, error) {
	omega := 2 * math.Pi * req.Frequency

	var res CellResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		trace, err := solver.Solve(state, req)
		if err != nil {
			return CellResult{}, err
		}
		coeff, ionic, err := ExtractCoefficients(trace, omega, method, req.CalcIonicCurrent)
		if err != nil {
			return CellResult{}, err
		}

		res = CellResult{
			Coeff:    coeff,
			Ionic:    ionic,
			Attempts: attempt,
			MaxTime:  trace.MaxTime,
			Trace:    trace,
		}

		if !retryAfter(attempt, coeff.Phase) {
			break
		}
		req.RelTol /= tolTightenFactor
		log.Printf("adaptive solve: %s f=%.3g Hz attempt %d phase=%.4g rad suspect, retrying at RelTol=%.3g",
			state.Label, req.Frequency, attempt, coeff.Phase, req.RelTol)
	}

	res.Flagged = res.Attempts == maxAttempts && phaseSuspect(res.Coeff.Phase)
	return res, nil
}
