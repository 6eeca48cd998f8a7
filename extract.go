package goimpsweep

import (
	"fmt"
	"log"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/optimize"
)

// demodSkipPeriods is the number of leading drive periods excluded from the
// lock-in window so the settling transient does not bias the correlation.
const demodSkipPeriods = 2

// ExtractCoefficients fits bias + amp*sin(omega*t + phase) to the total
// current of a trace and, when wantIonic is set, to its ionic-drift component.
// The result is best-effort: a poor fit is returned, not rejected, since fit
// quality is judged by the retry controller.
func ExtractCoefficients(trace *Trace, omega float64, method ExtractMethod, wantIonic bool) (FitCoefficients, FitCoefficients, error) {
	var zero FitCoefficients
	if trace == nil || len(trace.Time) == 0 || len(trace.Time) != len(trace.Current) {
		return zero, zero, ErrEmptyTrace
	}
	if wantIonic && len(trace.IonicCurrent) != len(trace.Time) {
		return zero, zero, ErrNoIonicTrace
	}

	extract := func(y []float64) FitCoefficients {
		switch method {
		case MethodDemodulation:
			return demodulate(trace.Time, y, omega)
		default:
			return fitSine(trace.Time, y, omega)
		}
	}

	coeff := extract(trace.Current)
	var ionic FitCoefficients
	if wantIonic {
		ionic = extract(trace.IonicCurrent)
	}
	return coeff, ionic, nil
}

// fitSine runs a 3-parameter nonlinear least-squares fit, seeded by a lock-in
// estimate over the whole trace. Falls back to Nelder-Mead when LM fails.
func fitSine(t, y []float64, omega float64) FitCoefficients {
	seed := lockin(t, y, omega, 0)
	init := []float64{seed.Bias, seed.Amplitude, seed.Phase}

	fnc := func(dst, x []float64) {
		for i, ti := range t {
			dst[i] = x[0] + x[1]*math.Sin(omega*ti+x[2]) - y[i]
		}
	}
	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        3,
		Size:       len(y),
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-13,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	params, err := runLM(problem)
	if err != nil {
		log.Printf("sine fit: LM failed (%v), falling back to Nelder-Mead", err)
		params = nmSine(t, y, omega, init)
	}

	return normalizeCoefficients(FitCoefficients{Bias: params[0], Amplitude: params[1], Phase: params[2]})
}

// runLM isolates the lm call so a panic inside it (e.g. singular matrix)
// degrades into a fallback instead of killing the sweep task.
func runLM(problem lm.LMProblem) (params []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lm panicked: %v", r)
		}
	}()
	res, err := lm.LM(problem, &lm.Settings{Iterations: 1000, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, err
	}
	return res.X, nil
}

func nmSine(t, y []float64, omega float64, init []float64) []float64 {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			ss := 0.0
			for i, ti := range t {
				d := x[0] + x[1]*math.Sin(omega*ti+x[2]) - y[i]
				ss += d * d
			}
			return ss
		},
	}
	res, err := optimize.Minimize(problem, init, nil, &optimize.NelderMead{})
	if err != nil {
		log.Printf("sine fit: Nelder-Mead failed too (%v), keeping lock-in seed", err)
		return init
	}
	return res.X
}

// demodulate estimates the coefficients by lock-in correlation over the final
// periods, discarding the first demodSkipPeriods to exclude the transient.
func demodulate(t, y []float64, omega float64) FitCoefficients {
	skip := demodSkipPeriods
	if periods := periodCount(t, omega); periods <= skip {
		skip = 0
	}
	return normalizeCoefficients(lockin(t, y, omega, skip))
}

// lockin correlates y against reference sin/cos over whole periods starting
// after skip periods. The window always spans an integer number of periods, so
// trapezoid integration of the periodic integrands is effectively exact.
func lockin(t, y []float64, omega float64, skip int) FitCoefficients {
	period := 2 * math.Pi / omega
	start := 0
	if skip > 0 {
		dt := t[1] - t[0]
		start = int(math.Round(float64(skip) * period / dt))
		if start >= len(t)-1 {
			start = 0
		}
	}
	tw, yw := t[start:], y[start:]

	var inphase, quadrature, mean float64
	for i := 0; i < len(tw)-1; i++ {
		dt := tw[i+1] - tw[i]
		s0, s1 := yw[i]*math.Sin(omega*tw[i]), yw[i+1]*math.Sin(omega*tw[i+1])
		c0, c1 := yw[i]*math.Cos(omega*tw[i]), yw[i+1]*math.Cos(omega*tw[i+1])
		inphase += dt * (s0 + s1) / 2
		quadrature += dt * (c0 + c1) / 2
		mean += dt * (yw[i] + yw[i+1]) / 2
	}
	span := tw[len(tw)-1] - tw[0]
	if span == 0 {
		return FitCoefficients{Bias: yw[0]}
	}
	inphase *= 2 / span
	quadrature *= 2 / span
	mean /= span

	return FitCoefficients{
		Bias:      mean,
		Amplitude: math.Hypot(inphase, quadrature),
		Phase:     math.Atan2(quadrature, inphase),
	}
}

// normalizeCoefficients forces the amplitude sign dictated by the current
// convention (negative, opposing the drive) and wraps the phase to (-pi, pi].
func normalizeCoefficients(c FitCoefficients) FitCoefficients {
	if c.Amplitude > 0 {
		c.Amplitude = -c.Amplitude
		c.Phase += math.Pi
	}
	c.Phase = wrapPhase(c.Phase)
	return c
}

func wrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p > math.Pi {
		p -= 2 * math.Pi
	} else if p <= -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

func periodCount(t []float64, omega float64) int {
	span := t[len(t)-1] - t[0]
	return int(math.Round(span * omega / (2 * math.Pi)))
}
