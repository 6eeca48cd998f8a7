package goimpsweep

import "errors"

// Domain errors for sweep operations.
var (
	// ErrFreqPoints indicates a frequency grid request with fewer than two points.
	ErrFreqPoints = errors.New("goimpsweep: frequency grid needs at least 2 points")

	// ErrFreqBounds indicates a non-positive frequency bound.
	ErrFreqBounds = errors.New("goimpsweep: frequency bounds must be positive")

	// ErrNoStates indicates a sweep invoked without any device state.
	ErrNoStates = errors.New("goimpsweep: no device states provided")

	// ErrEmptyTrace indicates a solver trace with no samples.
	ErrEmptyTrace = errors.New("goimpsweep: empty current trace")

	// ErrNoIonicTrace indicates an ionic extraction request on a trace without ionic data.
	ErrNoIonicTrace = errors.New("goimpsweep: trace carries no ionic current")
)

// BoundaryCondition selects the contact model handed to the transient solver.
type BoundaryCondition int

const (
	// BCSelective models ideal selective contacts.
	BCSelective BoundaryCondition = iota
	// BCSelectiveFiniteSR models selective contacts with finite surface recombination.
	BCSelectiveFiniteSR
)

// DeviceState is the simulation state for one background light intensity.
// The sweep treats it as read-only; asymmetrization and ion freezing happen
// on copies before any solver call.
type DeviceState struct {
	Label          string
	LightIntensity float64 // suns
	IonMobility    float64 // cm2/(V s)
	OpenCircuit    bool    // symmetric equilibrium state, needs asymmetrization
	Params         map[string]float64
}

// Clone returns a deep copy safe to mutate without touching the caller's state.
func (s *DeviceState) Clone() *DeviceState {
	c := *s
	if s.Params != nil {
		c.Params = make(map[string]float64, len(s.Params))
		for k, v := range s.Params {
			c.Params[k] = v
		}
	}
	return &c
}

// Trace is the sampled output of one transient oscillation run.
type Trace struct {
	Time         []float64 // s, uniform grid over an integer number of drive periods
	Current      []float64 // A, total current
	IonicCurrent []float64 // A, ionic-drift component, nil unless requested
	MaxTime      float64   // s, maximum simulated time
}

// SolveRequest carries the drive and accuracy parameters for one transient run.
type SolveRequest struct {
	BoundaryCondition BoundaryCondition
	DeltaV            float64 // V, oscillation amplitude
	Frequency         float64 // Hz
	Periods           int
	PointsPerPeriod   int
	CalcIonicCurrent  bool
	RelTol            float64
}

// TransientSolver integrates the device transport equations under a sinusoidal
// voltage perturbation. Implementations are synchronous and non-cancelable.
type TransientSolver interface {
	Solve(state *DeviceState, req SolveRequest) (*Trace, error)
}

// DeviceStateBuilder splits a symmetric equilibrium state into an asymmetric
// biased one, returning the open-circuit voltage found in the process.
type DeviceStateBuilder interface {
	Asymmetricize(state *DeviceState, bc BoundaryCondition) (*DeviceState, float64, error)
}

// FitCoefficients describes one current component as bias + amp*sin(w*t + phase).
// Amplitude is negative under the model's current-sign convention; phase is in
// radians, wrapped to (-pi, pi].
type FitCoefficients struct {
	Bias      float64
	Amplitude float64
	Phase     float64
}

// ExtractMethod selects the signal extraction strategy.
type ExtractMethod int

const (
	// MethodFitting runs a nonlinear least-squares sine fit.
	MethodFitting ExtractMethod = iota
	// MethodDemodulation runs lock-in correlation against reference sin/cos.
	// Needs a comparatively long trace (>= 20 periods) for reliable phase.
	MethodDemodulation
)

func (m ExtractMethod) String() string {
	switch m {
	case MethodFitting:
		return "fitting"
	case MethodDemodulation:
		return "demodulation"
	}
	return "unknown"
}
