package goimpsweep

import (
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrNoBuilder indicates an open-circuit state in a sweep without a
// DeviceStateBuilder to asymmetricize it.
var ErrNoBuilder = errors.New("goimpsweep: open-circuit state but no device state builder")

// SweepRequest carries all parameters of one impedance sweep.
type SweepRequest struct {
	StartFreq  float64 // Hz, high end (sweep runs high-to-low)
	EndFreq    float64 // Hz, low end
	FreqPoints int

	DeltaV            float64 // V, oscillation amplitude
	BoundaryCondition BoundaryCondition
	FrozenIons        bool
	CalcIonicCurrent  bool

	Periods         int
	PointsPerPeriod int
	BaseRelTol      float64
	Method          ExtractMethod

	Parallelize bool
	MaxWorkers  int // >0 bounds the parallel task count, 0 = unbounded

	// SavePerRunSolutions publishes each finalized task's trace through
	// Hooks.OnRunComplete. Only honored in sequential mode: the publication
	// side channel is not safe to invoke from concurrent tasks, so the
	// combination with Parallelize is ignored with a logged warning.
	SavePerRunSolutions bool
	// SaveResult publishes the finished record through Hooks.OnResult.
	SaveResult bool
}

// Renderer receives the finished record for plotting. Rendering is a side
// effect only; errors are logged and do not fail the sweep.
type Renderer interface {
	VsFrequency(res *SweepResult) error
	Nyquist(res *SweepResult) error
}

// Hooks are the optional side-channel outputs of a sweep. None are required
// for correctness.
type Hooks struct {
	OnRunComplete func(label string, trace *Trace)
	OnResult      func(label string, res *SweepResult)
	Renderer      Renderer
}

// SweepInput normalizes the accepted input shapes: a single bare device state
// or a collection, both handled as a uniform sequence internally.
type SweepInput struct {
	states []*DeviceState
}

// SingleState wraps one bare device state.
func SingleState(s *DeviceState) SweepInput {
	return SweepInput{states: []*DeviceState{s}}
}

// StateSet wraps an intensity ensemble, one state per background intensity.
func StateSet(states ...*DeviceState) SweepInput {
	return SweepInput{states: states}
}

// sweepRun is the working state of one sweep invocation. The result matrices
// are written by frequency tasks at disjoint (row, col) cells, so parallel
// tasks for one intensity never conflict.
type sweepRun struct {
	req     SweepRequest
	solver  TransientSolver
	builder DeviceStateBuilder
	hooks   Hooks

	freqGrid    []float64
	freqs       *mat.Dense
	intensities []float64
	vocs        []float64
	total       rowMatrices
	ionic       rowMatrices
	attempts    *mat.Dense
	flagged     *mat.Dense
	maxTimes    *mat.Dense
}

// RunSweep performs impedance spectroscopy over the input device states and
// the log-spaced frequency grid, returning the assembled result matrices.
// A single failing task aborts the whole sweep; there are no partial results.
func RunSweep(input SweepInput, req SweepRequest, solver TransientSolver, builder DeviceStateBuilder, hooks Hooks) (*SweepResult, error) {
	if len(input.states) == 0 {
		return nil, ErrNoStates
	}
	grid, err := FrequencyGrid(req.StartFreq, req.EndFreq, req.FreqPoints)
	if err != nil {
		return nil, err
	}

	if req.Parallelize && req.SavePerRunSolutions {
		log.Printf("sweep: per-run solution publishing is not available in parallel mode, ignoring")
	}

	rows, cols := len(input.states), len(grid)
	r := &sweepRun{
		req:         req,
		solver:      solver,
		builder:     builder,
		hooks:       hooks,
		freqGrid:    grid,
		freqs:       mat.NewDense(rows, cols, nil),
		intensities: make([]float64, rows),
		vocs:        make([]float64, rows),
		total:       newRowMatrices(rows, cols),
		ionic:       newRowMatrices(rows, cols),
		attempts:    mat.NewDense(rows, cols, nil),
		flagged:     mat.NewDense(rows, cols, nil),
		maxTimes:    mat.NewDense(rows, cols, nil),
	}

	for i, state := range input.states {
		if err := r.sweepIntensity(i, state); err != nil {
			return nil, err
		}
	}

	res := r.aggregate()

	if req.SaveResult && hooks.OnResult != nil {
		hooks.OnResult(resultLabel(input.states), res)
	}
	if hooks.Renderer != nil {
		if err := hooks.Renderer.VsFrequency(res); err != nil {
			log.Printf("sweep: frequency plot failed: %v", err)
		}
		if err := hooks.Renderer.Nyquist(res); err != nil {
			log.Printf("sweep: nyquist plot failed: %v", err)
		}
	}
	return res, nil
}

// sweepIntensity prepares one device state and runs its frequency row.
func (r *sweepRun) sweepIntensity(row int, state *DeviceState) error {
	st := state.Clone()
	r.intensities[row] = st.LightIntensity

	if st.OpenCircuit {
		if r.builder == nil {
			return ErrNoBuilder
		}
		asym, voc, err := r.builder.Asymmetricize(st, r.req.BoundaryCondition)
		if err != nil {
			return fmt.Errorf("asymmetricize %s: %w", st.Label, err)
		}
		st, r.vocs[row] = asym, voc
	}
	if r.req.FrozenIons {
		st.IonMobility = 0
	}

	for j, f := range r.freqGrid {
		r.freqs.Set(row, j, f)
	}

	log.Printf("sweep: intensity %g sun (%s), %d frequencies, parallel=%t",
		st.LightIntensity, st.Label, len(r.freqGrid), r.req.Parallelize)
	return r.sweepFrequencies(row, st)
}

// sweepFrequencies runs one task per grid frequency against an immutable
// device state. Each task carries its own tolerance in its SolveRequest copy,
// so no mutable state is shared between concurrent tasks.
func (r *sweepRun) sweepFrequencies(row int, state *DeviceState) error {
	if !r.req.Parallelize {
		for j, f := range r.freqGrid {
			cell, err := r.runTask(row, j, f, state)
			if err != nil {
				return err
			}
			if r.req.SavePerRunSolutions && r.hooks.OnRunComplete != nil {
				r.hooks.OnRunComplete(runLabel(state, f), cell.Trace)
			}
		}
		return nil
	}

	var g errgroup.Group
	if r.req.MaxWorkers > 0 {
		g.SetLimit(r.req.MaxWorkers)
	}
	for j, f := range r.freqGrid {
		j, f := j, f
		g.Go(func() error {
			_, err := r.runTask(row, j, f, state)
			return err
		})
	}
	return g.Wait()
}

// runTask executes the adaptive solve for one cell and writes its outputs.
func (r *sweepRun) runTask(row, col int, freq float64, state *DeviceState) (CellResult, error) {
	req := SolveRequest{
		BoundaryCondition: r.req.BoundaryCondition,
		DeltaV:            r.req.DeltaV,
		Frequency:         freq,
		Periods:           r.req.Periods,
		PointsPerPeriod:   r.req.PointsPerPeriod,
		CalcIonicCurrent:  r.req.CalcIonicCurrent,
		RelTol:            r.req.BaseRelTol,
	}
	cell, err := AdaptiveSolve(r.solver, state, req, r.req.Method)
	if err != nil {
		return CellResult{}, fmt.Errorf("intensity %g sun, %g Hz: %w", state.LightIntensity, freq, err)
	}

	r.total.set(row, col, cell.Coeff)
	r.ionic.set(row, col, cell.Ionic)
	r.attempts.Set(row, col, float64(cell.Attempts))
	if cell.Flagged {
		r.flagged.Set(row, col, 1)
	}
	r.maxTimes.Set(row, col, cell.MaxTime)
	return cell, nil
}

func runLabel(state *DeviceState, freq float64) string {
	return fmt.Sprintf("%s_%.3gHz", state.Label, freq)
}

func resultLabel(states []*DeviceState) string {
	if len(states) == 1 {
		return states[0].Label
	}
	return fmt.Sprintf("%s_x%d", states[0].Label, len(states))
}
