// Package render draws the finished sweep matrices with gonum/plot:
// capacitance against frequency and a Nyquist plot, one line per background
// intensity. Display state is carried by an explicit Context rather than any
// process-global toggle.
package render

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/kacperjurak/goimpsweep"
)

// Context is the explicit rendering context: where plots go and how large
// they are rendered.
type Context struct {
	Dir  string
	Size uint // nominal pixel edge, rendered at 100 px/inch
}

// Renderer implements goimpsweep.Renderer on top of gonum/plot.
type Renderer struct {
	Ctx Context
}

func New(ctx Context) *Renderer {
	if ctx.Size == 0 {
		ctx.Size = 800
	}
	return &Renderer{Ctx: ctx}
}

func (r *Renderer) edge() vg.Length {
	return vg.Length(r.Ctx.Size) / 100 * vg.Inch
}

// VsFrequency plots the total-current capacitance over the frequency grid on
// log-log axes. Non-finite cells (zero-amplitude degeneracies) are skipped.
func (r *Renderer) VsFrequency(res *goimpsweep.SweepResult) error {
	p := plot.New()
	p.Title.Text = "Capacitance vs frequency"
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Capacitance (F)"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	var lines []interface{}
	rows, cols := res.Freqs.Dims()
	for i := 0; i < rows; i++ {
		xys := make(plotter.XYs, 0, cols)
		for j := 0; j < cols; j++ {
			x := res.Freqs.At(i, j)
			y := res.Total.Impedance.Capacitance.At(i, j)
			if !finitePositive(x) || !finitePositive(y) {
				continue
			}
			xys = append(xys, plotter.XY{X: x, Y: y})
		}
		lines = append(lines, fmt.Sprintf("%g sun", res.Intensities[i]), xys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("render: capacitance plot: %w", err)
	}
	return r.save(p, "capacitance_vs_frequency.png")
}

// Nyquist plots Re(Z) against -Im(Z) for the total current.
func (r *Renderer) Nyquist(res *goimpsweep.SweepResult) error {
	p := plot.New()
	p.Title.Text = "Nyquist"
	p.X.Label.Text = "Z' (Ohm)"
	p.Y.Label.Text = "-Z'' (Ohm)"

	var lines []interface{}
	rows, cols := res.Freqs.Dims()
	for i := 0; i < rows; i++ {
		xys := make(plotter.XYs, 0, cols)
		for j := 0; j < cols; j++ {
			re := res.Total.Impedance.Real.At(i, j)
			im := res.Total.Impedance.Imag.At(i, j)
			if !finite(re) || !finite(im) {
				continue
			}
			xys = append(xys, plotter.XY{X: re, Y: im})
		}
		lines = append(lines, fmt.Sprintf("%g sun", res.Intensities[i]), xys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("render: nyquist plot: %w", err)
	}
	return r.save(p, "nyquist.png")
}

func (r *Renderer) save(p *plot.Plot, name string) error {
	path := filepath.Join(r.Ctx.Dir, name)
	if err := p.Save(r.edge(), r.edge(), path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePositive(v float64) bool {
	return finite(v) && v > 0
}
