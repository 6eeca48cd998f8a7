package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kacperjurak/goimpsweep"
	"github.com/kacperjurak/goimpsweep/pkg/config"
	"github.com/kacperjurak/goimpsweep/pkg/devicesim"
	"github.com/kacperjurak/goimpsweep/pkg/publish"
	"github.com/kacperjurak/goimpsweep/pkg/render"
)

func main() {
	cfg := parseFlags()

	states := make([]*goimpsweep.DeviceState, 0, len(cfg.Intensities))
	for _, sun := range cfg.Intensities {
		states = append(states, &goimpsweep.DeviceState{
			Label:          fmt.Sprintf("sun_%g", sun),
			LightIntensity: sun,
			IonMobility:    1e-10,
			OpenCircuit:    true,
		})
	}

	req := goimpsweep.SweepRequest{
		StartFreq:           cfg.StartFreq,
		EndFreq:             cfg.EndFreq,
		FreqPoints:          int(cfg.FreqPoints),
		DeltaV:              cfg.DeltaV,
		BoundaryCondition:   goimpsweep.BCSelective,
		FrozenIons:          cfg.FrozenIons,
		CalcIonicCurrent:    cfg.IonicCurrent,
		Periods:             int(cfg.Periods),
		PointsPerPeriod:     int(cfg.PointsPerPeriod),
		BaseRelTol:          cfg.BaseRelTol,
		Method:              parseMethod(cfg.Method),
		Parallelize:         cfg.Parallelize,
		MaxWorkers:          int(cfg.Workers),
		SavePerRunSolutions: cfg.SaveSolutions,
		SaveResult:          cfg.SaveResult,
	}

	hooks := goimpsweep.Hooks{}
	if cfg.ImgSave {
		hooks.Renderer = render.New(render.Context{Dir: cfg.ImgPath, Size: cfg.ImgSize})
	}
	if cfg.SaveSolutions {
		hooks.OnRunComplete = func(label string, trace *goimpsweep.Trace) {
			if !cfg.Quiet {
				log.Printf("run %s: %d samples, max time %.3g s", label, len(trace.Time), trace.MaxTime)
			}
		}
	}
	if cfg.WebhookURL != "" {
		client := publish.NewClient(cfg.WebhookURL)
		hooks.OnResult = func(label string, res *goimpsweep.SweepResult) {
			if err := client.Send(label, res); err != nil {
				log.Printf("webhook: %v", err)
			}
		}
		req.SaveResult = true
	}

	res, err := goimpsweep.RunSweep(goimpsweep.StateSet(states...), req, devicesim.New(), devicesim.NewBuilder(), hooks)
	if err != nil {
		log.Println("sweep failed:", err)
		os.Exit(1)
	}

	if !cfg.Quiet {
		printSummary(res)
	}
}

func parseFlags() *config.Sweep {
	cfg := config.DefaultSweep()

	intensities := config.ArrayFlags{}
	flag.Var(&intensities, "intensity", "Background light intensity in suns (repeatable)")
	flag.Float64Var(&cfg.StartFreq, "fstart", cfg.StartFreq, "Sweep start frequency in Hz (high end)")
	flag.Float64Var(&cfg.EndFreq, "fend", cfg.EndFreq, "Sweep end frequency in Hz (low end)")
	flag.UintVar(&cfg.FreqPoints, "points", cfg.FreqPoints, "Number of log-spaced frequency points")
	flag.Float64Var(&cfg.DeltaV, "deltav", cfg.DeltaV, "Voltage oscillation amplitude in V")
	flag.UintVar(&cfg.Periods, "periods", cfg.Periods, "Oscillation periods per run")
	flag.UintVar(&cfg.PointsPerPeriod, "ppp", cfg.PointsPerPeriod, "Samples per oscillation period")
	flag.Float64Var(&cfg.BaseRelTol, "reltol", cfg.BaseRelTol, "Baseline solver relative tolerance")
	flag.StringVar(&cfg.Method, "method", cfg.Method, "Extraction method (fitting or demodulation)")
	flag.BoolVar(&cfg.FrozenIons, "frozen-ions", cfg.FrozenIons, "Zero ionic mobility before simulating")
	flag.BoolVar(&cfg.IonicCurrent, "ionic", cfg.IonicCurrent, "Extract the ionic-drift current too")
	flag.BoolVar(&cfg.Parallelize, "parallel", cfg.Parallelize, "Run frequency tasks in parallel")
	flag.UintVar(&cfg.Workers, "workers", cfg.Workers, "Parallel task limit (0 = unbounded)")
	flag.BoolVar(&cfg.SaveSolutions, "save-solutions", cfg.SaveSolutions, "Publish per-run solutions (sequential mode only)")
	flag.BoolVar(&cfg.SaveResult, "save-result", cfg.SaveResult, "Publish the aggregate result")
	flag.BoolVar(&cfg.ImgSave, "img-save", cfg.ImgSave, "Save result plots")
	flag.StringVar(&cfg.ImgPath, "img-path", cfg.ImgPath, "Plot output directory")
	flag.UintVar(&cfg.ImgSize, "img-size", cfg.ImgSize, "Plot edge size in px")
	flag.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "Webhook URL for the finished result")
	flag.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Suppress verbose output")

	flag.Parse()

	if len(intensities) > 0 {
		cfg.Intensities = intensities
	}
	return cfg
}

func parseMethod(name string) goimpsweep.ExtractMethod {
	switch name {
	case "fitting":
		return goimpsweep.MethodFitting
	case "demodulation":
		return goimpsweep.MethodDemodulation
	default:
		log.Printf("unknown extraction method %q, using demodulation", name)
		return goimpsweep.MethodDemodulation
	}
}

func printSummary(res *goimpsweep.SweepResult) {
	rows, cols := res.Freqs.Dims()
	log.Printf("sweep done: %d intensities x %d frequencies, sun index %d", rows, cols, res.SunIndex)
	for i := 0; i < rows; i++ {
		log.Printf("  %g sun (Voc %.3f V): |Z| %.4g..%.4g Ohm, attempts max %g",
			res.Intensities[i], res.Voc[i],
			res.Total.Impedance.Magnitude.At(i, 0),
			res.Total.Impedance.Magnitude.At(i, cols-1),
			mat64RowMax(res.Attempts, i))
	}
}

func mat64RowMax(m interface {
	Dims() (int, int)
	At(int, int) float64
}, row int) float64 {
	_, cols := m.Dims()
	max := 0.0
	for j := 0; j < cols; j++ {
		if v := m.At(row, j); v > max {
			max = v
		}
	}
	return max
}
