package config

import (
	"strconv"
)

// ArrayFlags collects repeatable float flags (e.g. -intensity 1 -intensity 0.1).
type ArrayFlags []float64

func (a *ArrayFlags) String() string {
	return "ArrayFlags"
}

func (a *ArrayFlags) Set(value string) error {
	if val, err := strconv.ParseFloat(value, 64); err == nil {
		*a = append(*a, val)
		return nil
	} else {
		return err
	}
}

// Sweep holds all configuration settings for an impedance sweep run.
type Sweep struct {
	Intensities     ArrayFlags
	StartFreq       float64
	EndFreq         float64
	FreqPoints      uint
	DeltaV          float64
	Periods         uint
	PointsPerPeriod uint
	BaseRelTol      float64
	Method          string // "fitting" or "demodulation"
	FrozenIons      bool
	IonicCurrent    bool
	Parallelize     bool
	Workers         uint
	SaveSolutions   bool
	SaveResult      bool
	ImgSave         bool
	ImgPath         string
	ImgDPI          uint
	ImgSize         uint
	WebhookURL      string
	Quiet           bool
}

// DefaultSweep returns a configuration with sensible defaults: a 1 MHz to
// 10 mHz sweep at 1 mV oscillation, long enough for demodulation to settle.
func DefaultSweep() *Sweep {
	return &Sweep{
		Intensities:     ArrayFlags{1, 0.1, 0},
		StartFreq:       1e6,
		EndFreq:         1e-2,
		FreqPoints:      23,
		DeltaV:          1e-3,
		Periods:         20,
		PointsPerPeriod: 40,
		BaseRelTol:      1e-6,
		Method:          "demodulation",
		Parallelize:     true,
		Workers:         5,
		ImgPath:         ".",
		ImgDPI:          300,
		ImgSize:         800,
		Quiet:           false,
	}
}
