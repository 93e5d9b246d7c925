// Package output writes everything a finished run leaves on disk: the CSV
// time series, the JSON descriptor, lattice frames and the summary plot.
package output

import (
	"fmt"
	"path/filepath"
	"strconv"

	"isingsim/internal/ising"
	"isingsim/internal/lattice"
)

// File names inside a run directory.
const (
	DataFile       = "data.csv"
	DescriptorFile = "desc.json"
	PlotFile       = "plot.png"
	DegreeFile     = "degrees.png"
	FramesDir      = "frames"
)

// RunParams are the values that identify a run directory.
type RunParams struct {
	Protocol ising.Protocol
	Kind     lattice.Kind
	Size     int
	// Step and Max are the sweep step and upper bound: T for phase and
	// relaxation, H for hysteresis.
	Step float64
	Max  float64
	// Temp is the fixed temperature of a hysteresis run.
	Temp    float64
	Seed    int64
	EqSteps int
}

// RunDir returns the directory for a run under root:
//
//	<root>/<kind>/phase/size=_step=_max=_seed=_eq=
//	<root>/<kind>/hys/size=_step=_max=_temp=_seed=_eq=
//	<root>/<kind>/relax/size=_step=_max=_seed=_eq=
func RunDir(root string, p RunParams) string {
	var sub, leaf string
	switch p.Protocol {
	case ising.Hysteresis:
		sub = "hys"
		leaf = fmt.Sprintf("size=%d_step=%s_max=%s_temp=%s_seed=%d_eq=%d",
			p.Size, num(p.Step), num(p.Max), num(p.Temp), p.Seed, p.EqSteps)
	default:
		sub = p.Protocol.String()
		leaf = fmt.Sprintf("size=%d_step=%s_max=%s_seed=%d_eq=%d",
			p.Size, num(p.Step), num(p.Max), p.Seed, p.EqSteps)
	}
	return filepath.Join(root, p.Kind.String(), sub, leaf)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
