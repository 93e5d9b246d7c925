package output

import (
	"errors"
	"fmt"
	"math"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"

	"isingsim/internal/ising"
)

// ErrTooFewPoints is returned when a curve cannot be drawn.
var ErrTooFewPoints = errors.New("output: need at least two points to plot")

// Curve collects the points of the summary plot while a run streams
// records. For phase and hysteresis it plots M against the swept parameter;
// for relaxation it plots η against the cumulative sweep index. Curve
// implements ising.Sink.
type Curve struct {
	protocol ising.Protocol
	xs, ys   []float64
}

// NewCurve returns an empty curve for p.
func NewCurve(p ising.Protocol) *Curve {
	return &Curve{protocol: p}
}

// Write appends the point for r. Non-finite values are skipped.
func (c *Curve) Write(r ising.Record) error {
	x, y := r.Param, r.Magnetization
	if c.protocol == ising.Relaxation {
		x, y = float64(len(c.xs)+1), r.Eta
	}
	if math.IsInf(y, 0) || math.IsNaN(y) {
		return nil
	}
	c.xs = append(c.xs, x)
	c.ys = append(c.ys, y)
	return nil
}

// Len returns the number of collected points.
func (c *Curve) Len() int { return len(c.xs) }

// Render draws the curve as a PNG at path.
func (c *Curve) Render(path, title string) error {
	if len(c.xs) < 2 {
		return ErrTooFewPoints
	}

	xName, yName := "T", "M"
	yRange := &chart.ContinuousRange{Min: -1, Max: 1}
	switch c.protocol {
	case ising.Hysteresis:
		xName = "H"
	case ising.Relaxation:
		xName, yName = "sweep", "η"
		top := 0.0
		for _, y := range c.ys {
			top = math.Max(top, y)
		}
		if top == 0 {
			top = 1
		}
		yRange = &chart.ContinuousRange{Min: 0, Max: top * 1.05}
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1000,
		Height: 700,
		XAxis: chart.XAxis{
			Name:  xName,
			Style: chart.Style{FontSize: 10.0},
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Style: chart.Style{FontSize: 10.0},
			Range: yRange,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yName,
				XValues: c.xs,
				YValues: c.ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return fmt.Errorf("render plot: %w", err)
	}
	return f.Close()
}

// Tee fans each record out to every sink, stopping at the first error.
type Tee []ising.Sink

// Write implements ising.Sink.
func (t Tee) Write(r ising.Record) error {
	for _, s := range t {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}
