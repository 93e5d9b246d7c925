package ising

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"isingsim/internal/lattice"
)

// ErrPhaseNotCrossed is returned when the phase sweep passes TMax while the
// magnetisation is still non-negative.
var ErrPhaseNotCrossed = errors.New("ising: magnetisation did not change sign before t_max")

// Protocol names a sweep protocol.
type Protocol uint8

const (
	Phase Protocol = iota
	Hysteresis
	Relaxation
)

// String returns the protocol name used on the command line and in paths.
func (p Protocol) String() string {
	switch p {
	case Phase:
		return "phase"
	case Hysteresis:
		return "hysteresis"
	case Relaxation:
		return "relax"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// ParseProtocol maps a protocol name to its value.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "phase":
		return Phase, nil
	case "hysteresis", "hys":
		return Hysteresis, nil
	case "relax", "relaxation":
		return Relaxation, nil
	}
	return 0, fmt.Errorf("ising: unknown protocol %q", s)
}

// Record is one emitted data point. Param is T for the phase and relaxation
// protocols and H for hysteresis. Eta is only set by the relaxation protocol.
type Record struct {
	Time          uint64
	Sweeps        uint64
	Param         float64
	Magnetization float64
	Energy        float64
	Eta           float64
	// Forced marks an equilibration that stopped at the sweep cap.
	Forced bool
}

// Sink consumes records as they are produced.
type Sink interface {
	Write(Record) error
}

// Summary describes a finished protocol run.
type Summary struct {
	Records int
	Forced  int
	Final   Snapshot
}

func (s *Summary) emit(sink Sink, r Record) error {
	if err := sink.Write(r); err != nil {
		return fmt.Errorf("write record %d: %w", s.Records, err)
	}
	s.Records++
	if r.Forced {
		s.Forced++
	}
	return nil
}

func (e *Engine) record(param float64, forced bool) Record {
	return Record{
		Time:          e.time,
		Sweeps:        e.n,
		Param:         param,
		Magnetization: e.Magnetization(),
		Energy:        e.Hamiltonian(),
		Forced:        forced,
	}
}

// RunPhase aligns every spin up, then alternately equilibrates and raises the
// temperature by TStep until the magnetisation turns negative. One record is
// emitted per equilibrated temperature.
func RunPhase(e *Engine, cfg PhaseConfig, sink Sink) (Summary, error) {
	var sum Summary
	if err := cfg.Validate(); err != nil {
		return sum, fmt.Errorf("ising: phase: %w", err)
	}
	e.SetTemperature(cfg.TMin)
	e.Align(lattice.Up)

	for e.Magnetization() >= 0 {
		t := e.cfg.Temperature
		if cfg.TMax > 0 && t > Round(cfg.TMax) {
			sum.Final = e.Snapshot()
			return sum, fmt.Errorf("%w (T=%v, M=%v)", ErrPhaseNotCrossed, t, e.Magnetization())
		}
		forced := e.Equilibrate("T", t)
		if err := sum.emit(sink, e.record(t, forced)); err != nil {
			return sum, err
		}
		e.report("T", t)
		e.SetTemperature(t + cfg.TStep)
	}
	sum.Final = e.Snapshot()
	return sum, nil
}

// RunHysteresis relaxes the lattice at HStart without recording, then walks
// the field in steps of HStep, turning around at HMin and HMax. It stops when
// HMax is reached for the second time, so starting inside the range each
// extreme is recorded exactly once.
func RunHysteresis(e *Engine, cfg HysteresisConfig, sink Sink) (Summary, error) {
	var sum Summary
	if err := cfg.Validate(); err != nil {
		return sum, fmt.Errorf("ising: hysteresis: %w", err)
	}
	hMin, hMax := Round(cfg.HMin), Round(cfg.HMax)

	e.SetField(cfg.HStart)
	e.Equilibrate("H", e.cfg.Field)

	dir := 1.0
	sawMax := false
	for {
		h := e.cfg.Field
		if h >= hMax && sawMax {
			break
		}
		if h >= hMax {
			dir = -1
			sawMax = true
		} else if h <= hMin {
			dir = 1
		}

		forced := e.Equilibrate("H", h)
		if err := sum.emit(sink, e.record(h, forced)); err != nil {
			return sum, err
		}
		e.report("H", h)
		e.SetField(h + dir*cfg.HStep)
	}
	sum.Final = e.Snapshot()
	return sum, nil
}

// RunRelaxation aligns every spin up and, for each temperature from TMin to
// TMax, runs exactly EquilibriumSteps sweeps, recording the relative energy
// change η after every sweep.
func RunRelaxation(e *Engine, cfg PhaseConfig, sink Sink) (Summary, error) {
	var sum Summary
	if err := cfg.Validate(); err != nil {
		return sum, fmt.Errorf("ising: relax: %w", err)
	}
	if cfg.TMax <= 0 {
		return sum, fmt.Errorf("ising: relax: t_max must be positive")
	}
	e.Align(lattice.Up)

	steps := e.cfg.EquilibriumSteps
	for t := Round(cfg.TMin); t <= Round(cfg.TMax); t = Round(t + cfg.TStep) {
		e.SetTemperature(t)
		e.Recompute()
		e.n = 0
		for k := 0; k < steps; k++ {
			prev := e.Hamiltonian()
			e.Sweep()
			r := e.record(t, false)
			r.Time = e.n
			r.Eta = relativeChange(prev, r.Energy)
			if err := sum.emit(sink, r); err != nil {
				return sum, err
			}
		}
		e.report("T", t)
	}
	sum.Final = e.Snapshot()
	return sum, nil
}

func relativeChange(prev, next float64) float64 {
	if prev == 0 {
		if next == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs((next - prev) / prev)
}
