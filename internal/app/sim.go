package app

import (
	"fmt"
	"strconv"

	"isingsim/internal/core"
	"isingsim/internal/ising"
	"isingsim/internal/lattice"
	prng "isingsim/pkg/core"
)

// Keys of the adjustable parameters.
const (
	KeyTemperature = "temp"
	KeyField       = "h"
)

var controls = []core.ParameterControl{
	{Key: KeyTemperature, Label: "Temperature", Step: 0.05, Min: 0, HasMin: true},
	{Key: KeyField, Label: "Field", Step: 0.05, Min: -5, Max: 5, HasMin: true, HasMax: true},
}

// LatticeSim runs an Ising engine behind the core.Sim and core.Tunable
// contracts so the viewer can drive it.
type LatticeSim struct {
	size  int
	kind  lattice.Kind
	cfg   ising.Config
	eng   *ising.Engine
	cells []uint8
}

var (
	_ core.Sim     = (*LatticeSim)(nil)
	_ core.Tunable = (*LatticeSim)(nil)
)

// NewLatticeSim validates cfg and builds the first lattice from seed.
func NewLatticeSim(cfg *Config, seed int64) (*LatticeSim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, _ := lattice.ParseKind(cfg.Topology)
	eng := ising.DefaultConfig()
	eng.Temperature = cfg.Temperature
	eng.Field = cfg.Field
	eng.Topology = kind
	s := &LatticeSim{size: cfg.Size, kind: kind, cfg: eng}
	if err := s.build(seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LatticeSim) build(seed int64) error {
	rng := prng.NewRNG(seed)
	topo, err := lattice.Build(s.size, s.kind, rng)
	if err != nil {
		return err
	}
	eng, err := ising.NewEngine(topo, s.cfg, rng, ising.Options{})
	if err != nil {
		return err
	}
	s.eng = eng
	return nil
}

// Name identifies the lattice in the window title.
func (s *LatticeSim) Name() string { return "ising " + s.kind.String() }

// Size returns the lattice dimensions.
func (s *LatticeSim) Size() core.Size { return core.Size{W: s.size, H: s.size} }

// Reset rebuilds the lattice from seed, keeping the current T and H.
func (s *LatticeSim) Reset(seed int64) {
	s.cfg = s.eng.Config()
	if err := s.build(seed); err != nil {
		panic(fmt.Sprintf("app: rebuild lattice: %v", err))
	}
}

// Step performs one Metropolis sweep.
func (s *LatticeSim) Step() { s.eng.Sweep() }

// Cells reports 1 for spin up and 0 for spin down.
func (s *LatticeSim) Cells() []uint8 {
	s.cells = s.eng.Topology().SpinBytes(s.cells)
	return s.cells
}

// Engine exposes the underlying engine.
func (s *LatticeSim) Engine() *ising.Engine { return s.eng }

// Parameters returns the read-outs shown under the controls.
func (s *LatticeSim) Parameters() []core.Parameter {
	topo := s.eng.Topology()
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	return []core.Parameter{
		{Key: "m", Label: "M", Value: f(s.eng.Magnetization())},
		{Key: "e", Label: "E", Value: f(s.eng.Hamiltonian())},
		{Key: "t", Label: "t", Value: strconv.FormatUint(s.eng.Time(), 10)},
		{Key: "deg_avg", Label: "deg avg", Value: f(topo.DegAvg)},
		{Key: "deg_mse", Label: "deg mse", Value: f(topo.DegMSE)},
		{Key: "free", Label: "free sites", Value: strconv.Itoa(topo.FreeSites)},
	}
}

// ParameterControls lists the adjustable parameters.
func (s *LatticeSim) ParameterControls() []core.ParameterControl { return controls }

// FloatParameter returns T or H.
func (s *LatticeSim) FloatParameter(key string) (float64, bool) {
	switch key {
	case KeyTemperature:
		return s.eng.Config().Temperature, true
	case KeyField:
		return s.eng.Config().Field, true
	}
	return 0, false
}

// SetFloatParameter changes T or H within the control bounds.
func (s *LatticeSim) SetFloatParameter(key string, v float64) bool {
	for _, c := range controls {
		if c.Key != key {
			continue
		}
		v = c.Clamp(v)
		switch key {
		case KeyTemperature:
			s.eng.SetTemperature(v)
		case KeyField:
			s.eng.SetField(v)
		}
		return true
	}
	return false
}
