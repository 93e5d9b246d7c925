package ising

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"isingsim/internal/lattice"
)

// MachineEpsilon is the float64 unit roundoff used as the default
// equilibrium tolerance.
const MachineEpsilon = 2.220446049250313e-16

// DefaultEquilibriumSteps caps the sweeps spent on a single equilibration.
const DefaultEquilibriumSteps = 100_000_000

// Config holds the thermodynamic parameters of one run. Protocols advance
// Temperature and Field between equilibrations; everything else is fixed.
type Config struct {
	Temperature float64 `json:"temp"`
	Field       float64 `json:"h"`
	Coupling    float64 `json:"j"`
	Boltzmann   float64 `json:"kb"`

	// EquilibriumSteps is the sweep cap for one equilibration. The relaxation
	// protocol runs exactly this many sweeps per temperature instead.
	EquilibriumSteps int     `json:"equilibrium_steps"`
	EqThreshold      float64 `json:"eq_threshold"`

	Topology lattice.Kind `json:"network_type"`
}

// DefaultConfig returns unit coupling and Boltzmann constant, zero field and
// the machine-epsilon equilibrium test.
func DefaultConfig() Config {
	return Config{
		Temperature:      1,
		Field:            0,
		Coupling:         1,
		Boltzmann:        1,
		EquilibriumSteps: DefaultEquilibriumSteps,
		EqThreshold:      MachineEpsilon,
		Topology:         lattice.Regular,
	}
}

// Validate reports parameters the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || math.IsNaN(c.Temperature) {
		errs = append(errs, fmt.Errorf("temperature must be non-negative, got %v", c.Temperature))
	}
	if c.Boltzmann <= 0 {
		errs = append(errs, fmt.Errorf("boltzmann constant must be positive, got %v", c.Boltzmann))
	}
	if c.EquilibriumSteps <= 0 {
		errs = append(errs, fmt.Errorf("equilibrium steps must be positive, got %d", c.EquilibriumSteps))
	}
	if c.EqThreshold < 0 {
		errs = append(errs, fmt.Errorf("eq threshold must be non-negative, got %v", c.EqThreshold))
	}
	if _, err := c.Topology.MarshalText(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FromMap applies key=value overrides on top of base. Recognised keys are
// temp, h, j, kb, eq_steps, eq_threshold and topology. Unknown keys and
// unparsable values are reported as errors.
func FromMap(base Config, kv map[string]string) (Config, error) {
	c := base
	for k, v := range kv {
		var err error
		switch k {
		case "temp":
			c.Temperature, err = strconv.ParseFloat(v, 64)
		case "h":
			c.Field, err = strconv.ParseFloat(v, 64)
		case "j":
			c.Coupling, err = strconv.ParseFloat(v, 64)
		case "kb":
			c.Boltzmann, err = strconv.ParseFloat(v, 64)
		case "eq_steps":
			c.EquilibriumSteps, err = strconv.Atoi(v)
		case "eq_threshold":
			c.EqThreshold, err = strconv.ParseFloat(v, 64)
		case "topology":
			c.Topology, err = lattice.ParseKind(v)
		default:
			err = errors.New("unknown key")
		}
		if err != nil {
			return base, fmt.Errorf("override %s=%s: %w", k, v, err)
		}
	}
	c.Coupling, c.Boltzmann = Round(c.Coupling), Round(c.Boltzmann)
	return c, nil
}

// PhaseConfig drives the temperature sweep.
type PhaseConfig struct {
	TMin  float64 `json:"t_min"`
	TMax  float64 `json:"t_max"`
	TStep float64 `json:"t_step"`
}

// Validate checks the sweep bounds.
func (p PhaseConfig) Validate() error {
	if p.TStep <= 0 {
		return fmt.Errorf("t_step must be positive, got %v", p.TStep)
	}
	if p.TMin < 0 {
		return fmt.Errorf("t_min must be non-negative, got %v", p.TMin)
	}
	if p.TMax > 0 && p.TMax < p.TMin {
		return fmt.Errorf("t_max %v below t_min %v", p.TMax, p.TMin)
	}
	return nil
}

// HysteresisConfig drives the field loop.
type HysteresisConfig struct {
	HMin   float64 `json:"h_min"`
	HMax   float64 `json:"h_max"`
	HStep  float64 `json:"h_step"`
	HStart float64 `json:"h_start"`
}

// Validate checks the loop bounds.
func (h HysteresisConfig) Validate() error {
	if h.HStep <= 0 {
		return fmt.Errorf("h_step must be positive, got %v", h.HStep)
	}
	if h.HMax <= h.HMin {
		return fmt.Errorf("h_max %v must exceed h_min %v", h.HMax, h.HMin)
	}
	if h.HStart < h.HMin || h.HStart > h.HMax {
		return fmt.Errorf("h_start %v outside [%v, %v]", h.HStart, h.HMin, h.HMax)
	}
	return nil
}
