// Package runner expands a sweep plan into jobs and runs them concurrently,
// one pinned goroutine per job, with live progress on a shared channel.
package runner

import (
	"errors"
	"fmt"
	"slices"

	"isingsim/internal/ising"
	"isingsim/internal/lattice"
	"isingsim/internal/output"
)

// ErrEmptyPlan is returned when a plan expands to no jobs.
var ErrEmptyPlan = errors.New("runner: plan has no jobs")

// Job is one independent simulation run.
type Job struct {
	Name     string
	Protocol ising.Protocol
	Kind     lattice.Kind
	Size     int
	Seed     int64
	EqSteps  int
	// Temp is the fixed temperature of a hysteresis run.
	Temp float64

	Engine     ising.Config
	Phase      ising.PhaseConfig
	Hysteresis ising.HysteresisConfig
}

// Params returns the values that name the job's output directory.
func (j Job) Params() output.RunParams {
	p := output.RunParams{
		Protocol: j.Protocol,
		Kind:     j.Kind,
		Size:     j.Size,
		Seed:     j.Seed,
		EqSteps:  j.EqSteps,
		Step:     j.Phase.TStep,
		Max:      j.Phase.TMax,
	}
	if j.Protocol == ising.Hysteresis {
		p.Step, p.Max, p.Temp = j.Hysteresis.HStep, j.Hysteresis.HMax, j.Temp
	}
	return p
}

// EngineConfig returns the engine configuration the job starts from.
func (j Job) EngineConfig() ising.Config {
	cfg := j.Engine
	cfg.Topology = j.Kind
	cfg.EquilibriumSteps = j.EqSteps
	switch j.Protocol {
	case ising.Hysteresis:
		cfg.Temperature = j.Temp
	default:
		cfg.Temperature = j.Phase.TMin
	}
	return cfg
}

// Plan describes a batch of runs as value lists whose cross product gives
// the jobs.
type Plan struct {
	Protocol ising.Protocol
	Kinds    []lattice.Kind
	Size     int
	Seeds    []int64
	// EqSteps defaults to Engine.EquilibriumSteps when empty.
	EqSteps []int
	// Temps lists hysteresis temperatures; required for hysteresis.
	Temps []float64

	Engine     ising.Config
	Phase      ising.PhaseConfig
	Hysteresis ising.HysteresisConfig
}

// Expand validates p and returns kind × seed × eq-steps (× temperature for
// hysteresis) jobs. Repeated values are dropped so every job name is unique.
func Expand(p Plan) ([]Job, error) {
	if p.Size <= 0 {
		return nil, fmt.Errorf("runner: %w: %d", lattice.ErrInvalidSize, p.Size)
	}
	eqSteps := p.EqSteps
	if len(eqSteps) == 0 {
		eqSteps = []int{p.Engine.EquilibriumSteps}
	}
	for _, n := range eqSteps {
		if n <= 0 {
			return nil, fmt.Errorf("runner: eq steps must be positive, got %d", n)
		}
	}
	switch p.Protocol {
	case ising.Phase:
		if err := p.Phase.Validate(); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
	case ising.Relaxation:
		if err := p.Phase.Validate(); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		if p.Phase.TMax <= 0 {
			return nil, errors.New("runner: relax needs a positive t_max")
		}
	case ising.Hysteresis:
		if err := p.Hysteresis.Validate(); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		if len(p.Temps) == 0 {
			return nil, errors.New("runner: hysteresis needs at least one temperature")
		}
	default:
		return nil, fmt.Errorf("runner: unknown protocol %v", p.Protocol)
	}

	temps := []float64{0}
	if p.Protocol == ising.Hysteresis {
		temps = dedupe(p.Temps)
	}

	var jobs []Job
	for _, kind := range dedupe(p.Kinds) {
		for _, temp := range temps {
			for _, seed := range dedupe(p.Seeds) {
				for _, eq := range dedupe(eqSteps) {
					j := Job{
						Protocol:   p.Protocol,
						Kind:       kind,
						Size:       p.Size,
						Seed:       seed,
						EqSteps:    eq,
						Temp:       temp,
						Engine:     p.Engine,
						Phase:      p.Phase,
						Hysteresis: p.Hysteresis,
					}
					j.Name = jobName(j)
					if err := j.EngineConfig().Validate(); err != nil {
						return nil, fmt.Errorf("runner: %s: %w", j.Name, err)
					}
					jobs = append(jobs, j)
				}
			}
		}
	}
	if len(jobs) == 0 {
		return nil, ErrEmptyPlan
	}
	return jobs, nil
}

func jobName(j Job) string {
	if j.Protocol == ising.Hysteresis {
		return fmt.Sprintf("%s, T=%v, seed=%d, eq=%d", j.Kind, j.Temp, j.Seed, j.EqSteps)
	}
	return fmt.Sprintf("%s, seed=%d, eq=%d", j.Kind, j.Seed, j.EqSteps)
}

func dedupe[T comparable](xs []T) []T {
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}
