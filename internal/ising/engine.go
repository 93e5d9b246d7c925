// Package ising implements the Metropolis Monte Carlo engine for a spin
// lattice and the sweep protocols built on it.
//
// Energy bookkeeping follows
//
//	H_internal = -J/2 · Σ_i s_i · Σ_{j∈adj(i)} s_j
//	H_external = -H · Σ_i s_i
//
// Every float result is rounded to Precision so long runs stay comparable and
// equilibrium tests do not chase rounding noise.
package ising

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"isingsim/internal/lattice"
	"isingsim/internal/logging"
	"isingsim/internal/progress"
	prng "isingsim/pkg/core"
)

// Precision is the rounding denominator applied to energies and parameters.
const Precision = 1e9

// invariantTolerance bounds the allowed gap between tracked and recomputed energy.
const invariantTolerance = 1e-6

// Round rounds x to 1/Precision.
func Round(x float64) float64 {
	return math.Round(x*Precision) / Precision
}

// FrameSink receives lattice snapshots for visualisation.
type FrameSink interface {
	Frame(time uint64, topo *lattice.Topology) error
}

// Options wires the engine to its collaborators. All fields are optional.
type Options struct {
	Reporter progress.Reporter
	Logger   *slog.Logger
	Frames   FrameSink
	// FrameEvery emits a frame every this many sweeps; zero disables frames.
	FrameEvery uint64
	// StatusEvery sends a status line every this many sweeps while
	// equilibrating; zero limits status to one line per recorded step.
	StatusEvery uint64
}

// Snapshot captures the engine scalars before a sweep.
type Snapshot struct {
	SpinSum       int64
	HamInternal   float64
	HamExternal   float64
	Magnetization float64
}

// Hamiltonian returns the total energy of the snapshot.
func (s Snapshot) Hamiltonian() float64 { return Round(s.HamInternal + s.HamExternal) }

// SweepStats summarises one sweep.
type SweepStats struct {
	Attempts int
	Accepted int
	// MaxAcceptedDelta is the largest ΔH among accepted flips, or -Inf when
	// nothing was accepted.
	MaxAcceptedDelta float64
}

// Engine owns a topology and advances it with single-site Metropolis updates.
// An Engine is not safe for concurrent use.
type Engine struct {
	topo *lattice.Topology
	cfg  Config
	rng  *prng.RNG
	opts Options
	log  *slog.Logger

	spinSum     int64
	hamInternal float64
	hamExternal float64

	time uint64
	n    uint64
}

// NewEngine binds a topology, configuration and run RNG. Energies are
// computed from scratch before returning.
func NewEngine(topo *lattice.Topology, cfg Config, rng *prng.RNG, opts Options) (*Engine, error) {
	if topo == nil {
		return nil, fmt.Errorf("ising: nil topology")
	}
	// J and k_B live on the rounding grid like T and H.
	cfg.Coupling, cfg.Boltzmann = Round(cfg.Coupling), Round(cfg.Boltzmann)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ising: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	e := &Engine{topo: topo, cfg: cfg, rng: rng, opts: opts, log: log}
	e.Recompute()
	return e, nil
}

// Topology exposes the lattice. Callers must not mutate spins directly.
func (e *Engine) Topology() *lattice.Topology { return e.topo }

// Config returns the current configuration including the advanced T and H.
func (e *Engine) Config() Config { return e.cfg }

// Time returns the total number of sweeps performed.
func (e *Engine) Time() uint64 { return e.time }

// Sweeps returns the sweeps spent in the current equilibration.
func (e *Engine) Sweeps() uint64 { return e.n }

// SpinSum returns Σ s_i.
func (e *Engine) SpinSum() int64 { return e.spinSum }

// HamInternal returns the pairwise coupling energy.
func (e *Engine) HamInternal() float64 { return e.hamInternal }

// HamExternal returns the field energy.
func (e *Engine) HamExternal() float64 { return e.hamExternal }

// Hamiltonian returns the total energy.
func (e *Engine) Hamiltonian() float64 { return Round(e.hamInternal + e.hamExternal) }

// Magnetization returns Σ s_i / N², always within [-1, 1].
func (e *Engine) Magnetization() float64 {
	return float64(e.spinSum) / float64(e.topo.Sites())
}

// SetTemperature changes T, rounded to Precision.
func (e *Engine) SetTemperature(t float64) { e.cfg.Temperature = Round(t) }

// SetField changes H and recomputes the field energy.
func (e *Engine) SetField(h float64) {
	e.cfg.Field = Round(h)
	e.hamExternal = Round(-e.cfg.Field * float64(e.spinSum))
}

// Snapshot captures the scalars used by the equilibrium test.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		SpinSum:       e.spinSum,
		HamInternal:   e.hamInternal,
		HamExternal:   e.hamExternal,
		Magnetization: e.Magnetization(),
	}
}

// Align forces every spin to s and recomputes all scalars.
func (e *Engine) Align(s lattice.Spin) {
	e.topo.Align(s)
	e.Recompute()
}

// Randomize reassigns every spin from the run RNG and recomputes.
func (e *Engine) Randomize() {
	e.topo.Randomize(e.rng)
	e.Recompute()
}

// Recompute rebuilds spin sum and both energy terms from the lattice.
func (e *Engine) Recompute() {
	e.spinSum, e.hamInternal, e.hamExternal = e.measure()
}

func (e *Engine) measure() (spinSum int64, internal, external float64) {
	pair := 0
	for i, s := range e.topo.Spins.Cells() {
		spinSum += int64(s)
		pair += int(s) * e.topo.NeighbourSum(i)
	}
	internal = Round(-e.cfg.Coupling / 2 * float64(pair))
	external = Round(-e.cfg.Field * float64(spinSum))
	return spinSum, internal, external
}

// localEnergy is the energy of site i's bonds and field term when it holds s.
func (e *Engine) localEnergy(s lattice.Spin, neighbours int) (internal, external float64) {
	return -e.cfg.Coupling * float64(s) * float64(neighbours), -e.cfg.Field * float64(s)
}

// Delta returns the internal and external energy change of flipping site i,
// obtained by differencing the local energy before and after the flip.
func (e *Engine) Delta(i int) (internal, external float64) {
	s := e.topo.Spins.At(i)
	ns := e.topo.NeighbourSum(i)
	inBefore, exBefore := e.localEnergy(s, ns)
	inAfter, exAfter := e.localEnergy(-s, ns)
	return Round(inAfter - inBefore), Round(exAfter - exBefore)
}

// TryFlip applies the Metropolis rule at site i. A uniform draw is consumed on
// every call so the RNG stream does not depend on acceptance.
func (e *Engine) TryFlip(i int) (accepted bool, delta float64) {
	dIn, dEx := e.Delta(i)
	delta = Round(dIn + dEx)
	u := e.rng.Float64()
	if delta > 0 && u >= math.Exp(-delta/(e.cfg.Boltzmann*e.cfg.Temperature)) {
		return false, delta
	}
	s := e.topo.Flip(i)
	e.spinSum += 2 * int64(s)
	e.hamInternal = Round(e.hamInternal + dIn)
	e.hamExternal = Round(e.hamExternal + dEx)
	return true, delta
}

// Sweep attempts one flip per site in a freshly shuffled order, advances the
// clocks and reconciles the tracked scalars with a full recomputation.
func (e *Engine) Sweep() SweepStats {
	stats := SweepStats{MaxAcceptedDelta: math.Inf(-1)}
	for _, i := range e.rng.Perm(e.topo.Sites()) {
		stats.Attempts++
		if ok, d := e.TryFlip(i); ok {
			stats.Accepted++
			stats.MaxAcceptedDelta = math.Max(stats.MaxAcceptedDelta, d)
		}
	}
	e.time++
	e.n++
	e.reconcile()

	if e.log.Enabled(context.Background(), logging.LevelTrace) {
		e.log.Log(context.Background(), logging.LevelTrace, "sweep",
			"t", e.time, "n", e.n, "accepted", stats.Accepted, "attempts", stats.Attempts,
			"max_delta", stats.MaxAcceptedDelta, "M", e.Magnetization(), "E", e.Hamiltonian())
	}

	if e.opts.Frames != nil && e.opts.FrameEvery > 0 && e.time%e.opts.FrameEvery == 0 {
		if err := e.opts.Frames.Frame(e.time, e.topo); err != nil {
			e.log.Warn("frame write failed", "time", e.time, "err", err)
		}
	}
	return stats
}

func (e *Engine) reconcile() {
	spinSum, internal, external := e.measure()
	if spinSum != e.spinSum ||
		math.Abs(internal-e.hamInternal) > invariantTolerance ||
		math.Abs(external-e.hamExternal) > invariantTolerance {
		msg := fmt.Sprintf("energy bookkeeping drift at t=%d: tracked (%d, %v, %v) recomputed (%d, %v, %v)",
			e.time, e.spinSum, e.hamInternal, e.hamExternal, spinSum, internal, external)
		if strictInvariants {
			panic(msg)
		}
		e.log.Warn(msg)
	}
	e.spinSum, e.hamInternal, e.hamExternal = spinSum, internal, external
}

// AtEquilibrium compares the current state against a snapshot taken before
// the last sweep. Energy must be unchanged, and either the magnetisation is
// unchanged or the spin-sum change is exactly what flipping every free site
// would produce.
func (e *Engine) AtEquilibrium(before Snapshot) bool {
	eps := e.cfg.EqThreshold
	if math.Abs(e.Hamiltonian()-before.Hamiltonian()) >= eps {
		return false
	}
	dSum := e.spinSum - before.SpinSum
	if dSum < 0 {
		dSum = -dSum
	}
	if dSum == 2*int64(e.topo.FreeSites) {
		return true
	}
	return math.Abs(e.Magnetization()-before.Magnetization) <= eps
}

// Equilibrate sweeps until AtEquilibrium holds or the sweep cap is reached.
// forced reports the latter.
func (e *Engine) Equilibrate(param string, value float64) (forced bool) {
	e.n = 0
	limit := uint64(e.cfg.EquilibriumSteps)
	for {
		before := e.Snapshot()
		e.Sweep()
		if e.AtEquilibrium(before) {
			return false
		}
		if e.n >= limit {
			e.log.Warn("equilibrium not reached", param, value, "sweeps", e.n)
			return true
		}
		if e.opts.StatusEvery > 0 && e.n%e.opts.StatusEvery == 0 {
			e.report(param, value)
		}
	}
}

func (e *Engine) report(param string, value float64) {
	e.opts.Reporter.Sendf("%s: %v, M: %v, deg_MSE: %v, deg_avg: %v, E: %v, t: %d, n: %d",
		param, value, e.Magnetization(), e.topo.DegMSE, e.topo.DegAvg, e.Hamiltonian(), e.time, e.n)
}
