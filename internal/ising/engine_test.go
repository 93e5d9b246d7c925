package ising

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isingsim/internal/core"
	"isingsim/internal/lattice"
	"isingsim/internal/logging"
	prng "isingsim/pkg/core"
)

func newEngine(t *testing.T, size int, kind lattice.Kind, seed int64, cfg Config) *Engine {
	t.Helper()
	rng := prng.NewRNG(seed)
	topo, err := lattice.Build(size, kind, rng)
	require.NoError(t, err)
	cfg.Topology = kind
	e, err := NewEngine(topo, cfg, rng, Options{})
	require.NoError(t, err)
	return e
}

func TestRecomputeAligned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Field = 0.5
	e := newEngine(t, 4, lattice.Regular, 1, cfg)
	e.Align(lattice.Up)

	assert.Equal(t, int64(16), e.SpinSum())
	assert.Equal(t, -32.0, e.HamInternal())
	assert.Equal(t, -8.0, e.HamExternal())
	assert.Equal(t, -40.0, e.Hamiltonian())
	assert.Equal(t, 1.0, e.Magnetization())

	e.Align(lattice.Down)
	assert.Equal(t, -1.0, e.Magnetization())
	assert.Equal(t, 8.0, e.HamExternal())
}

func TestDeltaMatchesClosedForm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Field = 0.3
	cfg.Coupling = 1.5
	for _, kind := range []lattice.Kind{lattice.Regular, lattice.Irregular} {
		e := newEngine(t, 6, kind, 11, cfg)
		topo := e.Topology()
		for i := 0; i < topo.Sites(); i++ {
			s := float64(topo.Spins.At(i))
			dIn, dEx := e.Delta(i)
			assert.InDelta(t, 2*cfg.Coupling*s*float64(topo.NeighbourSum(i)), dIn, 1e-9)
			assert.InDelta(t, 2*cfg.Field*s, dEx, 1e-9)
		}
	}
}

func TestTrackedEnergyMatchesRecompute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature = 2.2
	cfg.Field = 0.1
	e := newEngine(t, 8, lattice.Irregular, 5, cfg)
	for i := 0; i < 200; i++ {
		_, _ = e.TryFlip(i % 64)
		sum, in, ex := e.measure()
		require.Equal(t, sum, e.SpinSum())
		require.InDelta(t, in, e.HamInternal(), 1e-9)
		require.InDelta(t, ex, e.HamExternal(), 1e-9)
	}
}

func TestSweepDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature = 2.3
	for _, kind := range []lattice.Kind{lattice.Regular, lattice.Irregular} {
		a := newEngine(t, 12, kind, 77, cfg)
		b := newEngine(t, 12, kind, 77, cfg)
		for i := 0; i < 30; i++ {
			sa, sb := a.Sweep(), b.Sweep()
			require.Equal(t, sa, sb, "sweep %d stats differ", i)
			require.Equal(t, a.Topology().Spins.Cells(), b.Topology().Spins.Cells())
			require.Equal(t, a.Hamiltonian(), b.Hamiltonian())
		}
		assert.Equal(t, uint64(30), a.Time())
	}
}

func TestZeroTemperatureRejectsUphillMoves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature = 1e-12
	for _, kind := range []lattice.Kind{lattice.Regular, lattice.Irregular} {
		for _, h := range []float64{0, 0.4} {
			cfg.Field = h
			e := newEngine(t, 10, kind, 3, cfg)
			prev := e.Hamiltonian()
			for i := 0; i < 25; i++ {
				stats := e.Sweep()
				assert.Equal(t, 100, stats.Attempts)
				if stats.Accepted > 0 {
					require.LessOrEqual(t, stats.MaxAcceptedDelta, 0.0)
				}
				require.LessOrEqual(t, e.Hamiltonian(), prev, "energy rose at T→0")
				prev = e.Hamiltonian()
			}
		}
	}
}

func TestMagnetizationBound(t *testing.T) {
	for _, temp := range []float64{0.5, 2.27, 6} {
		cfg := DefaultConfig()
		cfg.Temperature = temp
		cfg.Field = -0.2
		e := newEngine(t, 7, lattice.Irregular, 19, cfg)
		for i := 0; i < 50; i++ {
			e.Sweep()
			m := e.Magnetization()
			require.GreaterOrEqual(t, m, -1.0)
			require.LessOrEqual(t, m, 1.0)
		}
	}
}

// freeTopology is a 2x2 lattice where sites 0 and 1 are bonded and 2 and 3
// have no neighbours.
func freeTopology() *lattice.Topology {
	adj := core.NewGrid[[]int](2, 2, nil)
	adj.Set(0, []int{1})
	adj.Set(1, []int{0})
	spins := core.NewGrid(2, 2, func(x, y int) lattice.Spin { return lattice.Up })
	return &lattice.Topology{Size: 2, Kind: lattice.Irregular, Spins: spins, Adjacency: adj, DegAvg: 0.5, DegMSE: 12.5, FreeSites: 2}
}

func TestAtEquilibriumFreeSites(t *testing.T) {
	e, err := NewEngine(freeTopology(), DefaultConfig(), prng.NewRNG(1), Options{})
	require.NoError(t, err)

	before := e.Snapshot()
	assert.True(t, e.AtEquilibrium(before), "unchanged state is at equilibrium")

	// Flipping both free sites leaves the energy alone and moves the spin sum
	// by exactly 2 × free sites.
	e.topo.Flip(2)
	e.topo.Flip(3)
	e.Recompute()
	assert.Equal(t, before.Hamiltonian(), e.Hamiltonian())
	assert.True(t, e.AtEquilibrium(before))

	// A single free flip changes M without matching the free-site signature.
	mid := e.Snapshot()
	e.topo.Flip(2)
	e.Recompute()
	assert.False(t, e.AtEquilibrium(mid))

	// Breaking the bond changes the energy.
	mid = e.Snapshot()
	e.topo.Flip(0)
	e.Recompute()
	assert.False(t, e.AtEquilibrium(mid))
}

func TestEquilibrateForcedAtCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature = 50
	cfg.EquilibriumSteps = 3
	cfg.EqThreshold = 0
	e := newEngine(t, 10, lattice.Regular, 2, cfg)
	// A zero threshold makes |ΔH| < ε impossible.
	assert.True(t, e.Equilibrate("T", 50))
	assert.Equal(t, uint64(3), e.Sweeps())
}

func TestEquilibrateFrozenLattice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Temperature = 0.01
	e := newEngine(t, 10, lattice.Regular, 2, cfg)
	e.Align(lattice.Up)
	assert.False(t, e.Equilibrate("T", 0.01))
	assert.Equal(t, uint64(1), e.Sweeps())
}

type countingFrames struct{ times []uint64 }

func (c *countingFrames) Frame(time uint64, _ *lattice.Topology) error {
	c.times = append(c.times, time)
	return nil
}

func TestFramesEveryInterval(t *testing.T) {
	rng := prng.NewRNG(4)
	topo, err := lattice.Build(5, lattice.Regular, rng)
	require.NoError(t, err)
	frames := &countingFrames{}
	e, err := NewEngine(topo, DefaultConfig(), rng, Options{Frames: frames, FrameEvery: 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		e.Sweep()
	}
	assert.Equal(t, []uint64{3, 6, 9}, frames.times)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	rng := prng.NewRNG(1)
	topo, err := lattice.Build(3, lattice.Regular, rng)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Boltzmann = 0
	_, err = NewEngine(topo, cfg, rng, Options{})
	assert.Error(t, err)
	_, err = NewEngine(nil, DefaultConfig(), rng, Options{})
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.8, Round(0.7+0.1))
	assert.Equal(t, 0.3, Round(0.1+0.2))
	assert.Equal(t, -1.0, Round(-0.9999999999))
	assert.True(t, math.IsInf(Round(math.Inf(1)), 1))
}

func TestOffGridCouplingStaysReconciled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coupling = 1.0 / 3
	cfg.Temperature = 1.5
	cfg.Field = 0.2
	e := newEngine(t, 20, lattice.Irregular, 9, cfg)
	assert.Equal(t, Round(1.0/3), e.Config().Coupling)

	for i := 0; i < 20000; i++ {
		_, _ = e.TryFlip(i % 400)
	}
	_, in, ex := e.measure()
	assert.InDelta(t, in, e.HamInternal(), 1e-9)
	assert.InDelta(t, ex, e.HamExternal(), 1e-9)
}

func TestSweepTraceLogging(t *testing.T) {
	rng := prng.NewRNG(6)
	topo, err := lattice.Build(4, lattice.Regular, rng)
	require.NoError(t, err)

	var buf bytes.Buffer
	e, err := NewEngine(topo, DefaultConfig(), rng, Options{Logger: logging.NewLogger("trace", &buf)})
	require.NoError(t, err)
	e.Sweep()
	e.Sweep()
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=sweep"))
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "attempts=16")

	buf.Reset()
	e.log = logging.NewLogger("debug", &buf)
	e.Sweep()
	assert.Empty(t, buf.String())
}
