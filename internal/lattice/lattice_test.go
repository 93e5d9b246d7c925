package lattice

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prng "isingsim/pkg/core"
)

func build(t *testing.T, size int, kind Kind, seed int64) *Topology {
	t.Helper()
	topo, err := Build(size, kind, prng.NewRNG(seed))
	require.NoError(t, err)
	return topo
}

func TestRegularDegreeInvariant(t *testing.T) {
	for _, size := range []int{3, 4, 10, 17} {
		topo := build(t, size, Regular, 1)
		for i := 0; i < topo.Sites(); i++ {
			require.Lenf(t, topo.Adjacency.At(i), 4, "site %d of size %d", i, size)
		}
		assert.Equal(t, 4.0, topo.DegAvg)
		assert.Equal(t, 0.0, topo.DegMSE)
		assert.Zero(t, topo.FreeSites)
	}
}

func TestRegularNeighboursWrap(t *testing.T) {
	topo := build(t, 5, Regular, 1)
	// (0,0) links to (4,0), (1,0), (0,4), (0,1).
	assert.Equal(t, []int{4, 1, 20, 5}, topo.Adjacency.At(0))
	// (4,4) links to (3,4), (0,4), (4,3), (4,0).
	assert.Equal(t, []int{23, 20, 19, 4}, topo.Adjacency.At(24))
}

func TestIrregularSymmetry(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 99} {
		topo := build(t, 12, Irregular, seed)
		for i := 0; i < topo.Sites(); i++ {
			ns := topo.Adjacency.At(i)
			require.LessOrEqual(t, len(ns), 8)
			for _, j := range ns {
				require.NotEqual(t, i, j, "self link at %d", i)
				require.Truef(t, slices.Contains(topo.Adjacency.At(j), i),
					"seed %d: %d lists %d but not the reverse", seed, i, j)
			}
			seen := map[int]bool{}
			for _, j := range ns {
				require.Falsef(t, seen[j], "duplicate neighbour %d at site %d", j, i)
				seen[j] = true
			}
		}
	}
}

func TestIrregularDegreeStats(t *testing.T) {
	topo := build(t, 20, Irregular, 5)
	sum, mse, free := 0, 0.0, 0
	for i := 0; i < topo.Sites(); i++ {
		d := topo.Degree(i)
		sum += d
		mse += float64((d - 4) * (d - 4))
		if d == 0 {
			free++
		}
	}
	n := float64(topo.Sites())
	assert.InDelta(t, float64(sum)/n, topo.DegAvg, 1e-12)
	assert.InDelta(t, mse/n, topo.DegMSE, 1e-12)
	assert.Equal(t, free, topo.FreeSites)
	// Each of the 4 undirected candidate pairs per site is kept with p=1/2.
	assert.InDelta(t, 4.0, topo.DegAvg, 0.5)
}

func TestBuildDeterministic(t *testing.T) {
	for _, kind := range []Kind{Regular, Irregular} {
		a := build(t, 16, kind, 1234)
		b := build(t, 16, kind, 1234)
		require.Equal(t, a.Spins.Cells(), b.Spins.Cells(), kind.String())
		require.Equal(t, a.Adjacency.Cells(), b.Adjacency.Cells(), kind.String())
		require.Equal(t, a.DegMSE, b.DegMSE)

		c := build(t, 16, kind, 4321)
		require.NotEqual(t, a.Spins.Cells(), c.Spins.Cells(), "different seeds should give different spins")
	}
}

func TestSpinsAreSigned(t *testing.T) {
	topo := build(t, 10, Irregular, 8)
	ups := 0
	for _, s := range topo.Spins.Cells() {
		require.True(t, s == Up || s == Down)
		if s == Up {
			ups++
		}
	}
	assert.Greater(t, ups, 0)
	assert.Less(t, ups, topo.Sites())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(0, Regular, prng.NewRNG(1))
	assert.True(t, errors.Is(err, ErrInvalidSize))
	_, err = Build(4, Kind(9), prng.NewRNG(1))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"regular", Regular, false},
		{"Irregular", Irregular, false},
		{" regular ", Regular, false},
		{"hex", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlipAndNeighbourSum(t *testing.T) {
	topo := build(t, 4, Regular, 1)
	topo.Align(Up)
	assert.Equal(t, 4, topo.NeighbourSum(5))
	assert.Equal(t, Down, topo.Flip(6))
	assert.Equal(t, 2, topo.NeighbourSum(5))
	bytes := topo.SpinBytes(nil)
	assert.Equal(t, uint8(0), bytes[6])
	assert.Equal(t, uint8(1), bytes[5])
}

func TestDegreesMatchAdjacency(t *testing.T) {
	topo := build(t, 6, Irregular, 8)
	free := 0
	for i, d := range topo.Degrees() {
		assert.Equal(t, topo.Degree(i), int(d))
		if d == 0 {
			free++
		}
	}
	assert.Equal(t, topo.FreeSites, free)
}
