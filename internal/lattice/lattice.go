// Package lattice builds the spin lattices simulated by the Ising engine: a
// periodic N×N grid of ±1 spins plus a neighbour list per site.
//
// Two topologies are supported. Regular links every site to its four axis
// neighbours. Irregular considers all eight surrounding sites and keeps each
// undirected pair with probability one half, so degrees range from 0 to 8.
package lattice

import (
	"errors"
	"fmt"
	"strings"

	"isingsim/internal/core"
	prng "isingsim/pkg/core"
)

// Spin is the state of a single site.
type Spin int8

const (
	Down Spin = -1
	Up   Spin = 1
)

// Kind selects the adjacency builder.
type Kind uint8

const (
	Regular Kind = iota
	Irregular
)

// IdealDegree is the degree of every site of a regular lattice.
const IdealDegree = 4

var (
	// ErrInvalidSize indicates a non-positive lattice size.
	ErrInvalidSize = errors.New("lattice: size must be positive")
	// ErrUnknownKind indicates an unrecognised topology name or value.
	ErrUnknownKind = errors.New("lattice: unknown topology kind")
)

var (
	axisOffsets = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	ringOffsets = [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

// String returns the lowercase topology name.
func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Irregular:
		return "irregular"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a topology name to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regular":
		return Regular, nil
	case "irregular":
		return Irregular, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k != Regular && k != Irregular {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Topology is a spin lattice with its neighbour relation. Degree statistics
// are computed once by Build and never change afterwards.
type Topology struct {
	Size      int
	Kind      Kind
	Spins     *core.Grid[Spin]
	Adjacency *core.Grid[[]int]

	DegAvg    float64
	DegMSE    float64
	FreeSites int
}

// Build constructs a topology of the given kind. All randomness (irregular
// edge coins first, then spins in row-major order) comes from rng, so the
// same (size, kind, seed) always yields the same lattice.
func Build(size int, kind Kind, rng *prng.RNG) (*Topology, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	var adj *core.Grid[[]int]
	switch kind {
	case Regular:
		adj = regularAdjacency(size)
	case Irregular:
		adj = irregularAdjacency(size, rng)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}

	t := &Topology{Size: size, Kind: kind, Spins: core.NewGrid[Spin](size, size, nil), Adjacency: adj}
	t.Randomize(rng)
	t.DegAvg, t.DegMSE, t.FreeSites = degreeStats(adj)
	return t, nil
}

func regularAdjacency(size int) *core.Grid[[]int] {
	adj := core.NewGrid[[]int](size, size, nil)
	cells := adj.Cells()
	for i := range cells {
		x, y := adj.Pos(i)
		ns := make([]int, 0, len(axisOffsets))
		for _, d := range axisOffsets {
			ns = append(ns, adj.Index(x+d[0], y+d[1]))
		}
		cells[i] = ns
	}
	return adj
}

func irregularAdjacency(size int, rng *prng.RNG) *core.Grid[[]int] {
	adj := core.NewGrid[[]int](size, size, nil)
	cells := adj.Cells()
	decided := make(map[[2]int]struct{}, len(cells)*len(ringOffsets)/2)
	for i := range cells {
		x, y := adj.Pos(i)
		for _, d := range ringOffsets {
			j := adj.Index(x+d[0], y+d[1])
			if j == i {
				continue
			}
			key := [2]int{min(i, j), max(i, j)}
			if _, ok := decided[key]; ok {
				continue
			}
			decided[key] = struct{}{}
			if rng.Bool() {
				cells[i] = append(cells[i], j)
				cells[j] = append(cells[j], i)
			}
		}
	}
	return adj
}

func degreeStats(adj *core.Grid[[]int]) (avg, mse float64, free int) {
	cells := adj.Cells()
	if len(cells) == 0 {
		return 0, 0, 0
	}
	for _, ns := range cells {
		d := float64(len(ns))
		avg += d
		mse += (d - IdealDegree) * (d - IdealDegree)
		if len(ns) == 0 {
			free++
		}
	}
	n := float64(len(cells))
	return avg / n, mse / n, free
}

// Sites returns N².
func (t *Topology) Sites() int { return t.Size * t.Size }

// Degree returns the number of neighbours of site i.
func (t *Topology) Degree(i int) int { return len(t.Adjacency.At(i)) }

// NeighbourSum returns the sum of the spins adjacent to site i.
func (t *Topology) NeighbourSum(i int) int {
	sum := 0
	for _, j := range t.Adjacency.At(i) {
		sum += int(t.Spins.At(j))
	}
	return sum
}

// Flip inverts the spin at site i and returns the new value.
func (t *Topology) Flip(i int) Spin {
	s := -t.Spins.At(i)
	t.Spins.Set(i, s)
	return s
}

// Align sets every spin to s.
func (t *Topology) Align(s Spin) {
	t.Spins.Fill(s)
}

// Randomize reassigns every spin from rng in row-major order.
func (t *Topology) Randomize(rng *prng.RNG) {
	cells := t.Spins.Cells()
	for i := range cells {
		if rng.Bool() {
			cells[i] = Up
		} else {
			cells[i] = Down
		}
	}
}

// SpinBytes writes 1 for up and 0 for down into dst, growing it if needed.
func (t *Topology) SpinBytes(dst []uint8) []uint8 {
	cells := t.Spins.Cells()
	if cap(dst) < len(cells) {
		dst = make([]uint8, len(cells))
	}
	dst = dst[:len(cells)]
	for i, s := range cells {
		if s == Up {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return dst
}

// Degrees returns the neighbour count of every site in row-major order.
func (t *Topology) Degrees() []uint8 {
	cells := t.Adjacency.Cells()
	out := make([]uint8, len(cells))
	for i, ns := range cells {
		out[i] = uint8(len(ns))
	}
	return out
}
