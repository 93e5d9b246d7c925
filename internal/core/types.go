package core

// Size describes the dimensions of a simulation grid.
type Size struct {
	W int
	H int
}

// Sim is the minimal contract a lattice must satisfy to be shown by the live
// viewer. Cells reports one byte per site (non-zero for spin up).
type Sim interface {
	Name() string
	Size() Size
	Reset(seed int64)
	Step()
	Cells() []uint8
}
