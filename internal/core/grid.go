package core

import (
	"encoding/json"
	"fmt"
)

// Grid stores a 2D grid of values in row-major order.
//
// Wrapping is applied only when translating coordinates with Index; At and Set
// take a linear index and are checked only by the backing slice.
type Grid[T any] struct {
	W, H int
	data []T
}

// NewGrid allocates a grid with the given dimensions, filling each cell with
// fill(x, y) when fill is non-nil.
func NewGrid[T any](w, h int, fill func(x, y int) T) *Grid[T] {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	g := &Grid[T]{W: w, H: h, data: make([]T, w*h)}
	if fill != nil {
		for i := range g.data {
			x, y := g.Pos(i)
			g.data[i] = fill(x, y)
		}
	}
	return g
}

// Len returns the number of cells, always W*H.
func (g *Grid[T]) Len() int { return len(g.data) }

// Cells exposes the backing slice so callers can read/write values directly.
func (g *Grid[T]) Cells() []T { return g.data }

// At returns the value stored at linear index i.
func (g *Grid[T]) At(i int) T { return g.data[i] }

// Set stores v at linear index i.
func (g *Grid[T]) Set(i int, v T) { g.data[i] = v }

// Index returns the linear slice index for coordinates (x, y) after toroidal
// wrapping.
func (g *Grid[T]) Index(x, y int) int {
	x, y = g.Wrap(x, y)
	return y*g.W + x
}

// Pos converts a linear index back to (x, y).
func (g *Grid[T]) Pos(i int) (int, int) {
	return i % g.W, i / g.W
}

// Wrap applies toroidal wrapping to the provided coordinates.
func (g *Grid[T]) Wrap(x, y int) (int, int) {
	x = (x%g.W + g.W) % g.W
	y = (y%g.H + g.H) % g.H
	return x, y
}

// Fill sets every cell to v.
func (g *Grid[T]) Fill(v T) {
	for i := range g.data {
		g.data[i] = v
	}
}

type gridJSON[T any] struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Xs     []T `json:"xs"`
}

// MarshalJSON encodes the grid as {"width", "height", "xs"}.
func (g *Grid[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(gridJSON[T]{Width: g.W, Height: g.H, Xs: g.data})
}

// UnmarshalJSON decodes the layout written by MarshalJSON.
func (g *Grid[T]) UnmarshalJSON(b []byte) error {
	var raw gridJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Width <= 0 || raw.Height <= 0 || len(raw.Xs) != raw.Width*raw.Height {
		return fmt.Errorf("grid: %d cells do not fill %dx%d", len(raw.Xs), raw.Width, raw.Height)
	}
	g.W, g.H, g.data = raw.Width, raw.Height, raw.Xs
	return nil
}
