package core

import (
	"encoding/json"
	"testing"
)

func TestGridIndexWraps(t *testing.T) {
	g := NewGrid[int](4, 3, nil)
	cases := []struct {
		x, y, want int
	}{
		{0, 0, 0},
		{3, 2, 11},
		{-1, 0, 3},
		{4, 0, 0},
		{0, -1, 8},
		{5, 4, 5},
	}
	for _, c := range cases {
		if got := g.Index(c.x, c.y); got != c.want {
			t.Fatalf("Index(%d,%d) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestGridFillAndPos(t *testing.T) {
	g := NewGrid(5, 4, func(x, y int) int { return x*10 + y })
	if g.Len() != 20 {
		t.Fatalf("expected 20 cells, got %d", g.Len())
	}
	for i := 0; i < g.Len(); i++ {
		x, y := g.Pos(i)
		if g.At(i) != x*10+y {
			t.Fatalf("cell %d holds %d, expected %d", i, g.At(i), x*10+y)
		}
		if g.Index(x, y) != i {
			t.Fatalf("Pos/Index round trip failed at %d", i)
		}
	}
	g.Set(3, -1)
	if g.Cells()[3] != -1 {
		t.Fatal("Set must write through to the backing slice")
	}
}

func TestGridJSON(t *testing.T) {
	g := NewGrid(2, 2, func(x, y int) []int { return []int{x, y} })
	raw, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	var back Grid[[]int]
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.W != 2 || back.H != 2 || back.Len() != 4 || back.At(3)[0] != 1 {
		t.Fatalf("unexpected decoded grid %s", raw)
	}

	var bad Grid[int]
	if err := json.Unmarshal([]byte(`{"width":2,"height":2,"xs":[1]}`), &bad); err == nil {
		t.Fatal("expected error for short cell list")
	}
}
