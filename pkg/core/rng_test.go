package core

import (
	"slices"
	"testing"
)

func TestRNGDeterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 64; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("draw %d differs between identically seeded RNGs", i)
		}
	}
	if !slices.Equal(a.Perm(50), b.Perm(50)) {
		t.Fatal("Perm not deterministic for identical seeds")
	}
}

func TestPermIsPermutation(t *testing.T) {
	r := NewRNG(7)
	p := r.Perm(100)
	if len(p) != 100 {
		t.Fatalf("expected 100 entries, got %d", len(p))
	}
	seen := make([]bool, 100)
	for _, v := range p {
		if v < 0 || v >= 100 || seen[v] {
			t.Fatalf("invalid or repeated index %d", v)
		}
		seen[v] = true
	}
	if r.Perm(0) != nil {
		t.Fatal("Perm(0) should be nil")
	}
}
