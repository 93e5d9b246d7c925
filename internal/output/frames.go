package output

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"isingsim/internal/lattice"
	"isingsim/internal/render"
)

// PNGFrames writes one PNG per call into a frames directory. It implements
// ising.FrameSink.
type PNGFrames struct {
	dir     string
	scale   int
	cells   []uint8
	written int
}

// NewPNGFrames creates dir and returns a sink drawing each site as a
// scale×scale block.
func NewPNGFrames(dir string, scale int) (*PNGFrames, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	return &PNGFrames{dir: dir, scale: max(scale, 1)}, nil
}

// Frame writes frame_<time>.png for the current spins.
func (p *PNGFrames) Frame(time uint64, topo *lattice.Topology) error {
	p.cells = topo.SpinBytes(p.cells)
	img := render.SpinImage(p.cells, topo.Size, topo.Size, p.scale, render.UpColor, render.DownColor)
	if err := writePNG(filepath.Join(p.dir, fmt.Sprintf("frame_%08d.png", time)), img); err != nil {
		return err
	}
	p.written++
	return nil
}

// Written returns the number of frames saved.
func (p *PNGFrames) Written() int { return p.written }

// WriteDegreeMap saves a picture of per-site neighbour counts.
func WriteDegreeMap(path string, topo *lattice.Topology, scale int) error {
	return writePNG(path, render.DegreeImage(topo.Degrees(), topo.Size, topo.Size, max(scale, 1)))
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
