package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isingsim/internal/ising"
	"isingsim/internal/lattice"
	prng "isingsim/pkg/core"
)

func TestRunDir(t *testing.T) {
	tests := []struct {
		name string
		p    RunParams
		want string
	}{
		{
			"phase",
			RunParams{Protocol: ising.Phase, Kind: lattice.Regular, Size: 100, Step: 0.01, Max: 2, Seed: 1, EqSteps: 1000},
			"data/regular/phase/size=100_step=0.01_max=2_seed=1_eq=1000",
		},
		{
			"hysteresis",
			RunParams{Protocol: ising.Hysteresis, Kind: lattice.Irregular, Size: 50, Step: 0.01, Max: 2.5, Temp: 1.5, Seed: 3, EqSteps: 50},
			"data/irregular/hys/size=50_step=0.01_max=2.5_temp=1.5_seed=3_eq=50",
		},
		{
			"relax",
			RunParams{Protocol: ising.Relaxation, Kind: lattice.Irregular, Size: 20, Step: 0.5, Max: 3, Seed: 7, EqSteps: 10},
			"data/irregular/relax/size=20_step=0.5_max=3_seed=7_eq=10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), RunDir("data", tt.p))
		})
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{"t", "n", "T", "M", "E"}, Header(ising.Phase, false))
	assert.Equal(t, []string{"t", "n", "T", "M", "E", "aE"}, Header(ising.Phase, true))
	assert.Equal(t, []string{"t", "n", "H", "M", "E", "aE"}, Header(ising.Hysteresis, true))
	assert.Equal(t, []string{"T", "t", "η"}, Header(ising.Relaxation, true))
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDataWriterPhase(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDataWriter(&buf, ising.Phase, 100, true)
	require.NoError(t, err)
	require.NoError(t, d.Write(ising.Record{Time: 12, Sweeps: 3, Param: 0.1, Magnetization: 1, Energy: -200}))
	require.NoError(t, d.Write(ising.Record{Time: 40, Sweeps: 28, Param: 0.2, Magnetization: 0.98, Energy: -196.5}))
	require.NoError(t, d.Flush())

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"t", "n", "T", "M", "E", "aE"}, rows[0])
	assert.Equal(t, []string{"12", "3", "0.1", "1", "-200", "-2"}, rows[1])
	assert.Equal(t, []string{"40", "28", "0.2", "0.98", "-196.5", "-1.965"}, rows[2])
	assert.Equal(t, 2, d.Rows())
}

func TestDataWriterRelaxation(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDataWriter(&buf, ising.Relaxation, 100, true)
	require.NoError(t, err)
	require.NoError(t, d.Write(ising.Record{Time: 1, Param: 1.5, Eta: 0.25}))
	require.NoError(t, d.Flush())

	rows := readCSV(t, buf.Bytes())
	assert.Equal(t, [][]string{{"T", "t", "η"}, {"1.5", "1", "0.25"}}, rows)
}

func TestCreateData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", DataFile)
	d, err := CreateData(path, ising.Hysteresis, 4, false)
	require.NoError(t, err)
	require.NoError(t, d.Write(ising.Record{Time: 1, Sweeps: 1, Param: -0.5, Magnetization: -1, Energy: -10}))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "second close is a no-op")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t,n,H,M,E\n1,1,-0.5,-1,-10\n", string(b))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDataWriterReportsIOError(t *testing.T) {
	d, err := NewDataWriter(failingWriter{}, ising.Phase, 1, false)
	require.NoError(t, err, "header is buffered")
	assert.Error(t, d.Flush())
}

func buildEngine(t *testing.T, kind lattice.Kind) *ising.Engine {
	t.Helper()
	rng := prng.NewRNG(5)
	topo, err := lattice.Build(6, kind, rng)
	require.NoError(t, err)
	e, err := ising.NewEngine(topo, ising.DefaultConfig(), rng, ising.Options{})
	require.NoError(t, err)
	return e
}

func TestDescriptorRoundTrip(t *testing.T) {
	e := buildEngine(t, lattice.Irregular)
	id := uuid.New()
	info := NewRunInfo(ising.Hysteresis, id, e, 5, "out/data.csv", ising.Summary{Records: 20, Forced: 2})
	want := &HysteresisDescriptor{
		RunInfo:     info,
		Temperature: 1.5,
		Config:      ising.HysteresisConfig{HMin: -1, HMax: 1, HStep: 0.1},
	}

	path := filepath.Join(t.TempDir(), DescriptorFile)
	require.NoError(t, want.Save(path))

	got, err := LoadDescriptor(path)
	require.NoError(t, err)
	hd, ok := got.(*HysteresisDescriptor)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "hysteresis", hd.Kind)
	assert.Equal(t, id, hd.RunID)
	assert.Equal(t, want.Config, hd.Config)
	assert.Equal(t, 2, hd.ForcedSteps)
	assert.Equal(t, e.Topology().FreeSites, hd.FreeSites)
	assert.Equal(t, e.Config(), hd.Engine)
	require.NotNil(t, hd.Lattice)
	assert.Equal(t, e.Topology().Adjacency.Len(), hd.Lattice.Len())
	for i := 0; i < hd.Lattice.Len(); i++ {
		assert.ElementsMatch(t, e.Topology().Adjacency.At(i), hd.Lattice.At(i))
	}
}

func TestDescriptorKinds(t *testing.T) {
	e := buildEngine(t, lattice.Regular)
	dir := t.TempDir()
	for _, d := range []Descriptor{
		&PhaseDescriptor{RunInfo: NewRunInfo(ising.Phase, uuid.New(), e, 1, "", ising.Summary{})},
		&RelaxDescriptor{RunInfo: NewRunInfo(ising.Relaxation, uuid.New(), e, 1, "", ising.Summary{})},
	} {
		path := filepath.Join(dir, "d.json")
		require.NoError(t, d.Save(path))
		got, err := LoadDescriptor(path)
		require.NoError(t, err)
		assert.IsType(t, d, got)
	}
}

func TestLoadDescriptorUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"anneal"}`), 0o644))
	_, err := LoadDescriptor(path)
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
}

func TestPNGFrames(t *testing.T) {
	e := buildEngine(t, lattice.Regular)
	dir := filepath.Join(t.TempDir(), FramesDir)
	frames, err := NewPNGFrames(dir, 2)
	require.NoError(t, err)
	require.NoError(t, frames.Frame(7, e.Topology()))
	assert.Equal(t, 1, frames.Written())

	f, err := os.Open(filepath.Join(dir, "frame_00000007.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
}

func TestWriteDegreeMap(t *testing.T) {
	e := buildEngine(t, lattice.Irregular)
	path := filepath.Join(t.TempDir(), DegreeFile)
	require.NoError(t, WriteDegreeMap(path, e.Topology(), 1))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCurve(t *testing.T) {
	c := NewCurve(ising.Phase)
	path := filepath.Join(t.TempDir(), PlotFile)
	require.NoError(t, c.Write(ising.Record{Param: 0.1, Magnetization: 1}))
	assert.ErrorIs(t, c.Render(path, "phase"), ErrTooFewPoints)

	require.NoError(t, c.Write(ising.Record{Param: 0.2, Magnetization: 0.5}))
	require.NoError(t, c.Write(ising.Record{Param: 0.3, Magnetization: -0.2}))
	require.NoError(t, c.Render(path, "phase"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCurveRelaxationSkipsInfinite(t *testing.T) {
	c := NewCurve(ising.Relaxation)
	require.NoError(t, c.Write(ising.Record{Eta: 0}))
	require.NoError(t, c.Write(ising.Record{Eta: math.Inf(1)}))
	require.NoError(t, c.Write(ising.Record{Eta: 0}))
	assert.Equal(t, 2, c.Len())
	require.NoError(t, c.Render(filepath.Join(t.TempDir(), PlotFile), "relax"))
}

type recordingSink struct{ n int }

func (r *recordingSink) Write(ising.Record) error { r.n++; return nil }

type errSink struct{}

func (errSink) Write(ising.Record) error { return errors.New("nope") }

func TestTee(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	require.NoError(t, Tee{a, b}.Write(ising.Record{}))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)

	assert.Error(t, Tee{a, errSink{}, b}.Write(ising.Record{}))
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 1, b.n)
}
