package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"isingsim/internal/core"
	"isingsim/internal/ising"
	"isingsim/internal/lattice"
)

// ErrUnknownDescriptor is returned by LoadDescriptor for an unrecognised kind tag.
var ErrUnknownDescriptor = errors.New("output: unknown descriptor kind")

// Descriptor is the JSON sidecar saved once per finished run.
type Descriptor interface {
	Serialize() ([]byte, error)
	Save(path string) error
}

// RunInfo holds the fields shared by every descriptor kind.
type RunInfo struct {
	Kind        string            `json:"kind"`
	RunID       uuid.UUID         `json:"run_id"`
	NetworkType lattice.Kind      `json:"network_type"`
	Size        int               `json:"size"`
	Seed        int64             `json:"seed"`
	Engine      ising.Config      `json:"engine"`
	Lattice     *core.Grid[[]int] `json:"lattice"`
	DegMSE      float64           `json:"deg_mse"`
	DegAvg      float64           `json:"deg_avg"`
	FreeSites   int               `json:"free_sites"`
	DataPath    string            `json:"data_path"`
	Records     int               `json:"records"`
	ForcedSteps int               `json:"forced_steps"`
}

// NewRunInfo collects the shared descriptor fields of a finished run.
func NewRunInfo(p ising.Protocol, id uuid.UUID, eng *ising.Engine, seed int64, dataPath string, sum ising.Summary) RunInfo {
	topo := eng.Topology()
	return RunInfo{
		Kind:        p.String(),
		RunID:       id,
		NetworkType: topo.Kind,
		Size:        topo.Size,
		Seed:        seed,
		Engine:      eng.Config(),
		Lattice:     topo.Adjacency,
		DegMSE:      topo.DegMSE,
		DegAvg:      topo.DegAvg,
		FreeSites:   topo.FreeSites,
		DataPath:    dataPath,
		Records:     sum.Records,
		ForcedSteps: sum.Forced,
	}
}

// PhaseDescriptor describes a temperature sweep.
type PhaseDescriptor struct {
	RunInfo
	Config ising.PhaseConfig `json:"config"`
}

// HysteresisDescriptor describes a field loop at fixed temperature.
type HysteresisDescriptor struct {
	RunInfo
	Temperature float64                `json:"temperature"`
	Config      ising.HysteresisConfig `json:"config"`
}

// RelaxDescriptor describes a fixed-length relaxation sweep.
type RelaxDescriptor struct {
	RunInfo
	Config ising.PhaseConfig `json:"config"`
}

func (d *PhaseDescriptor) Serialize() ([]byte, error)      { return json.Marshal(d) }
func (d *HysteresisDescriptor) Serialize() ([]byte, error) { return json.Marshal(d) }
func (d *RelaxDescriptor) Serialize() ([]byte, error)      { return json.Marshal(d) }

func (d *PhaseDescriptor) Save(path string) error      { return save(d, path) }
func (d *HysteresisDescriptor) Save(path string) error { return save(d, path) }
func (d *RelaxDescriptor) Save(path string) error      { return save(d, path) }

func save(d Descriptor, path string) error {
	b, err := d.Serialize()
	if err != nil {
		return fmt.Errorf("serialize descriptor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create descriptor dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// LoadDescriptor reads a descriptor back, choosing the concrete type from
// its kind tag.
func LoadDescriptor(path string) (Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	p, err := ising.ParseProtocol(tag.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, tag.Kind)
	}
	var d Descriptor
	switch p {
	case ising.Phase:
		d = &PhaseDescriptor{}
	case ising.Hysteresis:
		d = &HysteresisDescriptor{}
	default:
		d = &RelaxDescriptor{}
	}
	if err := json.Unmarshal(b, d); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	return d, nil
}
