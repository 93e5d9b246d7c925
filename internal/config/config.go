// Package config loads isingsim settings from YAML and the environment.
//
// Order: Default -> YAML file -> environment variables. Command-line flags are
// applied by the caller afterwards and win over everything here.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"isingsim/internal/ising"
	"isingsim/internal/logging"
)

// DefaultFile is read when no --config path is given and it exists.
const DefaultFile = "isingsim.yaml"

// Environment variable names.
const (
	EnvLogLevel   = "ISINGSIM_LOG_LEVEL"
	EnvOutputRoot = "ISINGSIM_OUTPUT_ROOT"
	EnvCatalog    = "ISINGSIM_CATALOG"
)

// Config contains every non-per-run setting.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
	Catalog CatalogConfig `yaml:"catalog"`
	Physics PhysicsConfig `yaml:"physics"`
}

// LoggingConfig configures the stderr logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn or error.
	Level string `yaml:"level"`
}

// OutputConfig configures what each run writes.
type OutputConfig struct {
	// Root is the directory under which run directories are created.
	Root string `yaml:"root"`
	// FramesEvery writes a PNG frame every this many sweeps; 0 disables frames.
	FramesEvery uint64 `yaml:"frames_every"`
	// StatusEvery sends a progress line every this many sweeps while a run
	// equilibrates; 0 reports once per recorded step.
	StatusEvery uint64 `yaml:"status_every"`
	// Plot renders plot.png next to the data file.
	Plot bool `yaml:"plot"`
	// Linger is how long a finished worker waits before exiting so its final
	// status stays on screen.
	Linger time.Duration `yaml:"linger"`
}

// CatalogConfig locates the sqlite run index. An empty path disables it.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// PhysicsConfig holds the engine constants shared by every run.
type PhysicsConfig struct {
	Coupling    float64 `yaml:"coupling"`
	Boltzmann   float64 `yaml:"boltzmann"`
	EqThreshold float64 `yaml:"eq_threshold"`
}

// Default returns the built-in settings.
func Default() *Config {
	eng := ising.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{Level: "warn"},
		Output: OutputConfig{
			Root:        "out",
			StatusEvery: 1000,
			Plot:        true,
			Linger:      500 * time.Millisecond,
		},
		Catalog: CatalogConfig{Path: "out/runs.db"},
		Physics: PhysicsConfig{
			Coupling:    eng.Coupling,
			Boltzmann:   eng.Boltzmann,
			EqThreshold: eng.EqThreshold,
		},
	}
}

// Load reads path, or DefaultFile when path is empty and the file exists,
// then applies environment overrides. A missing explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	switch {
	case path != "":
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			fileCfg, err := LoadFromFile(DefaultFile)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			cfg = fileCfg
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile decodes a YAML file on top of Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level))
	}
	if c.Output.Root == "" {
		errs = append(errs, errors.New("output.root must not be empty"))
	}
	if c.Output.Linger < 0 {
		errs = append(errs, fmt.Errorf("output.linger must be non-negative, got %v", c.Output.Linger))
	}
	if c.Physics.Boltzmann <= 0 {
		errs = append(errs, fmt.Errorf("physics.boltzmann must be positive, got %v", c.Physics.Boltzmann))
	}
	if c.Physics.EqThreshold < 0 {
		errs = append(errs, fmt.Errorf("physics.eq_threshold must be non-negative, got %v", c.Physics.EqThreshold))
	}
	return errors.Join(errs...)
}

// Engine returns the engine configuration seeded with the physics section.
func (c *Config) Engine() ising.Config {
	eng := ising.DefaultConfig()
	eng.Coupling = c.Physics.Coupling
	eng.Boltzmann = c.Physics.Boltzmann
	eng.EqThreshold = c.Physics.EqThreshold
	return eng
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvOutputRoot); v != "" {
		c.Output.Root = v
	}
	if v, ok := os.LookupEnv(EnvCatalog); ok {
		c.Catalog.Path = v
	}
	if v := os.Getenv("ISINGSIM_FRAMES_EVERY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Output.FramesEvery = n
		}
	}
}
