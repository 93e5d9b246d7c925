package app

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"isingsim/internal/lattice"
)

// Config holds the viewer's command-line parameters.
type Config struct {
	Size        int
	Topology    string
	Temperature float64
	Field       float64
	Scale       int
	// Rate is the number of lattice sweeps per second.
	Rate int
	TPS  int
	Seed int64
}

// NewConfig returns a Config populated with viewer defaults.
func NewConfig() *Config {
	return &Config{
		Size:        128,
		Topology:    lattice.Regular.String(),
		Temperature: 2.27,
		Scale:       4,
		Rate:        30,
		TPS:         60,
		Seed:        42,
	}
}

// Bind attaches the configuration to fs.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.IntVar(&c.Size, "size", c.Size, "lattice side length")
	fs.StringVar(&c.Topology, "topology", c.Topology, "regular or irregular")
	fs.Float64Var(&c.Temperature, "temp", c.Temperature, "initial temperature")
	fs.Float64Var(&c.Field, "h", c.Field, "initial external field")
	fs.IntVar(&c.Scale, "scale", c.Scale, "pixel scale multiplier")
	fs.IntVar(&c.Rate, "rate", c.Rate, "sweeps per second")
	fs.IntVar(&c.TPS, "tps", c.TPS, "ticks per second")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for lattice reset")
}

// Validate reports unusable values.
func (c *Config) Validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("size must be positive, got %d", c.Size))
	}
	if _, err := lattice.ParseKind(c.Topology); err != nil {
		errs = append(errs, err)
	}
	if c.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be positive, got %d", c.Scale))
	}
	if c.Temperature < 0 {
		errs = append(errs, fmt.Errorf("temperature must be non-negative, got %v", c.Temperature))
	}
	return errors.Join(errs...)
}
