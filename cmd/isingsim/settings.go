package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"isingsim/internal/config"
	"isingsim/internal/logging"
)

// loadSettings resolves the config file, environment and persistent flags
// into one validated configuration and a logger writing to stderr.
func loadSettings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.Output.Root = v
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path, _ = cmd.Flags().GetString("catalog")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()), nil
}
