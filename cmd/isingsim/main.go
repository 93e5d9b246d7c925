package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// ErrArgs reports a missing or unknown subcommand. It carries no message;
// cobra's usage output is the explanation.
var ErrArgs = errors.New("")

// flagError wraps a flag parsing failure so main can exit with the usage code.
type flagError struct{ err error }

func (e flagError) Error() string { return e.err.Error() }
func (e flagError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(newRootCmd(), os.Args[1:]))
}

// run executes root with args and maps the outcome to an exit code.
func run(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrArgs):
		return 2
	}
	fmt.Fprintln(root.ErrOrStderr(), err)
	var fe flagError
	if errors.As(err, &fe) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "isingsim",
		Short: "Metropolis Monte Carlo sweeps of the 2D Ising model",
		Long: `isingsim runs phase, hysteresis and relaxation sweeps over regular and
irregular spin lattices, one worker per seed and lattice kind, and writes a
CSV time series, a JSON descriptor and a plot for every run.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ErrArgs
		},
	}
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		// Flags after an unknown subcommand are parsed against the root.
		if c == c.Root() {
			return ErrArgs
		}
		return flagError{err}
	})

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./isingsim.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("out", "", "Output root directory")
	rootCmd.PersistentFlags().String("catalog", "", "Run catalog database path")

	rootCmd.AddCommand(
		newVersionCmd(),
		newPhaseCmd(),
		newHysteresisCmd(),
		newRelaxCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "isingsim version %s\n", version)
		},
	}
}
