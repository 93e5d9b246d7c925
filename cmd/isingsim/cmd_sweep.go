package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"isingsim/internal/catalog"
	"isingsim/internal/config"
	"isingsim/internal/ising"
	"isingsim/internal/lattice"
	"isingsim/internal/runner"
)

// sweepFlags registers the flags shared by the three protocol subcommands.
func sweepFlags(cmd *cobra.Command, eqSteps []int) {
	cmd.Flags().Int("size", 100, "Lattice side length")
	cmd.Flags().Int64Slice("seeds", []int64{1}, "Seeds; one run per seed")
	cmd.Flags().IntSlice("eq-steps", eqSteps, "Equilibration sweep caps; one run per value")
	cmd.Flags().StringSlice("topology", []string{"regular", "irregular"}, "Lattice kinds; one run per kind")
	cmd.Flags().Uint64("frames-every", 0, "Write a lattice frame every this many sweeps (0 disables)")
	cmd.Flags().Uint64("status-every", 0, "Send a status line every this many sweeps (0 uses the config value)")
	cmd.Flags().Bool("energy-per-site", false, "Add an aE column with E/N² to the CSV")
	cmd.Flags().Bool("no-plot", false, "Skip plot.png")
	cmd.Flags().StringToString("set", nil, "Engine override key=value (h, j, kb, eq_steps, eq_threshold); eq_steps applies unless --eq-steps is given")
}

func temperatureFlags(cmd *cobra.Command, tMax float64) {
	cmd.Flags().Float64("t-min", 0.0001, "Starting temperature")
	cmd.Flags().Float64("t-max", tMax, "Final temperature")
	cmd.Flags().Float64("t-step", 0.01, "Temperature increment")
}

func newPhaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Heat an aligned lattice until the magnetisation changes sign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, ising.Phase)
		},
	}
	sweepFlags(cmd, nil)
	temperatureFlags(cmd, 5)
	return cmd
}

func newRelaxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relax",
		Short: "Record the relative energy change of every sweep at each temperature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, ising.Relaxation)
		},
	}
	sweepFlags(cmd, []int{50})
	temperatureFlags(cmd, 5)
	return cmd
}

func newHysteresisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hysteresis",
		Aliases: []string{"hys"},
		Short:   "Walk the external field around a closed loop at fixed temperatures",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, ising.Hysteresis)
		},
	}
	sweepFlags(cmd, []int{50})
	cmd.Flags().Float64Slice("temps", nil, "Temperatures; one run per value (required)")
	cmd.Flags().Float64("h-max", 2.5, "Field amplitude; the loop spans [-h-max, h-max]")
	cmd.Flags().Float64("h-step", 0.01, "Field increment")
	return cmd
}

// buildPlan turns the subcommand flags into a runner plan.
func buildPlan(cmd *cobra.Command, protocol ising.Protocol, cfg *config.Config) (runner.Plan, error) {
	f := cmd.Flags()
	size, _ := f.GetInt("size")
	seeds, _ := f.GetInt64Slice("seeds")
	eqSteps, _ := f.GetIntSlice("eq-steps")
	kindNames, _ := f.GetStringSlice("topology")
	overrides, _ := f.GetStringToString("set")

	kinds := make([]lattice.Kind, 0, len(kindNames))
	for _, name := range kindNames {
		k, err := lattice.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return runner.Plan{}, err
		}
		kinds = append(kinds, k)
	}

	if _, ok := overrides["temp"]; ok {
		return runner.Plan{}, errors.New("--set temp is not supported; use --t-min or --temps")
	}
	eng, err := ising.FromMap(cfg.Engine(), overrides)
	if err != nil {
		return runner.Plan{}, err
	}
	if _, ok := overrides["eq_steps"]; ok {
		if f.Changed("eq-steps") {
			return runner.Plan{}, errors.New("--set eq_steps conflicts with --eq-steps")
		}
		eqSteps = nil
	}

	plan := runner.Plan{
		Protocol: protocol,
		Kinds:    kinds,
		Size:     size,
		Seeds:    seeds,
		EqSteps:  eqSteps,
		Engine:   eng,
	}
	switch protocol {
	case ising.Hysteresis:
		temps, _ := f.GetFloat64Slice("temps")
		hMax, _ := f.GetFloat64("h-max")
		hStep, _ := f.GetFloat64("h-step")
		plan.Temps = temps
		plan.Hysteresis = ising.HysteresisConfig{HMin: -hMax, HMax: hMax, HStep: hStep}
	default:
		tMin, _ := f.GetFloat64("t-min")
		tMax, _ := f.GetFloat64("t-max")
		tStep, _ := f.GetFloat64("t-step")
		plan.Phase = ising.PhaseConfig{TMin: tMin, TMax: tMax, TStep: tStep}
	}
	return plan, nil
}

func runSweep(cmd *cobra.Command, protocol ising.Protocol) error {
	cfg, log, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	plan, err := buildPlan(cmd, protocol, cfg)
	if err != nil {
		return err
	}
	jobs, err := runner.Expand(plan)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	framesEvery := cfg.Output.FramesEvery
	if f.Changed("frames-every") {
		framesEvery, _ = f.GetUint64("frames-every")
	}
	statusEvery := cfg.Output.StatusEvery
	if v, _ := f.GetUint64("status-every"); v > 0 {
		statusEvery = v
	}
	perSite, _ := f.GetBool("energy-per-site")
	noPlot, _ := f.GetBool("no-plot")

	log.Info("starting sweep", "protocol", protocol, "jobs", len(jobs), "root", cfg.Output.Root)
	r := runner.New(runner.Options{
		Root:          cfg.Output.Root,
		FramesEvery:   framesEvery,
		StatusEvery:   statusEvery,
		EnergyPerSite: perSite,
		Plot:          cfg.Output.Plot && !noPlot,
		Linger:        cfg.Output.Linger,
		StatusOut:     cmd.ErrOrStderr(),
		ClearScreen:   true,
		Logger:        log,
	})
	results, runErr := r.Run(jobs)

	if err := recordResults(cmd.Context(), cfg.Catalog.Path, results, log); err != nil {
		log.Warn("catalog not updated", "path", cfg.Catalog.Path, "err", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, protocol)
	for _, res := range results {
		if res.DescriptorPath != "" {
			fmt.Fprintln(out, res.DescriptorPath)
		}
	}
	return runErr
}

// recordResults stores every result in the catalog at path. An empty path
// disables the catalog.
func recordResults(ctx context.Context, path string, results []runner.Result, log *slog.Logger) error {
	if path == "" || len(results) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cat, err := catalog.Open(ctx, path)
	if err != nil {
		return err
	}
	defer cat.Close()
	for _, res := range results {
		if err := cat.Record(ctx, res.Entry()); err != nil {
			return fmt.Errorf("record %s: %w", res.Job.Name, err)
		}
	}
	log.Debug("catalog updated", "path", path, "runs", len(results))
	return nil
}
