package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"isingsim/internal/catalog"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the catalog, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if cfg.Catalog.Path == "" {
				return errors.New("catalog is disabled")
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			var filter catalog.Filter
			filter.Protocol, _ = cmd.Flags().GetString("protocol")
			filter.Topology, _ = cmd.Flags().GetString("topology")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cat, err := catalog.Open(ctx, cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(ctx, filter)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return printRuns(cmd, entries)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().String("protocol", "", "Only list runs of this protocol")
	cmd.Flags().String("topology", "", "Only list runs on this lattice kind")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func printRuns(cmd *cobra.Command, entries []catalog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tPROTOCOL\tNAME\tRECORDS\tFORCED\tFINAL M\tDURATION\tSTATUS")
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.4f\t%s\t%s\n",
			e.ID[:min(8, len(e.ID))], e.Created().Format(time.DateTime), e.Protocol, e.Name, e.Records, e.Forced, e.FinalM,
			(time.Duration(e.DurationMS) * time.Millisecond).String(), status)
	}
	return w.Flush()
}
