package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabload/internal/core"
)

var (
	loadJSON      bool
	loadNoResolve bool
	loadStats     bool
)

var loadCmd = &cobra.Command{
	Use:   "load [set...]",
	Short: "Load record sets and print them",
	Long: `Load reads the named record sets (all registered sets when none are
given), resolves their relationships and prints a summary per set.

Example:
  tabload load
  tabload load zones --json
  tabload load spawns --no-resolve --stats`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "print records as JSON")
	loadCmd.Flags().BoolVar(&loadNoResolve, "no-resolve", false, "skip relationship resolution")
	loadCmd.Flags().BoolVar(&loadStats, "stats", false, "print cache statistics after loading")
}

func runLoad(cmd *cobra.Command, args []string) error {
	l, err := newLoader(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	keys := args
	if len(keys) == 0 {
		keys = l.Schemas().Keys()
	}
	if err := l.Preload(ctx, keys...); err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if !loadJSON {
		fmt.Fprintln(tw, "SET\tRECORDS\tRELATIONS")
	}

	for _, key := range keys {
		views, err := l.Views(ctx, key, !loadNoResolve)
		if err != nil {
			return err
		}

		if loadJSON {
			data, err := json.MarshalIndent(map[string]any{"key": key, "records": views}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal %s: %w", key, err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", key, len(views), relationTotals(views))
	}

	if !loadJSON {
		tw.Flush()
	}

	if loadStats {
		data, err := json.MarshalIndent(l.Cache().Statistics(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal statistics: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

// relationTotals sums reference counts per relationship field.
func relationTotals(views []core.RecordView) string {
	totals := make(map[string]int)
	for _, v := range views {
		for field, n := range v.Relations {
			totals[field] += n
		}
	}
	if len(totals) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(totals))
	for _, field := range slices.Sorted(maps.Keys(totals)) {
		parts = append(parts, fmt.Sprintf("%s=%d", field, totals[field]))
	}
	return strings.Join(parts, ", ")
}
