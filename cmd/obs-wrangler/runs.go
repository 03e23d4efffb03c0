// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/obs-wrangler/internal/catalog"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse the catalog of past process runs",
	Long: `Runs reads the SQLite run catalog (catalog.path) that process writes
to. Each record holds the input, output directory, options, grid shape,
time range and outcome of one run.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), runsQueryFromFlags(cmd))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRunsOutput(runs, jsonOutput)
}

func formatRunsOutput(runs []types.Run, jsonOutput bool) error {
	if jsonOutput {
		if runs == nil {
			runs = []types.Run{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-9s  %-20s  %-6s  %-23s  %s\n",
		"ID", "Status", "Started", "Months", "Range", "Output")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))

	for _, r := range runs {
		span := "-"
		if !r.TimeStart.IsZero() {
			span = r.TimeStart.Format("2006-01-02") + " .. " + r.TimeEnd.Format("2006-01-02")
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-9s  %-20s  %-6d  %-23s  %s\n",
			r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), r.NTime, span, r.OutputDir)
		if r.Error != "" {
			fmt.Fprintf(os.Stdout, "    error: %s\n", r.Error)
		}
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run catalog as YAML or JSON",
	Long: `Export writes every run (or those matching --status) to standard
output, or to --output when given.`,
	RunE: runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("output")

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	w := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}

	if err := store.Export(cmd.Context(), w, format, runsQueryFromFlags(cmd)); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", outPath)
	}
	return nil
}

// --- shared helpers ---

func runsQueryFromFlags(cmd *cobra.Command) catalog.QueryOptions {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	return catalog.QueryOptions{Status: types.RunStatus(status), Limit: limit}
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status: running, succeeded, failed")
	runsListCmd.Flags().Int("limit", 0, "maximum runs to list (0 = default)")
	runsListCmd.Flags().Bool("json", false, "output results as JSON")

	runsExportCmd.Flags().String("format", catalog.FormatYAML, "export format: yaml or json")
	runsExportCmd.Flags().String("status", "", "filter by status for partial export")
	runsExportCmd.Flags().Int("limit", 0, "maximum runs to export (0 = all)")
	runsExportCmd.Flags().String("output", "", "write to this file instead of standard output")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)

	rootCmd.AddCommand(runsCmd)
}
