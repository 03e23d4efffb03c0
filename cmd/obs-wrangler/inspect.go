// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/obs-wrangler/internal/persist"
	"github.com/pdiddy/obs-wrangler/internal/zarr"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect STORE",
	Short: "Show the arrays, chunking and coordinates of a Zarr store",
	Long: `Inspect reads a store written by process and prints its global
attributes, each array's shape, chunks and dtype, and the first and last
value of the time, lat and lon coordinates.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	sum, err := persist.Inspect(args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printInspect(sum)
	return nil
}

func printInspect(sum persist.StoreSummary) {
	fmt.Printf("Store: %s\n\n", sum.Path)

	keys := make([]string, 0, len(sum.Attrs))
	for k := range sum.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-14s %v\n", k+":", sum.Attrs[k])
	}

	fmt.Printf("\n%-10s  %-16s  %-16s  %-14s  %s\n", "Array", "Dims", "Shape", "Chunks", "DType")
	fmt.Println(strings.Repeat("-", 70))
	for _, a := range sum.Arrays {
		fmt.Printf("%-10s  %-16s  %-16s  %-14s  %s\n",
			a.Name, strings.Join(a.Dims, ","), joinInts(a.Meta.Shape), joinInts(a.Meta.Chunks), dtypeLabel(a.Meta))
	}

	if len(sum.Coordinates) > 0 {
		fmt.Println()
		for _, c := range sum.Coordinates {
			fmt.Printf("  %-5s %6d values  %s .. %s\n", c.Name, c.Size, c.First, c.Last)
		}
	}
}

func dtypeLabel(m zarr.ArrayMeta) string {
	if m.Compressor == nil {
		return m.DType
	}
	return fmt.Sprintf("%s (%s level %d)", m.DType, m.Compressor.ID, m.Compressor.Level)
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, "x")
}

func init() {
	inspectCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(inspectCmd)
}
