// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ExportYAML writes the runs matching opts to w as a YAML list. A zero
// Limit exports every matching run.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	runs, err := s.exportRuns(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(runs)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes the runs matching opts to w as an indented JSON array.
// A zero Limit exports every matching run.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	runs, err := s.exportRuns(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// Export dispatches on format.
func (s *Store) Export(ctx context.Context, w io.Writer, format string, opts QueryOptions) error {
	switch format {
	case FormatYAML:
		return s.ExportYAML(ctx, w, opts)
	case FormatJSON:
		return s.ExportJSON(ctx, w, opts)
	default:
		return fmt.Errorf("unsupported export format %q (want %s or %s)", format, FormatYAML, FormatJSON)
	}
}

func (s *Store) exportRuns(ctx context.Context, opts QueryOptions) ([]types.Run, error) {
	if opts.Limit == 0 {
		opts.Limit = -1
	}
	runs, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if runs == nil {
		runs = []types.Run{}
	}
	return runs, nil
}
