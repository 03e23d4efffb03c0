// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package persist writes the assembled gridded dataset and global-mean
// series to Zarr v2 directory stores.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pdiddy/obs-wrangler/internal/zarr"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// Coordinate and attribute names written to every store.
const (
	DimTime = "time"
	DimLat  = "lat"
	DimLon  = "lon"

	// Calendar is the CF calendar of the time axis.
	Calendar = "proleptic_gregorian"

	timeUnitLayout = "2006-01-02 15:04:05"
)

// ErrStoreExists means an output store is already present and overwrite
// is not enabled.
var ErrStoreExists = errors.New("output store already exists")

// Paths are the stores written by Save. Mean is empty when no global-mean
// series was given.
type Paths struct {
	Dataset string
	Mean    string
}

// Writer serializes datasets according to an OutputConfig.
type Writer struct {
	cfg    types.OutputConfig
	attrs  map[string]any
	clock  clockwork.Clock
	logger *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock sets the clock used for the history attribute.
func WithClock(c clockwork.Clock) Option {
	return func(w *Writer) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithAttributes adds global attributes to every store written.
func WithAttributes(attrs map[string]any) Option {
	return func(w *Writer) {
		for k, v := range attrs {
			w.attrs[k] = v
		}
	}
}

// NewWriter returns a Writer for cfg.
func NewWriter(cfg types.OutputConfig, opts ...Option) *Writer {
	w := &Writer{
		cfg:    cfg,
		attrs:  make(map[string]any),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Save writes ds to <outDir>/<DatasetStore> and, when mean is non-nil,
// mean to <outDir>/<MeanStore>. Existing stores are an error unless
// overwrite is enabled, in which case they are removed first. Both target
// paths are checked before anything is written.
func (w *Writer) Save(ctx context.Context, ds types.GriddedDataset, mean *types.GlobalMeanSeries, outDir string) (Paths, error) {
	paths := Paths{Dataset: filepath.Join(outDir, w.cfg.DatasetStore)}
	targets := []string{paths.Dataset}
	if mean != nil {
		paths.Mean = filepath.Join(outDir, w.cfg.MeanStore)
		targets = append(targets, paths.Mean)
	}

	for _, p := range targets {
		if err := w.prepare(p); err != nil {
			return Paths{}, err
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	if err := w.writeDataset(ctx, paths.Dataset, ds); err != nil {
		return Paths{}, fmt.Errorf("writing %s: %w", paths.Dataset, err)
	}
	w.logger.Info("Wrote gridded store",
		zap.String("path", paths.Dataset),
		zap.Int("time", len(ds.Time)),
		zap.Int("lat", len(ds.Latitude)),
		zap.Int("lon", len(ds.Longitude)))

	if mean != nil {
		if err := w.writeMean(ctx, paths.Mean, *mean); err != nil {
			return Paths{}, fmt.Errorf("writing %s: %w", paths.Mean, err)
		}
		w.logger.Info("Wrote global-mean store",
			zap.String("path", paths.Mean),
			zap.Int("time", len(mean.Time)))
	}
	return paths, nil
}

// prepare clears the way for a store at path.
func (w *Writer) prepare(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if !w.cfg.Overwrite {
		return fmt.Errorf("%w: %s", ErrStoreExists, path)
	}
	w.logger.Info("Removing existing store", zap.String("path", path))
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeDataset(ctx context.Context, path string, ds types.GriddedDataset) error {
	s, err := zarr.Create(path, zarr.WithCompressionLevel(w.cfg.CompressionLevel))
	if err != nil {
		return err
	}
	if err := s.SetAttrs(w.groupAttrs("Reconstructed monthly surface temperature observations")); err != nil {
		s.Close()
		return err
	}

	spatial := w.cfg.SpatialChunk
	if err := s.WriteFloat64(ctx, zarr.Array{
		Name:   w.cfg.Variable,
		Dims:   []string{DimTime, DimLat, DimLon},
		Shape:  []int{len(ds.Time), len(ds.Latitude), len(ds.Longitude)},
		Chunks: []int{-1, spatial, spatial},
		Attrs: map[string]any{
			"long_name": "air surface temperature",
			"units":     "degree C",
		},
	}, ds.Field.Data); err != nil {
		s.Close()
		return err
	}
	if err := writeTime(ctx, s, ds.Time, -1); err != nil {
		s.Close()
		return err
	}
	if err := s.WriteFloat64(ctx, zarr.Array{
		Name:  DimLat,
		Dims:  []string{DimLat},
		Shape: []int{len(ds.Latitude)},
		Attrs: map[string]any{
			"standard_name": "latitude",
			"units":         "degrees_north",
		},
		Chunks: []int{-1},
	}, ds.Latitude); err != nil {
		s.Close()
		return err
	}
	if err := s.WriteFloat64(ctx, zarr.Array{
		Name:  DimLon,
		Dims:  []string{DimLon},
		Shape: []int{len(ds.Longitude)},
		Attrs: map[string]any{
			"standard_name": "longitude",
			"units":         "degrees_east",
		},
		Chunks: []int{-1},
	}, ds.Longitude); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

func (w *Writer) writeMean(ctx context.Context, path string, mean types.GlobalMeanSeries) error {
	s, err := zarr.Create(path, zarr.WithCompressionLevel(w.cfg.CompressionLevel))
	if err != nil {
		return err
	}
	if err := s.SetAttrs(w.groupAttrs("Global mean of reconstructed monthly surface temperature observations")); err != nil {
		s.Close()
		return err
	}
	if err := s.WriteFloat64(ctx, zarr.Array{
		Name:   w.cfg.Variable,
		Dims:   []string{DimTime},
		Shape:  []int{len(mean.Values)},
		Chunks: []int{w.cfg.MeanChunk},
		Attrs: map[string]any{
			"long_name": "unweighted global mean air surface temperature",
			"units":     "degree C",
		},
	}, mean.Values); err != nil {
		s.Close()
		return err
	}
	if err := writeTime(ctx, s, mean.Time, w.cfg.MeanChunk); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

func (w *Writer) groupAttrs(title string) map[string]any {
	attrs := make(map[string]any, len(w.attrs)+3)
	for k, v := range w.attrs {
		attrs[k] = v
	}
	attrs["title"] = title
	attrs["Conventions"] = "CF-1.8"
	attrs["history"] = fmt.Sprintf("%s: written by obs-wrangler",
		w.clock.Now().UTC().Format(time.RFC3339))
	return attrs
}

// writeTime stores the time axis as int64 offsets from its first value
// with CF units and calendar attributes.
func writeTime(ctx context.Context, s *zarr.Writer, times []time.Time, chunk int) error {
	offsets, units := EncodeTime(times)
	return s.WriteInt64(ctx, zarr.Array{
		Name:   DimTime,
		Dims:   []string{DimTime},
		Shape:  []int{len(times)},
		Chunks: []int{chunk},
		Attrs: map[string]any{
			"standard_name": "time",
			"units":         units,
			"calendar":      Calendar,
		},
	}, offsets)
}

// EncodeTime converts times to integer offsets from the first timestamp.
// Offsets are in days when every timestamp lies a whole number of days
// from the first, otherwise in seconds. An empty axis is encoded against
// the Unix epoch.
func EncodeTime(times []time.Time) ([]int64, string) {
	ref := time.Unix(0, 0).UTC()
	if len(times) > 0 {
		ref = times[0].UTC()
	}

	secs := make([]int64, len(times))
	whole := true
	for i, t := range times {
		secs[i] = t.Unix() - ref.Unix()
		if secs[i]%86400 != 0 {
			whole = false
		}
	}

	unit := "seconds"
	if whole {
		unit = "days"
		for i := range secs {
			secs[i] /= 86400
		}
	}
	return secs, fmt.Sprintf("%s since %s", unit, ref.Format(timeUnitLayout))
}

// DecodeTime is the inverse of EncodeTime for the units it produces.
func DecodeTime(offsets []int64, units string) ([]time.Time, error) {
	var unit, date, clock string
	if _, err := fmt.Sscanf(units, "%s since %s %s", &unit, &date, &clock); err != nil {
		return nil, fmt.Errorf("parsing time units %q: %w", units, err)
	}
	ref, err := time.Parse(timeUnitLayout, date+" "+clock)
	if err != nil {
		return nil, fmt.Errorf("parsing time units %q: %w", units, err)
	}

	var scale int64
	switch unit {
	case "days":
		scale = 86400
	case "seconds":
		scale = 1
	default:
		return nil, fmt.Errorf("unsupported time unit %q", unit)
	}

	out := make([]time.Time, len(offsets))
	for i, o := range offsets {
		out[i] = time.Unix(ref.Unix()+o*scale, 0).UTC()
	}
	return out, nil
}
