// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source loads the raw observation archive from a netCDF file.
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fhs/go-netcdf/netcdf"
	"go.uber.org/zap"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

var (
	// ErrMissingInput means the archive file is not in the input directory.
	ErrMissingInput = errors.New("observation archive not found")

	// ErrLayout means a variable has the wrong rank or an unsupported type.
	ErrLayout = errors.New("unexpected variable layout")
)

// Reader loads RawObservationRecords from netCDF archives.
type Reader struct {
	cfg    types.SourceConfig
	logger *zap.Logger
}

// NewReader returns a Reader for the archive layout described by cfg.
func NewReader(cfg types.SourceConfig, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{cfg: cfg, logger: logger}
}

// Path returns the archive path inside inputDir.
func (r *Reader) Path(inputDir string) string {
	return filepath.Join(inputDir, r.cfg.FileName)
}

// Load reads the coordinate axes, the anomaly series and the climatology
// from the archive in inputDir. Fill values in the two data arrays become
// NaN.
func (r *Reader) Load(ctx context.Context, inputDir string) (types.RawObservationRecord, error) {
	path := r.Path(inputDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.RawObservationRecord{}, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return types.RawObservationRecord{}, fmt.Errorf("checking %s: %w", path, err)
	}

	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return types.RawObservationRecord{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	var rec types.RawObservationRecord
	axes := []struct {
		name string
		dst  *[]float64
	}{
		{r.cfg.LatitudeVar, &rec.Latitude},
		{r.cfg.LongitudeVar, &rec.Longitude},
		{r.cfg.TimeVar, &rec.Time},
	}
	for _, a := range axes {
		data, shape, err := readVar(nc, a.name)
		if err != nil {
			return types.RawObservationRecord{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(shape) != 1 {
			return types.RawObservationRecord{}, fmt.Errorf("reading %s: %w: %s has %d dimensions, want 1",
				path, ErrLayout, a.name, len(shape))
		}
		*a.dst = data
	}

	if err := ctx.Err(); err != nil {
		return types.RawObservationRecord{}, err
	}
	rec.Anomaly, err = readField(nc, r.cfg.AnomalyVar)
	if err != nil {
		return types.RawObservationRecord{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return types.RawObservationRecord{}, err
	}
	rec.Climatology, err = readField(nc, r.cfg.ClimatologyVar)
	if err != nil {
		return types.RawObservationRecord{}, fmt.Errorf("reading %s: %w", path, err)
	}

	r.logger.Info("Loaded observation archive",
		zap.String("path", path),
		zap.Int("time", len(rec.Time)),
		zap.Int("lat", len(rec.Latitude)),
		zap.Int("lon", len(rec.Longitude)))
	return rec, nil
}

// readField reads a three-dimensional variable and maps its fill value
// to NaN.
func readField(nc netcdf.Dataset, name string) (types.Field, error) {
	data, shape, err := readVar(nc, name)
	if err != nil {
		return types.Field{}, err
	}
	if len(shape) != 3 {
		return types.Field{}, fmt.Errorf("%w: %s has %d dimensions, want 3", ErrLayout, name, len(shape))
	}

	v, _ := nc.Var(name)
	if fill, ok := fillValue(v); ok && !math.IsNaN(fill) {
		for i, x := range data {
			if x == fill {
				data[i] = math.NaN()
			}
		}
	}
	return types.FieldFrom(data, shape[0], shape[1], shape[2])
}

// readVar reads any numeric variable as float64 and returns its shape.
func readVar(nc netcdf.Dataset, name string) ([]float64, []int, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q: %w", name, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q dimensions: %w", name, err)
	}
	shape := make([]int, len(dims))
	total := 1
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("variable %q dimension %d: %w", name, i, err)
		}
		shape[i] = int(n)
		total *= int(n)
	}

	t, err := v.Type()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q type: %w", name, err)
	}
	out := make([]float64, total)
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(out); err != nil {
			return nil, nil, fmt.Errorf("variable %q: %w", name, err)
		}
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, nil, fmt.Errorf("variable %q: %w", name, err)
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, nil, fmt.Errorf("variable %q: %w", name, err)
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, nil, fmt.Errorf("variable %q: %w", name, err)
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	default:
		return nil, nil, fmt.Errorf("%w: variable %q has type %v", ErrLayout, name, t)
	}
	return out, shape, nil
}

// fillValue returns the _FillValue or missing_value attribute of v.
func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if n, err := a.Len(); err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, 1)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, 1)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
		bufi := make([]int32, 1)
		if err := a.ReadInt32s(bufi); err == nil {
			return float64(bufi[0]), true
		}
		bufs := make([]int16, 1)
		if err := a.ReadInt16s(bufs); err == nil {
			return float64(bufs[0]), true
		}
	}
	return 0, false
}
