// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zarr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test helpers ---

func rampFloat64(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * 0.5
	}
	return out
}

func decompressFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	require.NoError(t, err)
	return raw
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func writeTestStore(t *testing.T, root string) []float64 {
	t.Helper()
	w, err := Create(root)
	require.NoError(t, err)

	data := rampFloat64(3 * 12 * 25)
	require.NoError(t, w.SetAttrs(map[string]any{"title": "test"}))
	require.NoError(t, w.WriteFloat64(context.Background(), Array{
		Name:   "mean",
		Dims:   []string{"time", "lat", "lon"},
		Shape:  []int{3, 12, 25},
		Chunks: []int{-1, 10, 10},
		Attrs:  map[string]any{"units": "degC"},
	}, data))
	require.NoError(t, w.WriteInt64(context.Background(), Array{
		Name:   "time",
		Dims:   []string{"time"},
		Shape:  []int{3},
		Chunks: []int{0},
		Attrs:  map[string]any{"units": "days since 1950-01-15"},
	}, []int64{0, 31, 59}))
	require.NoError(t, w.Close())
	return data
}

// --- tests ---

func TestWriter_Layout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	writeTestStore(t, root)

	for _, rel := range []string{GroupFile, AttrsFile, MetadataFile, "mean/.zarray", "mean/.zattrs", "time/.zarray", "time/0"} {
		assert.FileExists(t, filepath.Join(root, rel))
	}

	// 1 x 2 x 3 chunk grid for shape (3, 12, 25) with chunks (3, 10, 10).
	entries, err := os.ReadDir(filepath.Join(root, "mean"))
	require.NoError(t, err)
	var chunks []string
	for _, e := range entries {
		if e.Name()[0] != '.' {
			chunks = append(chunks, e.Name())
		}
	}
	assert.ElementsMatch(t, []string{"0.0.0", "0.0.1", "0.0.2", "0.1.0", "0.1.1", "0.1.2"}, chunks)

	var meta ArrayMeta
	readJSON(t, filepath.Join(root, "mean", ArrayFile), &meta)
	assert.Equal(t, FormatVersion, meta.ZarrFormat)
	assert.Equal(t, []int{3, 12, 25}, meta.Shape)
	assert.Equal(t, []int{3, 10, 10}, meta.Chunks)
	assert.Equal(t, DTypeFloat64, meta.DType)
	assert.Equal(t, "NaN", meta.FillValue)
	assert.Equal(t, "C", meta.Order)
	require.NotNil(t, meta.Compressor)
	assert.Equal(t, "zstd", meta.Compressor.ID)
	assert.Equal(t, DefaultCompressionLevel, meta.Compressor.Level)

	var attrs map[string]any
	readJSON(t, filepath.Join(root, "mean", AttrsFile), &attrs)
	assert.Equal(t, []any{"time", "lat", "lon"}, attrs[DimensionsAttr])
	assert.Equal(t, "degC", attrs["units"])

	var group map[string]int
	readJSON(t, filepath.Join(root, GroupFile), &group)
	assert.Equal(t, 2, group["zarr_format"])
}

func TestWriter_EdgeChunkPadded(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	data := writeTestStore(t, root)

	raw := decompressFile(t, filepath.Join(root, "mean", "0.1.2"))
	require.Len(t, raw, 3*10*10*8)

	at := func(t, i, j int) float64 {
		off := ((t*10+i)*10 + j) * 8
		return math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
	}
	// Chunk (0,1,2) covers lat 10..11 and lon 20..24 of the array.
	assert.Equal(t, data[(1*12+10)*25+20], at(1, 0, 0))
	assert.Equal(t, data[(2*12+11)*25+24], at(2, 1, 4))
	assert.True(t, math.IsNaN(at(0, 2, 0)), "rows past lat 12 are fill")
	assert.True(t, math.IsNaN(at(0, 0, 5)), "columns past lon 25 are fill")
}

func TestWriter_ConsolidatedMetadata(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	writeTestStore(t, root)

	var consolidated struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
		Format   int                        `json:"zarr_consolidated_format"`
	}
	readJSON(t, filepath.Join(root, MetadataFile), &consolidated)

	assert.Equal(t, 1, consolidated.Format)
	for _, key := range []string{".zgroup", ".zattrs", "mean/.zarray", "mean/.zattrs", "time/.zarray", "time/.zattrs"} {
		assert.Contains(t, consolidated.Metadata, key)
	}
}

func TestCreate_ExistingPath(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))
}

func TestWriter_ShapeErrors(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "out.zarr"))
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	err = w.WriteFloat64(ctx, Array{Name: "a", Dims: []string{"x"}, Shape: []int{4}, Chunks: []int{2}}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrShape))

	err = w.WriteFloat64(ctx, Array{Name: "b", Dims: []string{"x", "y"}, Shape: []int{2}, Chunks: []int{2}}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrShape))
}

func TestWriter_CancelledContext(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "out.zarr"))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.WriteFloat64(ctx, Array{Name: "a", Dims: []string{"x"}, Shape: []int{4}, Chunks: []int{2}}, rampFloat64(4))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStore_RoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	data := writeTestStore(t, root)

	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"mean", "time"}, s.ArrayNames())
	assert.Equal(t, "test", s.Attrs()["title"])

	info, err := s.Array("mean")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "lat", "lon"}, info.Dims)

	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	times, err := s.ReadInt64("time")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 31, 59}, times)

	asFloat, err := s.ReadFloat64("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 31, 59}, asFloat)

	_, err = s.ReadInt64("mean")
	assert.True(t, errors.Is(err, ErrDType))

	_, err = s.Array("missing")
	assert.True(t, errors.Is(err, ErrNoArray))
}

func TestStore_WithoutConsolidatedMetadata(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	data := writeTestStore(t, root)
	require.NoError(t, os.Remove(filepath.Join(root, MetadataFile)))

	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"mean", "time"}, s.ArrayNames())
	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStore_MissingChunkIsFill(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out.zarr")
	writeTestStore(t, root)
	require.NoError(t, os.Remove(filepath.Join(root, "mean", "0.0.0")))

	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 0.5*float64(10), got[10], "lon 10 lives in chunk 0.0.1")
}

func TestStore_UncompressedFloat32(t *testing.T) {
	// Hand-built store: one "<f4" array, no compressor, 2x3 in 1x3 chunks.
	root := filepath.Join(t.TempDir(), "f4.zarr")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "v"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, GroupFile), []byte(`{"zarr_format":2}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "v", ArrayFile), []byte(
		`{"zarr_format":2,"shape":[2,3],"chunks":[1,3],"dtype":"<f4","compressor":null,"fill_value":null,"order":"C","filters":null}`,
	), 0o644))

	for row, vals := range [][]float32{{1, 2, 3}, {4, 5, 6}} {
		buf := make([]byte, 12)
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		key := []string{"0.0", "1.0"}[row]
		require.NoError(t, os.WriteFile(filepath.Join(root, "v", key), buf, 0o644))
	}

	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ReadFloat64("v")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestOpen_NotAStore(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotStore))
}

func TestFillFloat64(t *testing.T) {
	v, err := fillFloat64("NaN")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	v, err = fillFloat64(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = fillFloat64(-999.0)
	require.NoError(t, err)
	assert.Equal(t, -999.0, v)

	_, err = fillFloat64(true)
	assert.Error(t, err)
}
