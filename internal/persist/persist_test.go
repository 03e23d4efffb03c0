// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package persist

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/obs-wrangler/internal/zarr"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// --- test helpers ---

func testConfig() types.OutputConfig {
	return types.OutputConfig{
		Variable:         "mean",
		DatasetStore:     "historical_obs.zarr",
		MeanStore:        "historical_obs_GLOBALMEAN.zarr",
		SpatialChunk:     10,
		MeanChunk:        10,
		CompressionLevel: 3,
	}
}

func monthAxis(n int) []time.Time {
	out := make([]time.Time, n)
	for k := range out {
		out[k] = time.Date(1950, time.Month(k+1), 15, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func testDataset(nt, nlat, nlon int) types.GriddedDataset {
	field := types.NewField(nt, nlat, nlon)
	for i := range field.Data {
		field.Data[i] = float64(i)
	}
	lat := make([]float64, nlat)
	for i := range lat {
		lat[i] = -89.5 + float64(i)
	}
	lon := make([]float64, nlon)
	for j := range lon {
		lon[j] = 0.5 + float64(j)
	}
	return types.GriddedDataset{Field: field, Time: monthAxis(nt), Latitude: lat, Longitude: lon}
}

func openStore(t *testing.T, path string) *zarr.Store {
	t.Helper()
	s, err := zarr.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// --- tests ---

func TestSave_GriddedStore(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	w := NewWriter(testConfig(), WithClock(clock), WithAttributes(map[string]any{"skip_months": 1200}))

	ds := testDataset(12, 15, 25)
	paths, err := w.Save(context.Background(), ds, nil, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "historical_obs.zarr"), paths.Dataset)
	assert.Empty(t, paths.Mean)
	assert.NoDirExists(t, filepath.Join(dir, "historical_obs_GLOBALMEAN.zarr"))

	s := openStore(t, paths.Dataset)
	assert.Equal(t, []string{"lat", "lon", "mean", "time"}, s.ArrayNames())

	info, err := s.Array("mean")
	require.NoError(t, err)
	assert.Equal(t, []int{12, 15, 25}, info.Meta.Shape)
	assert.Equal(t, []int{12, 10, 10}, info.Meta.Chunks, "time unchunked, 10x10 spatial tiles")
	assert.Equal(t, []string{"time", "lat", "lon"}, info.Dims)

	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	assert.Equal(t, ds.Field.Data, got)

	lon, err := s.ReadFloat64("lon")
	require.NoError(t, err)
	assert.Equal(t, ds.Longitude, lon)

	attrs := s.Attrs()
	assert.Equal(t, float64(1200), attrs["skip_months"])
	assert.Equal(t, "2026-03-01T12:00:00Z: written by obs-wrangler", attrs["history"])
	assert.NotEmpty(t, attrs["title"])
}

func TestSave_TimeEncoding(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testConfig())

	ds := testDataset(3, 1, 1)
	paths, err := w.Save(context.Background(), ds, nil, dir)
	require.NoError(t, err)

	s := openStore(t, paths.Dataset)
	info, err := s.Array("time")
	require.NoError(t, err)
	assert.Equal(t, "days since 1950-01-15 00:00:00", info.Attrs["units"])
	assert.Equal(t, Calendar, info.Attrs["calendar"])

	offsets, err := s.ReadInt64("time")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 31, 59}, offsets)

	decoded, err := DecodeTime(offsets, info.Attrs["units"].(string))
	require.NoError(t, err)
	assert.Equal(t, ds.Time, decoded)
}

func TestSave_MeanStore(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testConfig())

	ds := testDataset(24, 2, 2)
	values := make([]float64, 24)
	for i := range values {
		values[i] = 5
	}
	values[3] = math.NaN()
	mean := &types.GlobalMeanSeries{Time: ds.Time, Values: values}

	paths, err := w.Save(context.Background(), ds, mean, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "historical_obs_GLOBALMEAN.zarr"), paths.Mean)

	s := openStore(t, paths.Mean)
	info, err := s.Array("mean")
	require.NoError(t, err)
	assert.Equal(t, []int{24}, info.Meta.Shape)
	assert.Equal(t, []int{10}, info.Meta.Chunks)

	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	if diff := cmp.Diff(values, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("mean series mismatch (-want +got):\n%s", diff)
	}

	timeInfo, err := s.Array("time")
	require.NoError(t, err)
	assert.Equal(t, []int{10}, timeInfo.Meta.Chunks)
}

func TestSave_ExistingStore(t *testing.T) {
	dir := t.TempDir()
	ds := testDataset(2, 1, 1)

	_, err := NewWriter(testConfig()).Save(context.Background(), ds, nil, dir)
	require.NoError(t, err)

	_, err = NewWriter(testConfig()).Save(context.Background(), ds, nil, dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreExists))

	cfg := testConfig()
	cfg.Overwrite = true
	ds.Field.Data[0] = 42
	_, err = NewWriter(cfg).Save(context.Background(), ds, nil, dir)
	require.NoError(t, err)

	s := openStore(t, filepath.Join(dir, "historical_obs.zarr"))
	got, err := s.ReadFloat64("mean")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got[0])
}

func TestSave_ExistingMeanStoreBlocksBoth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "historical_obs_GLOBALMEAN.zarr"), 0o755))

	ds := testDataset(2, 1, 1)
	mean := &types.GlobalMeanSeries{Time: ds.Time, Values: []float64{1, 2}}
	_, err := NewWriter(testConfig()).Save(context.Background(), ds, mean, dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreExists))
	assert.NoDirExists(t, filepath.Join(dir, "historical_obs.zarr"), "nothing written when a target exists")
}

func TestEncodeTime(t *testing.T) {
	t.Run("whole days", func(t *testing.T) {
		offsets, units := EncodeTime(monthAxis(3))
		assert.Equal(t, []int64{0, 31, 59}, offsets)
		assert.Equal(t, "days since 1950-01-15 00:00:00", units)
	})

	t.Run("fractional days fall back to seconds", func(t *testing.T) {
		start := time.Date(1950, 1, 15, 0, 0, 0, 0, time.UTC)
		times := []time.Time{start, start.Add(36 * time.Hour)}
		offsets, units := EncodeTime(times)
		assert.Equal(t, []int64{0, 129600}, offsets)
		assert.Equal(t, "seconds since 1950-01-15 00:00:00", units)

		back, err := DecodeTime(offsets, units)
		require.NoError(t, err)
		assert.Equal(t, times, back)
	})

	t.Run("empty axis", func(t *testing.T) {
		offsets, units := EncodeTime(nil)
		assert.Empty(t, offsets)
		assert.Equal(t, "days since 1970-01-01 00:00:00", units)
	})
}

func TestDecodeTime_BadUnits(t *testing.T) {
	_, err := DecodeTime([]int64{0}, "fortnights since 1950-01-15 00:00:00")
	assert.Error(t, err)

	_, err = DecodeTime([]int64{0}, "days")
	assert.Error(t, err)
}
