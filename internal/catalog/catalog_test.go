// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// --- test helpers ---

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	n := 0
	s, err := Open(
		types.CatalogConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "catalog", "runs.db")},
		WithClock(clock),
		WithIDFunc(func() string { n++; return fmt.Sprintf("run-%03d", n) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func sampleRun() types.Run {
	return types.Run{
		InputPath:  "data/raw/Complete_TAVG_LatLong1.nc",
		OutputDir:  "data/processed/observation_data",
		GlobalMean: true,
		SkipMonths: 1200,
	}
}

// --- tests ---

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")
	s, err := Open(types.CatalogConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
	assert.Equal(t, path, s.Path())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(types.CatalogConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	run, err := s.Begin(context.Background(), sampleRun())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(types.CatalogConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestBeginFinish_Success(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	run, err := s.Begin(ctx, sampleRun())
	require.NoError(t, err)
	assert.Equal(t, "run-001", run.ID)
	assert.Equal(t, types.RunRunning, run.Status)
	assert.Equal(t, epoch, run.StartedAt)

	clock.Advance(90 * time.Second)
	run.NTime, run.NLat, run.NLon = 12, 180, 360
	run.TimeStart = time.Date(1950, 1, 15, 0, 0, 0, 0, time.UTC)
	run.TimeEnd = time.Date(1950, 12, 15, 0, 0, 0, 0, time.UTC)
	run, err = s.Finish(ctx, run, nil)
	require.NoError(t, err)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, types.RunSucceeded, got.Status)
	assert.Equal(t, epoch.Add(90*time.Second), got.FinishedAt)
	assert.True(t, got.GlobalMean)
	assert.Equal(t, 1200, got.SkipMonths)
	assert.Empty(t, got.Error)
}

func TestBeginFinish_Failure(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	run, err := s.Begin(ctx, sampleRun())
	require.NoError(t, err)
	_, err = s.Finish(ctx, run, errors.New("observation record too short"))
	require.NoError(t, err)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, got.Status)
	assert.Equal(t, "observation record too short", got.Error)
	assert.True(t, got.TimeStart.IsZero())
}

func TestFinish_UnknownRun(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Finish(context.Background(), types.Run{ID: "nope"}, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGet_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run, err := s.Begin(ctx, sampleRun())
		require.NoError(t, err)
		var runErr error
		if i%2 == 1 {
			runErr = errors.New("boom")
		}
		_, err = s.Finish(ctx, run, runErr)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	tests := []struct {
		name    string
		opts    QueryOptions
		wantIDs []string
	}{
		{"all newest first", QueryOptions{}, []string{"run-005", "run-004", "run-003", "run-002", "run-001"}},
		{"limit", QueryOptions{Limit: 2}, []string{"run-005", "run-004"}},
		{"failed only", QueryOptions{Status: types.RunFailed}, []string{"run-004", "run-002"}},
		{"succeeded unlimited", QueryOptions{Status: types.RunSucceeded, Limit: -1}, []string{"run-005", "run-003", "run-001"}},
		{"running", QueryOptions{Status: types.RunRunning}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestExport(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	run, err := s.Begin(ctx, sampleRun())
	require.NoError(t, err)
	_, err = s.Finish(ctx, run, nil)
	require.NoError(t, err)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.Export(ctx, &buf, FormatYAML, QueryOptions{}))

		var runs []types.Run
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, "run-001", runs[0].ID)
		assert.Contains(t, buf.String(), "status: succeeded")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.Export(ctx, &buf, FormatJSON, QueryOptions{}))

		var runs []types.Run
		require.NoError(t, json.Unmarshal(buf.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, types.RunSucceeded, runs[0].Status)
	})

	t.Run("empty filter exports empty list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.ExportJSON(ctx, &buf, QueryOptions{Status: types.RunFailed}))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := s.Export(ctx, &bytes.Buffer{}, "csv", QueryOptions{})
		assert.Error(t, err)
	})
}
