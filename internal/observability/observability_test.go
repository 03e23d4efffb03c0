// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       types.LogConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"defaults", types.LogConfig{}, zapcore.InfoLevel, false},
		{"json debug", types.LogConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel, false},
		{"console warn", types.LogConfig{Level: "warn", Format: "console"}, zapcore.WarnLevel, false},
		{"bad level", types.LogConfig{Level: "loud"}, 0, true},
		{"bad format", types.LogConfig{Format: "xml"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
			}
		})
	}
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveStage(StageReconstruct, 1500*time.Millisecond)
	m.CellsReconstructed.Add(48)
	m.MissingCells.Set(3)
	m.TimeSteps.Set(12)
	m.RecordOutcome(true, time.Unix(1767225600, 0))

	assert.Equal(t, 1.5, testutil.ToFloat64(m.StageDuration.WithLabelValues(StageReconstruct)))
	assert.Equal(t, 48.0, testutil.ToFloat64(m.CellsReconstructed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunSuccess))
	assert.Equal(t, 1767225600.0, testutil.ToFloat64(m.LastSuccess))

	m.RecordOutcome(false, time.Now())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRunSuccess))
	assert.Equal(t, 1767225600.0, testutil.ToFloat64(m.LastSuccess), "failure keeps the last success time")
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.TimeSteps.Set(12)
	m.ObserveStage(StageWrite, 2*time.Second)

	path := filepath.Join(t.TempDir(), "obs_wrangler.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "obs_wrangler_time_steps 12")
	assert.Contains(t, string(data), `obs_wrangler_stage_duration_seconds{stage="write"} 2`)
}
