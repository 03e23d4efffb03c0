// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// DefaultLimit caps List results when QueryOptions.Limit is zero.
const DefaultLimit = 20

const runColumns = `id, started_at, finished_at, status, input_path, output_dir,
	global_mean, skip_months, n_time, n_lat, n_lon, time_start, time_end, error`

// QueryOptions holds filters for listing runs.
type QueryOptions struct {
	// Status filters by run outcome.
	Status types.RunStatus

	// Limit caps the result count. Zero uses DefaultLimit; negative means
	// no limit.
	Limit int
}

// List returns runs matching opts, newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]types.Run, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + runColumns + ` FROM runs WHERE 1=1`)

	if opts.Status != "" {
		qb.WriteString(` AND status = ?`)
		args = append(args, string(opts.Status))
	}

	qb.WriteString(` ORDER BY started_at DESC, id`)

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.Run, error) {
	var (
		run                types.Run
		status             string
		startedAt          string
		finishedAt         sql.NullString
		timeStart, timeEnd sql.NullString
		errMsg             sql.NullString
	)
	if err := sc.Scan(
		&run.ID, &startedAt, &finishedAt, &status, &run.InputPath, &run.OutputDir,
		&run.GlobalMean, &run.SkipMonths, &run.NTime, &run.NLat, &run.NLon,
		&timeStart, &timeEnd, &errMsg,
	); err != nil {
		return types.Run{}, err
	}

	run.Status = types.RunStatus(status)
	run.Error = errMsg.String

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return types.Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	for _, f := range []struct {
		src sql.NullString
		dst *time.Time
	}{
		{finishedAt, &run.FinishedAt},
		{timeStart, &run.TimeStart},
		{timeEnd, &run.TimeEnd},
	} {
		if !f.src.Valid {
			continue
		}
		if *f.dst, err = time.Parse(timeLayout, f.src.String); err != nil {
			return types.Run{}, fmt.Errorf("parsing timestamp: %w", err)
		}
	}
	return run, nil
}
