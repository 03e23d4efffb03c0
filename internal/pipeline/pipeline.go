// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the observation reconstruction end to end: load the
// archive, reconstruct absolute temperatures, assemble the sorted grid and
// its global mean, and write the Zarr stores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pdiddy/obs-wrangler/internal/assemble"
	"github.com/pdiddy/obs-wrangler/internal/observability"
	"github.com/pdiddy/obs-wrangler/internal/persist"
	"github.com/pdiddy/obs-wrangler/internal/reconstruct"
	"github.com/pdiddy/obs-wrangler/internal/source"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// OutputSubdir is appended to the processed directory when no output
// directory is given.
const OutputSubdir = "observation_data"

// Loader reads a raw observation record from an input directory.
type Loader interface {
	Load(ctx context.Context, inputDir string) (types.RawObservationRecord, error)
}

// Recorder tracks run lifecycles. *catalog.Store implements it.
type Recorder interface {
	Begin(ctx context.Context, run types.Run) (types.Run, error)
	Finish(ctx context.Context, run types.Run, runErr error) (types.Run, error)
}

// Summary describes a completed run.
type Summary struct {
	RunID        string
	Paths        persist.Paths
	NTime        int
	NLat         int
	NLon         int
	TimeStart    time.Time
	TimeEnd      time.Time
	MissingCells int
	Duration     time.Duration
}

// Pipeline wires the stages together for one configuration.
type Pipeline struct {
	cfg      types.PipelineConfig
	loader   Loader
	recorder Recorder
	metrics  *observability.Metrics
	logger   *zap.Logger
	clock    clockwork.Clock
	out      io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoader replaces the netCDF archive reader.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithRecorder records each run, typically in the run catalog.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMetrics sets the metrics updated by each run.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock used for stage timings and store history.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithProgress sets the writer that receives one-line progress messages.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// New returns a Pipeline for cfg. Without WithLoader the archive is read
// with source.Reader.
func New(cfg types.PipelineConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.loader == nil {
		p.loader = source.NewReader(cfg.Source, p.logger)
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics()
	}
	return p
}

// Metrics returns the metrics updated by Run.
func (p *Pipeline) Metrics() *observability.Metrics { return p.metrics }

// DefaultOutputDir is where stores go when no output directory is given.
func DefaultOutputDir(cfg types.OutputConfig) string {
	return filepath.Join(cfg.ProcessedDir, OutputSubdir)
}

// Run processes the archive in inputDir and writes the stores to outputDir
// (DefaultOutputDir when empty). The run is recorded when a Recorder is
// set, and the metrics textfile is written when one is configured.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir(p.cfg.Output)
	}
	start := p.clock.Now()

	run := types.Run{
		InputPath:  inputDir,
		OutputDir:  outputDir,
		GlobalMean: p.cfg.Output.GlobalMean,
		SkipMonths: p.cfg.Reconstruction.SkipMonths,
	}
	if p.recorder != nil {
		var err error
		if run, err = p.recorder.Begin(ctx, run); err != nil {
			return Summary{}, fmt.Errorf("recording run start: %w", err)
		}
	}

	log := p.logger.With(zap.String("run_id", run.ID))
	log.Info("Starting reconstruction run",
		zap.String("input_dir", inputDir),
		zap.String("output_dir", outputDir),
		zap.Int("skip_months", p.cfg.Reconstruction.SkipMonths),
		zap.Bool("global_mean", p.cfg.Output.GlobalMean))

	sum, runErr := p.process(ctx, log, run.ID, inputDir, outputDir)
	sum.RunID = run.ID
	sum.Duration = p.clock.Since(start)
	p.metrics.RecordOutcome(runErr == nil, p.clock.Now())

	if p.recorder != nil {
		run.NTime, run.NLat, run.NLon = sum.NTime, sum.NLat, sum.NLon
		run.TimeStart, run.TimeEnd = sum.TimeStart, sum.TimeEnd
		if _, err := p.recorder.Finish(context.WithoutCancel(ctx), run, runErr); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("recording run finish: %w", err))
		}
	}
	if path := p.cfg.Metrics.TextfilePath; path != "" {
		if err := p.metrics.WriteTextfile(path); err != nil {
			log.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}

	if runErr != nil {
		log.Error("Reconstruction run failed", zap.Error(runErr))
		return sum, runErr
	}
	log.Info("Finished reconstruction run",
		zap.Duration("duration", sum.Duration),
		zap.Int("time_steps", sum.NTime),
		zap.Int("missing_cells", sum.MissingCells))
	return sum, nil
}

func (p *Pipeline) process(ctx context.Context, log *zap.Logger, runID, inputDir, outputDir string) (Summary, error) {
	var sum Summary

	var rec types.RawObservationRecord
	err := p.stage(ctx, observability.StageLoad, func() error {
		var err error
		rec, err = p.loader.Load(ctx, inputDir)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("loading observations: %w", err)
	}
	fmt.Fprintf(p.out, "loaded: %d monthly records on a %dx%d grid\n",
		len(rec.Time), len(rec.Latitude), len(rec.Longitude))

	var res reconstruct.Result
	err = p.stage(ctx, observability.StageReconstruct, func() error {
		var err error
		res, err = reconstruct.Reconstruct(rec, reconstruct.OptionsFrom(p.cfg.Reconstruction))
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("reconstructing temperatures: %w", err)
	}
	fmt.Fprintf(p.out, "reconstructed: %d months (%s to %s)\n", len(res.Time), res.First, res.Last)
	log.Debug("Reconstructed temperature field",
		zap.Stringer("first", res.First),
		zap.Stringer("last", res.Last),
		zap.Int("months", len(res.Time)))

	var (
		ds   types.GriddedDataset
		mean *types.GlobalMeanSeries
	)
	err = p.stage(ctx, observability.StageAssemble, func() error {
		var err error
		ds, mean, err = assemble.Assemble(res, p.cfg.Output.GlobalMean)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("assembling dataset: %w", err)
	}

	sum.NTime, sum.NLat, sum.NLon = ds.Field.Shape[0], ds.Field.Shape[1], ds.Field.Shape[2]
	sum.TimeStart, sum.TimeEnd = ds.Time[0], ds.Time[len(ds.Time)-1]
	sum.MissingCells = countNaN(ds.Field.Data)
	p.metrics.CellsReconstructed.Add(float64(ds.Field.Len()))
	p.metrics.MissingCells.Set(float64(sum.MissingCells))
	p.metrics.TimeSteps.Set(float64(sum.NTime))

	w := persist.NewWriter(p.cfg.Output,
		persist.WithClock(p.clock),
		persist.WithLogger(log),
		persist.WithAttributes(map[string]any{
			"source":      p.cfg.Source.FileName,
			"skip_months": p.cfg.Reconstruction.SkipMonths,
			"run_id":      runID,
		}))
	err = p.stage(ctx, observability.StageWrite, func() error {
		var err error
		sum.Paths, err = w.Save(ctx, ds, mean, outputDir)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("saving dataset: %w", err)
	}
	fmt.Fprintf(p.out, "wrote: %s\n", sum.Paths.Dataset)
	if sum.Paths.Mean != "" {
		fmt.Fprintf(p.out, "wrote: %s\n", sum.Paths.Mean)
	}
	return sum, nil
}

// stage runs fn after checking ctx and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := p.clock.Now()
	err := fn()
	p.metrics.ObserveStage(name, p.clock.Since(start))
	return err
}

func countNaN(data []float64) int {
	n := 0
	for _, v := range data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
