// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconstruct turns anomaly-plus-climatology observation records
// into absolute monthly temperatures on a calendar time axis.
//
// The observation archive stores each month as a deviation from a
// 12-month climatological baseline. Slice n of the retained anomaly series
// belongs to calendar month n mod 12, so reconstruction adds climatology
// slice n mod 12 to it. The time axis is rebuilt from the first and last
// fractional-year values with every timestamp pinned to a fixed day of the
// month, matching the convention of monthly climate-model output.
package reconstruct

import (
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/obs-wrangler/internal/coords"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

const (
	// DefaultSkipMonths drops the first 100 years of the record so that it
	// starts with the reference model output.
	DefaultSkipMonths = 1200

	// DefaultDayOfMonth centres every derived timestamp in its month.
	DefaultDayOfMonth = 15
)

var (
	// ErrShortRecord means the record has no months left after skipping.
	ErrShortRecord = errors.New("observation record too short")

	// ErrShapeMismatch means the arrays and coordinate axes disagree.
	ErrShapeMismatch = errors.New("array shape mismatch")

	// ErrCadence means the time values do not describe consecutive months.
	ErrCadence = errors.New("time axis is not monthly")
)

// Options controls time alignment. Zero values select the defaults.
type Options struct {
	// SkipMonths is the number of leading records to drop. Use a negative
	// value to keep every record.
	SkipMonths int

	// DayOfMonth is the day assigned to every derived timestamp.
	DayOfMonth int
}

// OptionsFrom builds Options from the reconstruction config section.
func OptionsFrom(cfg types.ReconstructionConfig) Options {
	skip := cfg.SkipMonths
	if skip == 0 {
		skip = -1
	}
	return Options{SkipMonths: skip, DayOfMonth: cfg.DayOfMonth}
}

func (o Options) skip() int {
	switch {
	case o.SkipMonths < 0:
		return 0
	case o.SkipMonths == 0:
		return DefaultSkipMonths
	default:
		return o.SkipMonths
	}
}

func (o Options) day() int {
	if o.DayOfMonth <= 0 {
		return DefaultDayOfMonth
	}
	return o.DayOfMonth
}

// Result holds the reconstructed field and its coordinate axes, bound by
// position: Field.Shape is (len(Time), len(Latitude), len(Longitude)).
type Result struct {
	Field     types.Field
	Time      []time.Time
	Latitude  []float64
	Longitude []float64

	// First and Last are the decoded calendar months of the retained range.
	First coords.YearMonth
	Last  coords.YearMonth
}

// Reconstruct drops the leading SkipMonths records, derives the monthly
// time axis, adds the climatology to every anomaly slice and converts the
// longitudes to the 0..360 convention. Latitudes pass through unchanged.
//
// It fails with ErrShapeMismatch, ErrShortRecord or ErrCadence instead of
// producing an empty or misaligned result.
func Reconstruct(rec types.RawObservationRecord, opts Options) (Result, error) {
	if err := checkShapes(rec); err != nil {
		return Result{}, err
	}

	skip := opts.skip()
	retained := len(rec.Time) - skip
	if retained < 1 {
		return Result{}, fmt.Errorf("%w: %d monthly records, %d skipped", ErrShortRecord, len(rec.Time), skip)
	}
	times := rec.Time[skip:]

	first, err := coords.DecodeFractionalYear(times[0])
	if err != nil {
		return Result{}, fmt.Errorf("%w: first retained time point: %w", ErrCadence, err)
	}
	last, err := coords.DecodeFractionalYear(times[len(times)-1])
	if err != nil {
		return Result{}, fmt.Errorf("%w: last retained time point: %w", ErrCadence, err)
	}
	if span := first.MonthsUntil(last) + 1; span != retained {
		return Result{}, fmt.Errorf("%w: %s to %s spans %d months but %d records are retained",
			ErrCadence, first, last, span, retained)
	}

	n := rec.Anomaly.SliceLen()
	anomaly := types.Field{
		Shape: [3]int{retained, rec.Anomaly.Shape[1], rec.Anomaly.Shape[2]},
		Data:  rec.Anomaly.Data[skip*n:],
	}
	field, err := Recombine(anomaly, rec.Climatology)
	if err != nil {
		return Result{}, err
	}

	day := opts.day()
	lat := make([]float64, len(rec.Latitude))
	copy(lat, rec.Latitude)

	return Result{
		Field:     field,
		Time:      coords.EvenlySpaced(first.Date(day), last.Date(day), retained),
		Latitude:  lat,
		Longitude: coords.NormalizeLongitudes(rec.Longitude),
		First:     first,
		Last:      last,
	}, nil
}

// Recombine returns anomaly + climatology where anomaly slice t receives
// climatology slice t mod 12. The result has the anomaly's shape; neither
// input is modified. NaN anomalies stay NaN.
func Recombine(anomaly, climatology types.Field) (types.Field, error) {
	if climatology.Shape[0] != types.MonthsPerYear {
		return types.Field{}, fmt.Errorf("%w: climatology has %d month-slices, want %d",
			ErrShapeMismatch, climatology.Shape[0], types.MonthsPerYear)
	}
	if climatology.Shape[1] != anomaly.Shape[1] || climatology.Shape[2] != anomaly.Shape[2] {
		return types.Field{}, fmt.Errorf("%w: climatology grid %dx%d, anomaly grid %dx%d",
			ErrShapeMismatch, climatology.Shape[1], climatology.Shape[2], anomaly.Shape[1], anomaly.Shape[2])
	}
	if len(anomaly.Data) != anomaly.Len() || len(climatology.Data) != climatology.Len() {
		return types.Field{}, fmt.Errorf("%w: backing data does not match declared shape", ErrShapeMismatch)
	}

	out := types.NewField(anomaly.Shape[0], anomaly.Shape[1], anomaly.Shape[2])
	for m := 0; m < types.MonthsPerYear; m++ {
		base := climatology.Slice(m)
		for t := m; t < anomaly.Shape[0]; t += types.MonthsPerYear {
			src, dst := anomaly.Slice(t), out.Slice(t)
			for k := range dst {
				dst[k] = src[k] + base[k]
			}
		}
	}
	return out, nil
}

func checkShapes(rec types.RawObservationRecord) error {
	a, c := rec.Anomaly.Shape, rec.Climatology.Shape
	switch {
	case a[0] != len(rec.Time):
		return fmt.Errorf("%w: anomaly has %d time slices, time axis has %d", ErrShapeMismatch, a[0], len(rec.Time))
	case a[1] != len(rec.Latitude):
		return fmt.Errorf("%w: anomaly has %d latitudes, axis has %d", ErrShapeMismatch, a[1], len(rec.Latitude))
	case a[2] != len(rec.Longitude):
		return fmt.Errorf("%w: anomaly has %d longitudes, axis has %d", ErrShapeMismatch, a[2], len(rec.Longitude))
	case c != [3]int{types.MonthsPerYear, a[1], a[2]}:
		return fmt.Errorf("%w: climatology shape %v, want [%d %d %d]", ErrShapeMismatch, c, types.MonthsPerYear, a[1], a[2])
	case len(rec.Anomaly.Data) != rec.Anomaly.Len():
		return fmt.Errorf("%w: anomaly holds %d values for shape %v", ErrShapeMismatch, len(rec.Anomaly.Data), a)
	}
	return nil
}
