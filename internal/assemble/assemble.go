// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble binds a reconstructed temperature field to its
// coordinate axes, derives the optional global-mean series and puts the
// grid into canonical longitude order.
package assemble

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pdiddy/obs-wrangler/internal/reconstruct"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// ErrShapeMismatch means the field shape does not match the coordinate
// axis lengths.
var ErrShapeMismatch = errors.New("dataset shape mismatch")

// NewDataset binds field to its axes by position. The field shape must be
// exactly (len(times), len(lat), len(lon)).
func NewDataset(field types.Field, times []time.Time, lat, lon []float64) (types.GriddedDataset, error) {
	want := [3]int{len(times), len(lat), len(lon)}
	if field.Shape != want {
		return types.GriddedDataset{}, fmt.Errorf("%w: field shape %v, axes %v", ErrShapeMismatch, field.Shape, want)
	}
	if len(field.Data) != field.Len() {
		return types.GriddedDataset{}, fmt.Errorf("%w: field holds %d values for shape %v",
			ErrShapeMismatch, len(field.Data), field.Shape)
	}
	return types.GriddedDataset{
		Field:     field,
		Time:      times,
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

// GlobalMean returns the arithmetic mean over every latitude/longitude
// cell at each time step. NaN cells are skipped; a step without any valid
// cell is NaN. No area weighting is applied.
func GlobalMean(ds types.GriddedDataset) types.GlobalMeanSeries {
	nt := ds.Field.Shape[0]
	times := make([]time.Time, nt)
	copy(times, ds.Time)
	values := make([]float64, nt)
	for t := 0; t < nt; t++ {
		var sum float64
		var n int
		for _, v := range ds.Field.Slice(t) {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			values[t] = math.NaN()
			continue
		}
		values[t] = sum / float64(n)
	}
	return types.GlobalMeanSeries{Time: times, Values: values}
}

// SortByLongitude returns a copy of ds with the longitude axis in
// ascending order and the field's longitude dimension permuted to match.
// Equal longitudes keep their relative order. ds is not modified.
func SortByLongitude(ds types.GriddedDataset) types.GriddedDataset {
	nlon := len(ds.Longitude)
	perm := make([]int, nlon)
	for j := range perm {
		perm[j] = j
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return ds.Longitude[perm[a]] < ds.Longitude[perm[b]]
	})

	lon := make([]float64, nlon)
	for j, src := range perm {
		lon[j] = ds.Longitude[src]
	}

	nt, nlat := ds.Field.Shape[0], ds.Field.Shape[1]
	field := types.NewField(nt, nlat, nlon)
	for t := 0; t < nt; t++ {
		for i := 0; i < nlat; i++ {
			row := ds.Field.Index(t, i, 0)
			out := field.Index(t, i, 0)
			for j, src := range perm {
				field.Data[out+j] = ds.Field.Data[row+src]
			}
		}
	}

	times := make([]time.Time, len(ds.Time))
	copy(times, ds.Time)
	lat := make([]float64, len(ds.Latitude))
	copy(lat, ds.Latitude)

	return types.GriddedDataset{Field: field, Time: times, Latitude: lat, Longitude: lon}
}

// Assemble builds the gridded dataset from a reconstruction result. When
// withMean is set the global-mean series is computed from the unsorted
// grid; the mean is independent of longitude order. The returned dataset
// is always sorted by longitude.
func Assemble(res reconstruct.Result, withMean bool) (types.GriddedDataset, *types.GlobalMeanSeries, error) {
	ds, err := NewDataset(res.Field, res.Time, res.Latitude, res.Longitude)
	if err != nil {
		return types.GriddedDataset{}, nil, err
	}

	var mean *types.GlobalMeanSeries
	if withMean {
		m := GlobalMean(ds)
		mean = &m
	}
	return SortByLongitude(ds), mean, nil
}
