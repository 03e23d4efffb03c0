// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Month-of-year count for climatology baselines.
const MonthsPerYear = 12

// Field is a dense three-dimensional array of float64 values stored in
// row-major (C) order. Shape is [time, lat, lon] for temperature fields and
// [month, lat, lon] for climatologies.
type Field struct {
	Shape [3]int
	Data  []float64
}

// NewField allocates a zero-filled Field of the given shape.
func NewField(nt, nlat, nlon int) Field {
	return Field{
		Shape: [3]int{nt, nlat, nlon},
		Data:  make([]float64, nt*nlat*nlon),
	}
}

// FieldFrom wraps data as a Field after checking that its length matches
// the shape.
func FieldFrom(data []float64, nt, nlat, nlon int) (Field, error) {
	if len(data) != nt*nlat*nlon {
		return Field{}, fmt.Errorf("field data has %d values, shape %dx%dx%d needs %d",
			len(data), nt, nlat, nlon, nt*nlat*nlon)
	}
	return Field{Shape: [3]int{nt, nlat, nlon}, Data: data}, nil
}

// Len returns the number of cells in the field.
func (f Field) Len() int { return f.Shape[0] * f.Shape[1] * f.Shape[2] }

// SliceLen returns the number of cells in one [lat, lon] slice.
func (f Field) SliceLen() int { return f.Shape[1] * f.Shape[2] }

// Index returns the flat offset of (t, i, j).
func (f Field) Index(t, i, j int) int {
	return (t*f.Shape[1]+i)*f.Shape[2] + j
}

// At returns the value at (t, i, j).
func (f Field) At(t, i, j int) float64 { return f.Data[f.Index(t, i, j)] }

// Set stores v at (t, i, j).
func (f Field) Set(t, i, j int, v float64) { f.Data[f.Index(t, i, j)] = v }

// Slice returns the [lat, lon] plane at leading index t. The returned slice
// aliases the field's storage.
func (f Field) Slice(t int) []float64 {
	n := f.SliceLen()
	return f.Data[t*n : (t+1)*n]
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	data := make([]float64, len(f.Data))
	copy(data, f.Data)
	return Field{Shape: f.Shape, Data: data}
}

// RawObservationRecord is the raw gridded observation archive: monthly
// temperature anomalies against a 12-month climatology, with time encoded
// as fractional years (1900.04 is early January 1900).
type RawObservationRecord struct {
	// Latitude in degrees, as stored.
	Latitude []float64

	// Longitude in degrees, -180..180 convention.
	Longitude []float64

	// Time in fractional years.
	Time []float64

	// Anomaly is indexed [time, lat, lon].
	Anomaly Field

	// Climatology is indexed [month-of-year, lat, lon] with 12 month-slices.
	Climatology Field
}

// GriddedDataset is the reconstructed absolute temperature field bound to
// its coordinate axes by position: Field.Shape is always
// (len(Time), len(Latitude), len(Longitude)).
type GriddedDataset struct {
	// Field holds absolute temperatures in degrees C, [time, lat, lon].
	Field Field

	// Time is the derived month-centred time axis (UTC).
	Time []time.Time

	// Latitude in degrees.
	Latitude []float64

	// Longitude in degrees, 0..360 convention.
	Longitude []float64
}

// GlobalMeanSeries is the NaN-skipping spatial mean of a GriddedDataset,
// one value per time point.
type GlobalMeanSeries struct {
	Time   []time.Time
	Values []float64
}
