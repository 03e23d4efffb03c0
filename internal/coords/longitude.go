// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coords converts coordinate axes between conventions: longitudes
// from -180..180 to 0..360 and fractional-year time values to calendar
// timestamps.
package coords

// NormalizeLongitude maps a longitude in the -180..180 convention to the
// 0..360 convention. Zero stays zero; values just below zero land just
// below 360.
//
// The mapping is not idempotent over arbitrary reals: a value already in
// 0..360 is returned unchanged, but so is any out-of-domain positive value
// such as 400.
func NormalizeLongitude(lon float64) float64 {
	if lon < 0 {
		return lon + 360
	}
	return lon
}

// NormalizeLongitudes applies NormalizeLongitude element-wise and returns a
// new slice in the same order as the input. It does not sort.
func NormalizeLongitudes(lons []float64) []float64 {
	out := make([]float64, len(lons))
	for i, lon := range lons {
		out[i] = NormalizeLongitude(lon)
	}
	return out
}
