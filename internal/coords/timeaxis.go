// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coords

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMonthRange is returned when a fractional year decodes to a month
// outside 1..12 (negative or non-finite input).
var ErrMonthRange = errors.New("decoded month out of range")

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// MonthsUntil returns the number of whole months from ym to other.
func (ym YearMonth) MonthsUntil(other YearMonth) int {
	return (other.Year-ym.Year)*12 + int(other.Month) - int(ym.Month)
}

// Date returns the UTC midnight timestamp for the given day of ym.
func (ym YearMonth) Date(day int) time.Time {
	return time.Date(ym.Year, ym.Month, day, 0, 0, 0, 0, time.UTC)
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// DecodeFractionalYear splits v into its integer year and fractional part
// and maps the fraction onto a month: month = floor(frac*12) + 1.
// 1900.04 decodes to January 1900, 1950.9583 to December 1950.
func DecodeFractionalYear(v float64) (YearMonth, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return YearMonth{}, fmt.Errorf("%w: time value %v", ErrMonthRange, v)
	}
	year, frac := math.Modf(v)
	month := int(frac*12 + 1)
	if month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("%w: time value %v gives month %d", ErrMonthRange, v, month)
	}
	return YearMonth{Year: int(year), Month: time.Month(month)}, nil
}

// EvenlySpaced returns periods timestamps evenly spaced from start to end,
// both inclusive. With periods == 1 only start is returned; periods <= 0
// yields an empty axis. Spacing is computed in whole seconds so spans of
// several centuries do not overflow time.Duration.
//
// Intermediate points are evenly spaced in elapsed time, not in calendar
// months, so they drift off the endpoints' day of month by up to a day or
// two. Callers that need the axis to be monthly must check that the
// endpoints are exactly periods-1 months apart.
func EvenlySpaced(start, end time.Time, periods int) []time.Time {
	if periods <= 0 {
		return []time.Time{}
	}
	axis := make([]time.Time, periods)
	axis[0] = start.UTC()
	if periods == 1 {
		return axis
	}
	span := float64(end.Unix() - start.Unix())
	step := span / float64(periods-1)
	for i := 1; i < periods-1; i++ {
		offset := int64(math.Round(step * float64(i)))
		axis[i] = time.Unix(start.Unix()+offset, 0).UTC()
	}
	axis[periods-1] = end.UTC()
	return axis
}
