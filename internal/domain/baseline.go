package domain

import (
	"fmt"
	"math"
)

// DayStats holds per-day-of-year baseline statistics. StdDev is NaN when
// fewer than two present values exist in the baseline range, matching the
// definition of sample standard deviation.
type DayStats struct {
	Mean   float64
	StdDev float64
	Count  int
}

// Baseline maps day of year (1-366) to its statistics over a fixed year
// range. Days with zero present values in range have no entry; callers must
// treat a missing key as "no baseline available".
type Baseline map[int]DayStats

// ComputeBaseline calculates per-day-of-year mean and sample standard
// deviation over records whose year falls in [startYear, endYear] inclusive.
// A range outside the series' span yields an empty baseline, not an error.
// Returns ErrInvalidRange when startYear > endYear.
func ComputeBaseline(series Series, startYear, endYear int) (Baseline, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("compute baseline: %d > %d: %w", startYear, endYear, ErrInvalidRange)
	}

	grouped := make(map[int][]float64)
	for _, o := range series {
		y := o.Date.Year()
		if y < startYear || y > endYear || o.Value == nil {
			continue
		}
		grouped[o.DayOfYear] = append(grouped[o.DayOfYear], *o.Value)
	}

	baseline := make(Baseline, len(grouped))
	for day, values := range grouped {
		baseline[day] = DayStats{
			Mean:   mean(values),
			StdDev: sampleStdDev(values),
			Count:  len(values),
		}
	}
	return baseline, nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the n-1 denominator standard deviation, or NaN for
// fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
