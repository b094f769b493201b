package domain

import (
	"fmt"
	"sort"
	"time"
)

// Normalize places a sparse, possibly unsorted sequence of dated measurements
// onto a dense daily calendar spanning January 1 of the earliest observed year
// through December 31 of the latest. Dates absent from the input get a nil
// value, then interior gaps are filled by linear interpolation between the
// nearest present neighbors. Leading and trailing gaps stay nil so no data is
// fabricated outside the observed envelope.
//
// Input dates must be unique; feed adapters deduplicate before calling.
// Returns ErrEmptySeries for empty input.
func Normalize(points []RawPoint) (Series, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("normalize: %w", ErrEmptySeries)
	}

	byDate := make(map[time.Time]*float64, len(points))
	minYear, maxYear := points[0].Date.Year(), points[0].Date.Year()
	for _, p := range points {
		d := dateOnly(p.Date)
		byDate[d] = p.Value
		if y := d.Year(); y < minYear {
			minYear = y
		} else if y > maxYear {
			maxYear = y
		}
	}

	start := time.Date(minYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(maxYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	series := make(Series, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var value *float64
		if v, ok := byDate[d]; ok && v != nil {
			value = clonePtr(v)
		}
		series = append(series, DailyObservation{
			Date:      d,
			DayOfYear: d.YearDay(),
			Value:     value,
		})
	}

	interpolateInterior(series)
	return series, nil
}

// interpolateInterior fills nil values strictly between present neighbors,
// spacing multi-day gaps evenly along the line connecting them.
func interpolateInterior(series Series) {
	prev := -1 // index of last present value
	for i := range series {
		if series[i].Value == nil {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo, hi := *series[prev].Value, *series[i].Value
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / span
				series[j].Value = Float64(lo + (hi-lo)*frac)
			}
		}
		prev = i
	}
}

// SortPointsByDate orders raw points ascending in place. Normalize does not
// require sorted input, but deterministic fixture output does.
func SortPointsByDate(points []RawPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}

// dateOnly truncates a timestamp to midnight UTC so map keys compare by
// calendar date regardless of source time zone or time-of-day noise.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
