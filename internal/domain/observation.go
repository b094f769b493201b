package domain

import "time"

// RawPoint is a single dated measurement as produced by a feed adapter,
// before calendar normalization. A nil Value is an explicit gap.
type RawPoint struct {
	Date  time.Time
	Value *float64
}

// DailyObservation is one row of a normalized series. Value, Anomaly, and
// Sigma use nil to mean "absent"; absence is meaningful and must survive
// serialization (JSON null), so the fields are pointers rather than NaN.
type DailyObservation struct {
	Date      time.Time `json:"date"`
	DayOfYear int       `json:"day_of_year"`
	Value     *float64  `json:"value"`
	Anomaly   *float64  `json:"anomaly"`
	Sigma     *float64  `json:"sigma"`
}

// DateString returns the canonical YYYY-MM-DD form of the observation date.
// This is the only display formatting the core performs; everything else
// belongs to the renderer.
func (o DailyObservation) DateString() string {
	return o.Date.Format("2006-01-02")
}

// Series is a calendar-normalized sequence of daily observations,
// date-ascending and dense between its first and last year.
type Series []DailyObservation

// Clone returns a deep copy. Pointer fields are reallocated so concurrent
// pipeline runs never share mutable state.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	for i, o := range s {
		out[i] = DailyObservation{
			Date:      o.Date,
			DayOfYear: o.DayOfYear,
			Value:     clonePtr(o.Value),
			Anomaly:   clonePtr(o.Anomaly),
			Sigma:     clonePtr(o.Sigma),
		}
	}
	return out
}

// YearRange returns the first and last calendar year covered by the series.
// ok is false for an empty series.
func (s Series) YearRange() (minYear, maxYear int, ok bool) {
	if len(s) == 0 {
		return 0, 0, false
	}
	return s[0].Date.Year(), s[len(s)-1].Date.Year(), true
}

// YearSeries holds all observations of a single calendar year.
type YearSeries struct {
	Year         int    `json:"year"`
	Observations Series `json:"observations"`
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float64 returns a pointer to v. Convenience for building optional fields.
func Float64(v float64) *float64 {
	return &v
}
