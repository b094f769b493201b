package domain

import "math"

// DeriveAnomalies returns a copy of the series with Anomaly and Sigma
// populated against the given baseline. Each record is derived independently
// from its Value column, so re-deriving with a different baseline replaces
// prior results instead of compounding on them.
//
// Anomaly is value minus the baseline mean for the record's day of year.
// Sigma is anomaly divided by the baseline standard deviation, left nil when
// the deviation is NaN or zero. Records without a value, or whose day of year
// has no baseline entry, keep both fields nil.
func DeriveAnomalies(series Series, baseline Baseline) Series {
	out := series.Clone()
	for i := range out {
		out[i].Anomaly = nil
		out[i].Sigma = nil

		if out[i].Value == nil {
			continue
		}
		stats, ok := baseline[out[i].DayOfYear]
		if !ok {
			continue
		}

		anomaly := *out[i].Value - stats.Mean
		out[i].Anomaly = Float64(anomaly)

		if math.IsNaN(stats.StdDev) || stats.StdDev == 0 {
			continue
		}
		out[i].Sigma = Float64(anomaly / stats.StdDev)
	}
	return out
}
