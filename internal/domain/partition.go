package domain

// PartitionByYear splits a normalized series into per-year slices, years
// ascending, each slice date-ascending (and therefore day-of-year ascending).
// Purely a regrouping for the per-year renderer; no statistics live here.
func PartitionByYear(series Series) []YearSeries {
	if len(series) == 0 {
		return nil
	}

	var out []YearSeries
	current := series[0].Date.Year()
	start := 0
	for i, o := range series {
		if y := o.Date.Year(); y != current {
			out = append(out, YearSeries{Year: current, Observations: series[start:i]})
			current = y
			start = i
		}
	}
	out = append(out, YearSeries{Year: current, Observations: series[start:]})
	return out
}
