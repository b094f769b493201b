// Package domain models daily climate time series and the statistics
// derived from them.
//
// # Data Sources
//
// Series originate from two kinds of public daily feeds:
//
//	NSIDC sea ice extent (CSV):
//	  https://noaadata.apps.nsidc.org/NOAA/G02135/{north,south}/daily/data/
//	  Columns: Year, Month, Day, Extent, Missing, Source Data.
//	  The second row repeats the units and must be skipped. Fields carry
//	  leading whitespace.
//
//	Climate Reanalyzer daily series (JSON):
//	  https://climatereanalyzer.org/clim/{sst_daily,t2_daily}/json/
//	  An array of {"name": ..., "data": [...]} objects. A numeric name is a
//	  calendar year whose data array holds one value per day of year,
//	  zero-indexed (index 0 = January 1). Non-numeric names carry derived
//	  series such as "1982-2011 mean" and are dropped. Trailing nulls pad
//	  the current year.
//
// # Calendar Conventions
//
// After normalization a series is dense: exactly one observation per
// calendar date from January 1 of the earliest observed year through
// December 31 of the latest, in ascending order. Day of year is always
// recomputed from the date (1-366, leap years produce 366), never taken
// from source data, so the same day of year lines up across leap and
// non-leap years.
//
// Gaps inside the observed envelope are filled by linear interpolation
// between the nearest present neighbors. Runs before the first or after
// the last present value stay absent; nothing is extrapolated.
//
// # Baseline Statistics
//
// A baseline maps day of year to the arithmetic mean and sample standard
// deviation (n-1 denominator) of present values within an inclusive year
// range. Days with no present value in range are absent from the map, and
// the standard deviation of a single observation is NaN. Absence stays
// absence all the way to the consumer: an anomaly or sigma that cannot be
// computed is a nil pointer, never zero.
package domain
