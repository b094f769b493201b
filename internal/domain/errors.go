package domain

import "errors"

// Sentinel errors for malformed pipeline input. Callers match with errors.Is.
var (
	// ErrEmptySeries is returned when a stage needs at least one record to
	// derive a year range and receives none.
	ErrEmptySeries = errors.New("series is empty")

	// ErrInvalidRange is returned when a baseline year range has
	// startYear > endYear.
	ErrInvalidRange = errors.New("invalid baseline year range")
)
