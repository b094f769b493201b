package pipeline

import (
	"fmt"
	"time"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
)

// Dataset is the in-memory result of one fetch-normalize-derive cycle for a
// single source: the dense value series enriched against the default
// baseline, plus the metadata the API layer reports.
type Dataset struct {
	Source        config.Source
	Series        domain.Series
	MinYear       int
	MaxYear       int
	BaselineStart int
	BaselineEnd   int
	ComputedAt    time.Time
}

// Clone deep-copies the dataset so HTTP handlers and sink publishers never
// share mutable series state with the refresh loop.
func (d *Dataset) Clone() *Dataset {
	c := *d
	c.Series = d.Series.Clone()
	return &c
}

// BuildDataset runs the full transformation pipeline over freshly fetched
// points: calendar normalization, baseline statistics over the requested
// range clamped to the observed span, and anomaly/sigma derivation.
func BuildDataset(src config.Source, points []domain.RawPoint, baselineStart, baselineEnd int) (*Dataset, error) {
	series, err := domain.Normalize(points)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	minYear, maxYear, _ := series.YearRange()
	start, end := ClampBaseline(minYear, maxYear, baselineStart, baselineEnd)

	baseline, err := domain.ComputeBaseline(series, start, end)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	return &Dataset{
		Source:        src,
		Series:        domain.DeriveAnomalies(series, baseline),
		MinYear:       minYear,
		MaxYear:       maxYear,
		BaselineStart: start,
		BaselineEnd:   end,
		ComputedAt:    domain.Now(),
	}, nil
}

// ClampBaseline intersects a requested baseline range with the observed year
// span. A request entirely outside the span falls back to the span itself,
// so a source whose data predates the conventional 1991-2020 normal still
// gets a usable default.
func ClampBaseline(minYear, maxYear, start, end int) (int, int) {
	if start > maxYear || end < minYear {
		return minYear, maxYear
	}
	if start < minYear {
		start = minYear
	}
	if end > maxYear {
		end = maxYear
	}
	return start, end
}
