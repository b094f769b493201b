// Package reanalyzer fetches daily series from Climate Reanalyzer JSON feeds.
package reanalyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
)

// Client fetches and parses Climate Reanalyzer daily JSON files.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Climate Reanalyzer feed client.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch downloads the source JSON and expands its year-keyed arrays into
// dated raw points.
func (c *Client) Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(src.ID, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.metrics.FetchRequests.WithLabelValues(src.ID, "error").Inc()
		return nil, fmt.Errorf("fetch %s: status %d: %s", src.URL, resp.StatusCode, body)
	}

	var yearSeries []yearEntry
	if err := json.NewDecoder(resp.Body).Decode(&yearSeries); err != nil {
		c.metrics.FetchRequests.WithLabelValues(src.ID, "error").Inc()
		return nil, fmt.Errorf("decode %s: %w", src.URL, err)
	}

	points := Expand(yearSeries)
	c.metrics.FetchRequests.WithLabelValues(src.ID, "success").Inc()
	c.logger.Debug("fetched reanalyzer feed", "source", src.ID, "points", len(points))
	return points, nil
}

// yearEntry is one element of the feed: a named per-day value array. Numeric
// names are calendar years; other names ("1982-2011 mean", "plus 2σ") are
// derived series the feed bundles alongside the raw years.
type yearEntry struct {
	Name string     `json:"name"`
	Data []*float64 `json:"data"`
}

// Expand converts year-keyed day arrays into dated raw points. Array index 0
// is January 1 (the feed is zero-indexed, so day of year is index plus one).
// Null array slots become explicit gaps; indexes beyond the year's actual
// length (a 366-slot array in a non-leap year) are dropped. Non-numeric
// entries are skipped entirely.
func Expand(entries []yearEntry) []domain.RawPoint {
	var points []domain.RawPoint
	for _, e := range entries {
		year, err := strconv.Atoi(e.Name)
		if err != nil {
			continue
		}

		jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		days := daysInYear(year)
		for i, v := range e.Data {
			if i >= days {
				break
			}
			var value *float64
			if v != nil {
				value = domain.Float64(*v)
			}
			points = append(points, domain.RawPoint{
				Date:  jan1.AddDate(0, 0, i),
				Value: value,
			})
		}
	}
	domain.SortPointsByDate(points)
	return points
}

func daysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
