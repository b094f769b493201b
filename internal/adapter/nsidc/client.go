// Package nsidc fetches daily sea ice extent series from NSIDC CSV feeds.
package nsidc

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
)

// Client fetches and parses NSIDC daily sea ice extent CSV files.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NSIDC feed client.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch downloads the source CSV and converts it to dated raw points,
// deduplicated by date (last row wins).
func (c *Client) Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error) {
	start := time.Now()
	body, err := c.get(ctx, src.URL)
	c.metrics.FetchDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(src.ID, "error").Inc()
		return nil, err
	}
	defer body.Close()

	points, err := ParseCSV(body)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(src.ID, "error").Inc()
		return nil, fmt.Errorf("parse %s: %w", src.URL, err)
	}

	c.metrics.FetchRequests.WithLabelValues(src.ID, "success").Inc()
	c.logger.Debug("fetched nsidc feed", "source", src.ID, "points", len(points))
	return points, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, body)
	}
	return resp.Body, nil
}

// ParseCSV reads the NSIDC daily extent format: a header row with Year,
// Month, Day, and Extent columns, a second row repeating the units, then
// one row per observed date. Fields carry leading whitespace. Rows whose
// extent does not parse become explicit gaps rather than being dropped, so
// the calendar normalizer can still see the date.
func ParseCSV(r io.Reader) ([]domain.RawPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Year", "Month", "Day", "Extent"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", required, header)
		}
	}

	// Units row, e.g. "YYYY, MM, DD, 10^6 sq km, ...".
	if _, err := reader.Read(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read units row: %w", err)
	}

	byDate := map[time.Time]*float64{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		date, ok := parseDate(row, cols)
		if !ok {
			continue
		}
		byDate[date] = parseExtent(row, cols["Extent"])
	}

	points := make([]domain.RawPoint, 0, len(byDate))
	for date, value := range byDate {
		points = append(points, domain.RawPoint{Date: date, Value: value})
	}
	domain.SortPointsByDate(points)
	return points, nil
}

func parseDate(row []string, cols map[string]int) (time.Time, bool) {
	year, errY := atoiField(row, cols["Year"])
	month, errM := atoiField(row, cols["Month"])
	day, errD := atoiField(row, cols["Day"])
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func parseExtent(row []string, col int) *float64 {
	if col >= len(row) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil || v < 0 {
		// NSIDC marks missing days with negative sentinels.
		return nil
	}
	return domain.Float64(v)
}

func atoiField(row []string, col int) (int, error) {
	if col >= len(row) {
		return 0, fmt.Errorf("short row")
	}
	return strconv.Atoi(strings.TrimSpace(row[col]))
}
