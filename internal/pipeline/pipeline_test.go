package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
	"github.com/toastytimes/climate-series-service/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	mu     sync.Mutex
	calls  int
	points []domain.RawPoint
	errs   []error // consumed per call; nil entries mean success
}

func (m *mockFetcher) Fetch(_ context.Context, _ config.Source) ([]domain.RawPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}
	return m.points, nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLoader struct {
	mu        sync.Mutex
	published []string
	count     int
}

func (m *mockLoader) PublishSeries(_ context.Context, sourceID string, series domain.Series, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, sourceID)
	m.count += len(series)
	return len(series), nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func constantPoints(startYear, endYear int, value float64) []domain.RawPoint {
	var points []domain.RawPoint
	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() <= endYear; d = d.AddDate(0, 0, 1) {
		points = append(points, domain.RawPoint{Date: d, Value: domain.Float64(value)})
	}
	return points
}

func testConfig(refreshInterval time.Duration) *config.Config {
	cfg := config.New()
	cfg.RefreshInterval = refreshInterval
	cfg.BaselineStartYear = 2000
	cfg.BaselineEndYear = 2002
	cfg.Sources = []config.Source{
		{ID: "test-sie", Kind: config.SourceKindNSIDC, URL: "https://example.com/sie.csv", Title: "Test SIE", Unit: "million km²"},
	}
	return cfg
}

func runUntilReady(t *testing.T, svc *pipeline.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	for svc.CheckReadiness(ctx) != nil {
		if ctx.Err() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, svc.CheckReadiness(context.Background()))
}

// --- dataset tests ---

func TestBuildDataset(t *testing.T) {
	src := config.Source{ID: "s", Kind: config.SourceKindNSIDC}
	points := constantPoints(2000, 2002, 10.0)

	dataset, err := pipeline.BuildDataset(src, points, 2000, 2002)
	require.NoError(t, err)

	assert.Equal(t, 2000, dataset.MinYear)
	assert.Equal(t, 2002, dataset.MaxYear)
	assert.Equal(t, 2000, dataset.BaselineStart)
	assert.Equal(t, 2002, dataset.BaselineEnd)
	assert.Len(t, dataset.Series, 366+365+365)

	// Constant series: anomaly zero everywhere, sigma absent (zero spread).
	o := dataset.Series[100]
	require.NotNil(t, o.Anomaly)
	assert.InDelta(t, 0.0, *o.Anomaly, 1e-9)
	assert.Nil(t, o.Sigma)
}

func TestBuildDataset_EmptyPoints(t *testing.T) {
	_, err := pipeline.BuildDataset(config.Source{ID: "s"}, nil, 1991, 2020)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestClampBaseline(t *testing.T) {
	tests := []struct {
		name               string
		minYear, maxYear   int
		start, end         int
		wantStart, wantEnd int
	}{
		{"inside span", 1978, 2024, 1991, 2020, 1991, 2020},
		{"start before data", 2005, 2024, 1991, 2020, 2005, 2020},
		{"end after data", 1978, 2010, 1991, 2020, 1991, 2010},
		{"both outside, overlapping", 1995, 2005, 1991, 2020, 1995, 2005},
		{"entirely after data", 1950, 1980, 1991, 2020, 1950, 1980},
		{"entirely before data", 2021, 2024, 1991, 2020, 2021, 2024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := pipeline.ClampBaseline(tt.minYear, tt.maxYear, tt.start, tt.end)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

// --- service tests ---

func TestService_RunRefreshesAndServes(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2002, 10.0)}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())

	require.Error(t, svc.CheckReadiness(context.Background()), "not ready before first refresh")
	runUntilReady(t, svc)

	dataset, err := svc.Snapshot("test-sie")
	require.NoError(t, err)
	assert.Equal(t, 2000, dataset.MinYear)
	assert.Equal(t, 2002, dataset.MaxYear)
	assert.Equal(t, fake.Now(), dataset.ComputedAt)
}

func TestService_SnapshotUnknownSource(t *testing.T) {
	cfg := testConfig(time.Hour)
	svc := pipeline.New(cfg, &mockFetcher{}, nil, discardLogger(), observability.NewMetricsForTesting())

	_, err := svc.Snapshot("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrUnknownSource)
}

func TestService_SnapshotBeforeFirstRefresh(t *testing.T) {
	cfg := testConfig(time.Hour)
	svc := pipeline.New(cfg, &mockFetcher{}, nil, discardLogger(), observability.NewMetricsForTesting())

	_, err := svc.Snapshot("test-sie")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrNotReady, "configured source without a dataset is not-ready, not unknown")
}

func TestService_SnapshotIsIsolated(t *testing.T) {
	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2002, 10.0)}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())
	runUntilReady(t, svc)

	first, err := svc.Snapshot("test-sie")
	require.NoError(t, err)
	*first.Series[0].Value = 999.0

	second, err := svc.Snapshot("test-sie")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *second.Series[0].Value, "snapshots must not share series state")
}

func TestService_SeriesFor_DefaultBaseline(t *testing.T) {
	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2002, 10.0)}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())
	runUntilReady(t, svc)

	result, err := svc.SeriesFor("test-sie", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2000, result.BaselineStart)
	assert.Equal(t, 2002, result.BaselineEnd)
	require.Len(t, result.Years, 3)
	assert.Equal(t, 2000, result.Years[0].Year)
	assert.Equal(t, 2002, result.Years[2].Year)
}

func TestService_SeriesFor_InvalidRange(t *testing.T) {
	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2002, 10.0)}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())
	runUntilReady(t, svc)

	_, err := svc.SeriesFor("test-sie", 2002, 2000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestService_SeriesFor_RebaselineFromValues(t *testing.T) {
	points := constantPoints(2000, 2005, 10.0)
	spike := time.Date(2003, time.July, 1, 0, 0, 0, 0, time.UTC)
	for i := range points {
		if points[i].Date.Equal(spike) {
			points[i].Value = domain.Float64(25.0)
		}
	}

	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: points}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())
	runUntilReady(t, svc)

	// Rebaseline over spike-free years: anomaly on the spike date must be
	// value minus the new mean, not something compounded from the default
	// baseline's anomaly.
	result, err := svc.SeriesFor("test-sie", 2004, 2005)
	require.NoError(t, err)

	for _, ys := range result.Years {
		if ys.Year != 2003 {
			continue
		}
		for _, o := range ys.Observations {
			if !o.Date.Equal(spike) {
				continue
			}
			require.NotNil(t, o.Anomaly)
			assert.InDelta(t, 15.0, *o.Anomaly, 1e-9)
			return
		}
	}
	t.Fatal("spike observation not found")
}

func TestService_PublishesToLoader(t *testing.T) {
	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2000, 10.0)}
	loader := &mockLoader{}
	svc := pipeline.New(cfg, fetcher, loader, discardLogger(), observability.NewMetricsForTesting())
	runUntilReady(t, svc)

	loader.mu.Lock()
	defer loader.mu.Unlock()
	require.NotEmpty(t, loader.published)
	assert.Equal(t, "test-sie", loader.published[0])
	assert.Equal(t, 366, loader.count, "every observation of the leap year is published")
}

func TestService_FetchFailureKeepsStaleDataset(t *testing.T) {
	cfg := testConfig(10 * time.Millisecond)
	fetcher := &mockFetcher{
		points: constantPoints(2000, 2000, 10.0),
		errs:   []error{nil, errors.New("feed down"), errors.New("feed down")},
	}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Wait until the failing second refresh has happened.
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	require.GreaterOrEqual(t, fetcher.callCount(), 2)
	dataset, err := svc.Snapshot("test-sie")
	require.NoError(t, err, "failed refresh must not evict the previous dataset")
	assert.Equal(t, 2000, dataset.MinYear)
}

func TestService_Sources(t *testing.T) {
	cfg := testConfig(time.Hour)
	fetcher := &mockFetcher{points: constantPoints(2000, 2002, 10.0)}
	svc := pipeline.New(cfg, fetcher, nil, discardLogger(), observability.NewMetricsForTesting())

	before := svc.Sources()
	require.Len(t, before, 1)
	assert.False(t, before[0].HasData)
	assert.Equal(t, "Test SIE", before[0].Title)

	runUntilReady(t, svc)

	after := svc.Sources()
	require.Len(t, after, 1)
	assert.True(t, after[0].HasData)
	assert.Equal(t, 2000, after[0].MinYear)
	assert.Equal(t, 2002, after[0].MaxYear)
}

// --- router tests ---

type staticFetcher struct {
	points []domain.RawPoint
}

func (f *staticFetcher) Fetch(_ context.Context, _ config.Source) ([]domain.RawPoint, error) {
	return f.points, nil
}

func TestKindRouter(t *testing.T) {
	router := pipeline.NewKindRouter()
	router.Register(config.SourceKindNSIDC, &staticFetcher{points: constantPoints(2020, 2020, 1.0)})

	points, err := router.Fetch(context.Background(), config.Source{ID: "a", Kind: config.SourceKindNSIDC})
	require.NoError(t, err)
	assert.Len(t, points, 366)

	_, err = router.Fetch(context.Background(), config.Source{ID: "b", Kind: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher for kind")
}
