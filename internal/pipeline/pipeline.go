// Package pipeline orchestrates the fetch-normalize-derive cycle across all
// configured sources and serves the resulting datasets to the API layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
)

var (
	// ErrUnknownSource is returned for a source id that is not configured.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNotReady is returned for a configured source that has not been
	// refreshed successfully yet.
	ErrNotReady = errors.New("source has no dataset yet")
)

// Fetcher retrieves the raw points of one configured source.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error)
}

// Loader publishes an enriched series to a downstream sink.
type Loader interface {
	PublishSeries(ctx context.Context, sourceID string, series domain.Series, computedAt time.Time) (int, error)
}

// Service owns the per-source datasets and the refresh loop that keeps them
// current. All public methods are safe for concurrent use.
type Service struct {
	cfg     *config.Config
	fetcher Fetcher
	loader  Loader // nil when no sink is configured
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// New creates a Service. Pass a nil loader to disable sink publishing.
func New(cfg *config.Config, fetcher Fetcher, loader Loader, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		loader:   loader,
		logger:   logger,
		metrics:  metrics,
		datasets: make(map[string]*Dataset),
	}
}

// CheckReadiness returns nil once every configured source has produced at
// least one dataset, or an error describing what is still missing.
func (s *Service) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, src := range s.cfg.Sources {
		if _, ok := s.datasets[src.ID]; !ok {
			return fmt.Errorf("source %s has no dataset yet", src.ID)
		}
	}
	return nil
}

// Run refreshes all sources immediately, then on the configured interval,
// until the context is cancelled. A cycle with failures is retried with
// exponential backoff instead of waiting out the full interval; sources that
// did succeed keep serving their fresh data meanwhile.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("pipeline started",
		"sources", len(s.cfg.Sources),
		"refresh_interval", s.cfg.RefreshInterval,
	)

	// Failed cycles retry quickly at first, then back off toward the cap.
	maxBackoff := 5 * time.Minute
	if maxBackoff > s.cfg.RefreshInterval {
		maxBackoff = s.cfg.RefreshInterval
	}
	initialBackoff := 5 * time.Second
	if initialBackoff > maxBackoff {
		initialBackoff = maxBackoff
	}
	backoff := initialBackoff

	for {
		failed := s.refreshAll(ctx)
		if ctx.Err() != nil {
			s.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := s.cfg.RefreshInterval
		if failed > 0 {
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, wait) {
			s.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// refreshAll runs one fetch-normalize-derive cycle over every configured
// source and returns the number of sources that failed.
func (s *Service) refreshAll(ctx context.Context) int {
	start := time.Now()
	s.metrics.RefreshRunning.Set(1)
	defer s.metrics.RefreshRunning.Set(0)

	failed := 0
	for _, src := range s.cfg.Sources {
		if ctx.Err() != nil {
			return failed
		}
		if err := s.refreshSource(ctx, src); err != nil {
			s.logger.Error("source refresh failed", "source", src.ID, "error", err)
			s.metrics.RefreshTotal.WithLabelValues(src.ID, "error").Inc()
			failed++
			continue
		}
		s.metrics.RefreshTotal.WithLabelValues(src.ID, "success").Inc()
	}

	s.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	return failed
}

func (s *Service) refreshSource(ctx context.Context, src config.Source) error {
	points, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return err
	}

	dataset, err := BuildDataset(src, points, s.cfg.BaselineStartYear, s.cfg.BaselineEndYear)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.datasets[src.ID] = dataset
	s.mu.Unlock()

	s.metrics.SeriesPoints.WithLabelValues(src.ID).Set(float64(len(dataset.Series)))
	s.metrics.SeriesYears.WithLabelValues(src.ID).Set(float64(dataset.MaxYear - dataset.MinYear + 1))
	s.logger.Info("source refreshed",
		"source", src.ID,
		"points", len(dataset.Series),
		"years", fmt.Sprintf("%d-%d", dataset.MinYear, dataset.MaxYear),
		"baseline", fmt.Sprintf("%d-%d", dataset.BaselineStart, dataset.BaselineEnd),
	)

	if s.loader != nil {
		published, err := s.loader.PublishSeries(ctx, src.ID, dataset.Series, dataset.ComputedAt)
		if err != nil {
			// Publishing is best-effort; the dataset is already live.
			s.logger.Warn("sink publish failed", "source", src.ID, "error", err)
			return nil
		}
		s.metrics.SinkPublished.Add(float64(published))
	}
	return nil
}

// Snapshot returns a deep copy of a source's current dataset.
func (s *Service) Snapshot(sourceID string) (*Dataset, error) {
	s.mu.RLock()
	dataset, ok := s.datasets[sourceID]
	s.mu.RUnlock()
	if ok {
		return dataset.Clone(), nil
	}

	for _, src := range s.cfg.Sources {
		if src.ID == sourceID {
			return nil, fmt.Errorf("%s: %w", sourceID, ErrNotReady)
		}
	}
	return nil, fmt.Errorf("%s: %w", sourceID, ErrUnknownSource)
}

// SeriesResult is a year-partitioned enriched series for one source, the
// shape handed to the rendering boundary.
type SeriesResult struct {
	Source        config.Source
	MinYear       int
	MaxYear       int
	BaselineStart int
	BaselineEnd   int
	ComputedAt    time.Time
	Years         []domain.YearSeries
}

// SeriesFor recomputes anomalies and sigmas over a source's stored value
// series for a caller-selected baseline range and partitions the result by
// year. Zero startYear and endYear select the dataset's default baseline.
// Derivation always starts from the original values, so switching baselines
// never compounds prior anomalies.
func (s *Service) SeriesFor(sourceID string, startYear, endYear int) (*SeriesResult, error) {
	dataset, err := s.Snapshot(sourceID)
	if err != nil {
		return nil, err
	}

	start, end := startYear, endYear
	if start == 0 && end == 0 {
		start, end = dataset.BaselineStart, dataset.BaselineEnd
	}

	baseline, err := domain.ComputeBaseline(dataset.Series, start, end)
	if err != nil {
		return nil, err
	}
	derived := domain.DeriveAnomalies(dataset.Series, baseline)

	return &SeriesResult{
		Source:        dataset.Source,
		MinYear:       dataset.MinYear,
		MaxYear:       dataset.MaxYear,
		BaselineStart: start,
		BaselineEnd:   end,
		ComputedAt:    dataset.ComputedAt,
		Years:         domain.PartitionByYear(derived),
	}, nil
}

// SourceInfo describes one configured source for discovery endpoints.
type SourceInfo struct {
	ID            string
	Title         string
	Unit          string
	MinYear       int
	MaxYear       int
	BaselineStart int
	BaselineEnd   int
	HasData       bool
}

// Sources lists all configured sources in configuration order, with year
// spans for those that have been refreshed at least once.
func (s *Service) Sources() []SourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SourceInfo, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		info := SourceInfo{ID: src.ID, Title: src.Title, Unit: src.Unit}
		if d, ok := s.datasets[src.ID]; ok {
			info.MinYear = d.MinYear
			info.MaxYear = d.MaxYear
			info.BaselineStart = d.BaselineStart
			info.BaselineEnd = d.BaselineEnd
			info.HasData = true
		}
		out = append(out, info)
	}
	return out
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
