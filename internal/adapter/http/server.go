// Package http exposes the service API: health, readiness, metrics, and the
// series endpoints consumed by the chart renderer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/pipeline"
)

// SeriesProvider is what the handlers need from the pipeline service.
type SeriesProvider interface {
	CheckReadiness(ctx context.Context) error
	Sources() []pipeline.SourceInfo
	SeriesFor(sourceID string, startYear, endYear int) (*pipeline.SeriesResult, error)
}

// Server exposes health, readiness, metrics, and series HTTP endpoints.
type Server struct {
	httpServer *http.Server
	provider   SeriesProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /api routes.
func NewServer(addr string, provider SeriesProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider: provider,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /api/sources/{id}/series", s.handleSeries)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.provider.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// sourceDTO is the discovery representation of one configured source.
type sourceDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Unit          string `json:"unit"`
	MinYear       int    `json:"min_year,omitempty"`
	MaxYear       int    `json:"max_year,omitempty"`
	BaselineStart int    `json:"baseline_start,omitempty"`
	BaselineEnd   int    `json:"baseline_end,omitempty"`
	HasData       bool   `json:"has_data"`
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	infos := s.provider.Sources()
	out := make([]sourceDTO, len(infos))
	for i, info := range infos {
		out[i] = sourceDTO{
			ID:            info.ID,
			Title:         info.Title,
			Unit:          info.Unit,
			MinYear:       info.MinYear,
			MaxYear:       info.MaxYear,
			BaselineStart: info.BaselineStart,
			BaselineEnd:   info.BaselineEnd,
			HasData:       info.HasData,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// observationDTO is one chart point. Null value/anomaly/sigma mean "no data"
// and must stay distinguishable from zero, so the pointers pass through as-is.
type observationDTO struct {
	Date      string   `json:"date"`
	DayOfYear int      `json:"day_of_year"`
	Value     *float64 `json:"value"`
	Anomaly   *float64 `json:"anomaly"`
	Sigma     *float64 `json:"sigma"`
}

type yearDTO struct {
	Year         int              `json:"year"`
	Observations []observationDTO `json:"observations"`
}

type seriesDTO struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Unit          string    `json:"unit"`
	MinYear       int       `json:"min_year"`
	MaxYear       int       `json:"max_year"`
	BaselineStart int       `json:"baseline_start"`
	BaselineEnd   int       `json:"baseline_end"`
	HighlightYear int       `json:"highlight_year"`
	ComputedAt    time.Time `json:"computed_at"`
	Years         []yearDTO `json:"years"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("id")

	startYear, ok := yearParam(w, r, "baseline_start")
	if !ok {
		return
	}
	endYear, ok := yearParam(w, r, "baseline_end")
	if !ok {
		return
	}
	if (startYear == 0) != (endYear == 0) {
		writeError(w, http.StatusBadRequest, "baseline_start and baseline_end must be supplied together")
		return
	}

	result, err := s.provider.SeriesFor(sourceID, startYear, endYear)
	switch {
	case errors.Is(err, pipeline.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, pipeline.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("series request failed", "source", sourceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toSeriesDTO(result))
}

func toSeriesDTO(result *pipeline.SeriesResult) seriesDTO {
	years := make([]yearDTO, len(result.Years))
	for i, ys := range result.Years {
		observations := make([]observationDTO, len(ys.Observations))
		for j, o := range ys.Observations {
			observations[j] = observationDTO{
				Date:      o.DateString(),
				DayOfYear: o.DayOfYear,
				Value:     o.Value,
				Anomaly:   o.Anomaly,
				Sigma:     o.Sigma,
			}
		}
		years[i] = yearDTO{Year: ys.Year, Observations: observations}
	}
	return seriesDTO{
		ID:            result.Source.ID,
		Title:         result.Source.Title,
		Unit:          result.Source.Unit,
		MinYear:       result.MinYear,
		MaxYear:       result.MaxYear,
		BaselineStart: result.BaselineStart,
		BaselineEnd:   result.BaselineEnd,
		HighlightYear: domain.CurrentYear(),
		ComputedAt:    result.ComputedAt,
		Years:         years,
	}
}

// yearParam parses an optional positive-integer query parameter. Reports
// false after writing a 400 response for malformed input.
func yearParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return year, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
