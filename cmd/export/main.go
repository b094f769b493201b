// Command export performs a one-shot fetch of a configured climate feed,
// computes baseline anomalies, and writes the per-year series as JSON. It is
// useful for inspecting feed contents and for producing offline fixtures
// without running the server.
//
// Usage:
//
//	go run ./cmd/export -source arctic-sie -out arctic.json
//	go run ./cmd/export -source world-sst -baseline-start 1991 -baseline-end 2020
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/toastytimes/climate-series-service/internal/adapter/nsidc"
	"github.com/toastytimes/climate-series-service/internal/adapter/reanalyzer"
	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
	"github.com/toastytimes/climate-series-service/internal/observability"
	"github.com/toastytimes/climate-series-service/internal/pipeline"
)

// exportDoc is the JSON document written for one source.
type exportDoc struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Unit          string              `json:"unit"`
	MinYear       int                 `json:"min_year"`
	MaxYear       int                 `json:"max_year"`
	BaselineStart int                 `json:"baseline_start"`
	BaselineEnd   int                 `json:"baseline_end"`
	ComputedAt    time.Time           `json:"computed_at"`
	Years         []domain.YearSeries `json:"years"`
}

func main() {
	sourceID := flag.String("source", "", "source id to export (see -list)")
	list := flag.Bool("list", false, "list configured sources and exit")
	baselineStart := flag.Int("baseline-start", 0, "baseline start year (0 uses the configured default)")
	baselineEnd := flag.Int("baseline-end", 0, "baseline end year (0 uses the configured default)")
	out := flag.String("out", "", "output file (default stdout)")
	timeout := flag.Duration("timeout", 60*time.Second, "fetch timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if *list {
		for _, src := range cfg.Sources {
			fmt.Printf("  %-20s %-10s %s\n", src.ID, src.Kind, src.Title)
		}
		return
	}

	if *sourceID == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(cfg, *sourceID, *baselineStart, *baselineEnd, *out, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, sourceID string, baselineStart, baselineEnd int, out string, timeout time.Duration) int {
	src, ok := findSource(cfg, sourceID)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: unknown source %q (use -list)\n", sourceID)
		return 1
	}

	if baselineStart == 0 {
		baselineStart = cfg.BaselineStartYear
	}
	if baselineEnd == 0 {
		baselineEnd = cfg.BaselineEndYear
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	router := pipeline.NewKindRouter()
	router.Register(config.SourceKindNSIDC, nsidc.NewClient(timeout, metrics, logger))
	router.Register(config.SourceKindReanalyzer, reanalyzer.NewClient(timeout, metrics, logger))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	points, err := router.Fetch(ctx, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: fetch %s: %v\n", src.ID, err)
		return 1
	}

	dataset, err := pipeline.BuildDataset(src, points, baselineStart, baselineEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build dataset for %s: %v\n", src.ID, err)
		return 1
	}

	doc := exportDoc{
		ID:            src.ID,
		Title:         src.Title,
		Unit:          src.Unit,
		MinYear:       dataset.MinYear,
		MaxYear:       dataset.MaxYear,
		BaselineStart: dataset.BaselineStart,
		BaselineEnd:   dataset.BaselineEnd,
		ComputedAt:    dataset.ComputedAt,
		Years:         domain.PartitionByYear(dataset.Series),
	}

	if err := writeDoc(doc, out); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write output: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "exported %s: %d points, years %d-%d, baseline %d-%d\n",
		src.ID, len(dataset.Series), dataset.MinYear, dataset.MaxYear,
		dataset.BaselineStart, dataset.BaselineEnd)
	return 0
}

func findSource(cfg *config.Config, id string) (config.Source, bool) {
	for _, src := range cfg.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return config.Source{}, false
}

func writeDoc(doc exportDoc, out string) error {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
