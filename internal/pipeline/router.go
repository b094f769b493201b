package pipeline

import (
	"context"
	"fmt"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
)

// KindRouter dispatches fetches to the adapter registered for each source
// kind (NSIDC CSV, Climate Reanalyzer JSON).
type KindRouter struct {
	fetchers map[string]Fetcher
}

// NewKindRouter creates an empty router.
func NewKindRouter() *KindRouter {
	return &KindRouter{fetchers: make(map[string]Fetcher)}
}

// Register binds a fetcher to a source kind, replacing any previous binding.
func (r *KindRouter) Register(kind string, f Fetcher) {
	r.fetchers[kind] = f
}

// Fetch delegates to the fetcher registered for the source's kind.
func (r *KindRouter) Fetch(ctx context.Context, src config.Source) ([]domain.RawPoint, error) {
	f, ok := r.fetchers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("source %s: no fetcher for kind %q", src.ID, src.Kind)
	}
	return f.Fetch(ctx, src)
}
