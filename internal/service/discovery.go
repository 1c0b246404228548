package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/prodscout/internal/metrics"
)

// DefaultIdentifyConcurrency bounds parallel identification calls.
const DefaultIdentifyConcurrency = 4

// Discovery wraps the discovery and identification collaborators.
type Discovery struct {
	discoverer  CategoryDiscoverer
	identifier  ProductIdentifier
	concurrency int
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewDiscovery creates a Discovery. A concurrency below 1 uses the default.
func NewDiscovery(d CategoryDiscoverer, i ProductIdentifier, concurrency int, mc *metrics.Collector, logger *slog.Logger) *Discovery {
	if concurrency < 1 {
		concurrency = DefaultIdentifyConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		discoverer:  d,
		identifier:  i,
		concurrency: concurrency,
		metrics:     mc,
		logger:      logger,
	}
}

// Discover returns candidate categories for query. Blank queries are rejected
// with ErrEmptyQuery. Categories are trimmed and deduplicated in order.
func (d *Discovery) Discover(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	categories, err := d.discoverer.DiscoverCategories(ctx, query)
	d.metrics.Since(metrics.OpDiscover, start)
	if err != nil {
		return nil, fmt.Errorf("discover categories for %q: %w", query, err)
	}

	out := dedupeNames(categories)
	d.logger.Info("categories discovered", "query", query, "count", len(out))
	return out, nil
}

// Identify lists products for each category concurrently. Any failure fails
// the whole call; partial results are not returned.
func (d *Discovery) Identify(ctx context.Context, categories []string) (map[string][]string, error) {
	categories = dedupeNames(categories)
	if len(categories) == 0 {
		return map[string][]string{}, nil
	}

	var mu sync.Mutex
	out := make(map[string][]string, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, category := range categories {
		g.Go(func() error {
			start := time.Now()
			products, err := d.identifier.IdentifyProducts(gctx, category)
			d.metrics.Since(metrics.OpIdentify, start)
			if err != nil {
				return fmt.Errorf("identify products for %q: %w", category, err)
			}
			mu.Lock()
			out[category] = dedupeNames(products)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Info("products identified", "categories", len(out))
	return out, nil
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
