// Package search gathers web evidence about a parcel from a search provider
// and condenses it into a text bundle for the analysis step.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/models"
)

const (
	// requestCount is how many results are asked from the provider per query.
	requestCount = 10
	// perQuery is how many of those are kept.
	perQuery = 5
	// maxHits caps the merged bundle.
	maxHits = 10
	// callTimeout bounds a single provider call.
	callTimeout = 10 * time.Second

	// NoResults is the bundle used when no query returned anything.
	NoResults = "Arama sonucu bulunamadı. Farklı bir bölge veya ada-parsel numarası deneyebilirsiniz."
)

// ErrSearchUnavailable is set on a Result when every result was lost to
// provider failures.
var ErrSearchUnavailable = errors.New("search unavailable")

// Hit is a single ranked search result.
type Hit struct {
	Title       string
	Description string
	URL         string
}

// Provider runs one web search.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Hit, error)
}

// Result is the outcome of an aggregated search. Bundle is always usable as
// prompt input, even when Err is set.
type Result struct {
	Bundle  string
	Hits    []Hit
	Queries []string
	Err     error
}

// Aggregator fans a property out into several queries and merges the hits.
type Aggregator struct {
	provider Provider
	timeout  time.Duration
	log      *zap.Logger
}

// NewAggregator constructs an Aggregator over provider.
func NewAggregator(provider Provider, log *zap.Logger) *Aggregator {
	return &Aggregator{provider: provider, timeout: callTimeout, log: log}
}

// Queries returns the queries issued for p, primary first. The
// municipality query is added only when the primary query has at least
// five terms.
func Queries(p models.Property) []string {
	primary := p.SearchQuery()
	queries := []string{primary}
	if len(strings.Fields(primary)) >= 5 {
		queries = append(queries, fmt.Sprintf("%s %s belediyesi imar durumu %s",
			p.Province, p.District, p.Neighborhood))
	}
	return queries
}

// Search runs every query for p in order. Failed queries are logged and
// skipped; the result degrades to a fallback text instead of failing.
func (a *Aggregator) Search(ctx context.Context, p models.Property) Result {
	queries := Queries(p)
	groups := make([][]Hit, 0, len(queries))
	var lastErr error

	for i, q := range queries {
		hits, err := a.query(ctx, q)
		if err != nil {
			a.log.Warn("search query failed", zap.Int("query", i), zap.Error(err))
			lastErr = err
			continue
		}
		groups = append(groups, hits)
	}

	merged := Merge(groups...)
	res := Result{Hits: merged, Queries: queries}
	switch {
	case len(merged) > 0:
		res.Bundle = Format(merged)
	case lastErr != nil:
		res.Bundle = "Arama hatası: " + lastErr.Error()
		res.Err = fmt.Errorf("%w: %w", ErrSearchUnavailable, lastErr)
	default:
		res.Bundle = NoResults
	}
	return res
}

func (a *Aggregator) query(ctx context.Context, q string) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	hits, err := a.provider.Search(ctx, q, requestCount)
	if err != nil {
		return nil, err
	}
	if len(hits) > perQuery {
		hits = hits[:perQuery]
	}
	return hits, nil
}

// Merge concatenates groups in order, drops repeated URLs keeping the first
// occurrence, and caps the result at ten hits.
func Merge(groups ...[]Hit) []Hit {
	seen := make(map[string]struct{})
	var out []Hit
	for _, g := range groups {
		for _, h := range g {
			if _, dup := seen[h.URL]; dup {
				continue
			}
			seen[h.URL] = struct{}{}
			out = append(out, h)
			if len(out) == maxHits {
				return out
			}
		}
	}
	return out
}

// Format renders hits as title, description and URL lines, one block per
// hit, blocks separated by a blank line.
func Format(hits []Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("Başlık: %s\nAçıklama: %s\nURL: %s", h.Title, h.Description, h.URL)
	}
	return strings.Join(blocks, "\n\n")
}
