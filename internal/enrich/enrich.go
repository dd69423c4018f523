// Package enrich attaches full page text to search results.
package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FranksOps/digest/internal/news"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxEnrich is how many results get a full-content fetch.
const DefaultMaxEnrich = 5

// TextFetcher is the slice of the scraper the enricher needs. A non-nil error
// means no text; it is never propagated.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Enricher fetches page text for the leading results of a search.
type Enricher struct {
	fetcher   TextFetcher
	maxEnrich int
	logger    *slog.Logger
}

// New creates an Enricher. maxEnrich <= 0 means DefaultMaxEnrich; it is both
// the selection size and the concurrency limit.
func New(fetcher TextFetcher, maxEnrich int, logger *slog.Logger) *Enricher {
	if maxEnrich <= 0 {
		maxEnrich = DefaultMaxEnrich
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{fetcher: fetcher, maxEnrich: maxEnrich, logger: logger}
}

// Enrich returns one EnrichedResult per input, in input order. The first
// maxEnrich results with a link are fetched concurrently; the rest pass
// through. A failed fetch leaves FullContent empty.
func (e *Enricher) Enrich(ctx context.Context, raw []news.RawResult) []news.EnrichedResult {
	out := make([]news.EnrichedResult, len(raw))
	for i, r := range raw {
		out[i] = news.EnrichedResult{RawResult: r}
	}

	selected := make([]int, 0, e.maxEnrich)
	for i, r := range raw {
		if len(selected) == e.maxEnrich {
			break
		}
		if strings.TrimSpace(r.Link) != "" {
			selected = append(selected, i)
		}
	}
	if len(selected) == 0 || e.fetcher == nil {
		return out
	}

	// Each goroutine owns exactly one slot of out, so no locking is needed.
	// The group's context is not used: one failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(e.maxEnrich)
	for _, idx := range selected {
		g.Go(func() error {
			link := strings.TrimSpace(raw[idx].Link)
			text, err := e.fetcher.FetchText(ctx, link)
			if err != nil {
				e.logger.Debug("content fetch failed, keeping snippet", "url", link, "err", err)
				return nil
			}
			out[idx].FullContent = text
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("enriched search results", "selected", len(selected), "enriched", CountEnriched(out))
	return out
}

// CountEnriched reports how many results carry full content.
func CountEnriched(results []news.EnrichedResult) int {
	n := 0
	for _, r := range results {
		if r.FullContent != "" {
			n++
		}
	}
	return n
}
