// Package pipeline runs a topic through search, enrichment, normalization,
// prompt assembly and summarization to produce a digest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/enrich"
	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/prompt"
	"github.com/FranksOps/digest/internal/serp"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/FranksOps/digest/internal/summarize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxArticles = 10
	// MinSearchResults is the smallest result count requested from the
	// search provider regardless of how many articles are kept.
	MinSearchResults = 10
	// TopicConcurrency bounds RunTopics.
	TopicConcurrency = 2
)

// Enricher attaches fetched page text to search results.
type Enricher interface {
	Enrich(ctx context.Context, raw []news.RawResult) []news.EnrichedResult
}

// Options wires a Pipeline. Search and Summarizer may be nil when their
// construction failed; SetupErr then carries the reason and is returned from
// Run after request validation.
type Options struct {
	Search     serp.Provider
	Enricher   Enricher
	Summarizer summarize.Summarizer
	Builder    prompt.Builder
	// Model and MaxTokens override the summarizer defaults when set.
	Model     string
	MaxTokens int
	SetupErr  error
	Logger    *slog.Logger
}

// Pipeline produces digests. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// Request is one digest request. Zero values take defaults.
type Request struct {
	Topic       string
	Window      string
	MaxArticles int
}

// Digest is the outcome of a successful run.
type Digest struct {
	ID           string                   `json:"id"`
	Topic        string                   `json:"topic"`
	Window       string                   `json:"time_period"`
	Summary      string                   `json:"summary"`
	Articles     []news.NormalizedArticle `json:"articles"`
	TotalResults int                      `json:"total_results"`
	Enriched     int                      `json:"enriched"`
	CreatedAt    time.Time                `json:"created_at"`
}

// Record converts d for storage under the given user, which may be empty.
func (d *Digest) Record(mobileNo string) *storage.DigestRecord {
	return &storage.DigestRecord{
		ID:           d.ID,
		MobileNo:     mobileNo,
		Topic:        d.Topic,
		Window:       d.Window,
		Summary:      d.Summary,
		Articles:     d.Articles,
		TotalResults: d.TotalResults,
		Enriched:     d.Enriched,
		CreatedAt:    d.CreatedAt,
	}
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Builder.Budget <= 0 {
		opts.Builder.Budget = prompt.DefaultBudget
	}
	return &Pipeline{opts: opts, logger: opts.Logger}
}

// Validate applies defaults and checks the request without any I/O.
func (r Request) Validate() (Request, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return r, fmt.Errorf("%w: topic cannot be empty", news.ErrValidation)
	}
	if r.Window == "" {
		r.Window = news.DefaultWindow
	}
	if !news.ValidWindow(r.Window) {
		return r, fmt.Errorf("%w: time window %q must be between 1d and 7d", news.ErrValidation, r.Window)
	}
	if r.MaxArticles < 0 || r.MaxArticles > news.MaxResultCap {
		return r, fmt.Errorf("%w: max articles must be between %d and %d", news.ErrValidation, news.MinResultCap, news.MaxResultCap)
	}
	if r.MaxArticles == 0 {
		r.MaxArticles = DefaultMaxArticles
	}
	return r, nil
}

func (p *Pipeline) configured() error {
	if p.opts.SetupErr != nil {
		return p.opts.SetupErr
	}
	if p.opts.Search == nil {
		return fmt.Errorf("%w: no search provider configured", news.ErrConfiguration)
	}
	if p.opts.Summarizer == nil {
		return fmt.Errorf("%w: no summarizer configured", news.ErrConfiguration)
	}
	if p.opts.Enricher == nil {
		return fmt.Errorf("%w: no enricher configured", news.ErrConfiguration)
	}
	return nil
}

// Run produces one digest. Errors wrap one of the news sentinel kinds;
// ErrNoResults means the search came back empty and nothing else ran.
func (p *Pipeline) Run(ctx context.Context, req Request) (digest *Digest, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPipeline(outcome(err), time.Since(start))
	}()

	req, err = req.Validate()
	if err != nil {
		return nil, err
	}
	if err := p.configured(); err != nil {
		return nil, err
	}

	q, err := news.NewSearchQuery(req.Topic, req.Window, max(req.MaxArticles, MinSearchResults))
	if err != nil {
		return nil, err
	}

	logger := p.logger.With("topic", q.Topic, "window", q.Window)
	logger.Info("searching news", "provider", p.opts.Search.Name(), "result_cap", q.ResultCap)

	raw, err := p.opts.Search.Search(ctx, q)
	if err != nil {
		logger.Error("search failed", "err", err)
		return nil, err
	}
	if len(raw) == 0 {
		logger.Info("no news found")
		return nil, fmt.Errorf("%w for topic %q", news.ErrNoResults, q.Topic)
	}

	enriched := p.opts.Enricher.Enrich(ctx, raw)
	articles := news.Normalize(enriched, req.MaxArticles)

	pr, err := p.opts.Builder.Build(articles, q.Topic)
	if err != nil {
		return nil, err
	}
	if pr.Articles < len(articles) {
		logger.Warn("prompt budget reached, articles dropped", "kept", pr.Articles, "articles", len(articles))
	}

	summary, err := p.opts.Summarizer.Summarize(ctx, summarize.Request{
		System:    pr.System,
		Prompt:    pr.User,
		Model:     p.opts.Model,
		MaxTokens: p.opts.MaxTokens,
	})
	if err != nil {
		logger.Error("summarization failed", "err", err)
		return nil, err
	}

	digest = &Digest{
		ID:           uuid.NewString(),
		Topic:        q.Topic,
		Window:       q.Window,
		Summary:      summary,
		Articles:     articles,
		TotalResults: len(raw),
		Enriched:     enrich.CountEnriched(enriched),
		CreatedAt:    time.Now().UTC(),
	}
	logger.Info("digest ready", "articles", len(articles), "enriched", digest.Enriched, "duration", time.Since(start))
	return digest, nil
}

// TopicResult is the outcome for one topic of RunTopics. Skipped is set when
// the topic produced no news; Err holds any other failure.
type TopicResult struct {
	Topic   string
	Digest  *Digest
	Skipped bool
	Err     error
}

// RunTopics runs one digest per topic, at most TopicConcurrency at a time,
// and returns outcomes in topic order. Topics without news are marked
// Skipped rather than failed.
func (p *Pipeline) RunTopics(ctx context.Context, topics []string, window string, maxArticles int) []TopicResult {
	out := make([]TopicResult, len(topics))

	var g errgroup.Group
	g.SetLimit(TopicConcurrency)
	for i, topic := range topics {
		g.Go(func() error {
			d, err := p.Run(ctx, Request{Topic: topic, Window: window, MaxArticles: maxArticles})
			res := TopicResult{Topic: topic, Digest: d, Err: err}
			if errors.Is(err, news.ErrNoResults) || errors.Is(err, news.ErrNoContent) {
				res.Skipped, res.Err = true, nil
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, news.ErrValidation):
		return "validation"
	case errors.Is(err, news.ErrConfiguration):
		return "configuration"
	case errors.Is(err, news.ErrNoResults):
		return "no_results"
	case errors.Is(err, news.ErrNoContent):
		return "no_content"
	case errors.Is(err, news.ErrSearch):
		return "search"
	case errors.Is(err, news.ErrSummarization):
		return "summarization"
	default:
		return "error"
	}
}
