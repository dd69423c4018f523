package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FranksOps/digest/internal/config"
	"github.com/FranksOps/digest/internal/enrich"
	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/prompt"
	"github.com/FranksOps/digest/internal/scraper"
	"github.com/FranksOps/digest/internal/serp"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/FranksOps/digest/internal/storage/postgres"
	"github.com/FranksOps/digest/internal/storage/sqlite"
	"github.com/FranksOps/digest/internal/summarize"
	"github.com/FranksOps/digest/pkg/proxy"
	"github.com/FranksOps/digest/pkg/ratelimit"
	"github.com/FranksOps/digest/pkg/useragent"
)

// buildPipeline assembles the pipeline from cfg. A search provider or
// summarizer that cannot be built, usually for a missing API key, is passed
// on as SetupErr so requests are still validated first. The returned cleanup
// is never nil.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	cleanup := func() {}

	fetcher, err := newFetcher(cfg.Fetch, logger)
	if err != nil {
		return nil, cleanup, err
	}

	var setupErrs []error

	provider, cache, err := newProvider(ctx, cfg.Search, cfg.Fetch.UserAgents, logger)
	if err != nil {
		logger.Warn("search provider unavailable", "provider", cfg.Search.Provider, "err", err)
		setupErrs = append(setupErrs, err)
	}
	if cache != nil {
		cleanup = func() { _ = cache.Close() }
	}

	summarizer, err := summarize.New(summarize.Config{
		Backend:   cfg.Summarize.Backend,
		APIKey:    cfg.Summarize.APIKey(),
		BaseURL:   cfg.Summarize.BaseURL,
		Model:     cfg.Summarize.Model,
		MaxTokens: cfg.Summarize.MaxTokens,
		Timeout:   cfg.Summarize.Timeout,
		Logger:    logger,
	})
	if err != nil {
		logger.Warn("summarizer unavailable", "backend", cfg.Summarize.Backend, "err", err)
		setupErrs = append(setupErrs, err)
	}

	p := pipeline.New(pipeline.Options{
		Search:     provider,
		Enricher:   enrich.New(fetcher, cfg.Fetch.MaxEnrich, logger),
		Summarizer: summarizer,
		Builder:    prompt.Builder{Budget: cfg.Summarize.PromptBudget},
		SetupErr:   errors.Join(setupErrs...),
		Logger:     logger,
	})
	return p, cleanup, nil
}

// newProvider returns the configured search provider, wrapped in the Redis
// cache when one is configured and reachable. The closer is nil without a
// cache.
func newProvider(ctx context.Context, cfg config.SearchConfig, agents []string, logger *slog.Logger) (serp.Provider, io.Closer, error) {
	var limiter *ratelimit.Limiter
	if cfg.RPS > 0 {
		limiter = ratelimit.NewLimiter(cfg.RPS, cfg.Jitter)
	}

	var (
		provider serp.Provider
		err      error
	)
	switch strings.ToLower(cfg.Provider) {
	case "rss":
		var uaPool *useragent.Pool
		if len(agents) > 0 {
			uaPool = useragent.NewPoolFromAgents(agents)
		}
		provider, err = serp.NewGoogleNewsRSS(serp.GoogleNewsRSSConfig{
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Language: cfg.Language,
			Country:  cfg.Country,
			UAPool:   uaPool,
			Limiter:  limiter,
			Logger:   logger,
		})
	default:
		provider, err = serp.NewSerpAPI(serp.SerpAPIConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Language: cfg.Language,
			Country:  cfg.Country,
			Limiter:  limiter,
			Logger:   logger,
		})
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.CacheAddr == "" {
		return provider, nil, nil
	}
	cache, err := serp.NewRedisCache(ctx, cfg.CacheAddr)
	if err != nil {
		logger.Warn("search cache disabled", "err", err)
		return provider, nil, nil
	}
	return serp.NewCachedProvider(provider, cache, cfg.CacheTTL, logger), cache, nil
}

func newFetcher(cfg config.FetchConfig, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := scraper.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrConfiguration, err)
	}

	var uaPool *useragent.Pool
	if len(cfg.UserAgents) > 0 {
		uaPool = useragent.NewPoolFromAgents(cfg.UserAgents)
	}

	var proxies *proxy.Pool
	if len(cfg.Proxies) > 0 || cfg.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.Add(cfg.Proxies...); err != nil {
			return nil, fmt.Errorf("%w: %w", news.ErrConfiguration, err)
		}
		if cfg.ProxyFile != "" {
			if err := proxies.LoadFile(cfg.ProxyFile); err != nil {
				return nil, fmt.Errorf("%w: %w", news.ErrConfiguration, err)
			}
		}
		logger.Info("fetching through proxies", "count", proxies.Len())
	}

	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:       cfg.Timeout,
		MaxRedirects:  cfg.MaxRedirects,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		MaxChars:      cfg.MaxChars,
		UAPool:        uaPool,
		Fingerprint:   profile,
		InsecureTLS:   cfg.InsecureTLS,
		RespectRobots: cfg.RespectRobots,
		RobotsAgent:   cfg.RobotsAgent,
		Proxies:       proxies,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrConfiguration, err)
	}
	return f, nil
}

// openStore returns nil, nil for driver "none".
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		store storage.Backend
		err   error
	)
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		store, err = sqlite.New(cfg.DSN)
	case "postgres":
		store, err = postgres.New(ctx, cfg.DSN)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %w", news.ErrConfiguration, cfg.Driver, err)
	}
	return store, nil
}

// requireStore is openStore for commands that cannot work without one.
func requireStore(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: this command needs storage.driver sqlite or postgres", news.ErrConfiguration)
	}
	return store, nil
}
