// Package summarize turns an assembled prompt into digest text using a
// hosted language model.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/news"
)

const (
	DefaultOpenAIModel    = "gpt-4"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultMaxTokens      = 1000
)

// Request is one summarization call. Empty Model and zero MaxTokens fall
// back to the backend's configured values.
type Request struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// Summarizer returns digest text or an error wrapping
// news.ErrSummarization. Missing credentials are reported by constructors as
// news.ErrConfiguration, before any network call.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "openai" or "anthropic".
	Backend   string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// New builds the backend named in cfg.Backend.
func New(cfg Config) (Summarizer, error) {
	var (
		s   Summarizer
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "openai":
		s, err = NewOpenAI(cfg)
	case "anthropic":
		s, err = NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown summarizer backend %q", news.ErrConfiguration, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func requireKey(backend, envName, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: %s API key not configured, set %s", news.ErrConfiguration, backend, envName)
	}
	return nil
}

// finish checks the model output and records metrics for one call.
func finish(backend string, start time.Time, logger *slog.Logger, text string, err error) (string, error) {
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: %s returned an empty summary", news.ErrSummarization, backend)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		logger.Error("summarization failed", "backend", backend, "err", err)
	} else {
		logger.Info("generated summary", "backend", backend, "duration", time.Since(start))
	}
	metrics.RecordSummarize(backend, outcome, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
