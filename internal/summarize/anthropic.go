package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/liushuangls/go-anthropic/v2"
)

// Anthropic summarizes with the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewAnthropic rejects an empty API key with news.ErrConfiguration.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if err := requireKey("Anthropic", "ANTHROPIC_API_KEY", cfg.APIKey); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Summarize(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	a.logger.Info("summarizing news articles", "backend", a.Name(), "model", model)

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    req.System,
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage(req.Prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return finish(a.Name(), start, a.logger, "", fmt.Errorf("%w: anthropic: %w", news.ErrSummarization, err))
	}
	return finish(a.Name(), start, a.logger, resp.GetFirstContentText(), nil)
}
