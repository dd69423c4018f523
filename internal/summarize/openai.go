package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/sashabaranov/go-openai"
)

// OpenAI summarizes with the chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAI rejects an empty API key with news.ErrConfiguration.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if err := requireKey("OpenAI", "OPENAI_API_KEY", cfg.APIKey); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
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

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAI{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Summarize(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	o.logger.Info("summarizing news articles", "backend", o.Name(), "model", model)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return finish(o.Name(), start, o.logger, "", fmt.Errorf("%w: openai: %w", news.ErrSummarization, err))
	}
	if len(resp.Choices) == 0 {
		return finish(o.Name(), start, o.logger, "", fmt.Errorf("%w: openai returned no choices", news.ErrSummarization))
	}
	return finish(o.Name(), start, o.logger, resp.Choices[0].Message.Content, nil)
}
