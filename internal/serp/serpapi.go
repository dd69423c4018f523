package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/pkg/httpclient"
	"github.com/FranksOps/digest/pkg/ratelimit"
)

const (
	DefaultSerpAPIURL = "https://serpapi.com/search.json"
	maxSerpBody       = 8 << 20
)

// noResultsText is how SerpAPI reports an empty search in its error field.
const noResultsText = "hasn't returned any results"

// SerpAPIConfig configures the SerpAPI google_news provider.
type SerpAPIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Language and Country default to en/us.
	Language string
	Country  string
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

// SerpAPI searches Google News through serpapi.com.
type SerpAPI struct {
	cfg    SerpAPIConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewSerpAPI returns news.ErrConfiguration when no API key is set.
func NewSerpAPI(cfg SerpAPIConfig) (*SerpAPI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: SERP_API_KEY is not set", news.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerpAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	return &SerpAPI{cfg: cfg, client: client, logger: cfg.Logger}, nil
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpResponse struct {
	Error          string `json:"error"`
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
	NewsResults []serpResult `json:"news_results"`
}

// serpResult is a news_results entry. Story clusters carry their lead article
// in Highlight instead of at the top level.
type serpResult struct {
	news.RawResult
	Highlight *news.RawResult `json:"highlight"`
}

// UnmarshalJSON overrides the method promoted from news.RawResult, which
// would otherwise swallow the highlight field.
func (r *serpResult) UnmarshalJSON(data []byte) error {
	if err := r.RawResult.UnmarshalJSON(data); err != nil {
		return err
	}
	r.Highlight = nil

	var cluster struct {
		Highlight json.RawMessage `json:"highlight"`
	}
	if json.Unmarshal(data, &cluster) != nil || len(cluster.Highlight) == 0 {
		return nil
	}
	var lead news.RawResult
	if err := lead.UnmarshalJSON(cluster.Highlight); err != nil {
		return err
	}
	if lead.Link != "" {
		r.Highlight = &lead
	}
	return nil
}

// Search runs one google_news query.
func (s *SerpAPI) Search(ctx context.Context, q news.SearchQuery) (results []news.RawResult, err error) {
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: SERP_API_KEY is not set", news.ErrConfiguration)
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordSearch(s.Name(), outcome, len(results))
	}()

	if err := s.cfg.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %w", news.ErrSearch, err)
	}

	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("q", q.Topic)
	params.Set("time", q.Window)
	params.Set("num", strconv.Itoa(q.ResultCap))
	params.Set("gl", s.cfg.Country)
	params.Set("hl", s.cfg.Language)
	params.Set("api_key", s.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", news.ErrSearch, redact(err))
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Info("searching news", "provider", s.Name(), "topic", q.Topic, "window", q.Window, "num", q.ResultCap)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrSearch, redact(err))
	}
	defer resp.Body.Close()

	body, _, err := httpclient.ReadBody(resp, maxSerpBody)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", news.ErrSearch, err)
	}

	var decoded serpResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if decoded.Error != "" {
		if strings.Contains(decoded.Error, noResultsText) {
			s.logger.Warn("no news results", "topic", q.Topic)
			return []news.RawResult{}, nil
		}
		return nil, fmt.Errorf("%w: serpapi: %s", news.ErrSearch, decoded.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: serpapi: unexpected status %s", news.ErrSearch, resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode serpapi response: %w", news.ErrSearch, decodeErr)
	}

	results = make([]news.RawResult, 0, min(len(decoded.NewsResults), q.ResultCap))
	for _, r := range decoded.NewsResults {
		if len(results) == q.ResultCap {
			break
		}
		raw := r.RawResult
		if raw.Link == "" && r.Highlight != nil {
			pos := raw.Position
			raw = *r.Highlight
			raw.Position = pos
		}
		if raw.Empty() {
			continue
		}
		results = append(results, raw)
	}

	if len(results) == 0 {
		s.logger.Warn("no news results", "topic", q.Topic)
	} else {
		s.logger.Info("found news articles", "topic", q.Topic, "count", len(results))
	}
	return results, nil
}
