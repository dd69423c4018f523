package serp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/pkg/httpclient"
	"github.com/FranksOps/digest/pkg/ratelimit"
	"github.com/FranksOps/digest/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed/rss"
)

const DefaultGoogleNewsRSSURL = "https://news.google.com/rss/search"

// GoogleNewsRSSConfig configures the keyless Google News RSS provider.
type GoogleNewsRSSConfig struct {
	BaseURL string
	Timeout time.Duration
	// Language and Country default to en/US.
	Language string
	Country  string
	UAPool   *useragent.Pool
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

// GoogleNewsRSS searches the public Google News RSS endpoint. It needs no
// credentials, so it never reports a configuration error.
type GoogleNewsRSS struct {
	cfg    GoogleNewsRSSConfig
	client *httpclient.Client
	logger *slog.Logger
}

func NewGoogleNewsRSS(cfg GoogleNewsRSSConfig) (*GoogleNewsRSS, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleNewsRSSURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("google news rss: %w", err)
	}
	return &GoogleNewsRSS{cfg: cfg, client: client, logger: cfg.Logger}, nil
}

func (g *GoogleNewsRSS) Name() string { return "google_news_rss" }

// Search fetches the RSS feed for the topic restricted to the time window.
func (g *GoogleNewsRSS) Search(ctx context.Context, q news.SearchQuery) (results []news.RawResult, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordSearch(g.Name(), outcome, len(results))
	}()

	if err := g.cfg.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %w", news.ErrSearch, err)
	}

	country := strings.ToUpper(g.cfg.Country)
	params := url.Values{}
	params.Set("q", q.Topic+" when:"+q.Window)
	params.Set("hl", g.cfg.Language+"-"+country)
	params.Set("gl", country)
	params.Set("ceid", country+":"+g.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", news.ErrSearch, err)
	}
	g.cfg.UAPool.Next().Apply(req.Header)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	g.logger.Info("searching news", "provider", g.Name(), "topic", q.Topic, "window", q.Window)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrSearch, err)
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp, 512); err != nil {
		return nil, fmt.Errorf("%w: google news rss: %w", news.ErrSearch, err)
	}

	fp := &rss.Parser{}
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse rss: %w", news.ErrSearch, err)
	}

	results = make([]news.RawResult, 0, min(len(feed.Items), q.ResultCap))
	for i, item := range feed.Items {
		if len(results) == q.ResultCap {
			break
		}
		results = append(results, itemToResult(i+1, item))
	}
	return results, nil
}

func itemToResult(position int, item *rss.Item) news.RawResult {
	r := news.RawResult{
		Position: position,
		Title:    strings.TrimSpace(item.Title),
		Link:     strings.TrimSpace(item.Link),
		Date:     strings.TrimSpace(item.PubDate),
	}
	if item.Source != nil {
		r.Source = news.Source{Name: strings.TrimSpace(item.Source.Title)}
		// Titles come as "Headline - Publisher".
		if r.Source.Name != "" {
			r.Title = strings.TrimSpace(strings.TrimSuffix(r.Title, " - "+r.Source.Name))
		}
	}
	r.Description = htmlToText(item.Description)
	return r
}

func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
