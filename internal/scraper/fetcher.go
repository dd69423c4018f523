// Package scraper fetches article pages and reduces them to bounded plain text.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/pkg/httpclient"
	"github.com/FranksOps/digest/pkg/proxy"
	"github.com/FranksOps/digest/pkg/useragent"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 4 << 20
	DefaultMaxChars     = 3000
)

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	// Timeout bounds one fetch including the body read.
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	// MaxChars caps the extracted text, in runes.
	MaxChars     int
	UseCookieJar bool
	UAPool       *useragent.Pool
	Fingerprint  Profile
	// InsecureTLS skips certificate verification. Only for local testing.
	InsecureTLS bool
	// RespectRobots turns robots.txt disallows into fetch failures.
	RespectRobots bool
	RobotsAgent   string
	Detectors     []Detector
	// Proxies, when set, routes each fetch through the pool's next healthy
	// proxy. Proxied https connections use the Go TLS stack. With every proxy
	// benched the fetch goes out directly.
	Proxies *proxy.Pool
	Logger  *slog.Logger
}

// FailureReason classifies why a fetch produced no text.
type FailureReason string

const (
	ReasonRequest     FailureReason = "request"
	ReasonTransport   FailureReason = "transport"
	ReasonTimeout     FailureReason = "timeout"
	ReasonRedirects   FailureReason = "redirects"
	ReasonStatus      FailureReason = "http_status"
	ReasonContentType FailureReason = "content_type"
	ReasonBlocked     FailureReason = "blocked"
	ReasonRobots      FailureReason = "robots"
	ReasonRead        FailureReason = "read"
	ReasonEmpty       FailureReason = "empty"
)

// FetchFailure is the expected, non-fatal outcome of a fetch that yielded
// no text.
type FetchFailure struct {
	URL        string
	Reason     FailureReason
	StatusCode int
	Detail     string
	Err        error
}

func (f *FetchFailure) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", f.URL, f.Reason)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *FetchFailure) Unwrap() error { return f.Err }

// Page is the outcome of one fetch. Exactly one of Text and Failure is set.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Text        string
	Truncated   bool
	Bytes       int
	Duration    time.Duration
	Failure     *FetchFailure
}

// Fetcher retrieves article pages. It holds no per-request state and is safe
// for concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	robots *RobotsTxtAuditor
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher, filling defaults for zero config values.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Detectors == nil {
		cfg.Detectors = DefaultDetectors()
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = DefaultRobotsAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport, err := NewTransport(cfg.Fingerprint, cfg.InsecureTLS)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}
	if t, ok := transport.(*http.Transport); ok && cfg.Proxies != nil {
		t.Proxy = proxy.ProxyFunc
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	f := &Fetcher{config: cfg, client: client, logger: cfg.Logger}
	if cfg.RespectRobots {
		f.robots = NewRobotsTxtAuditor(client, cfg.Logger)
	}
	return f, nil
}

// FetchText returns the bounded plain text of targetURL, or a *FetchFailure.
func (f *Fetcher) FetchText(ctx context.Context, targetURL string) (string, error) {
	page := f.Fetch(ctx, targetURL)
	if page.Failure != nil {
		return "", page.Failure
	}
	return page.Text, nil
}

// Fetch GETs targetURL with browser-like headers and extracts its text.
// It never returns an error; failures are reported in Page.Failure.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Page {
	start := time.Now()
	page := &Page{URL: targetURL}
	domain := hostOf(targetURL)

	defer func() {
		page.Duration = time.Since(start)
		outcome := "ok"
		if page.Failure != nil {
			outcome = string(page.Failure.Reason)
			f.logger.Debug("fetch failed", "url", targetURL, "reason", page.Failure.Reason, "err", page.Failure)
		}
		metrics.RecordFetch(domain, outcome, page.Duration, page.Bytes)
	}()

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonRequest, Err: err}
		return page
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonRequest, Detail: "unsupported scheme " + req.URL.Scheme}
		return page
	}

	proxyURL := f.config.Proxies.Next()
	if proxyURL == nil && f.config.Proxies.Len() > 0 {
		f.logger.Warn("no healthy proxy, fetching directly", "url", targetURL, "proxies", f.config.Proxies.Len())
	}
	ctx = proxy.WithProxy(ctx, proxyURL)
	req = req.WithContext(ctx)

	if f.robots != nil && !f.robots.IsAllowed(ctx, req.URL, f.config.RobotsAgent) {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonRobots, Detail: "disallowed by robots.txt"}
		return page
	}

	f.config.UAPool.Next().Apply(req.Header)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		page.Failure = &FetchFailure{URL: targetURL, Reason: classify(err), Err: err}
		if page.Failure.Reason == ReasonTransport || page.Failure.Reason == ReasonTimeout {
			_ = f.config.Proxies.MarkFailure(proxyURL)
		}
		return page
	}
	defer resp.Body.Close()
	_ = f.config.Proxies.MarkSuccess(proxyURL)

	page.StatusCode = resp.StatusCode
	page.FinalURL = resp.Request.URL.String()
	page.ContentType = resp.Header.Get("Content-Type")

	body, _, err := httpclient.ReadBody(resp, f.config.MaxBodyBytes)
	page.Bytes = len(body)
	if err != nil {
		page.Failure = &FetchFailure{URL: targetURL, Reason: classify(err), StatusCode: resp.StatusCode, Err: err}
		return page
	}

	if vendor, blocked := DetectBlockWall(&Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, f.config.Detectors); blocked {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonBlocked, StatusCode: resp.StatusCode, Detail: vendor}
		return page
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonStatus, StatusCode: resp.StatusCode, Detail: resp.Status}
		return page
	}

	if !isTextual(page.ContentType) {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonContentType, StatusCode: resp.StatusCode, Detail: page.ContentType}
		return page
	}

	text, err := ExtractText(body, page.ContentType)
	if err != nil {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonRead, StatusCode: resp.StatusCode, Err: err}
		return page
	}
	if text == "" {
		page.Failure = &FetchFailure{URL: targetURL, Reason: ReasonEmpty, StatusCode: resp.StatusCode}
		return page
	}

	page.Text, page.Truncated = Truncate(text, f.config.MaxChars)
	return page
}

func classify(err error) FailureReason {
	if errors.Is(err, httpclient.ErrTooManyRedirects) {
		return ReasonRedirects
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "invalid"
	}
	return u.Hostname()
}
