package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/FranksOps/digest/pkg/httpclient"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// DefaultRobotsAgent is the product token matched against robots.txt groups.
const DefaultRobotsAgent = "DigestBot"

const maxRobotsBytes = 512 << 10

// RobotsTxtAuditor fetches and caches robots.txt per host. Hosts whose
// robots.txt cannot be read are treated as allowing everything.
type RobotsTxtAuditor struct {
	client *httpclient.Client
	logger *slog.Logger
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates an auditor that fetches with client.
func NewRobotsTxtAuditor(client *httpclient.Client, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		client: client,
		logger: logger,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether agent may fetch u.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, u *url.URL, agent string) bool {
	host := u.Scheme + "://" + u.Host
	data := r.get(ctx, host)
	if data == nil {
		return true
	}
	return data.TestAgent(u.EscapedPath(), agent)
}

func (r *RobotsTxtAuditor) get(ctx context.Context, host string) *robotstxt.RobotsData {
	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data
	}

	// Concurrent fetches against one host share a single robots.txt request.
	v, _, _ := r.group.Do(host, func() (any, error) {
		data, err := r.fetch(ctx, host)
		if err != nil {
			r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		}
		r.mu.Lock()
		r.cache[host] = data
		r.mu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 4xx means no rules; 5xx is treated the same rather than as a full disallow.
	if resp.StatusCode >= 400 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
