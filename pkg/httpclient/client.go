package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultMaxRedirects bounds redirect chains when Config.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// ErrTooManyRedirects is returned (wrapped) when a redirect chain exceeds the limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects: 0 uses DefaultMaxRedirects, negative disables following.
	MaxRedirects int
	UseCookieJar bool
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a bounded redirect policy and a
// mandatory per-request context.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if maxRedirects > 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects: %w", maxRedirects, ErrTooManyRedirects)
			}
			// Keep the browser headers of the original request across hops.
			if len(via) > 0 {
				for k, v := range via[0].Header {
					if _, ok := req.Header[k]; !ok {
						req.Header[k] = v
					}
				}
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do executes an HTTP request bound to ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// StatusError reports a response whose status is outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	// Body holds the start of the response body, useful for provider error text.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// CheckStatus returns a *StatusError for non-2xx responses. The first
// peekBytes of the body are captured; the body is not closed.
func CheckStatus(resp *http.Response, peekBytes int64) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body []byte
	if peekBytes > 0 && resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, peekBytes))
	}
	return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
}

// ReadBody reads at most limit bytes of the response body. The returned bool
// is true when the body was longer than limit.
func ReadBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		b, err := io.ReadAll(resp.Body)
		return b, false, err
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return b, false, err
	}
	if int64(len(b)) > limit {
		return b[:limit], true, nil
	}
	return b, false, nil
}
