package useragent

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
)

// Browser is a coherent set of request headers as sent by one desktop browser.
// News sites that sniff for bots tend to compare the User-Agent against the
// Accept headers, so they travel together.
type Browser struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	// SecCHUA is only sent by Chromium based browsers.
	SecCHUA         string
	SecCHUAPlatform string
}

const (
	acceptChromium = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptFirefox  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptSafari   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// DefaultBrowsers is the built-in rotation of current desktop browsers.
var DefaultBrowsers = []Browser{
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		Accept:          acceptChromium,
		AcceptLanguage:  "en-US,en;q=0.9",
		SecCHUA:         `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		SecCHUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		Accept:          acceptChromium,
		AcceptLanguage:  "en-US,en;q=0.9",
		SecCHUA:         `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		SecCHUAPlatform: `"macOS"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
		Accept:         acceptFirefox,
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:131.0) Gecko/20100101 Firefox/131.0",
		Accept:         acceptFirefox,
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
		Accept:         acceptSafari,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
		Accept:          acceptChromium,
		AcceptLanguage:  "en-US,en;q=0.9",
		SecCHUA:         `"Microsoft Edge";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		SecCHUAPlatform: `"Windows"`,
	},
}

// Apply writes the browser's headers onto h, replacing any existing values.
func (b Browser) Apply(h http.Header) {
	h.Set("User-Agent", b.UserAgent)
	h.Set("Accept", b.Accept)
	h.Set("Accept-Language", b.AcceptLanguage)
	h.Set("Upgrade-Insecure-Requests", "1")
	if b.SecCHUA != "" {
		h.Set("Sec-CH-UA", b.SecCHUA)
		h.Set("Sec-CH-UA-Mobile", "?0")
		h.Set("Sec-CH-UA-Platform", b.SecCHUAPlatform)
	}
}

// Pool rotates through a fixed set of browsers.
type Pool struct {
	browsers []Browser
	counter  atomic.Uint64
}

// NewPool creates a pool over the given browsers, falling back to
// DefaultBrowsers when none are given.
func NewPool(browsers []Browser) *Pool {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	copied := make([]Browser, len(browsers))
	copy(copied, browsers)
	return &Pool{browsers: copied}
}

// NewPoolFromAgents builds a pool from bare User-Agent strings, deriving the
// Accept headers from the browser family named in each string.
func NewPoolFromAgents(agents []string) *Pool {
	browsers := make([]Browser, 0, len(agents))
	for _, ua := range agents {
		ua = strings.TrimSpace(ua)
		if ua == "" {
			continue
		}
		browsers = append(browsers, browserFor(ua))
	}
	return NewPool(browsers)
}

func browserFor(ua string) Browser {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return Browser{UserAgent: ua, Accept: acceptFirefox, AcceptLanguage: "en-US,en;q=0.5"}
	case strings.Contains(ua, "Chrome/"):
		return Browser{UserAgent: ua, Accept: acceptChromium, AcceptLanguage: "en-US,en;q=0.9"}
	default:
		return Browser{UserAgent: ua, Accept: acceptSafari, AcceptLanguage: "en-US,en;q=0.9"}
	}
}

// Next returns browsers round-robin. It is safe for concurrent use.
func (p *Pool) Next() Browser {
	if len(p.browsers) == 0 {
		return Browser{}
	}
	idx := p.counter.Add(1) - 1
	return p.browsers[idx%uint64(len(p.browsers))]
}

// Random returns a uniformly chosen browser. It is safe for concurrent use.
func (p *Pool) Random() Browser {
	if len(p.browsers) == 0 {
		return Browser{}
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.browsers))))
	if err != nil {
		return p.Next()
	}
	return p.browsers[n.Int64()]
}

// Len reports the number of browsers in the rotation.
func (p *Pool) Len() int {
	return len(p.browsers)
}
