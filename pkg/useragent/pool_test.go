package useragent

import (
	"net/http"
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPoolFromAgents([]string{"A", "B", "C"})

	for _, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next().UserAgent; got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(DefaultBrowsers) {
		t.Errorf("expected pool length %d, got %d", len(DefaultBrowsers), p.Len())
	}
	if got := p.Next(); got.UserAgent != DefaultBrowsers[0].UserAgent {
		t.Errorf("expected %s, got %s", DefaultBrowsers[0].UserAgent, got.UserAgent)
	}
}

func TestPool_FromAgentsSkipsBlank(t *testing.T) {
	p := NewPoolFromAgents([]string{"", "  ", "X"})
	if p.Len() != 1 {
		t.Fatalf("expected 1 browser, got %d", p.Len())
	}

	// all blank falls back to the defaults
	p = NewPoolFromAgents([]string{""})
	if p.Len() != len(DefaultBrowsers) {
		t.Errorf("expected default pool, got %d browsers", p.Len())
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPoolFromAgents([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Random().UserAgent
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B, got %v", seen)
	}
}

func TestBrowser_Apply(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "Go-http-client/1.1")

	DefaultBrowsers[0].Apply(h)

	if h.Get("User-Agent") != DefaultBrowsers[0].UserAgent {
		t.Errorf("expected User-Agent to be replaced, got %s", h.Get("User-Agent"))
	}
	if h.Get("Accept") == "" || h.Get("Accept-Language") == "" {
		t.Errorf("expected Accept headers, got %v", h)
	}
	if h.Get("Sec-CH-UA") == "" {
		t.Errorf("expected client hints for a Chromium browser")
	}

	firefox := browserFor("Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0")
	h = http.Header{}
	firefox.Apply(h)
	if h.Get("Sec-CH-UA") != "" {
		t.Errorf("expected no client hints for Firefox, got %s", h.Get("Sec-CH-UA"))
	}
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPoolFromAgents([]string{"X", "Y", "Z"})

	var wg sync.WaitGroup
	const routines = 50
	const iterations = 300

	results := make(chan string, routines*iterations)
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				results <- p.Next().UserAgent
			}
		}()
	}
	wg.Wait()
	close(results)

	counts := map[string]int{}
	for r := range results {
		counts[r]++
	}

	// routines*iterations is divisible by 3, so the rotation is exact
	want := routines * iterations / 3
	for k, c := range counts {
		if c != want {
			t.Errorf("expected %d hits for %s, got %d", want, k, c)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}
	if got := p.Next(); got.UserAgent != "" {
		t.Errorf("expected empty browser, got %v", got)
	}
	if got := p.Random(); got.UserAgent != "" {
		t.Errorf("expected empty browser, got %v", got)
	}
}
