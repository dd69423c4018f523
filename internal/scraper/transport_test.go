package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewTransport_Profiles(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// The server offers h2; the uTLS profiles must still land on http/1.1.
	ts.EnableHTTP2 = true
	ts.StartTLS()
	defer ts.Close()

	for _, p := range []Profile{ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom} {
		t.Run(string(p), func(t *testing.T) {
			rt, err := NewTransport(p, true)
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			client := &http.Client{Transport: rt}
			resp, err := client.Get(ts.URL)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200 OK, got %d for profile %s", resp.StatusCode, p)
			}
			if p != ProfileGo && resp.ProtoMajor != 1 {
				t.Errorf("expected http/1.1 for profile %s, got %s", p, resp.Proto)
			}
		})
	}
}

func TestNewTransport_VerifiesByDefault(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	rt, err := NewTransport(ProfileChrome, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := (&http.Client{Transport: rt}).Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected self-signed certificate to be rejected")
	}
}

func TestParseProfile(t *testing.T) {
	if p, err := ParseProfile(""); err != nil || p != ProfileGo {
		t.Errorf("expected empty to mean go, got %q %v", p, err)
	}
	if p, err := ParseProfile("firefox"); err != nil || p != ProfileFirefox {
		t.Errorf("expected firefox, got %q %v", p, err)
	}
	if _, err := ParseProfile("unknown_browser"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if _, err := NewTransport(Profile("unknown_browser"), false); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
