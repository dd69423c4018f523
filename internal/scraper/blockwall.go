package scraper

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP response the bot-wall detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a bot-protection challenge or block
// page rather than the article, and names the vendor.
type Detector func(res *Response) (detected bool, vendor string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// DetectBlockWall runs res through detectors and returns the first vendor
// that matched.
func DetectBlockWall(res *Response, detectors []Detector) (string, bool) {
	if res == nil {
		return "", false
	}
	for _, d := range detectors {
		if detected, vendor := d(res); detected {
			return vendor, true
		}
	}
	return "", false
}

func serverHeader(res *Response) string {
	return strings.ToLower(res.Header.Get("Server"))
}

func bodyContains(res *Response, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(res.Body, []byte(n)) {
			return true
		}
	}
	return false
}

// Challenges come back as 403 or 503.
func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "cloudflare") || res.Header.Get("Cf-Mitigated") == "challenge" {
		return true, "Cloudflare"
	}
	if bodyContains(res, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare", "Just a moment...") {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bodyContains(res, "Reference #") && bodyContains(res, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "datadome") {
		return true, "DataDome"
	}
	if res.Header.Get("X-DataDome") != "" || res.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyContains(res, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyContains(res, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
