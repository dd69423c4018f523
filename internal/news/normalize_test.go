package news

import (
	"fmt"
	"testing"
)

func TestNormalize_ContentFallback(t *testing.T) {
	tests := []struct {
		name        string
		in          EnrichedResult
		wantContent string
		wantSnippet string
	}{
		{
			name:        "full content wins, preview stays short",
			in:          EnrichedResult{RawResult: RawResult{Snippet: "short", Description: "desc"}, FullContent: "the full page"},
			wantContent: "the full page",
			wantSnippet: "short",
		},
		{
			name:        "snippet without full content",
			in:          EnrichedResult{RawResult: RawResult{Snippet: "short"}},
			wantContent: "short",
			wantSnippet: "short",
		},
		{
			name:        "description only",
			in:          EnrichedResult{RawResult: RawResult{Description: "desc"}},
			wantContent: "desc",
			wantSnippet: "desc",
		},
		{
			name:        "full content and description",
			in:          EnrichedResult{RawResult: RawResult{Description: "desc"}, FullContent: "page"},
			wantContent: "page",
			wantSnippet: "desc",
		},
		{
			name:        "nothing at all",
			in:          EnrichedResult{},
			wantContent: NoContent,
			wantSnippet: NoContent,
		},
		{
			name:        "whitespace counts as empty",
			in:          EnrichedResult{RawResult: RawResult{Snippet: "  \n"}, FullContent: "\t"},
			wantContent: NoContent,
			wantSnippet: NoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NormalizeOne(tt.in)
			if a.Content != tt.wantContent {
				t.Errorf("content: expected %q, got %q", tt.wantContent, a.Content)
			}
			if a.Snippet != tt.wantSnippet {
				t.Errorf("snippet: expected %q, got %q", tt.wantSnippet, a.Snippet)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	a := NormalizeOne(EnrichedResult{})
	if a.Title != DefaultTitle {
		t.Errorf("expected title %q, got %q", DefaultTitle, a.Title)
	}
	if a.SourceName != DefaultSourceName {
		t.Errorf("expected source %q, got %q", DefaultSourceName, a.SourceName)
	}

	a = NormalizeOne(EnrichedResult{RawResult: RawResult{Title: " Headline ", Source: Source{Name: "Reuters"}}})
	if a.Title != "Headline" || a.SourceName != "Reuters" {
		t.Errorf("unexpected article: %+v", a)
	}
}

func TestNormalize_CapAndOrder(t *testing.T) {
	in := make([]EnrichedResult, 6)
	for i := range in {
		in[i] = EnrichedResult{RawResult: RawResult{Title: fmt.Sprintf("t%d", i)}}
	}

	tests := []struct {
		max  int
		want int
	}{
		{3, 3},
		{6, 6},
		{10, 6},
		{0, 6},
		{-1, 6},
	}
	for _, tt := range tests {
		got := Normalize(in, tt.max)
		if len(got) != tt.want {
			t.Errorf("max %d: expected %d articles, got %d", tt.max, tt.want, len(got))
		}
		for i, a := range got {
			if a.Title != fmt.Sprintf("t%d", i) {
				t.Errorf("max %d: order broken at %d: %s", tt.max, i, a.Title)
			}
		}
	}

	if got := Normalize(nil, 5); len(got) != 0 {
		t.Errorf("expected no articles, got %d", len(got))
	}
}
