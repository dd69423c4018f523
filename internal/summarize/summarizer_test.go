package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FranksOps/digest/internal/news"
)

func TestNew_MissingKey(t *testing.T) {
	for _, backend := range []string{"", "openai", "anthropic"} {
		if _, err := New(Config{Backend: backend}); !errors.Is(err, news.ErrConfiguration) {
			t.Errorf("%q: expected ErrConfiguration, got %v", backend, err)
		}
	}
	if _, err := New(Config{Backend: "llama", APIKey: "k"}); !errors.Is(err, news.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown backend, got %v", err)
	}
}

func TestOpenAI_Summarize(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  1. Item one\n2. Item two  "},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	s, err := New(Config{Backend: "openai", APIKey: "sk-test", BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := s.Summarize(context.Background(), Request{System: "sys", Prompt: "user prompt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "1. Item one\n2. Item two" {
		t.Errorf("unexpected summary %q", text)
	}
	if got.Model != DefaultOpenAIModel || got.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected defaults, got model %q max_tokens %d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user prompt" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAI_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`},
		{"empty content", http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			s, _ := NewOpenAI(Config{APIKey: "sk-test", BaseURL: ts.URL})
			_, err := s.Summarize(context.Background(), Request{Prompt: "p"})
			if !errors.Is(err, news.ErrSummarization) {
				t.Fatalf("expected ErrSummarization, got %v", err)
			}
			if errors.Is(err, news.ErrConfiguration) {
				t.Errorf("provider failures must not look like configuration errors")
			}
		})
	}
}

func TestAnthropic_Summarize(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		System    string `json:"system"`
		MaxTokens int    `json:"max_tokens"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "ak-test" {
			t.Errorf("unexpected api key header %q", r.Header.Get("X-Api-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"1. Top item"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer ts.Close()

	s, err := New(Config{Backend: "anthropic", APIKey: "ak-test", BaseURL: ts.URL, Model: "claude-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := s.Summarize(context.Background(), Request{System: "sys", Prompt: "p", MaxTokens: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "1. Top item" {
		t.Errorf("unexpected summary %q", text)
	}
	if got.Model != "claude-test" || got.System != "sys" || got.MaxTokens != 300 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestAnthropic_Failure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"Internal server error"}}`))
	}))
	defer ts.Close()

	s, _ := NewAnthropic(Config{APIKey: "ak-test", BaseURL: ts.URL})
	if _, err := s.Summarize(context.Background(), Request{Prompt: "p"}); !errors.Is(err, news.ErrSummarization) {
		t.Fatalf("expected ErrSummarization, got %v", err)
	}
}
