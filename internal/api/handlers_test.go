package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/FranksOps/digest/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
)

// fakeDigester answers by topic: "empty" has no news, "broken" fails the
// search, "nokeys" is unconfigured; anything else gets a digest.
type fakeDigester struct {
	mu   sync.Mutex
	reqs []pipeline.Request
}

func (f *fakeDigester) Run(ctx context.Context, req pipeline.Request) (*pipeline.Digest, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	req, err := req.Validate()
	if err != nil {
		return nil, err
	}
	switch req.Topic {
	case "empty":
		return nil, fmt.Errorf("%w for topic %q", news.ErrNoResults, req.Topic)
	case "broken":
		return nil, fmt.Errorf("%w: provider down", news.ErrSearch)
	case "nokeys":
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", news.ErrConfiguration)
	}
	return &pipeline.Digest{
		ID:      "digest-" + req.Topic,
		Topic:   req.Topic,
		Window:  req.Window,
		Summary: "1. News about " + req.Topic,
		Articles: []news.NormalizedArticle{
			{Title: "Headline", SourceName: "Reuters", Content: "full page", Snippet: "short", Link: "https://a.example"},
		},
		TotalResults: 10,
		Enriched:     1,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeDigester) RunTopics(ctx context.Context, topics []string, window string, maxArticles int) []pipeline.TopicResult {
	out := make([]pipeline.TopicResult, len(topics))
	for i, t := range topics {
		d, err := f.Run(ctx, pipeline.Request{Topic: t, Window: window, MaxArticles: maxArticles})
		out[i] = pipeline.TopicResult{Topic: t, Digest: d, Err: err}
		if errors.Is(err, news.ErrNoResults) {
			out[i].Err, out[i].Skipped = nil, true
		}
	}
	return out
}

func newTestRouter(t *testing.T, withStore bool) (*gin.Engine, *fakeDigester, storage.Backend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var store storage.Backend
	if withStore {
		b, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		store = b
	}

	d := &fakeDigester{}
	s := New(Config{Pipeline: d, Store: store})
	return s.Router(), d, store
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t, false)
	w := do(r, "GET", "/api/v1/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var res map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "healthy", res["status"])
}

func TestSummarize(t *testing.T) {
	r, d, store := newTestRouter(t, true)
	w := do(r, "POST", "/api/v1/news/summarize", `{"topic":"technology"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var res SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, "1. News about technology", res.Summary)
	assert.Equal(t, "1d", res.Metadata.TimePeriod)
	assert.Equal(t, 10, res.Metadata.TotalResults)
	assert.Equal(t, 1, len(res.Articles))
	assert.Equal(t, "short", res.Articles[0].Snippet)
	assert.Equal(t, false, strings.Contains(w.Body.String(), "full page"))

	// omitted max_articles defaults to 3
	assert.Equal(t, DefaultMaxArticles, d.reqs[0].MaxArticles)

	records, err := store.QueryDigests(context.Background(), storage.Filter{Topic: "technology"})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(records))
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		kind string
	}{
		{"empty topic", `{"topic":""}`, http.StatusBadRequest, "validation"},
		{"bad window", `{"topic":"ai","time_period":"9d"}`, http.StatusBadRequest, "validation"},
		{"zero articles", `{"topic":"ai","max_articles":0}`, http.StatusBadRequest, "validation"},
		{"too many articles", `{"topic":"ai","max_articles":21}`, http.StatusBadRequest, "validation"},
		{"malformed", `{"topic":`, http.StatusBadRequest, "validation"},
		{"no news", `{"topic":"empty"}`, http.StatusNotFound, "not_found"},
		{"search down", `{"topic":"broken"}`, http.StatusBadGateway, "upstream"},
		{"unconfigured", `{"topic":"nokeys"}`, http.StatusInternalServerError, "configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRouter(t, false)
			w := do(r, "POST", "/api/v1/news/summarize", tt.body)

			assert.Equal(t, tt.code, w.Code)
			var res ErrorResponse
			_ = json.Unmarshal(w.Body.Bytes(), &res)
			assert.Equal(t, tt.kind, res.Kind)
		})
	}
}

func TestUsers(t *testing.T) {
	r, _, _ := newTestRouter(t, true)

	w := do(r, "POST", "/api/v1/users", `{"name":"Asha","mobile_no":9876543210,"topics_of_interest":["ai","empty"]}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	var u UserResponse
	_ = json.Unmarshal(w.Body.Bytes(), &u)
	assert.Equal(t, "9876543210", u.MobileNo)
	assert.Equal(t, 2, len(u.Topics))

	w = do(r, "POST", "/api/v1/users", `{"name":"Again","mobile_no":"9876543210","topics_of_interest":["x"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, "POST", "/api/v1/users", `{"name":"Short","mobile_no":12345,"topics_of_interest":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, "POST", "/api/v1/users", `{"name":"NoTopics","mobile_no":1234567890,"topics_of_interest":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, "GET", "/api/v1/users/9876543210", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, "GET", "/api/v1/users/1111111111", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, "GET", "/api/v1/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserNewsSummary(t *testing.T) {
	r, _, store := newTestRouter(t, true)
	_ = store.CreateUser(context.Background(), &storage.User{Name: "Asha", MobileNo: "9876543210", Topics: []string{"ai", "empty"}})
	_ = store.CreateUser(context.Background(), &storage.User{Name: "Quiet", MobileNo: "1234567890", Topics: []string{"empty"}})
	_ = store.CreateUser(context.Background(), &storage.User{Name: "Broken", MobileNo: "5555555555", Topics: []string{"broken"}})

	w := do(r, "GET", "/api/v1/user_news_summary/9876543210", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var res UserSummaryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "Asha", res.UserName)
	assert.Equal(t, 1, len(res.Summaries))
	assert.Equal(t, "ai", res.Summaries[0].Topic)

	records, _ := store.QueryDigests(context.Background(), storage.Filter{MobileNo: "9876543210"})
	assert.Equal(t, 1, len(records))

	w = do(r, "GET", "/api/v1/user_news_summary/1234567890", "")
	assert.Equal(t, http.StatusOK, w.Code)
	res = UserSummaryResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "No news found for any of your topics of interest", res.Message)
	assert.Equal(t, []string{"empty"}, res.TopicsSearched)

	w = do(r, "GET", "/api/v1/user_news_summary/5555555555", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(r, "GET", "/api/v1/user_news_summary/1111111111", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTopics(t *testing.T) {
	r, _, store := newTestRouter(t, true)
	_ = store.CreateUser(context.Background(), &storage.User{Name: "Asha", MobileNo: "9876543210", Topics: []string{"ai"}})

	w := do(r, "PUT", "/api/v1/update_users_topics/9876543210", `{"topics_of_interest":["technology","sports"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Message string   `json:"message"`
		Topics  []string `json:"updated_topics"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "Topics updated successfully", res.Message)
	assert.Equal(t, []string{"technology", "sports"}, res.Topics)

	w = do(r, "PUT", "/api/v1/update_users_topics/9876543210", `{"topics_of_interest":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, "PUT", "/api/v1/update_users_topics/1111111111", `{"topics_of_interest":["x"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDigests(t *testing.T) {
	r, _, store := newTestRouter(t, true)
	for _, topic := range []string{"ai", "ai", "climate"} {
		_ = store.SaveDigest(context.Background(), &storage.DigestRecord{Topic: topic, Window: "1d", Summary: "s"})
	}

	w := do(r, "GET", "/api/v1/digests?topic=ai&limit=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var res DigestsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 1, len(res.Digests))
	assert.Equal(t, 1, res.Limit)

	for query, want := range map[string]int{"limit=0": 10, "limit=-3": 10, "limit=500": 100, "limit=x": 10} {
		w = do(r, "GET", "/api/v1/digests?"+query, "")
		assert.Equal(t, http.StatusOK, w.Code)
		res = DigestsResponse{}
		_ = json.Unmarshal(w.Body.Bytes(), &res)
		assert.Equal(t, want, res.Limit)
		assert.Equal(t, 3, len(res.Digests))
	}

	w = do(r, "GET", "/api/v1/digests?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoStore(t *testing.T) {
	r, _, _ := newTestRouter(t, false)

	w := do(r, "POST", "/api/v1/users", `{"name":"Asha","mobile_no":9876543210,"topics_of_interest":["ai"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(r, "GET", "/api/v1/digests", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	r, _, _ := newTestRouter(t, false)

	w := do(r, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("OPTIONS", "/api/v1/news/summarize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
