package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/storage"
)

// MobileNo accepts a JSON number or string.
type MobileNo string

func (m *MobileNo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MobileNo(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = MobileNo(n.String())
	return nil
}

type SummarizeRequest struct {
	Topic       string `json:"topic"`
	TimePeriod  string `json:"time_period"`
	MaxArticles *int   `json:"max_articles"`
}

type ArticleResponse struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Date    string `json:"date"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type Metadata struct {
	TimePeriod    string `json:"time_period"`
	ArticlesFound int    `json:"articles_found"`
	TotalResults  int    `json:"total_results"`
	Enriched      int    `json:"enriched"`
}

type SummarizeResponse struct {
	TaskID    string            `json:"task_id"`
	Status    string            `json:"status"`
	Topic     string            `json:"topic"`
	Summary   string            `json:"summary"`
	Articles  []ArticleResponse `json:"articles"`
	Timestamp string            `json:"timestamp"`
	Metadata  Metadata          `json:"metadata"`
}

type RegisterUserRequest struct {
	Name     string   `json:"name"`
	MobileNo MobileNo `json:"mobile_no"`
	Topics   []string `json:"topics_of_interest"`
}

type UpdateTopicsRequest struct {
	Topics []string `json:"topics_of_interest"`
}

type UserResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MobileNo  string   `json:"mobile_no"`
	Topics    []string `json:"topics_of_interest"`
	CreatedAt string   `json:"created_at"`
}

type TopicSummary struct {
	Topic    string            `json:"topic"`
	Summary  string            `json:"summary"`
	Articles []ArticleResponse `json:"articles"`
}

type UserSummaryResponse struct {
	UserName       string         `json:"user_name"`
	Summaries      []TopicSummary `json:"summaries,omitempty"`
	Message        string         `json:"message,omitempty"`
	TopicsSearched []string       `json:"topics_searched,omitempty"`
	Failed         []string       `json:"failed,omitempty"`
}

type DigestResponse struct {
	ID        string            `json:"id"`
	MobileNo  string            `json:"mobile_no,omitempty"`
	Topic     string            `json:"topic"`
	Summary   string            `json:"summary"`
	Articles  []ArticleResponse `json:"articles"`
	Metadata  Metadata          `json:"metadata"`
	CreatedAt string            `json:"created_at"`
}

type DigestsResponse struct {
	Digests []DigestResponse `json:"digests"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func toArticles(articles []news.NormalizedArticle) []ArticleResponse {
	out := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		out[i] = ArticleResponse{
			Title:   a.Title,
			Source:  a.SourceName,
			Date:    a.Date,
			Link:    a.Link,
			Snippet: a.Snippet,
		}
	}
	return out
}

func toSummarizeResponse(d *pipeline.Digest) SummarizeResponse {
	return SummarizeResponse{
		TaskID:    d.ID,
		Status:    "completed",
		Topic:     d.Topic,
		Summary:   d.Summary,
		Articles:  toArticles(d.Articles),
		Timestamp: d.CreatedAt.Format(time.RFC3339),
		Metadata: Metadata{
			TimePeriod:    d.Window,
			ArticlesFound: len(d.Articles),
			TotalResults:  d.TotalResults,
			Enriched:      d.Enriched,
		},
	}
}

func toUserResponse(u *storage.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		MobileNo:  u.MobileNo,
		Topics:    u.Topics,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toDigestResponse(d *storage.DigestRecord) DigestResponse {
	return DigestResponse{
		ID:       d.ID,
		MobileNo: d.MobileNo,
		Topic:    d.Topic,
		Summary:  d.Summary,
		Articles: toArticles(d.Articles),
		Metadata: Metadata{
			TimePeriod:    d.Window,
			ArticlesFound: len(d.Articles),
			TotalResults:  d.TotalResults,
			Enriched:      d.Enriched,
		},
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
