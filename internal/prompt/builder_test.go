package prompt

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/FranksOps/digest/internal/news"
)

func articles(n int, content string) []news.NormalizedArticle {
	out := make([]news.NormalizedArticle, n)
	for i := range out {
		out[i] = news.NormalizedArticle{
			Title:      fmt.Sprintf("Title %d", i+1),
			SourceName: fmt.Sprintf("Source %d", i+1),
			Content:    content,
		}
	}
	return out
}

func TestBuild_Format(t *testing.T) {
	p, err := Build(articles(2, "body"), "technology")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "I need a summary of recent news about 'technology'. Here are the articles I found:\n\n" +
		"Article 1: Title 1\nSource: Source 1\nContent: body\n\n" +
		"Article 2: Title 2\nSource: Source 2\nContent: body\n\n"
	if !strings.HasPrefix(p.User, want) {
		t.Errorf("unexpected prompt prefix:\n%s", p.User)
	}
	if !strings.Contains(p.User, `"Top 3 important items I should know about technology and why they matter"`) {
		t.Errorf("expected top 3 instruction, got:\n%s", p.User)
	}
	if !strings.Contains(p.User, "numbered list") {
		t.Errorf("expected numbered list instruction")
	}
	if p.System != SystemMessage {
		t.Errorf("unexpected system message %q", p.System)
	}
	if p.Articles != 2 {
		t.Errorf("expected 2 articles, got %d", p.Articles)
	}
}

func TestBuild_NoArticles(t *testing.T) {
	_, err := Build(nil, "technology")
	if !errors.Is(err, news.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestBuild_BudgetDropsTrailingArticles(t *testing.T) {
	content := strings.Repeat("x", 1000)
	p, err := Builder{Budget: 3000}.Build(articles(10, content), "ai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(p.User); n > 3000 {
		t.Errorf("expected prompt within budget, got %d runes", n)
	}
	if p.Articles < 1 || p.Articles >= 10 {
		t.Fatalf("expected some articles dropped, kept %d", p.Articles)
	}
	for i := 1; i <= p.Articles; i++ {
		if !strings.Contains(p.User, fmt.Sprintf("Article %d: ", i)) {
			t.Errorf("expected contiguous numbering, missing Article %d", i)
		}
	}
	if strings.Contains(p.User, fmt.Sprintf("Article %d: ", p.Articles+1)) {
		t.Errorf("expected Article %d to be dropped", p.Articles+1)
	}
	if !strings.Contains(p.User, "Top 3 important items") {
		t.Errorf("expected instruction to survive the budget")
	}
}

func TestBuild_FirstArticleAlwaysKept(t *testing.T) {
	content := strings.Repeat("é", 5000)
	p, err := Builder{Budget: 1500}.Build(articles(3, content), "ai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Articles != 1 {
		t.Fatalf("expected only the first article, got %d", p.Articles)
	}
	if !strings.Contains(p.User, "Article 1: Title 1") {
		t.Errorf("expected first article block")
	}
	if n := utf8.RuneCountInString(p.User); n > 1500 {
		t.Errorf("expected prompt within budget, got %d runes", n)
	}
	if !strings.Contains(p.User, "é...") {
		t.Errorf("expected truncated content marker")
	}
}
