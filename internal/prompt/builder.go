// Package prompt assembles the summarization prompt from normalized articles.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/digest/internal/news"
)

const (
	// SystemMessage is the fixed instruction sent as the system role.
	SystemMessage = "You are a helpful news summarization assistant that provides concise, accurate summaries of recent news."

	// DefaultBudget bounds the user prompt, in runes.
	DefaultBudget = 24000

	// minContent is the least content kept for the first article when the
	// budget forces it to be cut.
	minContent = 200
)

// Prompt is the payload handed to the summarizer.
type Prompt struct {
	System string
	User   string
	// Articles is how many article blocks made it into User.
	Articles int
}

// Builder renders prompts within a size budget.
type Builder struct {
	// Budget caps User in runes; <= 0 means DefaultBudget.
	Budget int
}

// Build renders a prompt with the default budget.
func Build(articles []news.NormalizedArticle, topic string) (Prompt, error) {
	return Builder{}.Build(articles, topic)
}

func header(topic string) string {
	return fmt.Sprintf("I need a summary of recent news about '%s'. Here are the articles I found:\n\n", topic)
}

func instruction(topic string) string {
	return fmt.Sprintf("\nBased on these articles, provide me with the \"Top 3 important items I should know about %s and why they matter\".\n\n"+
		"Format your response as a numbered list with a brief explanation for each item.\n"+
		"Focus on the most significant developments or insights.\n", topic)
}

func block(i int, a news.NormalizedArticle, content string) string {
	return fmt.Sprintf("Article %d: %s\nSource: %s\nContent: %s\n\n", i, a.Title, a.SourceName, content)
}

// Build emits one block per article in order, then the instruction. Articles
// that would push the prompt past the budget are dropped; the first article
// is always kept, with its content cut to fit.
func (b Builder) Build(articles []news.NormalizedArticle, topic string) (Prompt, error) {
	if len(articles) == 0 {
		return Prompt{}, fmt.Errorf("%w: no articles to summarize", news.ErrNoContent)
	}
	budget := b.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	head, tail := header(topic), instruction(topic)
	used := utf8.RuneCountInString(head) + utf8.RuneCountInString(tail)

	var sb strings.Builder
	sb.WriteString(head)

	kept := 0
	for i, a := range articles {
		blk := block(i+1, a, a.Content)
		n := utf8.RuneCountInString(blk)
		if used+n > budget {
			if i > 0 {
				break
			}
			blk = fitFirst(a, budget-used)
			n = utf8.RuneCountInString(blk)
		}
		sb.WriteString(blk)
		used += n
		kept++
	}

	sb.WriteString(tail)
	return Prompt{System: SystemMessage, User: sb.String(), Articles: kept}, nil
}

// fitFirst shrinks the first article's content so its block fits in room,
// never below minContent runes.
func fitFirst(a news.NormalizedArticle, room int) string {
	overhead := utf8.RuneCountInString(block(1, a, ""))
	keep := max(room-overhead-len("..."), minContent)

	content := a.Content
	if utf8.RuneCountInString(content) > keep {
		runes := []rune(content)
		content = string(runes[:keep]) + "..."
	}
	return block(1, a, content)
}
