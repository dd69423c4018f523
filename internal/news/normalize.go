package news

import "strings"

const (
	DefaultTitle      = "Untitled"
	DefaultSourceName = "Unknown Source"
	NoContent         = "No content available"
)

// Normalize converts enriched results into articles, keeping input order and
// at most maxArticles entries (maxArticles <= 0 keeps all). It never fails:
// missing fields degrade to defaults.
func Normalize(results []EnrichedResult, maxArticles int) []NormalizedArticle {
	n := len(results)
	if maxArticles > 0 && maxArticles < n {
		n = maxArticles
	}

	articles := make([]NormalizedArticle, 0, n)
	for _, r := range results[:n] {
		articles = append(articles, NormalizeOne(r))
	}
	return articles
}

// NormalizeOne applies the field fallback chains to a single result.
func NormalizeOne(r EnrichedResult) NormalizedArticle {
	return NormalizedArticle{
		Title:      firstNonEmpty(r.Title, DefaultTitle),
		SourceName: firstNonEmpty(r.Source.Name, DefaultSourceName),
		Content:    ContentOf(r),
		Snippet:    PreviewOf(r.RawResult),
		Link:       strings.TrimSpace(r.Link),
		Date:       strings.TrimSpace(r.Date),
	}
}

// ContentOf returns full content, else snippet, else description, else the
// placeholder.
func ContentOf(r EnrichedResult) string {
	return firstNonEmpty(r.FullContent, r.Snippet, r.Description, NoContent)
}

// PreviewOf is the short form of the content chain; fetched text never
// appears in it.
func PreviewOf(r RawResult) string {
	return firstNonEmpty(r.Snippet, r.Description, NoContent)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
