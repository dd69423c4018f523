// Package serp queries news search providers.
package serp

import (
	"context"
	"errors"
	"net/url"

	"github.com/FranksOps/digest/internal/news"
)

// Provider abstracts a news search backend. Implementations return results in
// provider relevance order, at most q.ResultCap of them. Zero results is an
// empty slice and a nil error; provider or transport failures wrap
// news.ErrSearch. Nothing is retried.
type Provider interface {
	Search(ctx context.Context, q news.SearchQuery) ([]news.RawResult, error)
	Name() string
}

// redact strips the query string from URLs embedded in transport errors so
// API keys do not end up in logs.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			ue.URL = u.String()
		}
	}
	return err
}
