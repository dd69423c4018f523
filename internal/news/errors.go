package news

import "errors"

// Error kinds returned by the digest pipeline. Callers classify with errors.Is;
// the concrete error usually wraps both the kind and the underlying cause.
var (
	// ErrConfiguration means a required credential or endpoint is missing.
	// It is always reported before any network call is made.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation means the caller supplied malformed input.
	ErrValidation = errors.New("validation error")
	// ErrSearch means the search provider or its transport failed.
	ErrSearch = errors.New("search error")
	// ErrNoResults is the "no news found" outcome of a pipeline run.
	ErrNoResults = errors.New("no news found")
	// ErrNoContent means no usable article survived normalization.
	ErrNoContent = errors.New("no usable articles")
	// ErrSummarization means the summarizer failed or returned unusable output.
	ErrSummarization = errors.New("summarization error")
)
