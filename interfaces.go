package sift

import (
	"context"
	"time"
)

// EnrichedContent is optional scraped-page detail attached to a result
// after the initial search round.
type EnrichedContent struct {
	Summary  string            `json:"summary,omitempty"`
	Dates    []string          `json:"dates,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RawResult is a single item returned by a SearchProvider, annotated by the
// dispatcher. URL is the deduplication key.
type RawResult struct {
	Title     string           `json:"title"`
	URL       string           `json:"url"`
	Snippet   string           `json:"snippet"`
	Relevance float64          `json:"relevanceScore"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Enriched  *EnrichedContent `json:"enrichedContent,omitempty"`
}

// SearchProvider executes a query and returns raw results. Implementations
// may return an empty slice or an error; the dispatcher tolerates both.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]RawResult, error)
}

// FetchProvider retrieves page content for a URL. The dispatcher can use it
// to enrich top results with scraped detail when snippets are insufficient.
type FetchProvider interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Completion is returned by CompletionProvider.Complete and carries the
// generated text together with the cost (in dollars) of the call.
type Completion struct {
	Text string
	Cost float64
}

// CompletionProvider is implemented by user-supplied language model clients.
// There is no structured-output guarantee: every JSON-shaped response must
// be treated as untrusted text requiring defensive extraction.
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
}

// Citation binds a bracket marker [id] in the answer text to a source
// result. IDs are 1-based and stable across the response.
type Citation struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance"`
}

// Result is returned by Pipeline.Answer. It is always well-formed: even on
// total provider failure the pipeline fills Text with an error-shaped answer
// and records a terminal error step in Thinking rather than returning an
// error.
type Result struct {
	Text      string           `json:"text"`
	Citations []Citation       `json:"citations"`
	Results   []RawResult      `json:"searchResults"`
	Thinking  *ThinkingProcess `json:"thinkingProcess"`
	Cost      float64          `json:"cost"`
}
