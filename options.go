package sift

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxResults  = 20
	defaultCallTimeout = 30 * time.Second
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSearchProvider sets the search implementation.
func WithSearchProvider(searcher SearchProvider) Option {
	return func(p *Pipeline) { p.searcher = searcher }
}

// WithFetchProvider sets the optional page fetcher used to enrich top
// results with scraped content.
func WithFetchProvider(fetcher FetchProvider) Option {
	return func(p *Pipeline) { p.fetcher = fetcher }
}

// WithCompletionModel sets one model for planning, analysis, and synthesis.
func WithCompletionModel(m CompletionProvider) Option {
	return func(p *Pipeline) {
		p.planner = m
		p.analyzer = m
		p.synthesizer = m
	}
}

// WithPlannerModel sets the model used for classification and planning.
func WithPlannerModel(m CompletionProvider) Option {
	return func(p *Pipeline) { p.planner = m }
}

// WithAnalyzerModel sets the model used by the three analysis passes.
func WithAnalyzerModel(m CompletionProvider) Option {
	return func(p *Pipeline) { p.analyzer = m }
}

// WithSynthesizerModel overrides the model used to write the final answer.
func WithSynthesizerModel(m CompletionProvider) Option {
	return func(p *Pipeline) { p.synthesizer = m }
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxResults caps how many merged results feed the analyzer and how
// many citations the answer can carry.
func WithMaxResults(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxResults = n
		}
	}
}

// WithEnrichment enables page-content enrichment of the top n results.
// Requires a FetchProvider.
func WithEnrichment(n int) Option {
	return func(p *Pipeline) { p.enrichTop = n }
}

// WithCallTimeout bounds every external provider call. A hung provider
// fails that call instead of stalling the session.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithCredibilityRules overrides the built-in source credibility rules.
func WithCredibilityRules(rules *CredibilityRules) Option {
	return func(p *Pipeline) {
		if rules != nil {
			p.credibility = rules
		}
	}
}

// WithMultiAgentResolution switches the conflict-resolution pass to the
// extended prompt that simulates four specialized reviewers in one call.
func WithMultiAgentResolution(enabled bool) Option {
	return func(p *Pipeline) { p.multiAgent = enabled }
}

// WithSearchCost sets the cost (in dollars) attributed to each dispatched
// sub-query.
func WithSearchCost(cost float64) Option {
	return func(p *Pipeline) { p.searchCost = cost }
}
