package sift

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planOf(subqueries ...string) SearchPlan {
	steps := make([]PlanStep, 0, len(subqueries))
	for _, q := range subqueries {
		steps = append(steps, PlanStep{Subquery: q})
	}
	return SearchPlan{Domain: "general", QueryType: "factual", TemporalAspect: "none", Steps: steps}
}

func TestDispatchMergesAndDedupes(t *testing.T) {
	p := New(
		WithCompletionModel(newScriptedLLM(nil)),
		WithSearchProvider(fixedResults(threeWebResults())),
	)
	trace := NewThinkingProcess()

	// Three branches each return the same three results.
	results, _ := p.dispatch(context.Background(), "q", planOf("a", "b", "c"), trace)

	assert.Len(t, results, 3)
	seen := make(map[string]bool)
	for _, r := range results {
		assert.False(t, seen[r.URL], "duplicate URL %s", r.URL)
		seen[r.URL] = true
	}
	assert.Len(t, trace.SearchQueries, 3)
}

func TestDedupeByURLIdempotent(t *testing.T) {
	in := []RawResult{
		{URL: "https://a.com"},
		{URL: "https://b.com"},
		{URL: "https://a.com"},
	}
	once := dedupeByURL(in)
	require.Len(t, once, 2)

	twice := dedupeByURL(append([]RawResult(nil), once...))
	assert.Equal(t, once, twice)
}

// One failed branch must not abort the batch; its results are simply absent.
func TestDispatchPartialBranchFailure(t *testing.T) {
	p := New(
		WithCompletionModel(newScriptedLLM(nil)),
		WithSearchProvider(searchFunc(func(_ context.Context, query string) ([]RawResult, error) {
			if strings.Contains(query, "bad") {
				return nil, errors.New("provider timeout")
			}
			return []RawResult{{Title: "ok", URL: "https://good.example.com/" + query}}, nil
		})),
	)
	trace := NewThinkingProcess()

	results, _ := p.dispatch(context.Background(), "q", planOf("good one", "bad one", "good two"), trace)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "error", r.Source)
	}
}

func TestDispatchEmptyProviderYieldsSyntheticResult(t *testing.T) {
	p := New(
		WithCompletionModel(newScriptedLLM(nil)),
		WithSearchProvider(fixedResults(nil)),
	)
	trace := NewThinkingProcess()

	results, _ := p.dispatch(context.Background(), "q", planOf("a", "b"), trace)

	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Source)
	assert.Equal(t, "error://search-unavailable", results[0].URL)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestDispatchAllBranchesFail(t *testing.T) {
	p := New(
		WithCompletionModel(newScriptedLLM(nil)),
		WithSearchProvider(searchFunc(func(context.Context, string) ([]RawResult, error) {
			return nil, errors.New("dns failure")
		})),
	)
	trace := NewThinkingProcess()

	results, _ := p.dispatch(context.Background(), "q", planOf("a", "b"), trace)

	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Source)
	assert.Contains(t, results[0].Snippet, "unreachable")
}

func TestDispatchDropsBlankURLs(t *testing.T) {
	p := New(
		WithCompletionModel(newScriptedLLM(nil)),
		WithSearchProvider(fixedResults([]RawResult{
			{Title: "no url", URL: "   "},
			{Title: "kept", URL: "https://kept.example.com"},
		})),
	)
	trace := NewThinkingProcess()

	results, _ := p.dispatch(context.Background(), "q", planOf("a"), trace)

	require.Len(t, results, 1)
	assert.Equal(t, "https://kept.example.com", results[0].URL)
	assert.Equal(t, "web", results[0].Source)
	assert.False(t, results[0].Timestamp.IsZero())
}

func TestScoreResultsKeepsProviderScores(t *testing.T) {
	p := New()
	results := []RawResult{
		{URL: "https://a.example.com", Relevance: 0.99},
		{URL: "https://en.wikipedia.org/wiki/X"},
	}
	p.scoreResults(results)

	assert.Equal(t, 0.99, results[0].Relevance)
	// Position 1 decay 0.95 times the reference-group score 0.8.
	assert.InDelta(t, 0.76, results[1].Relevance, 0.001)
}

func TestOptimizeSubquery(t *testing.T) {
	history := SearchPlan{Domain: "history"}
	assert.Equal(t, "fall of rome exact dates timeline", optimizeSubquery("fall of rome", history))
	assert.Equal(t, "rome timeline of decline", optimizeSubquery("rome timeline of decline", history))

	science := SearchPlan{Domain: "science"}
	assert.Equal(t, "dark matter peer reviewed research", optimizeSubquery("dark matter", science))

	tech := SearchPlan{Domain: "technology", QueryType: "comparative"}
	assert.Equal(t, "redis memcached comparison technical specifications", optimizeSubquery("redis memcached", tech))

	current := SearchPlan{Domain: "general", TemporalAspect: "current"}
	assert.Equal(t, "iphone release latest", optimizeSubquery("iphone release", current))
	assert.Equal(t, "iphone 2025 rumors", optimizeSubquery("iphone 2025 rumors", current))
}

func TestDispatchRecordsSubqueryAnalysis(t *testing.T) {
	model := newScriptedLLM(map[string]string{
		"batch of search results": "These results cover the basics.",
	})
	p := New(
		WithCompletionModel(model),
		WithSearchProvider(fixedResults(threeWebResults())),
	)
	trace := NewThinkingProcess()

	p.dispatch(context.Background(), "q", planOf("a"), trace)

	require.Len(t, trace.ReasoningPath, 1)
	assert.Contains(t, trace.ReasoningPath[0], "These results cover the basics.")
}
