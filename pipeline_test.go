package sift

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns canned responses keyed by a distinguishing substring
// of the system prompt, so one stub drives every pipeline stage.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	failing   []string // stages (by substring) that return an error
	cost      float64
	calls     map[string]int
}

func newScriptedLLM(responses map[string]string) *scriptedLLM {
	return &scriptedLLM{responses: responses, calls: make(map[string]int)}
}

func (m *scriptedLLM) Complete(_ context.Context, systemPrompt, _ string) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.failing {
		if strings.Contains(systemPrompt, key) {
			m.calls[key]++
			return Completion{Cost: m.cost}, errors.New("scripted failure")
		}
	}
	for key, text := range m.responses {
		if strings.Contains(systemPrompt, key) {
			m.calls[key]++
			return Completion{Text: text, Cost: m.cost}, nil
		}
	}
	m.calls["(unmatched)"]++
	return Completion{Text: "{}", Cost: m.cost}, nil
}

func (m *scriptedLLM) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

// failLLM fails every completion call.
type failLLM struct{}

func (failLLM) Complete(context.Context, string, string) (Completion, error) {
	return Completion{}, errors.New("model unavailable")
}

// searchFunc adapts a function to SearchProvider.
type searchFunc func(ctx context.Context, query string) ([]RawResult, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]RawResult, error) {
	return f(ctx, query)
}

func fixedResults(results []RawResult) searchFunc {
	return func(context.Context, string) ([]RawResult, error) { return results, nil }
}

// happyPathResponses scripts every stage with well-formed JSON.
func happyPathResponses() map[string]string {
	return map[string]string{
		"query classifier": `{"domain": "science", "queryType": "factual", "entities": ["sky"], "temporalAspect": "none", "intent": "explain", "searchStrategy": "broad"}`,
		"search planner": `[
			{"subquery": "why is the sky blue", "purpose": "direct", "expectedInformation": "mechanism"},
			{"subquery": "rayleigh scattering explanation", "purpose": "background", "expectedInformation": "physics"}
		]`,
		"batch of search results":    "These results explain the scattering mechanism.",
		"fast information extractor": `{"entities": ["Rayleigh scattering"], "topicClusters": [{"topic": "physics", "resultIndices": [0, 1]}], "relevanceScores": [{"index": 0, "score": 0.9}], "contradictions": []}`,
		"fact validator":             `{"credibility": [{"index": 0, "score": 0.85, "rationale": "encyclopedia"}], "factChecks": [{"claim": "blue light scatters more", "verdict": "confirmed", "confidence": 0.9, "resultIndices": [0]}], "informationGaps": [], "missingPerspectives": []}`,
		"conflict resolver":          `{"resolvedClaims": [{"claim": "sky color", "resolution": "Rayleigh scattering of sunlight", "confidence": 0.9, "supportingResultIndices": [0, 1]}], "unresolvedConflicts": [], "synthesizedUnderstanding": "Shorter wavelengths scatter more."}`,
		"cited answer":               "The sky is blue because shorter wavelengths scatter more strongly [1][2].",
	}
}

func threeWebResults() []RawResult {
	return []RawResult{
		{Title: "Rayleigh scattering", URL: "https://en.wikipedia.org/wiki/Rayleigh_scattering", Snippet: "Scattering of light"},
		{Title: "Why is the sky blue?", URL: "https://www.noaa.gov/sky", Snippet: "Sunlight and the atmosphere"},
		{Title: "Sky color explained", URL: "https://example.com/sky", Snippet: "A short explainer"},
	}
}

func TestAnswerHappyPath(t *testing.T) {
	model := newScriptedLLM(happyPathResponses())
	model.cost = 0.001
	p := New(
		WithCompletionModel(model),
		WithSearchProvider(fixedResults(threeWebResults())),
		WithSearchCost(0.005),
	)

	result, err := p.Answer(context.Background(), "Why is the sky blue?")
	require.NoError(t, err)

	assert.Equal(t, "The sky is blue because shorter wavelengths scatter more strongly [1][2].", result.Text)
	assert.Len(t, result.Citations, 3)
	assert.Equal(t, 1, result.Citations[0].ID)
	// Results are re-ranked by positional decay times domain credibility, so
	// the .gov source outranks the others.
	assert.Equal(t, "https://www.noaa.gov/sky", result.Citations[0].URL)
	assert.Len(t, result.Results, 3)
	assert.Greater(t, result.Cost, 0.0)

	trace := result.Thinking
	require.NotNil(t, trace)
	assert.Equal(t, 100, trace.Stage.PercentComplete)
	assert.Equal(t, StageCitations, trace.Stage.CurrentStage)
	assert.Len(t, trace.SearchQueries, 2)
	assert.Greater(t, trace.Confidence, 0.5)
	assert.Equal(t, 3, trace.SourceDiversity.UniqueDomains)

	// All three analysis passes ran exactly once.
	assert.Equal(t, 1, model.callCount("fast information extractor"))
	assert.Equal(t, 1, model.callCount("fact validator"))
	assert.Equal(t, 1, model.callCount("conflict resolver"))
}

func TestAnswerEmptyQuery(t *testing.T) {
	p := New(WithCompletionModel(failLLM{}), WithSearchProvider(fixedResults(nil)))
	_, err := p.Answer(context.Background(), "   ")
	assert.Error(t, err)
}

func TestAnswerMissingModel(t *testing.T) {
	p := New(WithSearchProvider(fixedResults(nil)))
	_, err := p.Answer(context.Background(), "anything")
	assert.Error(t, err)
}

func TestAnswerMissingSearcher(t *testing.T) {
	p := New(WithCompletionModel(failLLM{}))
	_, err := p.Answer(context.Background(), "anything")
	assert.Error(t, err)
}

// A provider that finds nothing still yields a complete answer: the
// synthetic error result becomes citation [1] and every analysis pass
// still runs over it.
func TestAnswerZeroSearchHits(t *testing.T) {
	model := newScriptedLLM(happyPathResponses())
	p := New(
		WithCompletionModel(model),
		WithSearchProvider(fixedResults([]RawResult{})),
	)

	result, err := p.Answer(context.Background(), "obscure question nobody indexed")
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, "error", result.Results[0].Source)
	assert.Equal(t, "error://search-unavailable", result.Results[0].URL)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, 1, result.Citations[0].ID)

	assert.Equal(t, 1, model.callCount("fast information extractor"))
	assert.Equal(t, 1, model.callCount("fact validator"))
	assert.Equal(t, 1, model.callCount("conflict resolver"))
}

// Total provider failure must degrade into a well-formed Result, never an
// error: fallback text, one error-marked citation, and a terminal error
// step in the trace.
func TestAnswerTotalProviderFailure(t *testing.T) {
	p := New(
		WithCompletionModel(failLLM{}),
		WithSearchProvider(searchFunc(func(context.Context, string) ([]RawResult, error) {
			return nil, errors.New("network down")
		})),
	)

	result, err := p.Answer(context.Background(), "anything at all")
	require.NoError(t, err)

	assert.Contains(t, result.Text, "could not find enough information")
	assert.Contains(t, result.Text, "[1]")
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "error", result.Citations[0].Source)

	trace := result.Thinking
	require.NotNil(t, trace)
	require.NotEmpty(t, trace.Steps)
	assert.Equal(t, "error", trace.Steps[len(trace.Steps)-1].Type)
	assert.Equal(t, 100, trace.Stage.PercentComplete)
}

func TestAnswerMultiAgentResolution(t *testing.T) {
	responses := happyPathResponses()
	resolution := responses["conflict resolver"]
	delete(responses, "conflict resolver")
	responses["panel of four"] = resolution

	model := newScriptedLLM(responses)
	p := New(
		WithCompletionModel(model),
		WithSearchProvider(fixedResults(threeWebResults())),
		WithMultiAgentResolution(true),
	)

	_, err := p.Answer(context.Background(), "Why is the sky blue?")
	require.NoError(t, err)
	assert.Equal(t, 1, model.callCount("panel of four"))
}

func TestAnswerRespectsMaxResults(t *testing.T) {
	var many []RawResult
	for i := 0; i < 30; i++ {
		many = append(many, RawResult{
			Title:   "Result",
			URL:     "https://example.com/page" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Snippet: "text",
		})
	}
	model := newScriptedLLM(happyPathResponses())
	p := New(
		WithCompletionModel(model),
		WithSearchProvider(fixedResults(many)),
		WithMaxResults(5),
	)

	result, err := p.Answer(context.Background(), "popular topic")
	require.NoError(t, err)
	assert.Len(t, result.Results, 5)
	assert.Len(t, result.Citations, 5)
}
