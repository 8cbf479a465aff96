// Package sift provides an iterative web-search answer pipeline: it plans
// search sub-queries for a question, executes them in parallel, runs the
// results through a three-pass analysis state machine, and synthesizes a
// cited answer together with a live progress trace.
//
// # Architecture
//
// One call to Pipeline.Answer moves through five fixed stages:
//
//  1. Query Understanding - the planner model classifies the question.
//  2. Search Planning - the classification becomes 3-5 ordered sub-queries.
//  3. Iterative Search - all sub-queries fan out concurrently against the
//     SearchProvider; results are merged, deduplicated by URL, and ranked.
//  4. Information Synthesis - three analysis passes (surface scan,
//     contextual grounding, conflict resolution) accumulate a shared
//     AnalysisState over the results.
//  5. Citation & Formatting - the synthesizer writes the answer with
//     bracket citations matching a numbered source list.
//
// Every model response is treated as untrusted text: JSON is pulled out
// with ExtractJSON before parsing, and each stage has a deterministic
// fallback, so the pipeline degrades gracefully instead of failing when a
// provider misbehaves. The returned Result is always well-formed.
//
// # Basic Usage
//
//	pipeline := sift.New(
//	    sift.WithCompletionModel(myLLM),
//	    sift.WithSearchProvider(search.NewDuckDuckGo()),
//	)
//
//	result, err := pipeline.Answer(ctx, "When did the James Webb telescope launch?")
//	fmt.Println(result.Text)
//	for _, c := range result.Citations {
//	    fmt.Printf("[%d] %s\n", c.ID, c.URL)
//	}
//
// # Interfaces
//
// Implement CompletionProvider to connect any language model:
//
//	type CompletionProvider interface {
//	    Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
//	}
//
// Implement SearchProvider to use any search backend:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string) ([]RawResult, error)
//	}
//
// The cache subpackage persists conversation context across exchanges,
// transparently chunking state that exceeds a token budget.
package sift
