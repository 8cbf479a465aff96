package sift

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Pipeline coordinates the planner, dispatcher, analyzer, and synthesizer.
type Pipeline struct {
	searcher    SearchProvider
	fetcher     FetchProvider
	planner     CompletionProvider
	analyzer    CompletionProvider
	synthesizer CompletionProvider

	logger      *zap.Logger
	credibility *CredibilityRules
	maxResults  int
	enrichTop   int
	callTimeout time.Duration
	multiAgent  bool
	searchCost  float64
}

// New constructs a Pipeline with optional configuration. The analyzer model
// defaults to the planner and the synthesizer to the analyzer.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:      zap.NewNop(),
		credibility: DefaultCredibilityRules(),
		maxResults:  defaultMaxResults,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.analyzer == nil {
		p.analyzer = p.planner
	}
	if p.synthesizer == nil {
		p.synthesizer = p.analyzer
	}
	return p
}

// Answer runs the full pipeline for one query: plan, parallel search,
// three analysis passes, cited synthesis. The returned Result is always
// well-formed; provider failures degrade the answer rather than erroring.
// An error is returned only for unusable configuration or an empty query.
func (p *Pipeline) Answer(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, errors.New("query is empty")
	}
	if p.planner == nil {
		return Result{}, errors.New("completion model is not configured")
	}
	if p.searcher == nil {
		return Result{}, errors.New("search provider is not configured")
	}

	trace := NewThinkingProcess()
	result := Result{Thinking: trace}

	trace.EnterStage(StageQueryUnderstanding)
	plan, cost := p.planQuery(ctx, query)
	result.Cost += cost

	trace.EnterStage(StageSearchPlanning)
	trace.AddStep("analysis", fmt.Sprintf("planned %d sub-queries for domain %q", len(plan.Steps), plan.Domain))
	p.logger.Info("search plan ready",
		zap.String("domain", plan.Domain),
		zap.String("queryType", plan.QueryType),
		zap.Int("steps", len(plan.Steps)))

	trace.EnterStage(StageIterativeSearch)
	results, cost := p.dispatch(ctx, query, plan, trace)
	result.Cost += cost
	result.Results = results

	trace.EnterStage(StageSynthesis)
	state, cost := p.analyze(ctx, query, results, trace)
	result.Cost += cost

	trace.EnterStage(StageCitations)
	text, cost := p.synthesize(ctx, query, state, results, trace)
	result.Cost += cost
	result.Text = text
	result.Citations = trace.Citations

	// Total failure: every provider call failed and only the synthetic
	// result remains. Record a terminal error step so the caller can tell
	// this answer apart from a merely thin one.
	if state.Meta.PassesCompleted == 0 && len(results) == 1 && results[0].Source == "error" {
		trace.AddStep("error", strings.Join(state.Meta.Errors, "; "))
	}

	p.logger.Info("answer ready",
		zap.Int("results", len(results)),
		zap.Int("citations", len(result.Citations)),
		zap.Int("passes", state.Meta.PassesCompleted),
		zap.Float64("confidence", trace.Confidence),
		zap.Float64("cost", result.Cost))
	return result, nil
}

// complete runs one completion call under the per-call deadline.
func (p *Pipeline) complete(ctx context.Context, model CompletionProvider, systemPrompt, userPrompt string) (Completion, error) {
	if model == nil {
		return Completion{}, errors.New("completion model is not configured")
	}
	cctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	p.logger.Debug("completion call", zap.String("system", systemPrompt), zap.Int("promptLen", len(userPrompt)))
	return model.Complete(cctx, systemPrompt, userPrompt)
}

// search runs one provider query under the per-call deadline.
func (p *Pipeline) search(ctx context.Context, query string) ([]RawResult, error) {
	cctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.searcher.Search(cctx, query)
}

// fetch retrieves one page under the per-call deadline.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.fetcher.Fetch(cctx, url)
}
