package sift

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// subqueryOutcome is the fan-in record for one dispatched sub-query.
type subqueryOutcome struct {
	query    string
	results  []RawResult
	analysis string
	cost     float64
	err      error
}

// dispatch executes the plan against the search provider. All sub-queries
// run concurrently; a failed branch contributes zero results instead of
// aborting the round. The merged results are deduplicated by URL (first
// occurrence wins) and sorted by relevance descending. If nothing at all
// comes back, a single synthetic error-marked result is returned so the
// analyzer always has a deterministic non-empty input shape.
func (p *Pipeline) dispatch(ctx context.Context, query string, plan SearchPlan, trace *ThinkingProcess) ([]RawResult, float64) {
	outcomes := make([]subqueryOutcome, len(plan.Steps))

	g, gctx := errgroup.WithContext(ctx)
	for i, step := range plan.Steps {
		optimized := optimizeSubquery(step.Subquery, plan)
		outcomes[i].query = optimized
		trace.SearchQueries = append(trace.SearchQueries, optimized)

		i := i
		g.Go(func() error {
			out := &outcomes[i]
			results, err := p.search(gctx, optimized)
			out.cost += p.searchCost
			if err != nil {
				out.err = err
				p.logger.Warn("sub-query failed", zap.String("query", optimized), zap.Error(err))
				return nil // a failed branch must not abort the batch
			}
			out.results = results

			if p.analyzer != nil && len(results) > 0 {
				resp, err := p.complete(gctx, p.analyzer, subqueryAnalystSystemPrompt,
					buildSubqueryAnalysisPrompt(query, optimized, results))
				out.cost += resp.Cost
				if err != nil {
					p.logger.Debug("sub-query analysis failed", zap.String("query", optimized), zap.Error(err))
				} else {
					out.analysis = strings.TrimSpace(resp.Text)
				}
			}
			return nil
		})
	}
	_ = g.Wait() // branches never return errors

	var cost float64
	var merged []RawResult
	failures := 0
	for _, out := range outcomes {
		cost += out.cost
		if out.err != nil {
			failures++
		}
		if out.analysis != "" {
			trace.AddReasoning(fmt.Sprintf("%s: %s", out.query, out.analysis))
		}
		for _, r := range out.results {
			if strings.TrimSpace(r.URL) == "" {
				continue
			}
			if r.Source == "" {
				r.Source = "web"
			}
			if r.Timestamp.IsZero() {
				r.Timestamp = time.Now()
			}
			merged = append(merged, r)
		}
	}

	merged = dedupeByURL(merged)
	p.scoreResults(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})

	if len(merged) == 0 {
		msg := "no results were returned for any sub-query"
		if failures == len(plan.Steps) && failures > 0 {
			msg = "the search provider was unreachable for every sub-query"
		}
		trace.AddStep("error", msg)
		merged = []RawResult{syntheticErrorResult(msg)}
	}

	if len(merged) > p.maxResults {
		merged = merged[:p.maxResults]
	}

	cost += p.enrichResults(ctx, merged)
	return merged, cost
}

// dedupeByURL removes duplicate URLs, keeping the first occurrence. The
// operation is idempotent.
func dedupeByURL(results []RawResult) []RawResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

// scoreResults assigns an initial relevance to results the provider left
// unscored: positional decay weighted by domain credibility.
func (p *Pipeline) scoreResults(results []RawResult) {
	for i := range results {
		if results[i].Relevance > 0 {
			continue
		}
		decay := 1.0 - 0.05*float64(i)
		if decay < 0.1 {
			decay = 0.1
		}
		results[i].Relevance = decay * p.credibility.Score(results[i].URL)
	}
}

// optimizeSubquery applies domain-specific query rewriting before dispatch.
func optimizeSubquery(subquery string, plan SearchPlan) string {
	q := strings.TrimSpace(subquery)
	lower := strings.ToLower(q)
	switch plan.Domain {
	case "history":
		if !strings.Contains(lower, "timeline") {
			q += " exact dates timeline"
		}
	case "technology":
		if plan.QueryType == "comparative" && !strings.Contains(lower, "comparison") {
			q += " comparison technical specifications"
		}
	case "science":
		if !strings.Contains(lower, "research") {
			q += " peer reviewed research"
		}
	case "instructional":
		if !strings.Contains(lower, "guide") {
			q += " step by step guide"
		}
	}
	if plan.TemporalAspect == "current" && !containsAny(lower, "latest", "2024", "2025", "2026") {
		q += " latest"
	}
	return q
}

func syntheticErrorResult(msg string) RawResult {
	return RawResult{
		Title:     "Search unavailable",
		URL:       "error://search-unavailable",
		Snippet:   msg,
		Source:    "error",
		Timestamp: time.Now(),
	}
}

var dateRegex = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`) //nolint:gochecknoglobals

// enrichResults fetches page content for the top results and attaches a
// summary plus any extracted dates. Enrichment is best-effort provenance;
// later passes work from snippets when it is absent.
func (p *Pipeline) enrichResults(ctx context.Context, results []RawResult) float64 {
	if p.fetcher == nil || p.enrichTop <= 0 {
		return 0
	}
	n := p.enrichTop
	if n > len(results) {
		n = len(results)
	}
	for i := 0; i < n; i++ {
		if results[i].Source == "error" {
			continue
		}
		content, err := p.fetch(ctx, results[i].URL)
		if err != nil {
			p.logger.Debug("enrichment fetch failed", zap.String("url", results[i].URL), zap.Error(err))
			continue
		}
		summary := content
		if len(summary) > 600 {
			summary = summary[:600]
		}
		results[i].Enriched = &EnrichedContent{
			Summary:  strings.TrimSpace(summary),
			Dates:    dateRegex.FindAllString(content, 8),
			Metadata: map[string]string{"contentLength": fmt.Sprintf("%d", len(content))},
		}
	}
	return 0
}
