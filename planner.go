package sift

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// PlanStep is one sub-query in a SearchPlan.
type PlanStep struct {
	Subquery string `json:"subquery"`
	Purpose  string `json:"purpose"`
	Expected string `json:"expectedInformation"`
}

// SearchPlan is the classification of a query plus its ordered sub-query
// plan. Produced once per top-level query and immutable afterwards.
type SearchPlan struct {
	Domain         string     `json:"domain"`
	QueryType      string     `json:"queryType"`
	Entities       []string   `json:"entities"`
	TemporalAspect string     `json:"temporalAspect"`
	Intent         string     `json:"intent"`
	Strategy       string     `json:"searchStrategy"`
	Steps          []PlanStep `json:"searchPlan"`
}

// planQuery classifies the query and produces a sub-query plan. It never
// fails: both completion calls fall back to deterministic heuristics, so
// the dispatcher always receives a non-empty plan.
func (p *Pipeline) planQuery(ctx context.Context, query string) (SearchPlan, float64) {
	var cost float64

	plan := heuristicClassification(query)

	resp, err := p.complete(ctx, p.planner, classifierSystemPrompt, buildClassifierPrompt(query))
	cost += resp.Cost
	if err != nil {
		p.logger.Warn("classification call failed, using heuristics", zap.Error(err))
	} else {
		var parsed struct {
			Domain         string   `json:"domain"`
			QueryType      string   `json:"queryType"`
			Entities       []string `json:"entities"`
			TemporalAspect string   `json:"temporalAspect"`
			Intent         string   `json:"intent"`
			SearchStrategy string   `json:"searchStrategy"`
		}
		if err := DecodeJSON(resp.Text, &parsed); err != nil {
			p.logger.Warn("classification parse failed, using heuristics", zap.Error(err))
		} else {
			if parsed.Domain != "" {
				plan.Domain = parsed.Domain
			}
			if parsed.QueryType != "" {
				plan.QueryType = parsed.QueryType
			}
			if len(parsed.Entities) > 0 {
				plan.Entities = trimStrings(parsed.Entities)
			}
			if parsed.TemporalAspect != "" {
				plan.TemporalAspect = parsed.TemporalAspect
			}
			if parsed.Intent != "" {
				plan.Intent = parsed.Intent
			}
			if parsed.SearchStrategy != "" {
				plan.Strategy = parsed.SearchStrategy
			}
		}
	}

	resp, err = p.complete(ctx, p.planner, plannerSystemPrompt, buildPlannerPrompt(query, plan))
	cost += resp.Cost
	if err != nil {
		p.logger.Warn("plan call failed, using fallback plan", zap.Error(err))
		plan.Steps = fallbackSteps(query)
		return plan, cost
	}

	var steps []PlanStep
	if err := DecodeJSON(resp.Text, &steps); err != nil {
		p.logger.Warn("plan parse failed, using fallback plan", zap.Error(err))
		plan.Steps = fallbackSteps(query)
		return plan, cost
	}

	cleaned := make([]PlanStep, 0, len(steps))
	for _, s := range steps {
		s.Subquery = strings.TrimSpace(s.Subquery)
		if s.Subquery == "" {
			continue
		}
		cleaned = append(cleaned, s)
		if len(cleaned) >= 5 {
			break
		}
	}
	if len(cleaned) == 0 {
		cleaned = fallbackSteps(query)
	}
	plan.Steps = cleaned
	return plan, cost
}

var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`) //nolint:gochecknoglobals

// heuristicClassification derives a classification from keyword patterns.
// It is the guaranteed floor under the model-based classifier.
func heuristicClassification(query string) SearchPlan {
	lower := strings.ToLower(query)
	plan := SearchPlan{
		Domain:         "general",
		QueryType:      "factual",
		TemporalAspect: "none",
		Intent:         "answer the question",
		Strategy:       "broad web search",
	}

	switch {
	case strings.Contains(lower, "how to") || strings.Contains(lower, "how do i"):
		plan.Domain = "instructional"
		plan.QueryType = "instructional"
	case strings.Contains(lower, " vs ") || strings.Contains(lower, " versus ") || strings.Contains(lower, "compare"):
		plan.QueryType = "comparative"
	case strings.HasPrefix(lower, "why ") || strings.HasPrefix(lower, "what is") || strings.HasPrefix(lower, "what are"):
		plan.QueryType = "exploratory"
	}

	switch {
	case containsAny(lower, "software", "programming", "api", "app ", "computer", "framework", "language model"):
		plan.Domain = "technology"
	case containsAny(lower, "history", "ancient", "war ", "empire", "century"):
		plan.Domain = "history"
	case containsAny(lower, "physics", "biology", "chemistry", "research", "study"):
		plan.Domain = "science"
	}

	switch {
	case containsAny(lower, "latest", "current", "today", "this year", "release date", "when will"):
		plan.TemporalAspect = "current"
		plan.QueryType = "temporal"
	case yearRegex.MatchString(lower) || containsAny(lower, "when was", "when did"):
		plan.TemporalAspect = "historical"
	}

	return plan
}

// fallbackSteps is the deterministic plan used when the model produces
// nothing usable: the original query plus two standard widening variants.
func fallbackSteps(query string) []PlanStep {
	query = strings.TrimSpace(query)
	return []PlanStep{
		{Subquery: query, Purpose: "direct search", Expected: "pages answering the question directly"},
		{Subquery: query + " latest research", Purpose: "recent developments", Expected: "recent coverage of the topic"},
		{Subquery: query + " explained in detail", Purpose: "background", Expected: "explanatory material"},
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
