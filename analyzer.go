package sift

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Fact-validation verdicts produced by the grounding pass.
const (
	VerdictConfirmed = "confirmed"
	VerdictDisputed  = "disputed"
	VerdictUncertain = "uncertain"
)

// Relationship links two extracted entities.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// TopicCluster groups result indices under a topic.
type TopicCluster struct {
	Topic         string `json:"topic"`
	ResultIndices []int  `json:"resultIndices"`
}

// ResultScore is a per-result relevance assessment from the surface scan.
type ResultScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Contradiction flags results that disagree with each other.
type Contradiction struct {
	Description   string `json:"description"`
	ResultIndices []int  `json:"resultIndices"`
}

// SourceCredibility is a per-result credibility assessment.
type SourceCredibility struct {
	Index     int     `json:"index"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// FactCheck is a validated claim with a verdict.
type FactCheck struct {
	Claim         string  `json:"claim"`
	Verdict       string  `json:"verdict"`
	Confidence    float64 `json:"confidence"`
	ResultIndices []int   `json:"resultIndices"`
}

// ResolvedClaim is a reconciled conclusion from the resolution pass.
type ResolvedClaim struct {
	Claim                   string  `json:"claim"`
	Resolution              string  `json:"resolution"`
	Confidence              float64 `json:"confidence"`
	SupportingResultIndices []int   `json:"supportingResultIndices"`
}

// AnalysisMeta tracks how far the analyzer got. PassesCompleted never
// exceeds 3 and only moves forward within one query's processing.
type AnalysisMeta struct {
	PassesCompleted int      `json:"passesCompleted"`
	Errors          []string `json:"errors,omitempty"`
}

// AnalysisState is the single mutable object threaded through the three
// analysis passes. Fields accumulate monotonically: later passes add or
// overwrite fields but never force earlier ones to be re-derived.
type AnalysisState struct {
	// Pass 1: surface scan.
	Entities       []string        `json:"entities,omitempty"`
	Relationships  []Relationship  `json:"relationships,omitempty"`
	Clusters       []TopicCluster  `json:"topicClusters,omitempty"`
	Relevance      []ResultScore   `json:"relevanceScores,omitempty"`
	Contradictions []Contradiction `json:"contradictions,omitempty"`

	// Pass 2: contextual grounding.
	Credibility         []SourceCredibility `json:"credibility,omitempty"`
	FactChecks          []FactCheck         `json:"factChecks,omitempty"`
	Gaps                []string            `json:"informationGaps,omitempty"`
	MissingPerspectives []string            `json:"missingPerspectives,omitempty"`

	// Pass 3: conflict resolution.
	ResolvedClaims      []ResolvedClaim `json:"resolvedClaims,omitempty"`
	UnresolvedConflicts []Contradiction `json:"unresolvedConflicts,omitempty"`
	Understanding       string          `json:"synthesizedUnderstanding,omitempty"`

	Meta AnalysisMeta `json:"meta"`
}

// completePass records that pass n succeeded. The counter is monotonic.
func (s *AnalysisState) completePass(n int) {
	if n > s.Meta.PassesCompleted && n <= 3 {
		s.Meta.PassesCompleted = n
	}
}

// recordError notes a stage-local failure without touching prior state.
func (s *AnalysisState) recordError(pass int, err error) {
	s.Meta.Errors = append(s.Meta.Errors, fmt.Sprintf("pass %d: %v", pass, err))
}

// summary renders the state compactly for prompting and for the final
// answer call.
func (s *AnalysisState) summary() string {
	var b strings.Builder
	if len(s.Entities) > 0 {
		b.WriteString("Entities: ")
		b.WriteString(strings.Join(s.Entities, ", "))
		b.WriteString("\n")
	}
	for _, c := range s.Clusters {
		fmt.Fprintf(&b, "Cluster %q: results %v\n", c.Topic, c.ResultIndices)
	}
	for _, c := range s.Contradictions {
		fmt.Fprintf(&b, "Contradiction: %s (results %v)\n", c.Description, c.ResultIndices)
	}
	for _, f := range s.FactChecks {
		fmt.Fprintf(&b, "Claim [%s %.2f]: %s (results %v)\n", f.Verdict, f.Confidence, f.Claim, f.ResultIndices)
	}
	for _, c := range s.Credibility {
		fmt.Fprintf(&b, "Source %d credibility %.2f\n", c.Index, c.Score)
	}
	if len(s.Gaps) > 0 {
		b.WriteString("Gaps: ")
		b.WriteString(strings.Join(s.Gaps, "; "))
		b.WriteString("\n")
	}
	if len(s.MissingPerspectives) > 0 {
		b.WriteString("Missing perspectives: ")
		b.WriteString(strings.Join(s.MissingPerspectives, "; "))
		b.WriteString("\n")
	}
	for _, r := range s.ResolvedClaims {
		fmt.Fprintf(&b, "Resolved [%.2f]: %s -> %s (results %v)\n", r.Confidence, r.Claim, r.Resolution, r.SupportingResultIndices)
	}
	for _, c := range s.UnresolvedConflicts {
		fmt.Fprintf(&b, "Unresolved: %s (results %v)\n", c.Description, c.ResultIndices)
	}
	if b.Len() == 0 {
		return "(no analysis available)"
	}
	return b.String()
}

// analyze runs the three-pass state machine over the raw results. Each pass
// is one completion call decoded defensively; a failed pass leaves the
// previous state untouched, records the error, and the analyzer degrades
// gracefully from three passes down to raw results only. It never returns
// an error.
func (p *Pipeline) analyze(ctx context.Context, query string, results []RawResult, trace *ThinkingProcess) (*AnalysisState, float64) {
	state := &AnalysisState{}
	var cost float64

	// Pass 1: surface scan.
	resp, err := p.complete(ctx, p.analyzer, surfaceScanSystemPrompt, buildSurfaceScanPrompt(query, results))
	cost += resp.Cost
	if err == nil {
		var parsed struct {
			Entities        []string        `json:"entities"`
			Relationships   []Relationship  `json:"relationships"`
			TopicClusters   []TopicCluster  `json:"topicClusters"`
			RelevanceScores []ResultScore   `json:"relevanceScores"`
			Contradictions  []Contradiction `json:"contradictions"`
		}
		if err = DecodeJSON(resp.Text, &parsed); err == nil {
			state.Entities = trimStrings(parsed.Entities)
			state.Relationships = parsed.Relationships
			state.Clusters = clampClusters(parsed.TopicClusters, len(results))
			state.Relevance = clampScores(parsed.RelevanceScores, len(results))
			state.Contradictions = clampContradictions(parsed.Contradictions, len(results))
			state.completePass(1)
			trace.AddStep("analysis", fmt.Sprintf("surface scan: %d entities, %d contradictions", len(state.Entities), len(state.Contradictions)))
		}
	}
	if err != nil {
		p.logger.Warn("surface scan failed", zap.Error(err))
		state.recordError(1, err)
	}

	// Pass 2: contextual grounding.
	resp, err = p.complete(ctx, p.analyzer, groundingSystemPrompt, buildGroundingPrompt(query, state, results))
	cost += resp.Cost
	if err == nil {
		var parsed struct {
			Credibility         []SourceCredibility `json:"credibility"`
			FactChecks          []FactCheck         `json:"factChecks"`
			InformationGaps     []string            `json:"informationGaps"`
			MissingPerspectives []string            `json:"missingPerspectives"`
		}
		if err = DecodeJSON(resp.Text, &parsed); err == nil {
			state.Credibility = clampCredibility(parsed.Credibility, len(results))
			state.FactChecks = normalizeFactChecks(parsed.FactChecks, len(results))
			state.Gaps = trimStrings(parsed.InformationGaps)
			state.MissingPerspectives = trimStrings(parsed.MissingPerspectives)
			state.completePass(2)
			trace.AddStep("analysis", fmt.Sprintf("grounding: %d fact checks, %d gaps", len(state.FactChecks), len(state.Gaps)))
		}
	}
	if err != nil {
		p.logger.Warn("grounding pass failed, falling back to heuristic credibility", zap.Error(err))
		state.recordError(2, err)
		state.Credibility = p.heuristicCredibility(results)
	}

	// Pass 3: conflict resolution, optionally in multi-agent mode.
	system := resolutionSystemPrompt
	if p.multiAgent {
		system = multiAgentResolutionSystemPrompt
	}
	resp, err = p.complete(ctx, p.analyzer, system, buildResolutionPrompt(query, state, results))
	cost += resp.Cost
	if err == nil {
		var parsed struct {
			ResolvedClaims           []ResolvedClaim `json:"resolvedClaims"`
			UnresolvedConflicts      []Contradiction `json:"unresolvedConflicts"`
			SynthesizedUnderstanding string          `json:"synthesizedUnderstanding"`
		}
		if err = DecodeJSON(resp.Text, &parsed); err == nil {
			state.ResolvedClaims = clampClaims(parsed.ResolvedClaims, len(results))
			state.UnresolvedConflicts = clampContradictions(parsed.UnresolvedConflicts, len(results))
			state.Understanding = strings.TrimSpace(parsed.SynthesizedUnderstanding)
			state.completePass(3)
			trace.AddStep("analysis", fmt.Sprintf("resolution: %d resolved, %d unresolved", len(state.ResolvedClaims), len(state.UnresolvedConflicts)))
		}
	}
	if err != nil {
		p.logger.Warn("resolution pass failed", zap.Error(err))
		state.recordError(3, err)
	}

	return state, cost
}

// heuristicCredibility scores every result from the domain rules. Used when
// the grounding pass produces nothing usable.
func (p *Pipeline) heuristicCredibility(results []RawResult) []SourceCredibility {
	out := make([]SourceCredibility, 0, len(results))
	for i, r := range results {
		out = append(out, SourceCredibility{Index: i, Score: p.credibility.Score(r.URL), Rationale: "domain heuristic"})
	}
	return out
}

// clampIndices drops out-of-range result indices from model output.
func clampIndices(indices []int, n int) []int {
	out := indices[:0]
	for _, i := range indices {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	return out
}

func clampClusters(clusters []TopicCluster, n int) []TopicCluster {
	for i := range clusters {
		clusters[i].ResultIndices = clampIndices(clusters[i].ResultIndices, n)
	}
	return clusters
}

func clampScores(scores []ResultScore, n int) []ResultScore {
	out := scores[:0]
	for _, s := range scores {
		if s.Index >= 0 && s.Index < n {
			out = append(out, s)
		}
	}
	return out
}

func clampContradictions(cs []Contradiction, n int) []Contradiction {
	for i := range cs {
		cs[i].ResultIndices = clampIndices(cs[i].ResultIndices, n)
	}
	return cs
}

func clampCredibility(cs []SourceCredibility, n int) []SourceCredibility {
	out := cs[:0]
	for _, c := range cs {
		if c.Index >= 0 && c.Index < n {
			out = append(out, c)
		}
	}
	return out
}

func clampClaims(claims []ResolvedClaim, n int) []ResolvedClaim {
	for i := range claims {
		claims[i].SupportingResultIndices = clampIndices(claims[i].SupportingResultIndices, n)
	}
	return claims
}

// normalizeFactChecks clamps indices and coerces unknown verdicts to
// "uncertain".
func normalizeFactChecks(checks []FactCheck, n int) []FactCheck {
	for i := range checks {
		checks[i].ResultIndices = clampIndices(checks[i].ResultIndices, n)
		switch checks[i].Verdict {
		case VerdictConfirmed, VerdictDisputed, VerdictUncertain:
		default:
			checks[i].Verdict = VerdictUncertain
		}
	}
	return checks
}
