package sift

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// maxCitations caps how many results become numbered citations.
const maxCitations = 20

// buildCitations numbers the top results 1-based, in result order. The IDs
// are the bracket references the answer text uses.
func buildCitations(results []RawResult) []Citation {
	n := len(results)
	if n > maxCitations {
		n = maxCitations
	}
	citations := make([]Citation, 0, n)
	for i := 0; i < n; i++ {
		r := results[i]
		citations = append(citations, Citation{
			ID:        i + 1,
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Snippet,
			Source:    r.Source,
			Relevance: r.Relevance,
		})
	}
	return citations
}

// synthesize produces the final cited answer and fills in the trace's
// citations, diversity metrics, and confidence score. On completion failure
// it falls back to a plain summary of the analysis so the caller still gets
// a well-formed answer.
func (p *Pipeline) synthesize(ctx context.Context, query string, state *AnalysisState, results []RawResult, trace *ThinkingProcess) (string, float64) {
	citations := buildCitations(results)
	trace.Citations = citations
	trace.SourceDiversity = p.sourceDiversity(results)
	trace.Confidence = confidenceScore(state, results)

	resp, err := p.complete(ctx, p.synthesizer, answerSystemPrompt, buildAnswerPrompt(query, state, citations))
	if err != nil {
		p.logger.Warn("answer synthesis failed, using analysis fallback", zap.Error(err))
		trace.AddStep("error", fmt.Sprintf("synthesis: %v", err))
		return fallbackAnswer(state, citations), resp.Cost
	}

	text := StripThinkBlocks(resp.Text)
	if strings.TrimSpace(text) == "" {
		text = fallbackAnswer(state, citations)
	}
	return text, resp.Cost
}

// fallbackAnswer composes an answer directly from the analysis state when
// the synthesis call produces nothing usable.
func fallbackAnswer(state *AnalysisState, citations []Citation) string {
	var b strings.Builder
	if state.Understanding != "" {
		b.WriteString(state.Understanding)
		b.WriteString("\n\n")
	}
	for _, rc := range state.ResolvedClaims {
		fmt.Fprintf(&b, "%s: %s\n", rc.Claim, rc.Resolution)
	}
	if b.Len() == 0 {
		b.WriteString("I could not find enough information to answer this question reliably.")
		if len(citations) > 0 && citations[0].Source == "error" {
			b.WriteString(" The search provider returned no usable results [1].")
		}
	}
	return strings.TrimSpace(b.String())
}

// sourceDiversity computes how varied the result set is: distinct domains,
// inferred source types, and inferred perspectives.
func (p *Pipeline) sourceDiversity(results []RawResult) SourceDiversity {
	domains := make(map[string]bool)
	types := make(map[string]bool)
	for _, r := range results {
		if r.Source == "error" {
			continue
		}
		if d := domainOf(r.URL); d != "" {
			domains[d] = true
		}
		types[p.credibility.SourceType(r.URL)] = true
	}

	typeList := make([]string, 0, len(types))
	for t := range types {
		typeList = append(typeList, t)
	}
	sort.Strings(typeList)

	perspectives := make([]string, 0, len(typeList))
	for _, t := range typeList {
		switch t {
		case "news":
			perspectives = append(perspectives, "journalistic")
		case "academic", "reference":
			perspectives = append(perspectives, "scholarly")
		case "government":
			perspectives = append(perspectives, "official")
		case "social":
			perspectives = append(perspectives, "community")
		case "docs":
			perspectives = append(perspectives, "technical")
		}
	}
	if len(perspectives) == 0 && len(typeList) > 0 {
		perspectives = append(perspectives, "general web")
	}

	score := 0.0
	if len(results) > 0 {
		score = float64(len(domains)) / float64(len(results))
	}
	return SourceDiversity{
		UniqueDomains: len(domains),
		SourceTypes:   typeList,
		Perspectives:  perspectives,
		Score:         score,
	}
}

// confidenceScore derives an overall confidence from result volume and how
// many analysis passes completed.
func confidenceScore(state *AnalysisState, results []RawResult) float64 {
	real := 0
	for _, r := range results {
		if r.Source != "error" {
			real++
		}
	}
	conf := float64(real) * 0.05
	if conf > 0.5 {
		conf = 0.5
	}
	conf += float64(state.Meta.PassesCompleted) * 0.15
	if len(state.UnresolvedConflicts) > 0 {
		conf -= 0.1
	}
	if conf < 0.05 {
		conf = 0.05
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
