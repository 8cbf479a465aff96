package sift

import (
	"fmt"
	"strings"
)

const classifierSystemPrompt = "You are a query classifier. Read the user's question and output ONLY a JSON object describing it. Never answer the question itself."

const plannerSystemPrompt = "You are a search planner. Break the question into 3-5 search sub-queries ordered from most specific to most general. Output ONLY a JSON array. Never answer the question itself."

const subqueryAnalystSystemPrompt = "You summarize what a batch of search results contributes toward answering a research question. Two or three plain sentences, no formatting."

const surfaceScanSystemPrompt = "You are a fast information extractor. Read the search results and output ONLY a JSON object with entities, relationships, topic clusters, per-result relevance, and obvious contradictions. Extract, never infer beyond the text."

const groundingSystemPrompt = "You are a fact validator. Cross-check the claims in the analysis against the search results. Output ONLY a JSON object with per-result credibility, fact verdicts, information gaps, and missing perspectives."

const resolutionSystemPrompt = "You are a conflict resolver. Reconcile the validated claims into resolved conclusions with confidence scores. Output ONLY a JSON object. Every resolved or unresolved claim must reference the indices of the results that support or contradict it."

const multiAgentResolutionSystemPrompt = "You are a panel of four specialized reviewers working in sequence: a fact-verification reviewer, a temporal-consistency reviewer, a source-authority reviewer, and a synthesis reviewer. Each reviews the claims in turn; the synthesis reviewer merges their conclusions. Output ONLY the final JSON object. Every resolved or unresolved claim must reference the indices of the results involved."

const answerSystemPrompt = "You write a cited answer from analyzed search results. State the direct answer first. Weight information by the credibility and confidence already computed. Surface unresolved conflicts explicitly instead of silently picking a side. Cite sources with bracket numbers like [1] that match the numbered source list. Never cite a number that is not in the list and never invent URLs."

func buildClassifierPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(query)
	b.WriteString("\n\nOutput ONLY raw JSON (no markdown, no prose):\n")
	b.WriteString(`{
    "domain": "technology|history|science|news|instructional|general",
    "queryType": "factual|comparative|instructional|exploratory|temporal",
    "entities": ["entity 1", "entity 2"],
    "temporalAspect": "current|historical|future|none",
    "intent": "one short phrase",
    "searchStrategy": "one short phrase"
}`)
	return b.String()
}

func buildPlannerPrompt(query string, c SearchPlan) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(query)
	b.WriteString("\n\nClassification:\n")
	fmt.Fprintf(&b, "domain=%s type=%s temporal=%s intent=%s\n", c.Domain, c.QueryType, c.TemporalAspect, c.Intent)
	if len(c.Entities) > 0 {
		b.WriteString("entities: ")
		b.WriteString(strings.Join(c.Entities, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nGenerate 3-5 search sub-queries ordered from most specific to most general.\n")
	b.WriteString("Output ONLY a raw JSON array (no markdown):\n")
	b.WriteString(`[
    {"subquery": "...", "purpose": "...", "expectedInformation": "..."}
]`)
	return b.String()
}

func buildSubqueryAnalysisPrompt(question, subquery string, results []RawResult) string {
	var b strings.Builder
	b.WriteString("Research question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSub-query: ")
	b.WriteString(subquery)
	b.WriteString("\n\nResults (title | url | snippet):\n")
	writeResultLines(&b, results)
	b.WriteString("\nIn two or three sentences: what do these results contribute toward the research question, and what is still missing?")
	return b.String()
}

func buildSurfaceScanPrompt(question string, results []RawResult) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSearch results (index. title | url | snippet):\n")
	writeResultLines(&b, results)
	b.WriteString("\nOutput ONLY raw JSON:\n")
	b.WriteString(`{
    "entities": ["..."],
    "relationships": [{"from": "...", "to": "...", "kind": "..."}],
    "topicClusters": [{"topic": "...", "resultIndices": [0]}],
    "relevanceScores": [{"index": 0, "score": 0.8}],
    "contradictions": [{"description": "...", "resultIndices": [0, 1]}]
}`)
	return b.String()
}

func buildGroundingPrompt(question string, state *AnalysisState, results []RawResult) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nCurrent analysis:\n")
	b.WriteString(state.summary())
	b.WriteString("\n\nSearch results (index. title | url | snippet):\n")
	writeResultLines(&b, results)
	b.WriteString("\nCross-validate the analysis against the results. Output ONLY raw JSON:\n")
	b.WriteString(`{
    "credibility": [{"index": 0, "score": 0.8, "rationale": "..."}],
    "factChecks": [{"claim": "...", "verdict": "confirmed|disputed|uncertain", "confidence": 0.7, "resultIndices": [0]}],
    "informationGaps": ["..."],
    "missingPerspectives": ["..."]
}`)
	return b.String()
}

func buildResolutionPrompt(question string, state *AnalysisState, results []RawResult) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nValidated analysis:\n")
	b.WriteString(state.summary())
	b.WriteString("\n\nSearch results (index. title | url | snippet):\n")
	writeResultLines(&b, results)
	b.WriteString("\nResolve the claims. Every resolved claim and every unresolved conflict MUST list the indices of all results involved - never drop a conflicting source. Output ONLY raw JSON:\n")
	b.WriteString(`{
    "resolvedClaims": [{"claim": "...", "resolution": "...", "confidence": 0.8, "supportingResultIndices": [0, 2]}],
    "unresolvedConflicts": [{"description": "...", "resultIndices": [1, 3]}],
    "synthesizedUnderstanding": "one paragraph"
}`)
	return b.String()
}

func buildAnswerPrompt(question string, state *AnalysisState, citations []Citation) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnalysis:\n")
	b.WriteString(state.summary())
	if state.Understanding != "" {
		b.WriteString("\nSynthesized understanding:\n")
		b.WriteString(state.Understanding)
		b.WriteString("\n")
	}
	b.WriteString("\nNumbered sources:\n")
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d] %s | %s | %s\n", c.ID, strings.TrimSpace(c.Title), c.URL, strings.TrimSpace(c.Snippet))
	}
	b.WriteString("\nWrite the answer. Direct answer first, bracket citations like [1] matching the source numbers, unresolved conflicts stated explicitly. If the sources are insufficient, say so clearly.")
	return b.String()
}

func writeResultLines(b *strings.Builder, results []RawResult) {
	if len(results) == 0 {
		b.WriteString("(no results)\n")
		return
	}
	for i, r := range results {
		snippet := strings.TrimSpace(r.Snippet)
		if r.Enriched != nil && r.Enriched.Summary != "" {
			snippet += " || page: " + strings.TrimSpace(r.Enriched.Summary)
		}
		fmt.Fprintf(b, "%d. %s | %s | %s\n", i, strings.TrimSpace(r.Title), strings.TrimSpace(r.URL), snippet)
	}
}
