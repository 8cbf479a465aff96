package sift

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline stages in order. Each maps to a fixed percentComplete so a
// caller can render live progress without knowing pipeline internals.
const (
	StageQueryUnderstanding = "Query Understanding"
	StageSearchPlanning     = "Search Planning"
	StageIterativeSearch    = "Iterative Search"
	StageSynthesis          = "Information Synthesis"
	StageCitations          = "Citation & Formatting"
)

var stageOrder = []string{ //nolint:gochecknoglobals
	StageQueryUnderstanding,
	StageSearchPlanning,
	StageIterativeSearch,
	StageSynthesis,
	StageCitations,
}

var stagePercent = map[string]int{ //nolint:gochecknoglobals
	StageQueryUnderstanding: 20,
	StageSearchPlanning:     40,
	StageIterativeSearch:    70,
	StageSynthesis:          85,
	StageCitations:          100,
}

// TraceStep is one entry in the pipeline's reasoning record.
type TraceStep struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // "stage", "search", "analysis", "error"
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// StageProgress describes where the pipeline currently is.
type StageProgress struct {
	CurrentStage    string `json:"currentStage"`
	StageNumber     int    `json:"stageNumber"`
	TotalStages     int    `json:"totalStages"`
	PercentComplete int    `json:"percentComplete"`
}

// SourceDiversity summarizes how varied the cited sources are.
type SourceDiversity struct {
	UniqueDomains int      `json:"uniqueDomains"`
	SourceTypes   []string `json:"sourceTypes"`
	Perspectives  []string `json:"perspectives"`
	Score         float64  `json:"score"`
}

// ThinkingProcess is the structured, incrementally updated record of
// pipeline progress. It is mutated in place while the pipeline runs and is
// read-only once Answer returns.
type ThinkingProcess struct {
	Steps           []TraceStep     `json:"steps"`
	ActiveStep      string          `json:"activeStep"`
	Stage           StageProgress   `json:"stageProgress"`
	SearchQueries   []string        `json:"searchQueries"`
	Citations       []Citation      `json:"citations"`
	ReasoningPath   []string        `json:"reasoningPath"`
	Confidence      float64         `json:"confidenceScore"`
	SourceDiversity SourceDiversity `json:"sourceDiversity"`
}

// NewThinkingProcess returns an empty trace positioned before the first stage.
func NewThinkingProcess() *ThinkingProcess {
	return &ThinkingProcess{
		Stage: StageProgress{TotalStages: len(stageOrder)},
	}
}

// EnterStage advances the trace to the named stage. Percent complete only
// moves forward: re-entering an earlier stage keeps the higher value.
func (t *ThinkingProcess) EnterStage(stage string) {
	num := 0
	for i, s := range stageOrder {
		if s == stage {
			num = i + 1
			break
		}
	}
	if num == 0 {
		return
	}
	pct := stagePercent[stage]
	if pct < t.Stage.PercentComplete {
		pct = t.Stage.PercentComplete
	}
	t.Stage = StageProgress{
		CurrentStage:    stage,
		StageNumber:     num,
		TotalStages:     len(stageOrder),
		PercentComplete: pct,
	}
	t.addStep("stage", stage)
}

// AddStep records a trace step of the given type and marks it active.
func (t *ThinkingProcess) AddStep(stepType, description string) {
	t.addStep(stepType, description)
}

func (t *ThinkingProcess) addStep(stepType, description string) {
	step := TraceStep{
		ID:          uuid.NewString(),
		Type:        stepType,
		Description: description,
		Timestamp:   time.Now(),
	}
	t.Steps = append(t.Steps, step)
	t.ActiveStep = step.ID
}

// AddReasoning appends an entry to the reasoning path.
func (t *ThinkingProcess) AddReasoning(entry string) {
	if entry != "" {
		t.ReasoningPath = append(t.ReasoningPath, entry)
	}
}
