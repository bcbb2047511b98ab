package model

// ContinuationType names the kind of enhancement the next iteration should
// pursue.
type ContinuationType string

const (
	ContinuationContentGap       ContinuationType = "content_gap"
	ContinuationQuality          ContinuationType = "quality_improvement"
	ContinuationTechnical        ContinuationType = "technical_enhancement"
	ContinuationKnowledge        ContinuationType = "knowledge_expansion"
	ContinuationErrorCorrection  ContinuationType = "error_correction"
	ContinuationOptimization     ContinuationType = "optimization"
	ContinuationNone             ContinuationType = "none"
)

// ContinuationTypes lists every actionable continuation type in scoring order.
var ContinuationTypes = []ContinuationType{
	ContinuationContentGap,
	ContinuationQuality,
	ContinuationTechnical,
	ContinuationKnowledge,
	ContinuationErrorCorrection,
	ContinuationOptimization,
}

// ContinuationContext is the per-iteration snapshot the decision engine reads.
// The engine never mutates it; the caller builds a fresh context for each
// iteration from the previous iteration's outcome.
type ContinuationContext struct {
	TaskType             string             `json:"task_type"`
	OriginalPrompt       string             `json:"original_prompt"`
	CurrentResponse      string             `json:"current_response"`
	IterationCount       int                `json:"iteration_count"`
	MaxIterations        int                `json:"max_iterations"`
	AccumulatedResults   []string           `json:"accumulated_results,omitempty"`
	GeneratedFiles       []string           `json:"generated_files,omitempty"`
	ExecutionTime        float64            `json:"execution_time,omitempty"`
	QualityScores        map[string]float64 `json:"quality_scores,omitempty"`
	PreviousEnhancements []string           `json:"previous_enhancements,omitempty"`
	ModelType            string             `json:"model_type,omitempty"`
	StopRequested        bool               `json:"stop_requested,omitempty"`
}

// ContinuationPlan is the decision engine's output for one iteration.
type ContinuationPlan struct {
	ShouldContinue       bool             `json:"should_continue"`
	ContinuationType     ContinuationType `json:"continuation_type"`
	ConfidenceScore      float64          `json:"confidence_score"`
	ExpectedImprovements []string         `json:"expected_improvements,omitempty"`
	Reasoning            string           `json:"reasoning"`
}

// StopPlan builds a terminal plan with the given reasoning.
func StopPlan(reason string) ContinuationPlan {
	return ContinuationPlan{
		ShouldContinue:   false,
		ContinuationType: ContinuationNone,
		Reasoning:        reason,
	}
}

// EngineStatus is the introspection snapshot exposed to observability
// surfaces.
type EngineStatus struct {
	TotalContinuations        int     `json:"total_continuations"`
	SuccessfulEnhancements    int     `json:"successful_enhancements"`
	SuccessRate               float64 `json:"success_rate"`
	AverageQualityImprovement float64 `json:"average_quality_improvement"`
	AverageConfidence         float64 `json:"average_confidence"`
}
