// Package continuation governs the continue/stop loop for iterative response
// refinement: deciding whether another enhancement iteration is worth
// running, which kind, and with what prompt.
package continuation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinkerloft/refinery/internal/model"
)

// terminalPhrases short-circuit continuation: the response already declares
// itself finished.
var terminalPhrases = []string{
	"in conclusion",
	"task is complete",
	"task complete",
	"nothing further to add",
	"no further improvements",
	"that completes",
	"final version",
}

// typeSignals maps each continuation type to the response signals that argue
// for it. Content-gap and quality signals are absence-based and handled
// separately; these are the presence-based catalogs.
var typeSignals = map[model.ContinuationType][]string{
	model.ContinuationTechnical: {
		"todo", "fixme", "placeholder", "not implemented", "stub", "hack",
	},
	model.ContinuationKnowledge: {
		"for example", "such as", "alternatively", "in practice", "background",
	},
	model.ContinuationErrorCorrection: {
		"error", "exception", "traceback", "failed", "incorrect", "bug",
	},
	model.ContinuationOptimization: {
		"slow", "inefficient", "performance", "optimize", "bottleneck", "o(n",
	},
}

// typeInstructions is the per-type instruction block embedded in generated
// enhancement prompts.
var typeInstructions = map[model.ContinuationType]string{
	model.ContinuationContentGap:      "Fill the gaps in the current response: expand thin sections, add missing detail, and make partial answers complete.",
	model.ContinuationQuality:         "Raise the quality of the current response: improve structure, add explanatory comments, and tighten the prose and code.",
	model.ContinuationTechnical:       "Resolve the technical debt in the current response: replace placeholders and stubs with working implementations.",
	model.ContinuationKnowledge:       "Broaden the response: add relevant context, alternatives, and concrete examples the reader would benefit from.",
	model.ContinuationErrorCorrection: "Find and fix the errors in the current response: correct wrong statements, broken code, and failure paths.",
	model.ContinuationOptimization:    "Optimize the current response: remove inefficiencies and improve the performance characteristics of any code.",
}

// typeImprovements lists the expected-improvement bullets per type.
var typeImprovements = map[model.ContinuationType][]string{
	model.ContinuationContentGap:      {"complete coverage of the original request", "expanded thin sections"},
	model.ContinuationQuality:         {"clearer structure", "better documentation of intent"},
	model.ContinuationTechnical:       {"no remaining placeholders", "working implementations for every stub"},
	model.ContinuationKnowledge:       {"relevant background and alternatives", "concrete examples"},
	model.ContinuationErrorCorrection: {"corrected errors", "verified failure paths"},
	model.ContinuationOptimization:    {"reduced algorithmic cost", "leaner hot paths"},
}

// Engine decides continuation for tasks. Decision logic is pure; the learning
// table and status counters are the only mutable state and are lock-protected.
// One Engine may serve many concurrent tasks as long as each task owns its
// ContinuationContext.
type Engine struct {
	logger *slog.Logger

	mu            sync.Mutex
	typeBias      map[model.ContinuationType]*biasEntry
	total         int
	successful    int
	sumDelta      float64
	sumConfidence float64
}

type biasEntry struct {
	Samples            int
	AverageImprovement float64
}

// NewEngine creates a continuation Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger,
		typeBias: make(map[model.ContinuationType]*biasEntry),
	}
}

// ShouldContinue evaluates the context and returns a plan. Hard stop
// conditions are checked first and short-circuit; otherwise the six
// enhancement-type heuristics are scored and the best non-zero type wins.
// Internal panics are logged and converted into a stop plan.
func (e *Engine) ShouldContinue(ctx model.ContinuationContext) (plan model.ContinuationPlan) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("continuation decision panicked", "panic", r)
			plan = model.StopPlan("internal decision failure")
		}
	}()

	if strings.TrimSpace(ctx.CurrentResponse) == "" {
		return model.StopPlan("current response is empty")
	}
	if ctx.MaxIterations <= 0 {
		return model.StopPlan("max iterations is not positive")
	}
	if ctx.IterationCount >= ctx.MaxIterations {
		return model.StopPlan(fmt.Sprintf("iteration limit reached (%d/%d)", ctx.IterationCount, ctx.MaxIterations))
	}
	if ctx.StopRequested {
		return model.StopPlan("stop requested")
	}
	if phrase := terminalPhrase(ctx.CurrentResponse); phrase != "" {
		return model.StopPlan(fmt.Sprintf("response signals completion (%q)", phrase))
	}

	best, _, bestScore, runnerUpScore := e.scoreTypes(ctx)
	if bestScore <= 0 {
		return model.StopPlan("no enhancement signal detected")
	}

	confidence := e.confidence(bestScore, runnerUpScore, ctx.IterationCount, ctx.MaxIterations)

	return model.ContinuationPlan{
		ShouldContinue:       true,
		ContinuationType:     best,
		ConfidenceScore:      confidence,
		ExpectedImprovements: typeImprovements[best],
		Reasoning:            fmt.Sprintf("%s signals strongest at iteration %d", best, ctx.IterationCount),
	}
}

// terminalPhrase returns the first completion phrase found in the response,
// or "" if none.
func terminalPhrase(response string) string {
	lower := strings.ToLower(response)
	for _, p := range terminalPhrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}

// scoreTypes runs the six heuristics with the learned bias applied and
// returns the winner and runner-up.
func (e *Engine) scoreTypes(ctx model.ContinuationContext) (best, runnerUp model.ContinuationType, bestScore, runnerUpScore float64) {
	lower := strings.ToLower(ctx.CurrentResponse)

	best, runnerUp = model.ContinuationNone, model.ContinuationNone
	for _, typ := range model.ContinuationTypes {
		score := e.rawScore(typ, lower, ctx)
		if score > 0 {
			score *= 1 + e.bias(typ)
		}
		if score > bestScore {
			runnerUp, runnerUpScore = best, bestScore
			best, bestScore = typ, score
		} else if score > runnerUpScore {
			runnerUp, runnerUpScore = typ, score
		}
	}
	return best, runnerUp, bestScore, runnerUpScore
}

// rawScore computes the unbiased heuristic score for one type.
func (e *Engine) rawScore(typ model.ContinuationType, lower string, ctx model.ContinuationContext) float64 {
	switch typ {
	case model.ContinuationContentGap:
		return contentGapScore(lower)
	case model.ContinuationQuality:
		return qualityGapScore(lower)
	default:
		signals := typeSignals[typ]
		var hits int
		for _, s := range signals {
			if strings.Contains(lower, s) {
				hits++
			}
		}
		return float64(hits) / float64(len(signals))
	}
}

// contentGapScore rises for short responses and explicit partiality markers.
func contentGapScore(lower string) float64 {
	var score float64
	words := len(strings.Fields(lower))
	if words < 150 {
		score += 0.5 * (1 - float64(words)/150)
	}
	for _, marker := range []string{"etc.", "and so on", "more on this later", "briefly", "partial", "outline"} {
		if strings.Contains(lower, marker) {
			score += 0.2
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// qualityGapScore rises when quality signals are absent from the response.
func qualityGapScore(lower string) float64 {
	var missing int
	signals := []string{"example", "note", "because", "```", "test"}
	for _, s := range signals {
		if !strings.Contains(lower, s) {
			missing++
		}
	}
	return 0.6 * float64(missing) / float64(len(signals))
}

// confidence blends the winner's margin over the runner-up with an iteration
// decay that biases long loops toward stopping.
func (e *Engine) confidence(best, runnerUp float64, iteration, maxIterations int) float64 {
	margin := 0.0
	if best > 0 {
		margin = (best - runnerUp) / best
	}
	decay := 1 - float64(iteration)/float64(maxIterations)
	return model.Clamp01((0.4 + 0.6*margin) * decay)
}

// bias returns the learned multiplier offset for a type.
func (e *Engine) bias(typ model.ContinuationType) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.typeBias[typ]
	if !ok || entry.Samples == 0 {
		return 0
	}
	// A soft prior: at most +-20% scaled by the realized average improvement.
	return 0.4 * (model.Clamp01(0.5+entry.AverageImprovement) - 0.5)
}

// GenerateEnhancementPrompt renders the deterministic enhancement prompt for
// a continuing plan. Calling it with a stop plan is a programming error and
// returns one.
func (e *Engine) GenerateEnhancementPrompt(plan model.ContinuationPlan, ctx model.ContinuationContext) (string, error) {
	if !plan.ShouldContinue {
		return "", fmt.Errorf("cannot generate an enhancement prompt for a stop plan (%s)", plan.Reasoning)
	}
	instruction, ok := typeInstructions[plan.ContinuationType]
	if !ok {
		return "", fmt.Errorf("no instruction block for continuation type %q", plan.ContinuationType)
	}

	var sb strings.Builder
	sb.WriteString("You are continuing work on an earlier task. Improve the current response; do not start over.\n\n")
	sb.WriteString("## Original request\n\n")
	sb.WriteString(ctx.OriginalPrompt)
	sb.WriteString("\n\n## Current response\n\n")
	sb.WriteString(ctx.CurrentResponse)
	sb.WriteString("\n\n## Enhancement focus\n\n")
	sb.WriteString(instruction)
	if len(plan.ExpectedImprovements) > 0 {
		sb.WriteString("\n\nExpected improvements:\n")
		for _, imp := range plan.ExpectedImprovements {
			sb.WriteString("- ")
			sb.WriteString(imp)
			sb.WriteString("\n")
		}
	}
	if len(ctx.PreviousEnhancements) > 0 {
		sb.WriteString("\nAlready applied in earlier iterations (do not repeat):\n")
		for _, prev := range ctx.PreviousEnhancements {
			sb.WriteString("- ")
			sb.WriteString(prev)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nReturn the complete improved response.\n")
	return sb.String(), nil
}

// UpdateFromResult records the realized outcome of an executed continuation
// into the learning table and the status counters. It returns the quality
// delta it attributed to the iteration.
func (e *Engine) UpdateFromResult(plan model.ContinuationPlan, ctx model.ContinuationContext, newResponse string, newFiles []string) float64 {
	delta := responseScore(newResponse) - responseScore(ctx.CurrentResponse)
	if len(newFiles) > 0 {
		delta += 0.1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.typeBias[plan.ContinuationType]
	if !ok {
		entry = &biasEntry{}
		e.typeBias[plan.ContinuationType] = entry
	}
	entry.AverageImprovement = (entry.AverageImprovement*float64(entry.Samples) + delta) / float64(entry.Samples+1)
	entry.Samples++

	e.total++
	if delta > 0 {
		e.successful++
	}
	e.sumDelta += delta
	e.sumConfidence += plan.ConfidenceScore
	return delta
}

// responseScore is a cheap quality proxy used only for learning deltas.
func responseScore(response string) float64 {
	lower := strings.ToLower(response)
	score := 0.5 * ratio(len(strings.Fields(lower)), 400)
	for _, s := range []string{"example", "```", "test", "because"} {
		if strings.Contains(lower, s) {
			score += 0.125
		}
	}
	return model.Clamp01(score)
}

func ratio(n, denom int) float64 {
	v := float64(n) / float64(denom)
	if v > 1 {
		return 1
	}
	return v
}

// Status returns the engine's introspection snapshot.
func (e *Engine) Status() model.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := model.EngineStatus{
		TotalContinuations:     e.total,
		SuccessfulEnhancements: e.successful,
	}
	if e.total > 0 {
		status.SuccessRate = float64(e.successful) / float64(e.total)
		status.AverageQualityImprovement = e.sumDelta / float64(e.total)
		status.AverageConfidence = e.sumConfidence / float64(e.total)
	}
	return status
}
