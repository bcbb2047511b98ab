package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinkerloft/refinery/internal/model"
)

func perfOpportunity() model.Opportunity {
	return model.NewOpportunity("op-1", model.OpportunityPerformance, "cache hot path", 0.8, 0.3)
}

func TestAssessDeterminism(t *testing.T) {
	a := NewAssessor(nil)
	op := perfOpportunity()
	solution := "import functools\n\n# cache the hot path\ndef lookup(key):\n    return cache.get(key)\n"

	first := a.Assess(op, solution)
	second := a.Assess(op, solution)
	assert.Equal(t, first, second)
}

func TestAssessEmptySolution(t *testing.T) {
	a := NewAssessor(nil)

	got := a.Assess(perfOpportunity(), "   \n\t")
	assert.Equal(t, model.RecommendReject, got.Recommendation)
	assert.Zero(t, got.QualityScore)
	assert.Contains(t, got.Reasons, "empty solution")
}

func TestAssessHighRiskSolutionRejected(t *testing.T) {
	a := NewAssessor(nil)
	// Several high-risk constructs saturate the risk score; the solution is
	// otherwise thin, so the overall score lands below the reject line.
	solution := "result = eval(user_input)\nexec(payload)\nos.system(cmd)\n"

	got := a.Assess(perfOpportunity(), solution)
	assert.InDelta(t, 1.0, got.RiskScore, 1e-9)
	assert.Equal(t, model.RecommendReject, got.Recommendation)
	assert.False(t, got.Accepted())

	var flagged bool
	for _, r := range got.Reasons {
		if strings.Contains(r, "eval(") {
			flagged = true
		}
	}
	assert.True(t, flagged, "expected a reason naming the eval construct")
}

func TestAssessModerateRiskAccumulates(t *testing.T) {
	a := NewAssessor(nil)
	solution := "import threading\n\nglobal state\n"

	got := a.Assess(perfOpportunity(), solution)
	assert.InDelta(t, 0.3, got.RiskScore, 1e-9)
}

func TestAssessRewardsAlignedSubstantialSolution(t *testing.T) {
	a := NewAssessor(nil)

	var sb strings.Builder
	sb.WriteString("import functools\n\n")
	sb.WriteString("# Cache layer for the hot lookup path, with timeout config and logging.\n")
	for i := 0; i < 45; i++ {
		sb.WriteString("def handler_")
		sb.WriteString(strings.Repeat("x", i%3+1))
		sb.WriteString("(key):\n    # validate input before the cache test\n    return cache.get(key)\n\n")
	}
	aligned := a.Assess(perfOpportunity(), sb.String())

	thin := a.Assess(perfOpportunity(), "x = 1\n")
	assert.Greater(t, aligned.QualityScore, thin.QualityScore)
	assert.Greater(t, aligned.ViabilityScore, thin.ViabilityScore)
	assert.Equal(t, model.RecommendReject, thin.Recommendation)
}

func TestAssessMisalignedSolutionReportsReason(t *testing.T) {
	a := NewAssessor(nil)
	op := model.NewOpportunity("op-2", model.OpportunitySecurity, "hard-coded key", 0.9, 0.2)
	solution := "refactor the helper into two parts\nextract a struct\n"

	got := a.Assess(op, solution)

	var mentioned bool
	for _, r := range got.Reasons {
		if strings.Contains(r, string(model.OpportunitySecurity)) {
			mentioned = true
		}
	}
	assert.True(t, mentioned, "expected a reason naming the unaddressed type")
}

func TestAssessRiskNeverHelps(t *testing.T) {
	a := NewAssessor(nil)
	op := perfOpportunity()
	clean := "import cachetools\n\n# cache the lookup\ndef lookup(key):\n    return cache.get(key)\n"
	risky := clean + "eval(expr)\n"

	cleanScore := a.Assess(op, clean)
	riskyScore := a.Assess(op, risky)
	assert.GreaterOrEqual(t,
		model.OverallScore(cleanScore.QualityScore, cleanScore.ViabilityScore, cleanScore.RiskScore),
		model.OverallScore(riskyScore.QualityScore, riskyScore.ViabilityScore, riskyScore.RiskScore))
}
