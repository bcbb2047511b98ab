package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinkerloft/refinery/internal/model"
)

func TestIdentifyComposableRequiresPlurality(t *testing.T) {
	e := NewEngine(nil)

	assert.Empty(t, e.IdentifyComposable(nil))
	assert.Empty(t, e.IdentifyComposable([]model.Opportunity{}))

	single := model.NewOpportunity("op-1", model.OpportunityPerformance, "cache hot path", 0.8, 0.3)
	assert.Empty(t, e.IdentifyComposable([]model.Opportunity{single}))
}

func TestPerformanceFeatureSynergy(t *testing.T) {
	e := NewEngine(nil)
	ops := []model.Opportunity{
		model.NewOpportunity("op-1", model.OpportunityPerformance, "cache hot path", 0.8, 0.3),
		model.NewOpportunity("op-2", model.OpportunityFeature, "add retry support", 0.6, 0.4),
	}

	comps := e.IdentifyComposable(ops)
	require.Len(t, comps, 1)

	c := comps[0]
	assert.InDelta(t, 1.82, c.CompoundImpactScore, 1e-9)
	assert.InDelta(t, 0.3, c.SynergyPotential, 1e-9)
	assert.InDelta(t, 1.175, c.ComplexityMultiplier, 1e-9)
	assert.Equal(t, []model.OpportunityType{model.OpportunityPerformance, model.OpportunityFeature}, c.ComponentTypes())
}

func TestSameTypeCompoundingTopThree(t *testing.T) {
	e := NewEngine(nil)
	ops := []model.Opportunity{
		model.NewOpportunity("op-1", model.OpportunityPerformance, "a", 0.9, 0.3),
		model.NewOpportunity("op-2", model.OpportunityPerformance, "b", 0.5, 0.5),
		model.NewOpportunity("op-3", model.OpportunityPerformance, "c", 0.7, 0.2),
		model.NewOpportunity("op-4", model.OpportunityPerformance, "d", 0.2, 0.9),
	}

	comps := e.IdentifyComposable(ops)
	require.Len(t, comps, 1)

	c := comps[0]
	require.Len(t, c.ComponentOpportunities, 3)
	// Top three by priority score: c (3.5), a (3.0), b (1.0); d is dropped.
	assert.Equal(t, "op-3", c.ComponentOpportunities[0].ID)
	assert.Equal(t, "op-1", c.ComponentOpportunities[1].ID)
	assert.Equal(t, "op-2", c.ComponentOpportunities[2].ID)

	// Same-type pairs use the default bonus: (0.7+0.9+0.5) * 1.1.
	assert.InDelta(t, 2.1*1.1, c.CompoundImpactScore, 1e-9)
}

func TestCompositionLimitAndOrdering(t *testing.T) {
	e := NewEngine(nil)
	ops := []model.Opportunity{
		model.NewOpportunity("op-1", model.OpportunityPerformance, "a", 0.8, 0.3),
		model.NewOpportunity("op-2", model.OpportunityFeature, "b", 0.6, 0.4),
		model.NewOpportunity("op-3", model.OpportunitySecurity, "c", 0.9, 0.2),
		model.NewOpportunity("op-4", model.OpportunityCodeQuality, "d", 0.6, 0.4),
		model.NewOpportunity("op-5", model.OpportunityAIEnhancement, "e", 0.7, 0.5),
		model.NewOpportunity("op-6", model.OpportunityIntegration, "f", 0.5, 0.5),
	}

	comps := e.IdentifyComposable(ops)
	require.Len(t, comps, 3)

	for i := 1; i < len(comps); i++ {
		assert.GreaterOrEqual(t, comps[i-1].CompoundImpactScore, comps[i].CompoundImpactScore)
	}
}

func TestRecordOutcomeUpdatesStats(t *testing.T) {
	e := NewEngine(nil)
	c := model.CompoundComposition{
		ComponentOpportunities: []model.Opportunity{
			model.NewOpportunity("op-1", model.OpportunityPerformance, "a", 0.8, 0.3),
			model.NewOpportunity("op-2", model.OpportunityFeature, "b", 0.6, 0.4),
		},
	}

	e.RecordOutcome(c, 0.9)
	e.RecordOutcome(c, 0.5)

	attempts, successes, avg := e.OutcomeStats(c.ComponentTypes())
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, successes)
	assert.InDelta(t, 0.7, avg, 1e-9)

	// Order of the queried tuple does not matter.
	attempts, _, _ = e.OutcomeStats([]model.OpportunityType{model.OpportunityFeature, model.OpportunityPerformance})
	assert.Equal(t, 2, attempts)
}

func TestOutcomeBiasReordersSelection(t *testing.T) {
	e := NewEngine(nil)
	ops := []model.Opportunity{
		model.NewOpportunity("op-1", model.OpportunityPerformance, "a", 0.8, 0.3),
		model.NewOpportunity("op-2", model.OpportunityFeature, "b", 0.6, 0.4),
		model.NewOpportunity("op-3", model.OpportunitySecurity, "c", 0.9, 0.2),
	}

	baseline := e.IdentifyComposable(ops)
	require.Len(t, baseline, 2)
	first := baseline[0].ComponentTypes()

	// Strongly negative history for the current winner demotes it.
	for i := 0; i < 5; i++ {
		e.RecordOutcome(baseline[0], 0.0)
	}
	biased := e.IdentifyComposable(ops)
	require.Len(t, biased, 2)
	assert.NotEqual(t, first, biased[0].ComponentTypes())

	// The stored score itself stays formula-derived.
	assert.InDelta(t, baseline[0].CompoundImpactScore, findByTypes(t, biased, first).CompoundImpactScore, 1e-9)
}

func findByTypes(t *testing.T, comps []model.CompoundComposition, types []model.OpportunityType) model.CompoundComposition {
	t.Helper()
	want := tupleKey(types)
	for _, c := range comps {
		if tupleKey(c.ComponentTypes()) == want {
			return c
		}
	}
	t.Fatalf("no composition with types %v", types)
	return model.CompoundComposition{}
}
