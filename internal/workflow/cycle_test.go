package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/tinkerloft/refinery/internal/activity"
	"github.com/tinkerloft/refinery/internal/codemetrics"
	"github.com/tinkerloft/refinery/internal/model"
)

// CycleMockActivities provides mock implementations of cycle activities.
type CycleMockActivities struct {
	mock.Mock
}

func (m *CycleMockActivities) DiscoverOpportunities(ctx context.Context, input activity.DiscoverInput) (*activity.DiscoverOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.DiscoverOutput), args.Error(1)
}

func (m *CycleMockActivities) ComposeOpportunities(ctx context.Context, input activity.ComposeInput) (*activity.ComposeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.ComposeOutput), args.Error(1)
}

func (m *CycleMockActivities) GenerateSolution(ctx context.Context, input activity.GenerateSolutionInput) (*activity.GenerateSolutionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.GenerateSolutionOutput), args.Error(1)
}

func (m *CycleMockActivities) AssessSolution(ctx context.Context, input activity.AssessInput) (*model.QualityAssessment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QualityAssessment), args.Error(1)
}

func (m *CycleMockActivities) NextVersion(ctx context.Context, input activity.NextVersionInput) (*activity.NextVersionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.NextVersionOutput), args.Error(1)
}

func (m *CycleMockActivities) ExecuteEnhancement(ctx context.Context, input activity.ExecuteInput) (*model.ExecutionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExecutionResult), args.Error(1)
}

func (m *CycleMockActivities) MeasureImpact(ctx context.Context, input activity.MeasureInput) (*codemetrics.ImpactReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codemetrics.ImpactReport), args.Error(1)
}

func (m *CycleMockActivities) RecordEnhancement(ctx context.Context, input activity.RecordInput) (*model.EnhancementRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EnhancementRecord), args.Error(1)
}

func registerCycleMocks(env *testsuite.TestWorkflowEnvironment, m *CycleMockActivities) {
	env.RegisterActivity(m.DiscoverOpportunities)
	env.RegisterActivity(m.ComposeOpportunities)
	env.RegisterActivity(m.GenerateSolution)
	env.RegisterActivity(m.AssessSolution)
	env.RegisterActivity(m.NextVersion)
	env.RegisterActivity(m.ExecuteEnhancement)
	env.RegisterActivity(m.MeasureImpact)
	env.RegisterActivity(m.RecordEnhancement)
}

func cycleInput() CycleInput {
	return CycleInput{TaskID: "cycle-1", ArtifactID: "app.py", AutoPromote: true}
}

func TestEnhancementCycle_HappyPath(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	opportunity := model.NewOpportunity("op-1", model.OpportunityPerformance, "cache lookups", 0.7, 0.5)
	assessment := model.NewQualityAssessment(0.8, 0.8, 0.1, nil)
	impact := 0.72

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{
			Opportunities: []model.Opportunity{opportunity},
			ArtifactText:  "def main():\n    run()\n",
		}, nil,
	)
	mockActivities.On("ComposeOpportunities", mock.Anything, mock.Anything).Return(
		&activity.ComposeOutput{}, nil,
	)
	mockActivities.On("GenerateSolution", mock.Anything, mock.MatchedBy(func(in activity.GenerateSolutionInput) bool {
		return in.Opportunity.ID == "op-1" && in.ArtifactText != ""
	})).Return(
		&activity.GenerateSolutionOutput{Solution: "def main():\n    cached_run()\n", Summary: "cache the hot path"}, nil,
	)
	mockActivities.On("AssessSolution", mock.Anything, mock.Anything).Return(&assessment, nil)
	mockActivities.On("NextVersion", mock.Anything, activity.NextVersionInput{
		EnhancementType: model.OpportunityPerformance,
		Impact:          model.ImpactMinor,
	}).Return(&activity.NextVersionOutput{Version: "0.2.0"}, nil)
	mockActivities.On("ExecuteEnhancement", mock.Anything, mock.MatchedBy(func(in activity.ExecuteInput) bool {
		return in.Version == "0.2.0" && in.ArtifactID == "app.py"
	})).Return(
		&model.ExecutionResult{Success: true, Stage: model.StageDone, Version: "0.2.0", FilesCreated: []string{"app.py"}}, nil,
	)
	mockActivities.On("MeasureImpact", mock.Anything, mock.Anything).Return(
		&codemetrics.ImpactReport{ArtifactID: "app.py", Version: "0.2.0", OverallImpactScore: impact}, nil,
	)
	mockActivities.On("RecordEnhancement", mock.Anything, mock.MatchedBy(func(in activity.RecordInput) bool {
		return in.Version == "0.2.0" && in.AchievedQuality == impact && in.Compound == nil &&
			in.Execution != nil && in.Execution.Success
	})).Return(&model.EnhancementRecord{Version: "0.2.0", Success: true}, nil)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.CycleStatusCompleted, result.Status)
	assert.Equal(t, "0.2.0", result.Version)
	require.NotNil(t, result.Execution)
	assert.True(t, result.Execution.Success)
	require.NotNil(t, result.ImpactScore)
	assert.InDelta(t, impact, *result.ImpactScore, 1e-9)
}

func TestEnhancementCycle_NoOpportunities(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{ArtifactText: "def main():\n    run()\n"}, nil,
	)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.CycleStatusCompleted, result.Status)
	assert.Empty(t, result.Version)
	mockActivities.AssertNotCalled(t, "GenerateSolution", mock.Anything, mock.Anything)
}

func TestEnhancementCycle_RejectedSolutionSkipsExecution(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	opportunity := model.NewOpportunity("op-1", model.OpportunitySecurity, "remove eval", 0.9, 0.5)
	rejected := model.NewQualityAssessment(0.3, 0.3, 0.8, []string{"solution carries more risk than it removes"})

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{Opportunities: []model.Opportunity{opportunity}, ArtifactText: "eval(x)"}, nil,
	)
	mockActivities.On("ComposeOpportunities", mock.Anything, mock.Anything).Return(&activity.ComposeOutput{}, nil)
	mockActivities.On("GenerateSolution", mock.Anything, mock.Anything).Return(
		&activity.GenerateSolutionOutput{Solution: "use exec instead", Summary: "swap eval for exec"}, nil,
	)
	mockActivities.On("AssessSolution", mock.Anything, mock.Anything).Return(&rejected, nil)
	mockActivities.On("NextVersion", mock.Anything, mock.Anything).Return(&activity.NextVersionOutput{Version: "1.0.0"}, nil)
	mockActivities.On("RecordEnhancement", mock.Anything, mock.MatchedBy(func(in activity.RecordInput) bool {
		return in.Version == "1.0.0" && !in.Assessment.Accepted() && in.Execution == nil
	})).Return(&model.EnhancementRecord{Version: "1.0.0", Success: false}, nil)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.CycleStatusCompleted, result.Status)
	assert.Nil(t, result.Execution)
	assert.Nil(t, result.ImpactScore)
	mockActivities.AssertNotCalled(t, "ExecuteEnhancement", mock.Anything, mock.Anything)
}

func TestEnhancementCycle_RolledBackExecutionJournaled(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	opportunity := model.NewOpportunity("op-1", model.OpportunityPerformance, "cache lookups", 0.7, 0.5)
	assessment := model.NewQualityAssessment(0.8, 0.8, 0.1, nil)
	rolledBack := model.RolledBackResult("post-verify regression")
	rolledBack.Version = "0.2.0"

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{Opportunities: []model.Opportunity{opportunity}, ArtifactText: "def main():\n    run()\n"}, nil,
	)
	mockActivities.On("ComposeOpportunities", mock.Anything, mock.Anything).Return(&activity.ComposeOutput{}, nil)
	mockActivities.On("GenerateSolution", mock.Anything, mock.Anything).Return(
		&activity.GenerateSolutionOutput{Solution: "def main():\n    cached_run()\n", Summary: "cache the hot path"}, nil,
	)
	mockActivities.On("AssessSolution", mock.Anything, mock.Anything).Return(&assessment, nil)
	mockActivities.On("NextVersion", mock.Anything, mock.Anything).Return(&activity.NextVersionOutput{Version: "0.2.0"}, nil)
	mockActivities.On("ExecuteEnhancement", mock.Anything, mock.Anything).Return(&rolledBack, nil)
	// The journal must see the failed execution even though the assessment
	// accepted the solution.
	mockActivities.On("RecordEnhancement", mock.Anything, mock.MatchedBy(func(in activity.RecordInput) bool {
		return in.Version == "0.2.0" && in.Assessment.Accepted() &&
			in.Execution != nil && !in.Execution.Success && in.Execution.Stage == model.StageRolledBack
	})).Return(&model.EnhancementRecord{Version: "0.2.0", Success: false}, nil)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.CycleStatusCompleted, result.Status)
	require.NotNil(t, result.Execution)
	assert.False(t, result.Execution.Success)
	assert.Nil(t, result.ImpactScore)
	mockActivities.AssertNotCalled(t, "MeasureImpact", mock.Anything, mock.Anything)
	mockActivities.AssertExpectations(t)
}

func TestEnhancementCycle_AutoPromoteOffSkipsExecution(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	opportunity := model.NewOpportunity("op-1", model.OpportunityFeature, "add export", 0.6, 0.4)
	assessment := model.NewQualityAssessment(0.8, 0.8, 0.1, nil)

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{Opportunities: []model.Opportunity{opportunity}, ArtifactText: "def main():\n    run()\n"}, nil,
	)
	mockActivities.On("ComposeOpportunities", mock.Anything, mock.Anything).Return(&activity.ComposeOutput{}, nil)
	mockActivities.On("GenerateSolution", mock.Anything, mock.Anything).Return(
		&activity.GenerateSolutionOutput{Solution: "def export():\n    pass\n", Summary: "add export"}, nil,
	)
	mockActivities.On("AssessSolution", mock.Anything, mock.Anything).Return(&assessment, nil)
	mockActivities.On("NextVersion", mock.Anything, mock.Anything).Return(&activity.NextVersionOutput{Version: "0.2.0"}, nil)
	mockActivities.On("RecordEnhancement", mock.Anything, mock.MatchedBy(func(in activity.RecordInput) bool {
		return in.Version == "0.2.0" && in.Execution == nil
	})).Return(&model.EnhancementRecord{Version: "0.2.0", Success: false}, nil)

	input := cycleInput()
	input.AutoPromote = false
	env.ExecuteWorkflow(EnhancementCycle, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.CycleStatusCompleted, result.Status)
	assert.Nil(t, result.Execution)
	mockActivities.AssertNotCalled(t, "ExecuteEnhancement", mock.Anything, mock.Anything)
}

func TestEnhancementCycle_PrefersCompound(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	perf := model.NewOpportunity("p1", model.OpportunityPerformance, "cache lookups", 0.8, 0.5)
	feature := model.NewOpportunity("f1", model.OpportunityFeature, "add export", 0.6, 0.4)
	compound := model.CompoundComposition{
		Description:            "Compound enhancement: cache lookups + add export",
		ComponentOpportunities: []model.Opportunity{perf, feature},
		CompoundImpactScore:    1.82,
		ComplexityMultiplier:   1.225,
		SynergyPotential:       0.3,
		ImplementationStrategy: "implement add export first, then cache lookups",
	}

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(
		&activity.DiscoverOutput{Opportunities: []model.Opportunity{perf, feature}, ArtifactText: "def main():\n    run()\n"}, nil,
	)
	mockActivities.On("ComposeOpportunities", mock.Anything, mock.Anything).Return(
		&activity.ComposeOutput{Compositions: []model.CompoundComposition{compound}}, nil,
	)
	mockActivities.On("GenerateSolution", mock.Anything, mock.MatchedBy(func(in activity.GenerateSolutionInput) bool {
		return in.Opportunity.Type == model.OpportunityCompound && in.Strategy == compound.ImplementationStrategy
	})).Return(&activity.GenerateSolutionOutput{Solution: "combined change", Summary: "combined"}, nil)

	rejected := model.NewQualityAssessment(0.2, 0.2, 0.5, nil)
	mockActivities.On("AssessSolution", mock.Anything, mock.Anything).Return(&rejected, nil)
	// Compound impact caps at 1.0, which maps to a major bump.
	mockActivities.On("NextVersion", mock.Anything, activity.NextVersionInput{
		EnhancementType: model.OpportunityCompound,
		Impact:          model.ImpactMajor,
	}).Return(&activity.NextVersionOutput{Version: "1.0.0"}, nil)
	mockActivities.On("RecordEnhancement", mock.Anything, mock.MatchedBy(func(in activity.RecordInput) bool {
		return in.Compound != nil && in.Compound.CompoundImpactScore == compound.CompoundImpactScore
	})).Return(&model.EnhancementRecord{Version: "1.0.0", Success: false}, nil)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.NotNil(t, result.Opportunity)
	assert.Equal(t, model.OpportunityCompound, result.Opportunity.Type)
}

func TestEnhancementCycle_DiscoveryFailureFailsCycle(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &CycleMockActivities{}
	registerCycleMocks(env, mockActivities)

	mockActivities.On("DiscoverOpportunities", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	env.ExecuteWorkflow(EnhancementCycle, cycleInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.CycleResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.CycleStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "Discovery failed")
}
