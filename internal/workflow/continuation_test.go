package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/tinkerloft/refinery/internal/activity"
	"github.com/tinkerloft/refinery/internal/model"
)

// EngineMockActivities provides mock implementations of engine activities.
type EngineMockActivities struct {
	mock.Mock
}

func (m *EngineMockActivities) DecideContinuation(ctx context.Context, contCtx model.ContinuationContext) (*model.ContinuationPlan, error) {
	args := m.Called(ctx, contCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContinuationPlan), args.Error(1)
}

func (m *EngineMockActivities) GenerateContinuation(ctx context.Context, input activity.GenerateContinuationInput) (*activity.GenerateContinuationOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.GenerateContinuationOutput), args.Error(1)
}

func (m *EngineMockActivities) RecordContinuationResult(ctx context.Context, input activity.RecordContinuationInput) (*activity.RecordContinuationOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.RecordContinuationOutput), args.Error(1)
}

func (m *EngineMockActivities) NotifySlack(ctx context.Context, channel, message string, threadTS *string) (*string, error) {
	args := m.Called(ctx, channel, message, threadTS)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *EngineMockActivities) EngineStatus(ctx context.Context) (*model.EngineStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EngineStatus), args.Error(1)
}

func continuationTask() model.Task {
	return model.Task{
		ID:              "task-1",
		TaskType:        "technical",
		OriginalPrompt:  "explain the cache design",
		InitialResponse: "The cache is an LRU.",
		MaxIterations:   3,
	}
}

func TestContinuation_SingleIterationThenStop(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.GenerateContinuation)
	env.RegisterActivity(mockActivities.RecordContinuationResult)
	env.RegisterActivity(mockActivities.EngineStatus)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)

	continuePlan := &model.ContinuationPlan{
		ShouldContinue:   true,
		ContinuationType: model.ContinuationTechnical,
		ConfidenceScore:  0.8,
		Reasoning:        "response lacks implementation detail",
	}
	stopPlan := model.StopPlan("no further enhancement is worthwhile")

	mockActivities.On("DecideContinuation", mock.Anything, mock.MatchedBy(func(c model.ContinuationContext) bool {
		return c.IterationCount == 0
	})).Return(continuePlan, nil).Once()
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(&stopPlan, nil)

	mockActivities.On("GenerateContinuation", mock.Anything, mock.Anything).Return(
		&activity.GenerateContinuationOutput{Response: "The cache is an LRU with sharded locks."}, nil,
	)
	mockActivities.On("RecordContinuationResult", mock.Anything, mock.Anything).Return(
		&activity.RecordContinuationOutput{QualityDelta: 0.2}, nil,
	)

	env.ExecuteWorkflow(Continuation, continuationTask())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ContinuationResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.TaskStatusCompleted, result.Status)
	assert.Equal(t, "The cache is an LRU with sharded locks.", result.FinalResponse)
	require.Len(t, result.Iterations, 1)
	assert.Equal(t, model.ContinuationTechnical, result.Iterations[0].ContinuationType)
	assert.InDelta(t, 0.2, result.Iterations[0].QualityDelta, 1e-9)
	assert.Equal(t, "no further enhancement is worthwhile", result.StopReason)
}

func TestContinuation_ImmediateStop(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.EngineStatus)

	stopPlan := model.StopPlan("response is already comprehensive")
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(&stopPlan, nil)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)

	env.ExecuteWorkflow(Continuation, continuationTask())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ContinuationResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, model.TaskStatusCompleted, result.Status)
	assert.Equal(t, "The cache is an LRU.", result.FinalResponse)
	assert.Empty(t, result.Iterations)
}

func TestContinuation_StopSignalReachesEngine(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.GenerateContinuation)
	env.RegisterActivity(mockActivities.RecordContinuationResult)
	env.RegisterActivity(mockActivities.EngineStatus)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)

	// The engine stops as soon as the context carries the stop request.
	stopPlan := model.StopPlan("stop requested")
	continuePlan := &model.ContinuationPlan{
		ShouldContinue:   true,
		ContinuationType: model.ContinuationTechnical,
		ConfidenceScore:  0.8,
	}
	mockActivities.On("DecideContinuation", mock.Anything, mock.MatchedBy(func(c model.ContinuationContext) bool {
		return c.StopRequested
	})).Return(&stopPlan, nil)
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(continuePlan, nil)
	mockActivities.On("GenerateContinuation", mock.Anything, mock.Anything).Return(
		&activity.GenerateContinuationOutput{Response: "refined"}, nil,
	)
	mockActivities.On("RecordContinuationResult", mock.Anything, mock.Anything).Return(
		&activity.RecordContinuationOutput{QualityDelta: 0.1}, nil,
	)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalStop, nil)
	}, 0)

	env.ExecuteWorkflow(Continuation, continuationTask())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ContinuationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.TaskStatusStopped, result.Status)
	assert.Equal(t, "stop requested", result.StopReason)
}

func TestContinuation_ForwardsGeneratedFiles(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.GenerateContinuation)
	env.RegisterActivity(mockActivities.RecordContinuationResult)
	env.RegisterActivity(mockActivities.EngineStatus)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)

	continuePlan := &model.ContinuationPlan{
		ShouldContinue:   true,
		ContinuationType: model.ContinuationTechnical,
		ConfidenceScore:  0.8,
	}
	stopPlan := model.StopPlan("done")
	mockActivities.On("DecideContinuation", mock.Anything, mock.MatchedBy(func(c model.ContinuationContext) bool {
		return c.IterationCount == 0
	})).Return(continuePlan, nil).Once()
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(&stopPlan, nil)

	mockActivities.On("GenerateContinuation", mock.Anything, mock.Anything).Return(
		&activity.GenerateContinuationOutput{
			Response: "refined with a helper module",
			Files:    []string{"cache.py", "cache_test.py"},
		}, nil,
	)
	// The outcome record must carry the files the iteration produced.
	mockActivities.On("RecordContinuationResult", mock.Anything, mock.MatchedBy(func(in activity.RecordContinuationInput) bool {
		return len(in.NewFiles) == 2 && in.NewFiles[0] == "cache.py" && in.NewFiles[1] == "cache_test.py"
	})).Return(&activity.RecordContinuationOutput{QualityDelta: 0.3}, nil)

	env.ExecuteWorkflow(Continuation, continuationTask())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	mockActivities.AssertExpectations(t)
}

func TestContinuation_ArtifactTaskRunsEnhancementCycle(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EnhancementCycle)

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.EngineStatus)

	cycleMocks := &CycleMockActivities{}
	env.RegisterActivity(cycleMocks.DiscoverOpportunities)

	stopPlan := model.StopPlan("response is already comprehensive")
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(&stopPlan, nil)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)
	cycleMocks.On("DiscoverOpportunities", mock.Anything, mock.MatchedBy(func(in activity.DiscoverInput) bool {
		return in.ArtifactID == "app.py"
	})).Return(&activity.DiscoverOutput{ArtifactText: "def main():\n    run()\n"}, nil)

	task := continuationTask()
	task.ArtifactPath = "app.py"

	env.ExecuteWorkflow(Continuation, task)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ContinuationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.TaskStatusCompleted, result.Status)
	require.NotNil(t, result.Cycle)
	assert.Equal(t, model.CycleStatusCompleted, result.Cycle.Status)
	cycleMocks.AssertExpectations(t)
}

func TestContinuation_GenerationFailureFailsTask(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.GenerateContinuation)

	continuePlan := &model.ContinuationPlan{
		ShouldContinue:   true,
		ContinuationType: model.ContinuationTechnical,
		ConfidenceScore:  0.8,
	}
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(continuePlan, nil)
	mockActivities.On("GenerateContinuation", mock.Anything, mock.Anything).Return(
		nil, assert.AnError,
	)

	env.ExecuteWorkflow(Continuation, continuationTask())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ContinuationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.TaskStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "Failed to generate continuation")
}

func TestContinuation_NotifiesSlackWhenConfigured(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	mockActivities := &EngineMockActivities{}
	env.RegisterActivity(mockActivities.DecideContinuation)
	env.RegisterActivity(mockActivities.NotifySlack)
	env.RegisterActivity(mockActivities.EngineStatus)

	stopPlan := model.StopPlan("response is already comprehensive")
	mockActivities.On("DecideContinuation", mock.Anything, mock.Anything).Return(&stopPlan, nil)
	mockActivities.On("NotifySlack", mock.Anything, "#refinery", mock.Anything, (*string)(nil)).Return(nil, nil)
	mockActivities.On("EngineStatus", mock.Anything).Return(&model.EngineStatus{}, nil)

	task := continuationTask()
	task.SlackChannel = model.StringPtr("#refinery")

	env.ExecuteWorkflow(Continuation, task)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	mockActivities.AssertCalled(t, "NotifySlack", mock.Anything, "#refinery", mock.Anything, (*string)(nil))
}
