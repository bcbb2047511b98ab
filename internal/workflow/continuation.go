// Package workflow contains Temporal workflow definitions.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tinkerloft/refinery/internal/activity"
	"github.com/tinkerloft/refinery/internal/model"
)

// Signal and query names
const (
	SignalStop   = "stop"
	SignalCancel = "cancel"

	QueryStatus       = "get_status"
	QueryIterations   = "get_iterations"
	QueryEngineStatus = "get_engine_status"
)

// Continuation iteratively refines a task's response until the decision
// engine stops. Each iteration is one decide/generate/record round trip.
func Continuation(ctx workflow.Context, task model.Task) (*model.ContinuationResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	// Workflow state
	var (
		status                = model.TaskStatusPending
		iterations            []model.IterationOutcome
		engineStatus          model.EngineStatus
		stopRequested         bool
		cancellationRequested bool
	)

	// Register query handlers
	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (model.TaskStatus, error) {
		return status, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register status query: %w", err)
	}

	if err := workflow.SetQueryHandler(ctx, QueryIterations, func() ([]model.IterationOutcome, error) {
		return iterations, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register iterations query: %w", err)
	}

	if err := workflow.SetQueryHandler(ctx, QueryEngineStatus, func() (model.EngineStatus, error) {
		return engineStatus, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register engine status query: %w", err)
	}

	// Set up signal channels
	stopChannel := workflow.GetSignalChannel(ctx, SignalStop)
	cancelChannel := workflow.GetSignalChannel(ctx, SignalCancel)

	doneChannel := workflow.NewChannel(ctx)
	var signalHandlerDone bool

	// Handle signals asynchronously
	workflow.Go(ctx, func(ctx workflow.Context) {
		for !signalHandlerDone {
			selector := workflow.NewSelector(ctx)

			selector.AddReceive(doneChannel, func(c workflow.ReceiveChannel, more bool) {
				c.Receive(ctx, nil)
				signalHandlerDone = true
			})

			selector.AddReceive(stopChannel, func(c workflow.ReceiveChannel, more bool) {
				c.Receive(ctx, nil)
				logger.Info("Received stop signal")
				stopRequested = true
			})

			selector.AddReceive(cancelChannel, func(c workflow.ReceiveChannel, more bool) {
				c.Receive(ctx, nil)
				logger.Info("Received cancellation signal")
				cancellationRequested = true
			})

			selector.Select(ctx)
		}
	})

	signalDone := func() {
		doneChannel.Send(ctx, struct{}{})
	}

	failedResult := func(errMsg string) *model.ContinuationResult {
		signalDone()
		duration := workflow.Now(ctx).Sub(startTime).Seconds()
		return &model.ContinuationResult{
			TaskID:          task.ID,
			Status:          model.TaskStatusFailed,
			Iterations:      iterations,
			StopReason:      "workflow failed",
			Error:           &errMsg,
			DurationSeconds: &duration,
		}
	}

	cancelledResult := func(finalResponse string) *model.ContinuationResult {
		signalDone()
		duration := workflow.Now(ctx).Sub(startTime).Seconds()
		errMsg := "Workflow cancelled"
		return &model.ContinuationResult{
			TaskID:          task.ID,
			Status:          model.TaskStatusCancelled,
			FinalResponse:   finalResponse,
			Iterations:      iterations,
			StopReason:      "cancelled",
			Error:           &errMsg,
			DurationSeconds: &duration,
		}
	}

	retryPolicy := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		MaximumInterval:    time.Minute,
		BackoffCoefficient: 2.0,
		MaximumAttempts:    3,
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         retryPolicy,
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Generation calls get the task's full timeout.
	generateOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(task.GetTimeoutMinutes()) * time.Minute,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy:         retryPolicy,
	}
	generateCtx := workflow.WithActivityOptions(ctx, generateOptions)

	logger.Info("Starting continuation workflow", "taskID", task.ID, "maxIterations", task.GetMaxIterations())

	maxIterations := task.GetMaxIterations()
	currentResponse := task.InitialResponse
	var accumulated []string
	var previousEnhancements []string
	stopReason := ""

	for iteration := 0; ; iteration++ {
		if cancellationRequested {
			return cancelledResult(currentResponse), nil
		}

		status = model.TaskStatusEvaluating
		contCtx := model.ContinuationContext{
			TaskType:             task.TaskType,
			OriginalPrompt:       task.OriginalPrompt,
			CurrentResponse:      currentResponse,
			IterationCount:       iteration,
			MaxIterations:        maxIterations,
			AccumulatedResults:   accumulated,
			PreviousEnhancements: previousEnhancements,
			ModelType:            task.ModelType,
			StopRequested:        stopRequested,
		}

		var plan model.ContinuationPlan
		if err := workflow.ExecuteActivity(ctx, activity.ActivityDecideContinuation, contCtx).Get(ctx, &plan); err != nil {
			return failedResult(fmt.Sprintf("Failed to decide continuation: %v", err)), nil
		}

		if !plan.ShouldContinue {
			stopReason = plan.Reasoning
			logger.Info("Continuation stopped", "iteration", iteration, "reason", stopReason)
			break
		}

		status = model.TaskStatusContinuing
		logger.Info("Continuing", "iteration", iteration+1, "type", plan.ContinuationType, "confidence", plan.ConfidenceScore)

		var generated activity.GenerateContinuationOutput
		input := activity.GenerateContinuationInput{Plan: plan, Context: contCtx}
		if err := workflow.ExecuteActivity(generateCtx, activity.ActivityGenerateContinuation, input).Get(generateCtx, &generated); err != nil {
			return failedResult(fmt.Sprintf("Failed to generate continuation: %v", err)), nil
		}

		if cancellationRequested {
			return cancelledResult(currentResponse), nil
		}

		var recorded activity.RecordContinuationOutput
		recordInput := activity.RecordContinuationInput{
			Plan:        plan,
			Context:     contCtx,
			NewResponse: generated.Response,
			NewFiles:    generated.Files,
		}
		if err := workflow.ExecuteActivity(ctx, activity.ActivityRecordContinuationResult, recordInput).Get(ctx, &recorded); err != nil {
			return failedResult(fmt.Sprintf("Failed to record continuation outcome: %v", err)), nil
		}

		iterations = append(iterations, model.IterationOutcome{
			Iteration:        iteration + 1,
			ContinuationType: plan.ContinuationType,
			Confidence:       plan.ConfidenceScore,
			ResponseChars:    len(generated.Response),
			QualityDelta:     recorded.QualityDelta,
		})
		accumulated = append(accumulated, fmt.Sprintf("iteration %d applied %s", iteration+1, plan.ContinuationType))
		previousEnhancements = append(previousEnhancements, string(plan.ContinuationType))
		currentResponse = generated.Response
	}

	finalStatus := model.TaskStatusCompleted
	if stopRequested {
		finalStatus = model.TaskStatusStopped
	}
	status = finalStatus

	// Snapshot engine counters for the status query; advisory only.
	if err := workflow.ExecuteActivity(ctx, activity.ActivityEngineStatus).Get(ctx, &engineStatus); err != nil {
		logger.Warn("Failed to fetch engine status", "error", err)
	}

	// Tasks bound to an artifact get a follow-up enhancement cycle. The
	// cycle only promotes when the task opted in via AutoPromote.
	var cycleResult *model.CycleResult
	if task.ArtifactPath != "" && finalStatus == model.TaskStatusCompleted {
		logger.Info("Starting enhancement cycle for artifact", "artifact", task.ArtifactPath, "autoPromote", task.AutoPromote)

		childOptions := workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-cycle", task.ID),
		}
		childCtx := workflow.WithChildOptions(ctx, childOptions)

		cycleInput := CycleInput{
			TaskID:       task.ID,
			ArtifactID:   task.ArtifactPath,
			ModelType:    task.ModelType,
			AutoPromote:  task.AutoPromote,
			SlackChannel: task.SlackChannel,
		}
		if err := workflow.ExecuteChildWorkflow(childCtx, EnhancementCycle, cycleInput).Get(childCtx, &cycleResult); err != nil {
			logger.Error("Enhancement cycle failed", "artifact", task.ArtifactPath, "error", err)
			cycleResult = nil
		}
	}

	if task.SlackChannel != nil {
		msg := fmt.Sprintf("Continuation %s finished after %d iteration(s): %s", task.ID, len(iterations), stopReason)
		_ = workflow.ExecuteActivity(ctx, activity.ActivityNotifySlack, *task.SlackChannel, msg, (*string)(nil)).Get(ctx, nil)
	}

	signalDone()
	duration := workflow.Now(ctx).Sub(startTime).Seconds()
	return &model.ContinuationResult{
		TaskID:          task.ID,
		Status:          finalStatus,
		FinalResponse:   currentResponse,
		Iterations:      iterations,
		StopReason:      stopReason,
		DurationSeconds: &duration,
		Cycle:           cycleResult,
	}, nil
}
