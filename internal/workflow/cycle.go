package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tinkerloft/refinery/internal/activity"
	"github.com/tinkerloft/refinery/internal/codemetrics"
	"github.com/tinkerloft/refinery/internal/model"
)

// CycleInput describes one enhancement cycle over a stored artifact.
type CycleInput struct {
	TaskID       string  `json:"task_id"`
	ArtifactID   string  `json:"artifact_id"`
	ModelType    string  `json:"model_type,omitempty"`
	AutoPromote  bool    `json:"auto_promote,omitempty"`
	SlackChannel *string `json:"slack_channel,omitempty"`
}

// EnhancementCycle runs one full discover/compose/generate/assess/execute
// cycle against an artifact and journals the outcome.
func EnhancementCycle(ctx workflow.Context, input CycleInput) (*model.CycleResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	var (
		status                = model.CycleStatusPending
		cancellationRequested bool
	)

	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (model.CycleStatus, error) {
		return status, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register status query: %w", err)
	}

	cancelChannel := workflow.GetSignalChannel(ctx, SignalCancel)
	doneChannel := workflow.NewChannel(ctx)
	var signalHandlerDone bool

	workflow.Go(ctx, func(ctx workflow.Context) {
		for !signalHandlerDone {
			selector := workflow.NewSelector(ctx)

			selector.AddReceive(doneChannel, func(c workflow.ReceiveChannel, more bool) {
				c.Receive(ctx, nil)
				signalHandlerDone = true
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

	finish := func(result *model.CycleResult) *model.CycleResult {
		signalDone()
		duration := workflow.Now(ctx).Sub(startTime).Seconds()
		result.TaskID = input.TaskID
		result.DurationSeconds = &duration
		return result
	}

	failedResult := func(errMsg string) *model.CycleResult {
		return finish(&model.CycleResult{
			Status: model.CycleStatusFailed,
			Error:  &errMsg,
		})
	}

	cancelledResult := func() *model.CycleResult {
		errMsg := "Workflow cancelled"
		return finish(&model.CycleResult{
			Status: model.CycleStatusCancelled,
			Error:  &errMsg,
		})
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

	generateOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         retryPolicy,
	}
	generateCtx := workflow.WithActivityOptions(ctx, generateOptions)

	logger.Info("Starting enhancement cycle", "taskID", input.TaskID, "artifact", input.ArtifactID)

	// 1. Discover opportunities
	status = model.CycleStatusDiscovering
	var discovered activity.DiscoverOutput
	discoverInput := activity.DiscoverInput{ArtifactID: input.ArtifactID}
	if err := workflow.ExecuteActivity(ctx, activity.ActivityDiscoverOpportunities, discoverInput).Get(ctx, &discovered); err != nil {
		return failedResult(fmt.Sprintf("Discovery failed: %v", err)), nil
	}

	if len(discovered.Opportunities) == 0 {
		logger.Info("No opportunities found", "artifact", input.ArtifactID)
		return finish(&model.CycleResult{Status: model.CycleStatusCompleted}), nil
	}

	// 2. Compose, then pick the strongest candidate
	var composed activity.ComposeOutput
	composeInput := activity.ComposeInput{Opportunities: discovered.Opportunities}
	if err := workflow.ExecuteActivity(ctx, activity.ActivityComposeOpportunities, composeInput).Get(ctx, &composed); err != nil {
		return failedResult(fmt.Sprintf("Composition failed: %v", err)), nil
	}

	opportunity, compound, strategy := selectCandidate(discovered.Opportunities, composed.Compositions)
	logger.Info("Candidate selected", "opportunity", opportunity.ID, "type", opportunity.Type, "compound", compound != nil)

	if cancellationRequested {
		return cancelledResult(), nil
	}

	// 3. Generate a solution
	status = model.CycleStatusGenerating
	var generated activity.GenerateSolutionOutput
	genInput := activity.GenerateSolutionInput{
		Opportunity:  opportunity,
		ArtifactText: discovered.ArtifactText,
		Strategy:     strategy,
	}
	if err := workflow.ExecuteActivity(generateCtx, activity.ActivityGenerateSolution, genInput).Get(generateCtx, &generated); err != nil {
		return failedResult(fmt.Sprintf("Generation failed: %v", err)), nil
	}

	// 4. Assess it
	status = model.CycleStatusAssessing
	var assessment model.QualityAssessment
	assessInput := activity.AssessInput{Opportunity: opportunity, Solution: generated.Solution}
	if err := workflow.ExecuteActivity(ctx, activity.ActivityAssessSolution, assessInput).Get(ctx, &assessment); err != nil {
		return failedResult(fmt.Sprintf("Assessment failed: %v", err)), nil
	}

	// 5. Assign a version
	var versioned activity.NextVersionOutput
	versionInput := activity.NextVersionInput{
		EnhancementType: opportunity.Type,
		Impact:          impactLevelFor(opportunity),
	}
	if err := workflow.ExecuteActivity(ctx, activity.ActivityNextVersion, versionInput).Get(ctx, &versioned); err != nil {
		return failedResult(fmt.Sprintf("Version assignment failed: %v", err)), nil
	}

	if cancellationRequested {
		return cancelledResult(), nil
	}

	// 6. Execute when the assessment permits it and promotion is enabled
	var execution *model.ExecutionResult
	var impactScore *float64
	achievedQuality := assessment.QualityScore

	switch {
	case !assessment.Accepted():
		logger.Info("Solution rejected, skipping execution", "version", versioned.Version)
	case !input.AutoPromote:
		logger.Info("Auto-promote disabled, solution journaled without execution", "version", versioned.Version)
	default:
		status = model.CycleStatusExecuting
		execInput := activity.ExecuteInput{
			Opportunity: opportunity,
			Solution:    generated.Solution,
			ArtifactID:  input.ArtifactID,
			Version:     versioned.Version,
		}
		var execResult model.ExecutionResult
		if err := workflow.ExecuteActivity(generateCtx, activity.ActivityExecuteEnhancement, execInput).Get(generateCtx, &execResult); err != nil {
			return failedResult(fmt.Sprintf("Execution failed: %v", err)), nil
		}
		execution = &execResult

		if execResult.Success {
			var report codemetrics.ImpactReport
			measureInput := activity.MeasureInput{
				ArtifactID:  input.ArtifactID,
				Version:     versioned.Version,
				Opportunity: opportunity,
			}
			if err := workflow.ExecuteActivity(ctx, activity.ActivityMeasureImpact, measureInput).Get(ctx, &report); err != nil {
				logger.Warn("Impact measurement failed", "error", err)
			} else {
				impactScore = &report.OverallImpactScore
				achievedQuality = report.OverallImpactScore
			}
		}
	}

	// 7. Journal the outcome, promoted or not
	files := generated.Files
	if execution != nil && len(execution.FilesCreated) > 0 {
		files = execution.FilesCreated
	}
	recordInput := activity.RecordInput{
		Version:         versioned.Version,
		Opportunity:     opportunity,
		SolutionSummary: generated.Summary,
		Assessment:      assessment,
		Files:           files,
		AchievedQuality: achievedQuality,
		Compound:        compound,
		Execution:       execution,
	}
	if err := workflow.ExecuteActivity(ctx, activity.ActivityRecordEnhancement, recordInput).Get(ctx, nil); err != nil {
		return failedResult(fmt.Sprintf("Journaling failed: %v", err)), nil
	}

	if input.SlackChannel != nil {
		verdict := "not promoted"
		if execution != nil && execution.Success {
			verdict = "promoted"
		}
		msg := fmt.Sprintf("Enhancement %s (%s) %s for %s", versioned.Version, opportunity.Type, verdict, input.ArtifactID)
		_ = workflow.ExecuteActivity(ctx, activity.ActivityNotifySlack, *input.SlackChannel, msg, (*string)(nil)).Get(ctx, nil)
	}

	status = model.CycleStatusCompleted
	return finish(&model.CycleResult{
		Status:      model.CycleStatusCompleted,
		Version:     versioned.Version,
		Opportunity: &opportunity,
		Assessment:  &assessment,
		Execution:   execution,
		ImpactScore: impactScore,
	}), nil
}

// selectCandidate prefers the best compound composition; otherwise the
// highest-priority single opportunity. For compounds it derives a merged
// opportunity carrying the composition's scores.
func selectCandidate(opportunities []model.Opportunity, compositions []model.CompoundComposition) (model.Opportunity, *model.CompoundComposition, string) {
	if len(compositions) == 0 {
		return opportunities[0], nil, ""
	}

	best := compositions[0]
	impact := best.CompoundImpactScore
	if impact > 1 {
		impact = 1
	}
	var complexity float64
	for _, c := range best.ComponentOpportunities {
		complexity += c.ComplexityScore
	}
	complexity = complexity / float64(len(best.ComponentOpportunities)) * best.ComplexityMultiplier
	if complexity > 1 {
		complexity = 1
	}

	merged := model.NewOpportunity(
		"compound-"+best.ComponentOpportunities[0].ID,
		model.OpportunityCompound,
		best.Description,
		impact,
		complexity,
	)
	return merged, &best, best.ImplementationStrategy
}

// impactLevelFor maps an opportunity's impact score to a version bump level.
func impactLevelFor(o model.Opportunity) model.ImpactLevel {
	switch {
	case o.ImpactScore >= 0.85:
		return model.ImpactMajor
	case o.ImpactScore >= 0.6:
		return model.ImpactMinor
	default:
		return model.ImpactPatch
	}
}
