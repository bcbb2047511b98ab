package activity

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/tinkerloft/refinery/internal/artifact"
	"github.com/tinkerloft/refinery/internal/codemetrics"
	"github.com/tinkerloft/refinery/internal/composition"
	"github.com/tinkerloft/refinery/internal/continuation"
	"github.com/tinkerloft/refinery/internal/discovery"
	"github.com/tinkerloft/refinery/internal/generator"
	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/pipeline"
	"github.com/tinkerloft/refinery/internal/quality"
	"github.com/tinkerloft/refinery/internal/version"
)

// EngineActivities bundles the enhancement engines behind Temporal activities.
// Engines are safe for concurrent use, so one instance serves the whole
// worker.
type EngineActivities struct {
	Discovery    *discovery.Engine
	Composition  *composition.Engine
	Assessor     *quality.Assessor
	Continuation *continuation.Engine
	Generator    generator.TextGenerator
	Store        artifact.Store
	Pipeline     *pipeline.Pipeline
	Versions     *version.Manager
	Tracker      *codemetrics.Tracker
}

// NewEngineActivities creates an EngineActivities instance.
func NewEngineActivities(
	disc *discovery.Engine,
	comp *composition.Engine,
	assessor *quality.Assessor,
	cont *continuation.Engine,
	gen generator.TextGenerator,
	store artifact.Store,
	pipe *pipeline.Pipeline,
	versions *version.Manager,
	tracker *codemetrics.Tracker,
) *EngineActivities {
	return &EngineActivities{
		Discovery:    disc,
		Composition:  comp,
		Assessor:     assessor,
		Continuation: cont,
		Generator:    gen,
		Store:        store,
		Pipeline:     pipe,
		Versions:     versions,
		Tracker:      tracker,
	}
}

// DiscoverInput contains inputs for opportunity discovery.
type DiscoverInput struct {
	ArtifactID   string
	ArtifactText string // If empty, the artifact is read from the store.
}

// DiscoverOutput contains discovered opportunities in priority order.
type DiscoverOutput struct {
	Opportunities []model.Opportunity
	ArtifactText  string
}

// DiscoverOpportunities scans an artifact and returns scored opportunities.
// It also records the artifact's metric baseline so a later MeasureImpact
// has something to compare against.
func (a *EngineActivities) DiscoverOpportunities(ctx context.Context, input DiscoverInput) (*DiscoverOutput, error) {
	logger := activity.GetLogger(ctx)

	text := input.ArtifactText
	if text == "" && input.ArtifactID != "" {
		read, err := a.Store.Read(input.ArtifactID)
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", input.ArtifactID, err)
		}
		text = read
	}

	a.Tracker.Baseline(input.ArtifactID, text)

	opportunities := a.Discovery.Discover(text, input.ArtifactID)
	logger.Info("Discovery complete", "artifact", input.ArtifactID, "opportunities", len(opportunities))

	return &DiscoverOutput{Opportunities: opportunities, ArtifactText: text}, nil
}

// ComposeInput contains inputs for compound composition.
type ComposeInput struct {
	Opportunities []model.Opportunity
}

// ComposeOutput contains compound compositions, best first.
type ComposeOutput struct {
	Compositions []model.CompoundComposition
}

// ComposeOpportunities merges composable opportunities into compound
// candidates.
func (a *EngineActivities) ComposeOpportunities(ctx context.Context, input ComposeInput) (*ComposeOutput, error) {
	logger := activity.GetLogger(ctx)

	compositions := a.Composition.IdentifyComposable(input.Opportunities)
	logger.Info("Composition complete", "input", len(input.Opportunities), "compositions", len(compositions))

	return &ComposeOutput{Compositions: compositions}, nil
}

// GenerateSolutionInput contains inputs for solution generation.
type GenerateSolutionInput struct {
	Opportunity  model.Opportunity
	ArtifactText string
	Strategy     string // Implementation strategy for compound opportunities.
}

// GenerateSolutionOutput contains the generated solution document.
type GenerateSolutionOutput struct {
	Solution string
	Summary  string
	Files    []string
	Issues   []string
}

// GenerateSolution asks the model for a solution document addressing the
// opportunity, then parses and validates its structure.
func (a *EngineActivities) GenerateSolution(ctx context.Context, input GenerateSolutionInput) (*GenerateSolutionOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Generating solution", "opportunity", input.Opportunity.ID, "type", input.Opportunity.Type)

	prompt := buildSolutionPrompt(input.Opportunity, input.ArtifactText, input.Strategy)
	raw, err := a.Generator.Generate(ctx, prompt, solutionSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("solution generation failed: %w", err)
	}

	doc, err := ParseSolutionDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("solution document invalid: %w", err)
	}

	if len(doc.Issues) > 0 {
		logger.Warn("Solution document has schema issues", "issues", doc.Issues)
	}

	return &GenerateSolutionOutput{
		Solution: doc.Body,
		Summary:  doc.Summary,
		Files:    doc.Files,
		Issues:   doc.Issues,
	}, nil
}

// AssessInput contains inputs for quality assessment.
type AssessInput struct {
	Opportunity model.Opportunity
	Solution    string
}

// AssessSolution scores a generated solution against the opportunity.
func (a *EngineActivities) AssessSolution(ctx context.Context, input AssessInput) (*model.QualityAssessment, error) {
	logger := activity.GetLogger(ctx)

	assessment := a.Assessor.Assess(input.Opportunity, input.Solution)
	logger.Info("Assessment complete",
		"opportunity", input.Opportunity.ID,
		"recommendation", assessment.Recommendation,
		"quality", assessment.QualityScore)

	return &assessment, nil
}

// NextVersionInput contains inputs for version assignment.
type NextVersionInput struct {
	EnhancementType model.OpportunityType
	Impact          model.ImpactLevel
}

// NextVersionOutput contains the assigned version string.
type NextVersionOutput struct {
	Version string
}

// NextVersion assigns the next unused semantic version for an enhancement.
func (a *EngineActivities) NextVersion(ctx context.Context, input NextVersionInput) (*NextVersionOutput, error) {
	ver, err := a.Versions.NextVersion(input.EnhancementType, input.Impact)
	if err != nil {
		return nil, fmt.Errorf("version assignment failed: %w", err)
	}

	activity.GetLogger(ctx).Info("Version assigned", "version", ver, "type", input.EnhancementType)
	return &NextVersionOutput{Version: ver}, nil
}

// ExecuteInput contains inputs for pipeline execution.
type ExecuteInput struct {
	Opportunity model.Opportunity
	Solution    string
	ArtifactID  string
	Version     string
}

// ExecuteEnhancement runs the safe execution pipeline against the artifact.
func (a *EngineActivities) ExecuteEnhancement(ctx context.Context, input ExecuteInput) (*model.ExecutionResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing enhancement", "artifact", input.ArtifactID, "version", input.Version)

	result := a.Pipeline.Execute(ctx, input.Opportunity, input.Solution, input.ArtifactID, input.Version)

	if result.Success {
		logger.Info("Enhancement promoted", "artifact", input.ArtifactID, "version", input.Version)
	} else {
		msg := ""
		if result.ErrorMessage != nil {
			msg = *result.ErrorMessage
		}
		logger.Warn("Enhancement not promoted", "stage", result.Stage, "reason", msg)
	}

	return &result, nil
}

// MeasureInput contains inputs for impact measurement.
type MeasureInput struct {
	ArtifactID  string
	Version     string
	Opportunity model.Opportunity
}

// MeasureImpact compares the live artifact against the baseline captured at
// discovery time.
func (a *EngineActivities) MeasureImpact(ctx context.Context, input MeasureInput) (*codemetrics.ImpactReport, error) {
	text, err := a.Store.Read(input.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", input.ArtifactID, err)
	}

	report := a.Tracker.MeasureImpact(input.ArtifactID, input.Version, input.Opportunity, text)
	activity.GetLogger(ctx).Info("Impact measured",
		"artifact", input.ArtifactID,
		"version", input.Version,
		"overall", report.OverallImpactScore)

	return &report, nil
}

// RecordInput contains inputs for journaling an enhancement.
type RecordInput struct {
	Version         string
	Opportunity     model.Opportunity
	SolutionSummary string
	Assessment      model.QualityAssessment
	Files           []string
	AchievedQuality float64
	Compound        *model.CompoundComposition
	Execution       *model.ExecutionResult
}

// RecordEnhancement appends the enhancement to the journal and feeds the
// outcome back into the learning tables.
func (a *EngineActivities) RecordEnhancement(ctx context.Context, input RecordInput) (*model.EnhancementRecord, error) {
	record, err := a.Versions.Record(input.Version, input.Opportunity, input.SolutionSummary, input.Assessment, input.Files, input.Execution)
	if err != nil {
		return nil, fmt.Errorf("failed to journal enhancement: %w", err)
	}

	if input.Compound != nil {
		a.Composition.RecordOutcome(*input.Compound, input.AchievedQuality)
	}

	activity.GetLogger(ctx).Info("Enhancement recorded", "version", input.Version, "success", record.Success)
	return &record, nil
}

// DecideContinuation evaluates whether another refinement iteration is
// worthwhile.
func (a *EngineActivities) DecideContinuation(ctx context.Context, contCtx model.ContinuationContext) (*model.ContinuationPlan, error) {
	plan := a.Continuation.ShouldContinue(contCtx)
	activity.GetLogger(ctx).Info("Continuation decision",
		"continue", plan.ShouldContinue,
		"type", plan.ContinuationType,
		"confidence", plan.ConfidenceScore)
	return &plan, nil
}

// GenerateContinuationInput contains inputs for a continuation iteration.
type GenerateContinuationInput struct {
	Plan    model.ContinuationPlan
	Context model.ContinuationContext
}

// GenerateContinuationOutput contains the refined response and any files
// the response declares in its frontmatter.
type GenerateContinuationOutput struct {
	Response string
	Files    []string
}

// GenerateContinuation builds the enhancement prompt for the plan and asks
// the model for the refined response.
func (a *EngineActivities) GenerateContinuation(ctx context.Context, input GenerateContinuationInput) (*GenerateContinuationOutput, error) {
	prompt, err := a.Continuation.GenerateEnhancementPrompt(input.Plan, input.Context)
	if err != nil {
		return nil, err
	}

	response, err := a.Generator.Generate(ctx, prompt, continuationSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("continuation generation failed: %w", err)
	}

	// Refined responses are free-form markdown; a files list only exists
	// when the model chose to emit frontmatter.
	var files []string
	if doc, err := ParseSolutionDocument(response); err == nil {
		files = doc.Files
	}

	activity.GetLogger(ctx).Info("Continuation generated",
		"type", input.Plan.ContinuationType,
		"chars", len(response),
		"files", len(files))
	return &GenerateContinuationOutput{Response: response, Files: files}, nil
}

// RecordContinuationInput contains inputs for continuation outcome feedback.
type RecordContinuationInput struct {
	Plan        model.ContinuationPlan
	Context     model.ContinuationContext
	NewResponse string
	NewFiles    []string
}

// RecordContinuationOutput contains the quality delta attributed to the
// iteration.
type RecordContinuationOutput struct {
	QualityDelta float64
}

// RecordContinuationResult feeds an iteration outcome into the learning
// tables.
func (a *EngineActivities) RecordContinuationResult(ctx context.Context, input RecordContinuationInput) (*RecordContinuationOutput, error) {
	delta := a.Continuation.UpdateFromResult(input.Plan, input.Context, input.NewResponse, input.NewFiles)
	return &RecordContinuationOutput{QualityDelta: delta}, nil
}

// EngineStatus returns the continuation engine's introspection snapshot.
func (a *EngineActivities) EngineStatus(_ context.Context) (*model.EngineStatus, error) {
	status := a.Continuation.Status()
	return &status, nil
}

const solutionSystemPrompt = "You are an enhancement engine that produces complete, self-contained " +
	"solution documents. Start the document with YAML frontmatter containing a one-line " +
	"'summary' and a 'files' list naming every file the solution touches, then write the " +
	"full solution body in markdown with code blocks."

const continuationSystemPrompt = "You are refining an earlier response. Produce the complete improved " +
	"response, not a diff. Preserve everything that was already correct."

// buildSolutionPrompt assembles the generation prompt for an opportunity.
func buildSolutionPrompt(opportunity model.Opportunity, artifactText, strategy string) string {
	var b strings.Builder

	b.WriteString("## Enhancement opportunity\n\n")
	fmt.Fprintf(&b, "Type: %s\n", opportunity.Type)
	fmt.Fprintf(&b, "Description: %s\n", opportunity.Description)
	fmt.Fprintf(&b, "Impact: %.2f, Complexity: %.2f\n", opportunity.ImpactScore, opportunity.ComplexityScore)
	if opportunity.FilePath != "" {
		fmt.Fprintf(&b, "Location: %s", opportunity.FilePath)
		if len(opportunity.LineNumbers) > 0 {
			fmt.Fprintf(&b, " (around line %d)", opportunity.LineNumbers[0])
		}
		b.WriteString("\n")
	}

	if strategy != "" {
		b.WriteString("\n## Implementation strategy\n\n")
		b.WriteString(strategy)
		b.WriteString("\n")
	}

	if artifactText != "" {
		b.WriteString("\n## Current artifact\n\n```\n")
		b.WriteString(artifactText)
		b.WriteString("\n```\n")
	}

	b.WriteString("\nProduce a solution document that fully addresses the opportunity.\n")
	return b.String()
}
