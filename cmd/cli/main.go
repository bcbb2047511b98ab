// Package main is the CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tinkerloft/refinery/internal/client"
	"github.com/tinkerloft/refinery/internal/config"
	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/state"
	"github.com/tinkerloft/refinery/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Refinery CLI",
	Long:  "CLI for interacting with the Refinery continuation and enhancement engine",
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a continuation task",
	Long:  "Submit a task for iterative continuation, from a YAML file or command-line flags",
	RunE:  runSubmit,
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run an enhancement cycle",
	Long:  "Start a single enhancement cycle against a stored artifact",
	RunE:  runCycle,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get workflow status",
	Long:  "Query the current status of a workflow",
	RunE:  runStatus,
}

var iterationsCmd = &cobra.Command{
	Use:   "iterations",
	Short: "Show iteration history",
	Long:  "Query a continuation workflow for its per-iteration outcomes",
	RunE:  runIterations,
}

var resultCmd = &cobra.Command{
	Use:   "result",
	Short: "Get workflow result",
	Long:  "Wait for and get the final result of a continuation workflow",
	RunE:  runResult,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a continuation",
	Long:  "Ask a continuation workflow to stop after its current iteration",
	RunE:  runStop,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a workflow",
	Long:  "Send a cancellation signal to a running workflow",
	RunE:  runCancel,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	Long:  "List continuation and enhancement cycle workflows",
	RunE:  runList,
}

func init() {
	// Submit command flags
	submitCmd.Flags().StringP("file", "f", "", "Path to task YAML file")
	submitCmd.Flags().String("task-id", "", "Unique task identifier (generated when empty)")
	submitCmd.Flags().StringP("prompt", "p", "", "Original task prompt")
	submitCmd.Flags().String("response", "", "Initial response to continue from")
	submitCmd.Flags().String("artifact", "", "Artifact ID to enhance")
	submitCmd.Flags().Int("max-iterations", 0, "Maximum continuation iterations (default 5)")
	submitCmd.Flags().String("model", "", "Model tier: haiku, sonnet or opus")
	submitCmd.Flags().Int("timeout", 0, "Per-iteration timeout in minutes (default 30)")
	submitCmd.Flags().Bool("auto-promote", false, "Promote accepted enhancements without review")
	submitCmd.Flags().String("slack-channel", "", "Slack channel for notifications")

	// Cycle command flags
	cycleCmd.Flags().String("task-id", "", "Unique task identifier (generated when empty)")
	cycleCmd.Flags().String("artifact", "", "Artifact ID to enhance (required)")
	cycleCmd.Flags().String("model", "", "Model tier: haiku, sonnet or opus")
	cycleCmd.Flags().Bool("auto-promote", false, "Promote accepted enhancements without review")
	cycleCmd.Flags().String("slack-channel", "", "Slack channel for notifications")
	cycleCmd.MarkFlagRequired("artifact")

	// Workflow-id flags; fall back to the last started workflow when omitted
	statusCmd.Flags().String("workflow-id", "", "Workflow ID")
	iterationsCmd.Flags().String("workflow-id", "", "Workflow ID")
	resultCmd.Flags().String("workflow-id", "", "Workflow ID")
	stopCmd.Flags().String("workflow-id", "", "Workflow ID")
	cancelCmd.Flags().String("workflow-id", "", "Workflow ID")

	// List command flags
	listCmd.Flags().String("status", "", "Filter by status (Running, Completed, Failed, Canceled, Terminated)")
	listCmd.Flags().Int("limit", 50, "Maximum number of workflows to list")

	// Add commands
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(iterationsCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")

	var task model.Task

	if filePath != "" {
		taskFromFile, err := config.LoadTaskFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to load task file: %w", err)
		}
		task = *taskFromFile
	} else {
		taskID, _ := cmd.Flags().GetString("task-id")
		prompt, _ := cmd.Flags().GetString("prompt")
		response, _ := cmd.Flags().GetString("response")
		artifact, _ := cmd.Flags().GetString("artifact")
		maxIterations, _ := cmd.Flags().GetInt("max-iterations")
		modelType, _ := cmd.Flags().GetString("model")
		timeout, _ := cmd.Flags().GetInt("timeout")
		autoPromote, _ := cmd.Flags().GetBool("auto-promote")
		slackChannel, _ := cmd.Flags().GetString("slack-channel")

		if prompt == "" {
			return fmt.Errorf("--prompt is required (or use --file)")
		}
		if taskID == "" {
			taskID = fmt.Sprintf("task-%s", uuid.NewString()[:8])
		}

		task = model.Task{
			ID:              taskID,
			OriginalPrompt:  prompt,
			InitialResponse: response,
			ArtifactPath:    artifact,
			MaxIterations:   maxIterations,
			ModelType:       modelType,
			AutoPromote:     autoPromote,
			TimeoutMinutes:  timeout,
		}
		if slackChannel != "" {
			task.SlackChannel = &slackChannel
		}
	}

	fmt.Printf("Submitting continuation task...\n")
	fmt.Printf("  Task ID: %s\n", task.ID)
	fmt.Printf("  Max iterations: %d\n", task.GetMaxIterations())
	fmt.Printf("  Timeout: %d minutes per iteration\n\n", task.GetTimeoutMinutes())

	workflowID, err := client.StartContinuation(context.Background(), task)
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}

	if err := state.SaveLastWorkflow(workflowID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save workflow ID: %v\n", err)
	}

	fmt.Printf("Workflow started: %s\n", workflowID)
	fmt.Printf("View at: http://localhost:8233/namespaces/default/workflows/%s\n", workflowID)

	return nil
}

func runCycle(cmd *cobra.Command, args []string) error {
	taskID, _ := cmd.Flags().GetString("task-id")
	artifactID, _ := cmd.Flags().GetString("artifact")
	modelType, _ := cmd.Flags().GetString("model")
	autoPromote, _ := cmd.Flags().GetBool("auto-promote")
	slackChannel, _ := cmd.Flags().GetString("slack-channel")

	if taskID == "" {
		taskID = fmt.Sprintf("cycle-%s", uuid.NewString()[:8])
	}

	input := workflow.CycleInput{
		TaskID:      taskID,
		ArtifactID:  artifactID,
		ModelType:   modelType,
		AutoPromote: autoPromote,
	}
	if slackChannel != "" {
		input.SlackChannel = &slackChannel
	}

	fmt.Printf("Starting enhancement cycle...\n")
	fmt.Printf("  Task ID: %s\n", input.TaskID)
	fmt.Printf("  Artifact: %s\n\n", input.ArtifactID)

	workflowID, err := client.StartCycle(context.Background(), input)
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}

	if err := state.SaveLastWorkflow(workflowID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save workflow ID: %v\n", err)
	}

	fmt.Printf("Workflow started: %s\n", workflowID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	workflowID, err := resolveWorkflowID(cmd)
	if err != nil {
		return err
	}

	status, err := client.GetWorkflowStatus(context.Background(), workflowID)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	fmt.Printf("Workflow: %s\n", workflowID)
	fmt.Printf("Status: %s\n", status)

	return nil
}

func runIterations(cmd *cobra.Command, args []string) error {
	workflowID, err := resolveWorkflowID(cmd)
	if err != nil {
		return err
	}

	iterations, err := client.GetIterations(context.Background(), workflowID)
	if err != nil {
		return fmt.Errorf("failed to get iterations: %w", err)
	}

	if len(iterations) == 0 {
		fmt.Println("No iterations yet")
		return nil
	}

	fmt.Printf("%-10s %-25s %-12s %-10s %s\n", "ITERATION", "TYPE", "CONFIDENCE", "CHARS", "QUALITY DELTA")
	fmt.Println(strings.Repeat("-", 75))
	for _, it := range iterations {
		fmt.Printf("%-10d %-25s %-12.2f %-10d %+.3f\n",
			it.Iteration, it.ContinuationType, it.Confidence, it.ResponseChars, it.QualityDelta)
	}

	return nil
}

func runResult(cmd *cobra.Command, args []string) error {
	workflowID, err := resolveWorkflowID(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Waiting for workflow %s to complete...\n", workflowID)

	result, err := client.GetContinuationResult(context.Background(), workflowID)
	if err != nil {
		return fmt.Errorf("failed to get result: %w", err)
	}

	fmt.Printf("\nWorkflow Result:\n")
	fmt.Printf("  Task ID: %s\n", result.TaskID)
	fmt.Printf("  Status: %s\n", result.Status)
	fmt.Printf("  Iterations: %d\n", len(result.Iterations))
	fmt.Printf("  Stop reason: %s\n", result.StopReason)

	if result.Error != nil {
		fmt.Printf("  Error: %s\n", *result.Error)
	}
	if result.DurationSeconds != nil {
		fmt.Printf("  Duration: %.2f seconds\n", *result.DurationSeconds)
	}

	// Engine counters are advisory, skip silently when the query fails.
	if engine, err := client.GetEngineStatus(context.Background(), workflowID); err == nil && engine.TotalContinuations > 0 {
		fmt.Printf("\nEngine Status:\n")
		fmt.Printf("  Total continuations: %d\n", engine.TotalContinuations)
		fmt.Printf("  Successful enhancements: %d\n", engine.SuccessfulEnhancements)
		fmt.Printf("  Success rate: %.2f\n", engine.SuccessRate)
		fmt.Printf("  Average quality improvement: %.3f\n", engine.AverageQualityImprovement)
		fmt.Printf("  Average confidence: %.2f\n", engine.AverageConfidence)
	}

	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	workflowID, err := resolveWorkflowID(cmd)
	if err != nil {
		return err
	}

	if err := client.StopWorkflow(context.Background(), workflowID); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}

	fmt.Printf("Stop requested: %s\n", workflowID)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	workflowID, err := resolveWorkflowID(cmd)
	if err != nil {
		return err
	}

	if err := client.CancelWorkflow(context.Background(), workflowID); err != nil {
		return fmt.Errorf("failed to cancel: %w", err)
	}

	fmt.Printf("Cancelled: %s\n", workflowID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	statusFilter, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	workflows, err := client.ListWorkflows(context.Background(), statusFilter, limit)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	if len(workflows) == 0 {
		fmt.Println("No workflows found")
		return nil
	}

	fmt.Printf("%-40s %-15s %s\n", "WORKFLOW ID", "STATUS", "START TIME")
	fmt.Println(strings.Repeat("-", 80))

	for _, wf := range workflows {
		fmt.Printf("%-40s %-15s %s\n", wf.WorkflowID, wf.Status, wf.StartTime)
	}

	return nil
}

// resolveWorkflowID returns the --workflow-id flag, falling back to the last
// workflow started from this machine.
func resolveWorkflowID(cmd *cobra.Command) (string, error) {
	workflowID, _ := cmd.Flags().GetString("workflow-id")
	if workflowID != "" {
		return workflowID, nil
	}
	workflowID, err := state.GetLastWorkflow()
	if err != nil {
		return "", fmt.Errorf("no --workflow-id given and no previous workflow found: %w", err)
	}
	return workflowID, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
