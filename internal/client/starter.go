// Package client provides Temporal client utilities.
package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/workflow"
)

// TaskQueue is the default task queue for refinement workflows.
const TaskQueue = "refinery-tasks"

// WorkflowTimeoutBuffer is minutes added to task timeout for setup/teardown.
const WorkflowTimeoutBuffer = 30

// validWorkflowStatuses defines allowed Temporal workflow execution statuses.
var validWorkflowStatuses = map[string]bool{
	"Running":    true,
	"Completed":  true,
	"Failed":     true,
	"Canceled":   true,
	"Terminated": true,
	"TimedOut":   true,
}

// Client wraps the Temporal client to reduce connection churn.
type Client struct {
	temporal client.Client
}

// NewClient creates a new Temporal client wrapper.
func NewClient() (*Client, error) {
	temporalAddr := os.Getenv("TEMPORAL_ADDRESS")
	if temporalAddr == "" {
		temporalAddr = "localhost:7233"
	}

	c, err := client.Dial(client.Options{
		HostPort: temporalAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	return &Client{temporal: c}, nil
}

// Close closes the underlying Temporal client connection.
func (c *Client) Close() {
	c.temporal.Close()
}

// StartContinuation starts a new continuation workflow for the task.
func (c *Client) StartContinuation(ctx context.Context, task model.Task) (string, error) {
	workflowID := fmt.Sprintf("continuation-%s-%d", task.ID, time.Now().Unix())

	// Each iteration may run up to the task timeout.
	timeoutMinutes := task.GetTimeoutMinutes()*task.GetMaxIterations() + WorkflowTimeoutBuffer
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                TaskQueue,
		WorkflowExecutionTimeout: time.Duration(timeoutMinutes) * time.Minute,
	}

	we, err := c.temporal.ExecuteWorkflow(ctx, options, workflow.Continuation, task)
	if err != nil {
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}

	return we.GetID(), nil
}

// StartCycle starts a new enhancement cycle workflow.
func (c *Client) StartCycle(ctx context.Context, input workflow.CycleInput) (string, error) {
	workflowID := fmt.Sprintf("cycle-%s-%d", input.TaskID, time.Now().Unix())

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                TaskQueue,
		WorkflowExecutionTimeout: time.Hour,
	}

	we, err := c.temporal.ExecuteWorkflow(ctx, options, workflow.EnhancementCycle, input)
	if err != nil {
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}

	return we.GetID(), nil
}

// GetWorkflowStatus queries the status of a continuation workflow.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (model.TaskStatus, error) {
	resp, err := c.temporal.QueryWorkflow(ctx, workflowID, "", workflow.QueryStatus)
	if err != nil {
		return "", fmt.Errorf("failed to query workflow: %w", err)
	}

	var status model.TaskStatus
	if err := resp.Get(&status); err != nil {
		return "", fmt.Errorf("failed to decode status: %w", err)
	}

	return status, nil
}

// GetIterations queries a continuation workflow for its iteration history.
func (c *Client) GetIterations(ctx context.Context, workflowID string) ([]model.IterationOutcome, error) {
	resp, err := c.temporal.QueryWorkflow(ctx, workflowID, "", workflow.QueryIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow iterations: %w", err)
	}

	var iterations []model.IterationOutcome
	if err := resp.Get(&iterations); err != nil {
		return nil, fmt.Errorf("failed to decode iterations: %w", err)
	}

	return iterations, nil
}

// GetEngineStatus queries a continuation workflow for the decision engine's
// counters. Populated once the workflow finishes its loop.
func (c *Client) GetEngineStatus(ctx context.Context, workflowID string) (*model.EngineStatus, error) {
	resp, err := c.temporal.QueryWorkflow(ctx, workflowID, "", workflow.QueryEngineStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine status: %w", err)
	}

	var status model.EngineStatus
	if err := resp.Get(&status); err != nil {
		return nil, fmt.Errorf("failed to decode engine status: %w", err)
	}

	return &status, nil
}

// GetContinuationResult waits for and returns the continuation result.
func (c *Client) GetContinuationResult(ctx context.Context, workflowID string) (*model.ContinuationResult, error) {
	run := c.temporal.GetWorkflow(ctx, workflowID, "")

	var result model.ContinuationResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to get workflow result: %w", err)
	}

	return &result, nil
}

// GetCycleResult waits for and returns the enhancement cycle result.
func (c *Client) GetCycleResult(ctx context.Context, workflowID string) (*model.CycleResult, error) {
	run := c.temporal.GetWorkflow(ctx, workflowID, "")

	var result model.CycleResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to get workflow result: %w", err)
	}

	return &result, nil
}

// StopWorkflow asks a continuation workflow to stop after its current
// iteration.
func (c *Client) StopWorkflow(ctx context.Context, workflowID string) error {
	return c.temporal.SignalWorkflow(ctx, workflowID, "", workflow.SignalStop, nil)
}

// CancelWorkflow sends a cancellation signal to a workflow.
func (c *Client) CancelWorkflow(ctx context.Context, workflowID string) error {
	return c.temporal.SignalWorkflow(ctx, workflowID, "", workflow.SignalCancel, nil)
}

// WorkflowInfo contains summary information about a workflow.
type WorkflowInfo struct {
	WorkflowID string
	RunID      string
	Status     string
	StartTime  string
}

// ListWorkflows lists refinement workflows matching the given status filter
// with pagination. If limit is 0, all matching workflows are returned.
func (c *Client) ListWorkflows(ctx context.Context, statusFilter string, limit int) ([]WorkflowInfo, error) {
	query := `WorkflowType = "Continuation" OR WorkflowType = "EnhancementCycle"`
	if statusFilter != "" {
		if !validWorkflowStatuses[statusFilter] {
			return nil, fmt.Errorf("invalid status filter: %q (valid: Running, Completed, Failed, Canceled, Terminated, TimedOut)", statusFilter)
		}
		query = fmt.Sprintf(`(%s) AND ExecutionStatus = "%s"`, query, statusFilter)
	}

	var workflows []WorkflowInfo
	var nextPageToken []byte

	for {
		resp, err := c.temporal.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Query:         query,
			NextPageToken: nextPageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}

		for _, wf := range resp.Executions {
			if limit > 0 && len(workflows) >= limit {
				break
			}
			workflows = append(workflows, WorkflowInfo{
				WorkflowID: wf.Execution.WorkflowId,
				RunID:      wf.Execution.RunId,
				Status:     wf.Status.String(),
				StartTime:  wf.StartTime.AsTime().Format("2006-01-02 15:04:05"),
			})
		}

		nextPageToken = resp.NextPageToken
		if len(nextPageToken) == 0 || (limit > 0 && len(workflows) >= limit) {
			break
		}
	}

	return workflows, nil
}

// Standalone functions for one-off CLI operations. These create a client per
// call, which is less efficient but simpler.
//
// Deprecated: For multiple operations, prefer creating a Client with
// NewClient() and reusing it to reduce connection overhead.

// StartContinuation starts a new continuation workflow (standalone version).
func StartContinuation(ctx context.Context, task model.Task) (string, error) {
	c, err := NewClient()
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.StartContinuation(ctx, task)
}

// StartCycle starts a new enhancement cycle workflow (standalone version).
func StartCycle(ctx context.Context, input workflow.CycleInput) (string, error) {
	c, err := NewClient()
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.StartCycle(ctx, input)
}

// GetWorkflowStatus queries the status of a workflow (standalone version).
func GetWorkflowStatus(ctx context.Context, workflowID string) (model.TaskStatus, error) {
	c, err := NewClient()
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.GetWorkflowStatus(ctx, workflowID)
}

// GetIterations queries a workflow for iteration history (standalone version).
func GetIterations(ctx context.Context, workflowID string) ([]model.IterationOutcome, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetIterations(ctx, workflowID)
}

// GetEngineStatus queries decision engine counters (standalone version).
func GetEngineStatus(ctx context.Context, workflowID string) (*model.EngineStatus, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetEngineStatus(ctx, workflowID)
}

// GetContinuationResult waits for a continuation result (standalone version).
func GetContinuationResult(ctx context.Context, workflowID string) (*model.ContinuationResult, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetContinuationResult(ctx, workflowID)
}

// GetCycleResult waits for a cycle result (standalone version).
func GetCycleResult(ctx context.Context, workflowID string) (*model.CycleResult, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetCycleResult(ctx, workflowID)
}

// StopWorkflow signals a workflow to stop (standalone version).
func StopWorkflow(ctx context.Context, workflowID string) error {
	c, err := NewClient()
	if err != nil {
		return err
	}
	defer c.Close()
	return c.StopWorkflow(ctx, workflowID)
}

// CancelWorkflow sends a cancellation signal (standalone version).
func CancelWorkflow(ctx context.Context, workflowID string) error {
	c, err := NewClient()
	if err != nil {
		return err
	}
	defer c.Close()
	return c.CancelWorkflow(ctx, workflowID)
}

// ListWorkflows lists workflows matching the given status filter (standalone version).
func ListWorkflows(ctx context.Context, statusFilter string, limit int) ([]WorkflowInfo, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.ListWorkflows(ctx, statusFilter, limit)
}
