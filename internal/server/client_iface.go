package server

import (
	"context"

	rfclient "github.com/tinkerloft/refinery/internal/client"
	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/workflow"
)

// TemporalClient is the interface the server uses to interact with Temporal.
// *client.Client satisfies this interface.
type TemporalClient interface {
	StartContinuation(ctx context.Context, task model.Task) (string, error)
	StartCycle(ctx context.Context, input workflow.CycleInput) (string, error)
	ListWorkflows(ctx context.Context, statusFilter string, limit int) ([]rfclient.WorkflowInfo, error)
	GetWorkflowStatus(ctx context.Context, workflowID string) (model.TaskStatus, error)
	GetIterations(ctx context.Context, workflowID string) ([]model.IterationOutcome, error)
	GetEngineStatus(ctx context.Context, workflowID string) (*model.EngineStatus, error)
	StopWorkflow(ctx context.Context, workflowID string) error
	CancelWorkflow(ctx context.Context, workflowID string) error
	Close()
}
