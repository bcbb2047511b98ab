package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/workflow"
)

// TaskSummary is the API representation of a workflow for list responses.
type TaskSummary struct {
	WorkflowID string           `json:"workflow_id"`
	Status     model.TaskStatus `json:"status"`
	StartTime  string           `json:"start_time,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	workflows, err := s.client.ListWorkflows(r.Context(), statusFilter, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tasks := make([]TaskSummary, 0, len(workflows))
	for _, wf := range workflows {
		status, _ := s.client.GetWorkflowStatus(r.Context(), wf.WorkflowID)
		tasks = append(tasks, TaskSummary{
			WorkflowID: wf.WorkflowID,
			Status:     status,
			StartTime:  wf.StartTime,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.client.GetWorkflowStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, TaskSummary{WorkflowID: id, Status: status})
}

func (s *Server) handleGetIterations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	iterations, err := s.client.GetIterations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if iterations == nil {
		iterations = []model.IterationOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"iterations": iterations})
}

func (s *Server) handleGetEngineStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.client.GetEngineStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if task.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if task.OriginalPrompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	workflowID, err := s.client.StartContinuation(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"workflow_id": workflowID})
}

func (s *Server) handleSubmitCycle(w http.ResponseWriter, r *http.Request) {
	var input workflow.CycleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	if input.ArtifactID == "" {
		writeError(w, http.StatusBadRequest, "artifact_id is required")
		return
	}

	workflowID, err := s.client.StartCycle(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"workflow_id": workflowID})
}
