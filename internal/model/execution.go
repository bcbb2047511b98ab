package model

// PipelineStage identifies a stage of the enhancement execution pipeline.
type PipelineStage string

const (
	StagePreValidate    PipelineStage = "pre_validate"
	StageStage          PipelineStage = "stage"
	StageValidateStaged PipelineStage = "validate_staged"
	StageBenchmark      PipelineStage = "benchmark"
	StageSecurityScan   PipelineStage = "security_scan"
	StageDecide         PipelineStage = "decide"
	StagePromote        PipelineStage = "promote"
	StagePostVerify     PipelineStage = "post_verify"
	StageDone           PipelineStage = "done"
	StageRejected       PipelineStage = "rejected"
	StageRolledBack     PipelineStage = "rolled_back"
)

// Terminal reports whether the stage is one of the pipeline's defined end
// states.
func (s PipelineStage) Terminal() bool {
	return s == StageDone || s == StageRejected || s == StageRolledBack
}

// StagedValidation is the result of the staged-artifact validation stage.
// OverallScore is the mean of the four boolean sub-checks.
type StagedValidation struct {
	SyntaxValid     bool    `json:"syntax_valid"`
	ImportsValid    bool    `json:"imports_valid"`
	StructureValid  bool    `json:"structure_valid"`
	EntryPointValid bool    `json:"entry_point_valid"`
	OverallScore    float64 `json:"overall_score"`
}

// BenchmarkResult is the cheap performance-regression proxy measurement.
type BenchmarkResult struct {
	PerformanceScore float64 `json:"performance_score"`
	Measured         bool    `json:"measured"`
	ElapsedMillis    float64 `json:"elapsed_millis,omitempty"`
}

// SecurityScanResult is the outcome of the staged-artifact risk scan.
type SecurityScanResult struct {
	Safe     bool     `json:"safe"`
	Findings []string `json:"findings,omitempty"`
}

// ExecutionResult is the terminal outcome of one pipeline execution.
type ExecutionResult struct {
	Success      bool                `json:"success"`
	Stage        PipelineStage       `json:"stage"`
	Version      string              `json:"version,omitempty"`
	FilesCreated []string            `json:"files_created,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	Validation   *StagedValidation   `json:"validation,omitempty"`
	Benchmark    *BenchmarkResult    `json:"benchmark,omitempty"`
	Security     *SecurityScanResult `json:"security,omitempty"`
	Confidence   float64             `json:"confidence,omitempty"`
}

// RejectedResult builds a terminal rejection with a reason.
func RejectedResult(reason string) ExecutionResult {
	return ExecutionResult{
		Success:      false,
		Stage:        StageRejected,
		ErrorMessage: StringPtr(reason),
	}
}

// RolledBackResult builds a terminal rollback outcome with a reason.
func RolledBackResult(reason string) ExecutionResult {
	return ExecutionResult{
		Success:      false,
		Stage:        StageRolledBack,
		ErrorMessage: StringPtr(reason),
	}
}

// TaskStatus represents the status of a continuation task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusEvaluating TaskStatus = "evaluating"
	TaskStatusContinuing TaskStatus = "continuing"
	TaskStatusExecuting  TaskStatus = "executing"
	TaskStatusStopped    TaskStatus = "stopped"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task is the input for the Continuation workflow: one user task whose
// response is iteratively refined.
type Task struct {
	ID              string  `json:"id"`
	TaskType        string  `json:"task_type,omitempty"`
	OriginalPrompt  string  `json:"original_prompt"`
	InitialResponse string  `json:"initial_response,omitempty"`
	ArtifactPath    string  `json:"artifact_path,omitempty"`
	MaxIterations   int     `json:"max_iterations"`
	ModelType       string  `json:"model_type,omitempty"`
	AutoPromote     bool    `json:"auto_promote"`
	TimeoutMinutes  int     `json:"timeout_minutes"`
	SlackChannel    *string `json:"slack_channel,omitempty"`
	Requester       *string `json:"requester,omitempty"`
}

// GetTimeoutMinutes returns the task timeout with a sane default.
func (t Task) GetTimeoutMinutes() int {
	if t.TimeoutMinutes <= 0 {
		return 30
	}
	return t.TimeoutMinutes
}

// GetMaxIterations returns the iteration cap with a sane default.
func (t Task) GetMaxIterations() int {
	if t.MaxIterations <= 0 {
		return 5
	}
	return t.MaxIterations
}

// IterationOutcome summarizes one completed continuation iteration.
type IterationOutcome struct {
	Iteration        int              `json:"iteration"`
	ContinuationType ContinuationType `json:"continuation_type"`
	Confidence       float64          `json:"confidence"`
	ResponseChars    int              `json:"response_chars"`
	QualityDelta     float64          `json:"quality_delta"`
}

// ContinuationResult is the final result of the Continuation workflow.
type ContinuationResult struct {
	TaskID          string             `json:"task_id"`
	Status          TaskStatus         `json:"status"`
	FinalResponse   string             `json:"final_response"`
	Iterations      []IterationOutcome `json:"iterations"`
	StopReason      string             `json:"stop_reason"`
	Error           *string            `json:"error,omitempty"`
	DurationSeconds *float64           `json:"duration_seconds,omitempty"`
	Cycle           *CycleResult       `json:"cycle,omitempty"`
}

// CycleStatus represents the status of an enhancement cycle workflow.
type CycleStatus string

const (
	CycleStatusPending     CycleStatus = "pending"
	CycleStatusDiscovering CycleStatus = "discovering"
	CycleStatusGenerating  CycleStatus = "generating"
	CycleStatusAssessing   CycleStatus = "assessing"
	CycleStatusExecuting   CycleStatus = "executing"
	CycleStatusCompleted   CycleStatus = "completed"
	CycleStatusFailed      CycleStatus = "failed"
	CycleStatusCancelled   CycleStatus = "cancelled"
)

// CycleResult is the final result of one EnhancementCycle workflow.
type CycleResult struct {
	TaskID          string             `json:"task_id"`
	Status          CycleStatus        `json:"status"`
	Version         string             `json:"version,omitempty"`
	Opportunity     *Opportunity       `json:"opportunity,omitempty"`
	Assessment      *QualityAssessment `json:"assessment,omitempty"`
	Execution       *ExecutionResult   `json:"execution,omitempty"`
	ImpactScore     *float64           `json:"impact_score,omitempty"`
	Error           *string            `json:"error,omitempty"`
	DurationSeconds *float64           `json:"duration_seconds,omitempty"`
}
