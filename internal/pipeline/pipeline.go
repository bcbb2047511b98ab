// Package pipeline safely materializes accepted enhancements: validate,
// stage, benchmark, scan, then promote with backup and automatic rollback.
// Every execution ends in one of the terminal stages; the production
// artifact is never left partially written.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinkerloft/refinery/internal/artifact"
	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/quality"
)

// Deployment gates. The hard thresholds and the confidence floor must both
// pass for a promotion.
const (
	deployOverallThreshold     = 0.7
	deployPerformanceThreshold = 0.3
	confidenceFloor            = 0.8
)

// Confidence blend weights.
const (
	confidenceOverallWeight     = 0.6
	confidencePerformanceWeight = 0.2
	confidenceSafetyWeight      = 0.2
)

// Pipeline executes enhancements against an artifact store. Promotion is
// exclusive per artifact identity.
type Pipeline struct {
	store  artifact.Store
	bench  Benchmarker
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Pipeline over the given store with the default benchmarker.
func New(store artifact.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:  store,
		bench:  &StructuralBenchmarker{},
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// WithBenchmarker overrides the benchmark stage implementation.
func (p *Pipeline) WithBenchmarker(b Benchmarker) *Pipeline {
	p.bench = b
	return p
}

// artifactLock returns the per-artifact mutex, creating it on first use.
func (p *Pipeline) artifactLock(artifactID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[artifactID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[artifactID] = lock
	}
	return lock
}

// Execute runs the full pipeline for one enhancement. The solution is the
// complete replacement content for the artifact. The returned result always
// carries a terminal stage; errors never escape as panics.
func (p *Pipeline) Execute(ctx context.Context, opportunity model.Opportunity, solution, artifactID, ver string) (result model.ExecutionResult) {
	lock := p.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	backedUp := false
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panicked", "artifact", artifactID, "panic", r)
			result = p.emergencyRollback(artifactID, backedUp, fmt.Sprintf("critical failure: %v", r))
		}
	}()

	result.Version = ver

	// PRE_VALIDATE: cheap fail-fast on the raw solution, before any staging.
	if reason := p.preValidate(opportunity, solution); reason != "" {
		p.logger.Info("enhancement rejected at pre-validation", "artifact", artifactID, "reason", reason)
		return terminal(model.RejectedResult(reason), ver)
	}
	if err := ctx.Err(); err != nil {
		return terminal(model.RejectedResult("execution cancelled"), ver)
	}

	// STAGE: isolated copy, production untouched.
	original, err := p.store.Read(artifactID)
	if err != nil {
		return terminal(model.RejectedResult(fmt.Sprintf("cannot read artifact: %v", err)), ver)
	}
	if err := p.store.Stage(artifactID, solution); err != nil {
		return terminal(model.RejectedResult(fmt.Sprintf("staging failed: %v", err)), ver)
	}
	defer func() {
		if err := p.store.DiscardStaged(artifactID); err != nil {
			p.logger.Warn("failed to discard staged artifact", "artifact", artifactID, "error", err)
		}
	}()
	if err := ctx.Err(); err != nil {
		return terminal(model.RejectedResult("execution cancelled"), ver)
	}

	// VALIDATE_STAGED.
	staged, err := p.store.ReadStaged(artifactID)
	if err != nil {
		return terminal(model.RejectedResult(fmt.Sprintf("cannot read staged artifact: %v", err)), ver)
	}
	validation := ValidateArtifact(staged)
	result.Validation = &validation
	if err := ctx.Err(); err != nil {
		return terminal(model.RejectedResult("execution cancelled"), ver)
	}

	// BENCHMARK.
	benchmark := p.bench.Measure(ctx, original, staged)
	result.Benchmark = &benchmark
	if err := ctx.Err(); err != nil {
		return terminal(model.RejectedResult("execution cancelled"), ver)
	}

	// SECURITY_SCAN.
	_, findings := quality.RiskScan(staged)
	security := model.SecurityScanResult{
		Safe:     !quality.HighRisk(staged),
		Findings: findings,
	}
	result.Security = &security

	// DECIDE: hard gates plus the confidence floor.
	safety := 0.0
	if security.Safe {
		safety = 1
	}
	confidence := confidenceOverallWeight*validation.OverallScore +
		confidencePerformanceWeight*benchmark.PerformanceScore +
		confidenceSafetyWeight*safety
	result.Confidence = confidence

	switch {
	case !security.Safe:
		return withDiagnostics(model.RejectedResult("security scan found high-risk constructs"), result)
	case validation.OverallScore < deployOverallThreshold:
		return withDiagnostics(model.RejectedResult(fmt.Sprintf("staged validation score %.2f below %.2f", validation.OverallScore, deployOverallThreshold)), result)
	case benchmark.PerformanceScore < deployPerformanceThreshold:
		return withDiagnostics(model.RejectedResult(fmt.Sprintf("performance score %.2f below %.2f", benchmark.PerformanceScore, deployPerformanceThreshold)), result)
	case confidence < confidenceFloor:
		return withDiagnostics(model.RejectedResult(fmt.Sprintf("deployment confidence %.2f below %.2f", confidence, confidenceFloor)), result)
	}
	if err := ctx.Err(); err != nil {
		return withDiagnostics(model.RejectedResult("execution cancelled"), result)
	}

	// PROMOTE: backup first, then write. No cancellation checks from here on;
	// the promote/verify pair must run to a terminal state.
	if err := p.store.Backup(artifactID); err != nil {
		return withDiagnostics(model.RejectedResult(fmt.Sprintf("backup failed: %v", err)), result)
	}
	backedUp = true
	if err := p.store.Write(artifactID, staged); err != nil {
		return p.rollback(artifactID, result, fmt.Sprintf("promote write failed: %v", err))
	}

	// POST_VERIFY: reduced validation against the now-production artifact.
	promoted, err := p.store.Read(artifactID)
	if err != nil {
		return p.rollback(artifactID, result, fmt.Sprintf("post-verify read failed: %v", err))
	}
	if !balancedDelimiters(promoted) || strings.TrimSpace(promoted) == "" {
		return p.rollback(artifactID, result, "post-verify failed on promoted artifact")
	}

	result.Success = true
	result.Stage = model.StageDone
	result.FilesCreated = []string{artifactID}
	p.logger.Info("enhancement promoted", "artifact", artifactID, "version", ver, "confidence", confidence)
	return result
}

// preValidate returns a rejection reason, or "" when the raw solution passes.
func (p *Pipeline) preValidate(opportunity model.Opportunity, solution string) string {
	if strings.TrimSpace(solution) == "" {
		return "empty solution"
	}
	if !balancedDelimiters(solution) {
		return "solution has unbalanced delimiters"
	}
	if !importsWellFormed(solution) {
		return "solution has malformed import statements"
	}
	if !quality.Aligned(opportunity.Type, solution) {
		return fmt.Sprintf("solution does not address a %s opportunity", opportunity.Type)
	}
	if quality.HighRisk(solution) {
		return "solution failed the security pre-screen"
	}
	return ""
}

// rollback restores the backup and reports the execution as rolled back. A
// failed restore is the one fatal case: it is logged loudly and surfaced in
// the result, since the artifact may be left modified.
func (p *Pipeline) rollback(artifactID string, diagnostics model.ExecutionResult, reason string) model.ExecutionResult {
	if err := p.store.Restore(artifactID); err != nil {
		p.logger.Error("rollback failed; artifact may be corrupted",
			"artifact", artifactID, "reason", reason, "restore_error", err)
		return withDiagnostics(model.RolledBackResult(fmt.Sprintf("%s; rollback FAILED: %v", reason, err)), diagnostics)
	}
	p.logger.Warn("enhancement rolled back", "artifact", artifactID, "reason", reason)
	return withDiagnostics(model.RolledBackResult(reason), diagnostics)
}

// emergencyRollback handles panics: restore if a backup was taken, then
// report a generic critical failure.
func (p *Pipeline) emergencyRollback(artifactID string, backedUp bool, reason string) model.ExecutionResult {
	if !backedUp {
		return model.RejectedResult(reason)
	}
	return p.rollback(artifactID, model.ExecutionResult{}, reason)
}

// terminal stamps the version onto a terminal result.
func terminal(r model.ExecutionResult, ver string) model.ExecutionResult {
	r.Version = ver
	return r
}

// withDiagnostics carries the collected stage diagnostics onto a terminal
// result.
func withDiagnostics(r, diagnostics model.ExecutionResult) model.ExecutionResult {
	r.Version = diagnostics.Version
	r.Validation = diagnostics.Validation
	r.Benchmark = diagnostics.Benchmark
	r.Security = diagnostics.Security
	r.Confidence = diagnostics.Confidence
	return r
}

// ValidateArtifact runs the four staged-artifact sub-checks and reports
// their mean as the overall score.
func ValidateArtifact(text string) model.StagedValidation {
	v := model.StagedValidation{
		SyntaxValid:     balancedDelimiters(text) && strings.TrimSpace(text) != "",
		ImportsValid:    importsWellFormed(text),
		StructureValid:  hasStructure(text),
		EntryPointValid: hasEntryPoint(text),
	}
	var passed int
	for _, ok := range []bool{v.SyntaxValid, v.ImportsValid, v.StructureValid, v.EntryPointValid} {
		if ok {
			passed++
		}
	}
	v.OverallScore = float64(passed) / 4
	return v
}

// balancedDelimiters checks that parentheses, brackets, and braces pair up.
func balancedDelimiters(text string) bool {
	var round, square, curly int
	for _, r := range text {
		switch r {
		case '(':
			round++
		case ')':
			round--
		case '[':
			square++
		case ']':
			square--
		case '{':
			curly++
		case '}':
			curly--
		}
		if round < 0 || square < 0 || curly < 0 {
			return false
		}
	}
	return round == 0 && square == 0 && curly == 0
}

// importsWellFormed checks that every import-style line names something.
func importsWellFormed(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"import ", "from ", "#include "} {
			if strings.HasPrefix(trimmed, prefix) && strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)) == "" {
				return false
			}
		}
		if trimmed == "import" || trimmed == "from" || trimmed == "#include" {
			return false
		}
	}
	return true
}

// hasStructure checks for recognizable code or document structure.
func hasStructure(text string) bool {
	for _, marker := range []string{"func ", "def ", "class ", "function ", "## ", "# "} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	// Fall back to "more than a couple of non-blank lines".
	var nonBlank int
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			nonBlank++
		}
	}
	return nonBlank >= 3
}

// hasEntryPoint checks for a recognizable entry point or top-level anchor.
func hasEntryPoint(text string) bool {
	for _, marker := range []string{"func main", "def main", "__main__", "export default", "package ", "# "} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return strings.Contains(text, "func ") || strings.Contains(text, "def ") || strings.Contains(text, "class ")
}
