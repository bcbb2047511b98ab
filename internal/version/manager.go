package version

import (
	"fmt"
	"time"

	"github.com/tinkerloft/refinery/internal/model"
)

// History is the journal surface the manager needs. Implemented by
// journal.Store.
type History interface {
	Latest() (*model.EnhancementRecord, error)
	Used(version string) (bool, error)
	RecursiveCount() (int, error)
	Append(record model.EnhancementRecord) error
}

// majorTypes and minorTypes drive the bump classification.
var majorTypes = map[model.OpportunityType]bool{
	model.OpportunityArchitecture:  true,
	model.OpportunitySecurity:      true,
	model.OpportunityAIEnhancement: true,
}

var minorTypes = map[model.OpportunityType]bool{
	model.OpportunityFeature:       true,
	model.OpportunityPerformance:   true,
	model.OpportunityUIEnhancement: true,
}

// Manager computes the next enhancement version and records outcomes.
type Manager struct {
	history History
	now     func() time.Time
}

// NewManager creates a Manager over the given history.
func NewManager(history History) *Manager {
	return &Manager{history: history, now: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// NextVersion computes the next version string for an enhancement of the
// given type and impact level. Recursive-improvement enhancements get a
// pre-release suffix instead of a normal bump. The result is probed against
// the journal until it has never been used.
func (m *Manager) NextVersion(enhancementType model.OpportunityType, impact model.ImpactLevel) (string, error) {
	base := Version{}
	if latest, err := m.history.Latest(); err != nil {
		return "", fmt.Errorf("reading journal head: %w", err)
	} else if latest != nil {
		parsed, err := Parse(latest.Version)
		if err != nil {
			return "", fmt.Errorf("journal head has unparseable version %q: %w", latest.Version, err)
		}
		parsed.Pre = ""
		base = parsed
	}

	var next Version
	if enhancementType == model.OpportunityRecursive {
		prior, err := m.history.RecursiveCount()
		if err != nil {
			return "", fmt.Errorf("counting recursive records: %w", err)
		}
		// Pre-releases sort below their core version, so the suffix goes on
		// the next patch to keep the journal monotonic.
		next = base
		next.Patch++
		next.Pre = fmt.Sprintf("rc%d", prior+1)
	} else {
		switch {
		case majorTypes[enhancementType] || impact == model.ImpactMajor:
			next = Version{Major: base.Major + 1}
		case minorTypes[enhancementType] || impact == model.ImpactMinor:
			next = Version{Major: base.Major, Minor: base.Minor + 1}
		default:
			next = Version{Major: base.Major, Minor: base.Minor, Patch: base.Patch + 1}
		}
	}

	for {
		used, err := m.history.Used(next.String())
		if err != nil {
			return "", fmt.Errorf("probing version %q: %w", next.String(), err)
		}
		if !used {
			return next.String(), nil
		}
		next.Patch++
	}
}

// Record appends an enhancement record to the journal and returns it. A
// record counts as successful only when the assessment accepted the solution
// AND the execution pipeline promoted it; a nil execution means the pipeline
// never ran.
func (m *Manager) Record(ver string, opportunity model.Opportunity, solutionSummary string, assessment model.QualityAssessment, files []string, execution *model.ExecutionResult) (model.EnhancementRecord, error) {
	record := model.EnhancementRecord{
		Version:         ver,
		Timestamp:       m.now().UTC(),
		Opportunity:     opportunity,
		SolutionSummary: solutionSummary,
		Assessment:      assessment,
		FilesGenerated:  files,
		Success:         assessment.Accepted() && execution != nil && execution.Success,
	}
	if err := m.history.Append(record); err != nil {
		return model.EnhancementRecord{}, fmt.Errorf("recording enhancement %s: %w", ver, err)
	}
	return record, nil
}
