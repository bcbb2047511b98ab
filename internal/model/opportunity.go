// Package model contains data models for the Refinery enhancement engine.
package model

import (
	"time"
)

// OpportunityType classifies a discovered enhancement opportunity.
type OpportunityType string

const (
	OpportunityPerformance   OpportunityType = "performance"
	OpportunityFeature       OpportunityType = "feature"
	OpportunityUIEnhancement OpportunityType = "ui_enhancement"
	OpportunityAIEnhancement OpportunityType = "ai_enhancement"
	OpportunityIntegration   OpportunityType = "integration"
	OpportunityCodeQuality   OpportunityType = "code_quality"
	OpportunitySecurity      OpportunityType = "security"
	OpportunityMaintenance   OpportunityType = "maintenance"
	OpportunityArchitecture  OpportunityType = "architecture"
	OpportunityCompound      OpportunityType = "compound"
	OpportunityRecursive     OpportunityType = "recursive_improvement"
)

// OpportunityStatus tracks an opportunity through its lifecycle. Only the
// pipeline stage that currently owns the opportunity may advance it.
type OpportunityStatus string

const (
	OpportunityIdentified OpportunityStatus = "identified"
	OpportunityPlanned    OpportunityStatus = "planned"
	OpportunityInProgress OpportunityStatus = "in_progress"
	OpportunityCompleted  OpportunityStatus = "completed"
	OpportunityFailed     OpportunityStatus = "failed"
)

// Opportunity is a discovered, scored candidate for improving an artifact.
// Everything except Status is immutable after creation; PriorityScore is
// always derived from the impact and complexity scores.
type Opportunity struct {
	ID              string            `json:"id"`
	Type            OpportunityType   `json:"type"`
	Description     string            `json:"description"`
	ImpactScore     float64           `json:"impact_score"`
	ComplexityScore float64           `json:"complexity_score"`
	PriorityScore   float64           `json:"priority_score"`
	FilePath        string            `json:"file_path,omitempty"`
	LineNumbers     []int             `json:"line_numbers,omitempty"`
	Status          OpportunityStatus `json:"status"`
}

// PriorityScore derives the ranking score from impact and complexity.
// Complexity is floored at 0.1 so near-zero complexity does not explode
// the ratio.
func PriorityScore(impact, complexity float64) float64 {
	floor := complexity
	if floor < 0.1 {
		floor = 0.1
	}
	return impact / floor
}

// NewOpportunity creates an Opportunity with a derived priority score and
// identified status.
func NewOpportunity(id string, typ OpportunityType, description string, impact, complexity float64) Opportunity {
	return Opportunity{
		ID:              id,
		Type:            typ,
		Description:     description,
		ImpactScore:     impact,
		ComplexityScore: complexity,
		PriorityScore:   PriorityScore(impact, complexity),
		Status:          OpportunityIdentified,
	}
}

// WithLocation returns a copy of the opportunity with a location hint.
func (o Opportunity) WithLocation(filePath string, lines ...int) Opportunity {
	o.FilePath = filePath
	o.LineNumbers = lines
	return o
}

// WithStatus returns a copy of the opportunity with an advanced status.
func (o Opportunity) WithStatus(status OpportunityStatus) Opportunity {
	o.Status = status
	return o
}

// CompoundComposition is a merged set of two or more opportunities pursued
// as one change. It is derived at selection time and immutable once built.
type CompoundComposition struct {
	Description            string        `json:"description"`
	ComponentOpportunities []Opportunity `json:"component_opportunities"`
	CompoundImpactScore    float64       `json:"compound_impact_score"`
	ComplexityMultiplier   float64       `json:"complexity_multiplier"`
	SynergyPotential       float64       `json:"synergy_potential"`
	ImplementationStrategy string        `json:"implementation_strategy"`
	ExpectedBenefits       []string      `json:"expected_benefits"`
}

// ComponentTypes returns the component opportunity types in component order.
func (c CompoundComposition) ComponentTypes() []OpportunityType {
	types := make([]OpportunityType, 0, len(c.ComponentOpportunities))
	for _, o := range c.ComponentOpportunities {
		types = append(types, o.Type)
	}
	return types
}

// ImpactLevel is the coarse impact classification used for version bumps.
type ImpactLevel string

const (
	ImpactMajor ImpactLevel = "major"
	ImpactMinor ImpactLevel = "minor"
	ImpactPatch ImpactLevel = "patch"
)

// EnhancementRecord is one append-only journal entry for an applied (or
// attempted) enhancement. Records are never edited or deleted.
type EnhancementRecord struct {
	Version         string            `yaml:"version" json:"version"`
	Timestamp       time.Time         `yaml:"timestamp" json:"timestamp"`
	Opportunity     Opportunity       `yaml:"opportunity" json:"opportunity"`
	SolutionSummary string            `yaml:"solution_summary" json:"solution_summary"`
	Assessment      QualityAssessment `yaml:"assessment" json:"assessment"`
	FilesGenerated  []string          `yaml:"files_generated,omitempty" json:"files_generated,omitempty"`
	Success         bool              `yaml:"success" json:"success"`
}

// Helper functions for creating pointer values
func StringPtr(s string) *string {
	return &s
}

func Float64Ptr(f float64) *float64 {
	return &f
}
