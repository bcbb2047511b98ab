// Package codemetrics takes cheap structural snapshots of artifacts and
// measures the impact of an applied enhancement against a stored baseline.
package codemetrics

import (
	"regexp"
	"strings"
	"sync"

	"github.com/tinkerloft/refinery/internal/model"
)

// Snapshot is one structural measurement of an artifact.
type Snapshot struct {
	SizeBytes            int     `json:"size_bytes"`
	LinesOfCode          int     `json:"lines_of_code"`
	FunctionCount        int     `json:"function_count"`
	ClassCount           int     `json:"class_count"`
	ImportCount          int     `json:"import_count"`
	CommentRatio         float64 `json:"comment_ratio"`
	ComplexityIndicators int     `json:"complexity_indicators"`
}

// Classification labels one metric delta.
type Classification string

const (
	Improvement Classification = "improvement"
	Regression  Classification = "regression"
	Neutral     Classification = "neutral"
)

// MetricDelta is the per-metric comparison against the baseline.
type MetricDelta struct {
	Baseline       float64        `json:"baseline"`
	Current        float64        `json:"current"`
	DeltaPercent   float64        `json:"delta_percent"`
	Classification Classification `json:"classification"`
}

// ImpactReport is the outcome of measuring one enhancement.
type ImpactReport struct {
	ArtifactID         string                 `json:"artifact_id"`
	Version            string                 `json:"version"`
	OpportunityID      string                 `json:"opportunity_id"`
	Deltas             map[string]MetricDelta `json:"deltas"`
	OverallImpactScore float64                `json:"overall_impact_score"`
}

// polarity maps each metric to the direction in which rising values are an
// improvement: +1 rising is good, -1 rising is bad, 0 neutral either way.
var polarity = map[string]int{
	"size_bytes":            0,
	"lines_of_code":         0,
	"function_count":        1,
	"class_count":           1,
	"import_count":          0,
	"comment_ratio":         1,
	"complexity_indicators": -1,
}

// neutralBandPercent: deltas smaller than this are classified neutral.
const neutralBandPercent = 5.0

var (
	functionRE   = regexp.MustCompile(`(?m)^\s*(?:func |def |function |fn )`)
	classRE      = regexp.MustCompile(`(?m)^\s*(?:class |type \w+ struct)`)
	importRE     = regexp.MustCompile(`(?m)^\s*(?:import |from \w+ import |#include |require\()`)
	complexityRE = regexp.MustCompile(`\b(?:if|for|while|case|elif|switch|catch|except)\b`)
)

// Tracker stores baselines per artifact identity. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	baselines map[string]Snapshot
}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{baselines: make(map[string]Snapshot)}
}

// Measure computes a snapshot of the artifact text.
func Measure(text string) Snapshot {
	lines := strings.Split(text, "\n")

	var loc, comments int
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		loc++
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "*") {
			comments++
		}
	}

	ratio := 0.0
	if loc > 0 {
		ratio = float64(comments) / float64(loc)
	}

	return Snapshot{
		SizeBytes:            len(text),
		LinesOfCode:          loc,
		FunctionCount:        len(functionRE.FindAllString(text, -1)),
		ClassCount:           len(classRE.FindAllString(text, -1)),
		ImportCount:          len(importRE.FindAllString(text, -1)),
		CommentRatio:         ratio,
		ComplexityIndicators: len(complexityRE.FindAllString(text, -1)),
	}
}

// Baseline snapshots the artifact and stores it as the comparison point for
// later impact measurements.
func (t *Tracker) Baseline(artifactID, text string) Snapshot {
	snap := Measure(text)
	t.mu.Lock()
	t.baselines[artifactID] = snap
	t.mu.Unlock()
	return snap
}

// MeasureImpact recomputes the snapshot for the enhanced artifact and
// compares it against the stored baseline. Without a stored baseline the
// current snapshot doubles as the baseline and every delta is neutral.
func (t *Tracker) MeasureImpact(artifactID, ver string, opportunity model.Opportunity, enhancedText string) ImpactReport {
	current := Measure(enhancedText)

	t.mu.Lock()
	baseline, ok := t.baselines[artifactID]
	t.mu.Unlock()
	if !ok {
		baseline = current
	}

	deltas := map[string]MetricDelta{
		"size_bytes":            delta(float64(baseline.SizeBytes), float64(current.SizeBytes)),
		"lines_of_code":         delta(float64(baseline.LinesOfCode), float64(current.LinesOfCode)),
		"function_count":        delta(float64(baseline.FunctionCount), float64(current.FunctionCount)),
		"class_count":           delta(float64(baseline.ClassCount), float64(current.ClassCount)),
		"import_count":          delta(float64(baseline.ImportCount), float64(current.ImportCount)),
		"comment_ratio":         delta(baseline.CommentRatio, current.CommentRatio),
		"complexity_indicators": delta(float64(baseline.ComplexityIndicators), float64(current.ComplexityIndicators)),
	}

	var improvements, regressions float64
	for name, d := range deltas {
		d.Classification = classify(name, d.DeltaPercent)
		deltas[name] = d
		switch d.Classification {
		case Improvement:
			improvements += weight(d.DeltaPercent)
		case Regression:
			regressions += weight(d.DeltaPercent)
		}
	}

	return ImpactReport{
		ArtifactID:         artifactID,
		Version:            ver,
		OpportunityID:      opportunity.ID,
		Deltas:             deltas,
		OverallImpactScore: model.Clamp01(0.5 + improvements - regressions),
	}
}

func delta(baseline, current float64) MetricDelta {
	d := MetricDelta{Baseline: baseline, Current: current}
	switch {
	case baseline != 0:
		d.DeltaPercent = (current - baseline) / baseline * 100
	case current != 0:
		d.DeltaPercent = 100
	}
	return d
}

// classify applies the polarity table inside a neutral tolerance band.
func classify(name string, deltaPercent float64) Classification {
	pol := polarity[name]
	if pol == 0 || deltaPercent > -neutralBandPercent && deltaPercent < neutralBandPercent {
		return Neutral
	}
	rising := deltaPercent > 0
	if (rising && pol > 0) || (!rising && pol < 0) {
		return Improvement
	}
	return Regression
}

// weight scales a delta's contribution: 50% change saturates at 0.1.
func weight(deltaPercent float64) float64 {
	mag := deltaPercent
	if mag < 0 {
		mag = -mag
	}
	if mag > 50 {
		mag = 50
	}
	return 0.1 * mag / 50
}
