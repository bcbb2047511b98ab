// Package discovery implements the enhancement opportunity discovery engine:
// four independent heuristic analyzer passes over a text/code artifact,
// producing scored opportunities ranked by priority.
package discovery

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/tinkerloft/refinery/internal/artifact"
	"github.com/tinkerloft/refinery/internal/model"
)

// Engine discovers enhancement opportunities in artifacts. The catalogs are
// data; callers may extend them with AddPerformanceCheck and friends before
// first use. Discovery itself is a pure function of the artifact text.
type Engine struct {
	performance []PatternCheck
	features    []PresenceCheck
	security    []SubstringCheck
	logger      *slog.Logger
	seq         atomic.Uint64
}

// NewEngine creates an Engine with the default catalogs.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		performance: defaultPerformanceCatalog(),
		features:    defaultFeatureCatalog(),
		security:    defaultSecurityCatalog(),
		logger:      logger,
	}
}

// AddPerformanceCheck appends a check to the performance catalog.
func (e *Engine) AddPerformanceCheck(c PatternCheck) { e.performance = append(e.performance, c) }

// AddFeatureCheck appends a check to the missing-capability checklist.
func (e *Engine) AddFeatureCheck(c PresenceCheck) { e.features = append(e.features, c) }

// AddSecurityCheck appends a check to the security catalog.
func (e *Engine) AddSecurityCheck(c SubstringCheck) { e.security = append(e.security, c) }

// nextID issues a process-unique opportunity ID.
func (e *Engine) nextID() string {
	return fmt.Sprintf("op-%d", e.seq.Add(1))
}

// Discover runs the four analyzer passes over the artifact text and returns
// the combined opportunities sorted descending by priority score. Ties keep
// discovery order (stable sort). Empty or whitespace-only artifacts yield an
// empty result. Discovery never returns an error to its caller: internal
// panics are logged and converted into an empty result.
func (e *Engine) Discover(artifactText, fileID string) (opportunities []model.Opportunity) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("discovery pass panicked", "file", fileID, "panic", r)
			opportunities = nil
		}
	}()

	if strings.TrimSpace(artifactText) == "" {
		return nil
	}

	lines := strings.Split(artifactText, "\n")

	// Passes run in isolation; outputs are concatenated, never cross-edited.
	opportunities = append(opportunities, e.codeQualityPass(lines, fileID)...)
	opportunities = append(opportunities, e.performancePass(artifactText, fileID)...)
	opportunities = append(opportunities, e.featureGapPass(artifactText, lines, fileID)...)
	opportunities = append(opportunities, e.securityPass(artifactText, fileID)...)

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].PriorityScore > opportunities[j].PriorityScore
	})
	return opportunities
}

// DiscoverArtifact reads the artifact through the given reader and discovers
// opportunities in it. Read failures are logged and yield an empty result.
func (e *Engine) DiscoverArtifact(reader artifact.Reader, id string) []model.Opportunity {
	text, err := reader.Read(id)
	if err != nil {
		e.logger.Error("failed to read artifact for discovery", "artifact", id, "error", err)
		return nil
	}
	return e.Discover(text, id)
}

// codeQualityPass runs the structural checks: long blocks, duplicated blocks,
// nesting depth.
func (e *Engine) codeQualityPass(lines []string, fileID string) []model.Opportunity {
	var out []model.Opportunity
	out = append(out, e.checkLongBlocks(lines, fileID)...)
	out = append(out, e.checkDuplicateBlocks(lines, fileID)...)
	out = append(out, e.checkNestingDepth(lines, fileID)...)
	return out
}

// performancePass applies the performance anti-pattern catalog.
func (e *Engine) performancePass(text, fileID string) []model.Opportunity {
	var out []model.Opportunity
	for _, check := range e.performance {
		loc := check.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		op := model.NewOpportunity(e.nextID(), check.Type, check.Description, check.Impact, check.Complexity)
		out = append(out, op.WithLocation(fileID, matchLine(text, loc[0])))
	}
	return out
}

// featureGapPass applies the missing-capability checklist. Small artifacts
// are exempt: a snippet is not expected to carry logging, tests, and config.
func (e *Engine) featureGapPass(text string, lines []string, fileID string) []model.Opportunity {
	if len(lines) < featureCatalogMinLines {
		return nil
	}
	lower := strings.ToLower(text)
	var out []model.Opportunity
	for _, check := range e.features {
		found := false
		for _, kw := range check.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		op := model.NewOpportunity(e.nextID(), check.Type, check.Description, check.Impact, check.Complexity)
		out = append(out, op.WithLocation(fileID))
	}
	return out
}

// securityPass applies the security substring catalog.
func (e *Engine) securityPass(text, fileID string) []model.Opportunity {
	var out []model.Opportunity
	for _, check := range e.security {
		idx := strings.Index(text, check.Substring)
		if idx < 0 {
			continue
		}
		op := model.NewOpportunity(e.nextID(), model.OpportunitySecurity, check.Description, check.Impact, check.Complexity)
		out = append(out, op.WithLocation(fileID, matchLine(text, idx)))
	}
	return out
}
