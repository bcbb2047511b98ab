package discovery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tinkerloft/refinery/internal/model"
)

// Thresholds for the structural pass. Hand-calibrated like the catalogs.
const (
	longBlockLines    = 50
	maxNestingDepth   = 4
	dupWindowLines    = 5
	dupMinWindowChars = 50
)

// Scores for structural findings. The long-block pair is contractual: a body
// over 50 lines yields impact 0.6, complexity 0.4, priority 1.5.
const (
	longBlockImpact     = 0.6
	longBlockComplexity = 0.4
	dupImpact           = 0.5
	dupComplexity       = 0.35
	nestingImpact       = 0.5
	nestingComplexity   = 0.45
)

// blockStartRE matches the start of a function or class in the languages the
// engine is expected to see. Purely heuristic; no parsing.
var blockStartRE = regexp.MustCompile(`^\s*(func\s|def\s|function\s|class\s|fn\s|public\s+\w+\s+\w+\s*\()`)

// nestingKeywordRE matches control-flow keywords that open a nesting level.
var nestingKeywordRE = regexp.MustCompile(`^\s*(if|for|while|switch|select|try|with|elif|else)\b`)

// namedBlock is a detected function/class span within the artifact.
type namedBlock struct {
	name      string
	startLine int // 1-based
	bodyLines int
}

// findBlocks locates function/class blocks by scanning for block-start lines.
// A block runs until the next block start or end of artifact.
func findBlocks(lines []string) []namedBlock {
	var blocks []namedBlock
	var starts []int
	for i, line := range lines {
		if blockStartRE.MatchString(line) {
			starts = append(starts, i)
		}
	}
	for idx, start := range starts {
		end := len(lines)
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		body := end - start - 1
		name := strings.TrimSpace(lines[start])
		if len(name) > 60 {
			name = name[:60]
		}
		blocks = append(blocks, namedBlock{name: name, startLine: start + 1, bodyLines: body})
	}
	return blocks
}

// checkLongBlocks emits a code_quality opportunity for every function/class
// whose body exceeds longBlockLines.
func (e *Engine) checkLongBlocks(lines []string, fileID string) []model.Opportunity {
	var out []model.Opportunity
	for _, b := range findBlocks(lines) {
		if b.bodyLines <= longBlockLines {
			continue
		}
		desc := fmt.Sprintf("Block %q spans %d lines; split it into focused helpers", b.name, b.bodyLines)
		op := model.NewOpportunity(e.nextID(), model.OpportunityCodeQuality, desc, longBlockImpact, longBlockComplexity)
		out = append(out, op.WithLocation(fileID, b.startLine))
	}
	return out
}

// checkDuplicateBlocks slides a dupWindowLines window over the
// whitespace-normalized artifact and reports windows that occur more than
// once. Windows shorter than dupMinWindowChars are ignored.
func (e *Engine) checkDuplicateBlocks(lines []string, fileID string) []model.Opportunity {
	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = strings.Join(strings.Fields(line), " ")
	}

	firstSeen := make(map[string]int)  // window content -> first start line (1-based)
	reported := make(map[string]bool)

	var out []model.Opportunity
	for i := 0; i+dupWindowLines <= len(normalized); i++ {
		window := strings.Join(normalized[i:i+dupWindowLines], "\n")
		if len(window) < dupMinWindowChars {
			continue
		}
		first, seen := firstSeen[window]
		if !seen {
			firstSeen[window] = i + 1
			continue
		}
		if reported[window] || i+1 < first+dupWindowLines {
			// already reported, or overlapping the original occurrence
			continue
		}
		reported[window] = true
		desc := fmt.Sprintf("Duplicated %d-line block (lines %d and %d); extract a shared helper", dupWindowLines, first, i+1)
		op := model.NewOpportunity(e.nextID(), model.OpportunityCodeQuality, desc, dupImpact, dupComplexity)
		out = append(out, op.WithLocation(fileID, first, i+1))
	}
	return out
}

// estimateNestingDepth estimates the maximum nesting depth using a
// keyword-and-brace heuristic: braces adjust depth directly, and
// indentation under control-flow keywords approximates brace-less languages.
func estimateNestingDepth(lines []string) int {
	depth, maxDepth := 0, 0
	sawBraces := false
	for _, line := range lines {
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		if opens > 0 || closes > 0 {
			sawBraces = true
		}
		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	if sawBraces {
		return maxDepth
	}

	// Indentation fallback for brace-less artifacts: count leading indent
	// units on control-flow lines.
	for _, line := range lines {
		if !nestingKeywordRE.MatchString(line) {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		units := indent / 4
		if strings.HasPrefix(line, "\t") {
			units = strings.Count(line, "\t")
		}
		if units+1 > maxDepth {
			maxDepth = units + 1
		}
	}
	return maxDepth
}

// checkNestingDepth flags artifacts whose estimated nesting depth exceeds
// maxNestingDepth.
func (e *Engine) checkNestingDepth(lines []string, fileID string) []model.Opportunity {
	depth := estimateNestingDepth(lines)
	if depth <= maxNestingDepth {
		return nil
	}
	desc := fmt.Sprintf("Estimated nesting depth %d exceeds %d; flatten with early returns or extracted helpers", depth, maxNestingDepth)
	op := model.NewOpportunity(e.nextID(), model.OpportunityCodeQuality, desc, nestingImpact, nestingComplexity)
	return []model.Opportunity{op.WithLocation(fileID)}
}
