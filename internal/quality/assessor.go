// Package quality scores generated solutions against the opportunity they
// claim to address. Assessment is deterministic: the same opportunity and
// solution text always produce the same result.
package quality

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinkerloft/refinery/internal/model"
)

// Sub-scorer weights inside the quality composite.
const (
	comprehensivenessWeight = 0.25
	indicatorWeight         = 0.35
	bestPracticeWeight      = 0.25
	innovationWeight        = 0.15
)

// Risk weights per matched construct.
const (
	highRiskWeight     = 0.4
	moderateRiskWeight = 0.15
)

// codeQualityIndicators are structural signals of well-formed code.
var codeQualityIndicators = []string{
	"func ", "def ", "class ", "return", "if err", "try", "except", "catch",
	"interface", "struct ",
}

// bestPracticeKeywords are signals of production-minded solutions.
var bestPracticeKeywords = []string{
	"logging", "log.", "validate", "test", "config", "context", "timeout",
	"defer", "const", "error",
}

// innovationKeywords are signals of non-trivial improvement work.
var innovationKeywords = []string{
	"cache", "concurrent", "parallel", "async", "optimiz", "algorithm",
	"heuristic", "adaptive", "incremental",
}

// highRiskConstructs force a large risk contribution each.
var highRiskConstructs = []string{
	"eval(", "exec(", "__import__", "os.system(", "subprocess", "shell=True",
}

// moderateRiskConstructs contribute smaller risk weight each.
var moderateRiskConstructs = []string{
	"threading", "global ", "del ", "unsafe", "monkeypatch",
}

// alignmentKeywords map each opportunity type to content signals that the
// solution actually addresses it.
var alignmentKeywords = map[model.OpportunityType][]string{
	model.OpportunityPerformance:   {"cache", "optimiz", "concurren", "batch", "index", "pool", "efficient"},
	model.OpportunityFeature:       {"add", "implement", "support", "handle", "new"},
	model.OpportunityUIEnhancement: {"render", "display", "style", "layout", "interface"},
	model.OpportunityAIEnhancement: {"model", "prompt", "inference", "embedding", "llm"},
	model.OpportunityIntegration:   {"api", "client", "endpoint", "webhook", "connect"},
	model.OpportunityCodeQuality:   {"refactor", "extract", "simplif", "rename", "split", "helper"},
	model.OpportunitySecurity:      {"sanitize", "validate", "escape", "secret", "environment", "credential"},
	model.OpportunityMaintenance:   {"document", "comment", "clean", "update"},
	model.OpportunityArchitecture:  {"module", "interface", "layer", "boundary", "decouple"},
}

// Assessor scores solutions. It holds no mutable state.
type Assessor struct {
	logger *slog.Logger
}

// NewAssessor creates an Assessor.
func NewAssessor(logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{logger: logger}
}

// Assess scores solutionText against the opportunity. Internal panics are
// logged and converted into a reject verdict.
func (a *Assessor) Assess(opportunity model.Opportunity, solutionText string) (assessment model.QualityAssessment) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("quality assessment panicked", "opportunity", opportunity.ID, "panic", r)
			assessment = model.NewQualityAssessment(0, 0, 1, []string{"internal assessment failure"})
		}
	}()

	if strings.TrimSpace(solutionText) == "" {
		return model.NewQualityAssessment(0, 0, 0, []string{"empty solution"})
	}

	var reasons []string
	quality := a.qualityComposite(solutionText)
	viability := a.viability(opportunity, solutionText, &reasons)
	risk := a.risk(solutionText, &reasons)

	return model.NewQualityAssessment(quality, viability, risk, reasons)
}

// qualityComposite blends the four additive sub-scorers, each capped at 1.
func (a *Assessor) qualityComposite(text string) float64 {
	lower := strings.ToLower(text)
	lines := strings.Split(text, "\n")

	comprehensiveness := a.comprehensiveness(lines)
	indicators := keywordCoverage(lower, codeQualityIndicators)
	practices := keywordCoverage(lower, bestPracticeKeywords)
	innovation := keywordCoverage(lower, innovationKeywords)

	return comprehensivenessWeight*comprehensiveness +
		indicatorWeight*indicators +
		bestPracticeWeight*practices +
		innovationWeight*innovation
}

// comprehensiveness rewards length, multi-section structure, and comments.
func (a *Assessor) comprehensiveness(lines []string) float64 {
	var blank, comments int
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			blank++
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, "*"):
			comments++
		}
	}
	sections := blank + 1

	score := 0.4*ratioCap(len(lines), 50) +
		0.3*ratioCap(sections, 4) +
		0.3*ratioCap(comments, 5)
	return model.Clamp01(score)
}

// viability checks type alignment, length proportionality, and dependency
// declarations, returning their mean.
func (a *Assessor) viability(opportunity model.Opportunity, text string, reasons *[]string) float64 {
	lower := strings.ToLower(text)

	alignment := 0.3
	keywords, known := alignmentKeywords[opportunity.Type]
	if !known {
		alignment = 0.6
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			alignment = 1
			break
		}
	}
	if alignment < 1 && known {
		*reasons = append(*reasons, fmt.Sprintf("solution content does not clearly address %s", opportunity.Type))
	}

	// A complex opportunity deserves a proportionally substantial solution.
	lines := len(strings.Split(text, "\n"))
	expected := 10 + int(80*opportunity.ComplexityScore)
	proportionality := 1.0
	if lines < expected {
		proportionality = float64(lines) / float64(expected)
		if proportionality < 0.5 {
			*reasons = append(*reasons, "solution looks too short for the declared complexity")
		}
	}

	imports := 0.5
	for _, marker := range []string{"import ", "import(", "require(", "#include", "from "} {
		if strings.Contains(text, marker) {
			imports = 1
			break
		}
	}

	return (alignment + proportionality + imports) / 3
}

// risk sums the weighted risk-construct matches, clamped to [0, 1].
func (a *Assessor) risk(text string, reasons *[]string) float64 {
	risk, findings := RiskScan(text)
	*reasons = append(*reasons, findings...)
	return risk
}

// RiskScan applies the risk-construct tables to arbitrary text. It is shared
// with the execution pipeline's security stages.
func RiskScan(text string) (risk float64, findings []string) {
	for _, construct := range highRiskConstructs {
		if strings.Contains(text, construct) {
			risk += highRiskWeight
			findings = append(findings, fmt.Sprintf("high-risk construct %q present", construct))
		}
	}
	for _, construct := range moderateRiskConstructs {
		if strings.Contains(text, construct) {
			risk += moderateRiskWeight
			findings = append(findings, fmt.Sprintf("moderate-risk construct %q present", construct))
		}
	}
	return model.Clamp01(risk), findings
}

// HighRisk reports whether the text contains any high-weight risk construct.
func HighRisk(text string) bool {
	for _, construct := range highRiskConstructs {
		if strings.Contains(text, construct) {
			return true
		}
	}
	return false
}

// Aligned reports whether the text plausibly addresses the given opportunity
// type. Types without an alignment catalog are not penalized.
func Aligned(typ model.OpportunityType, text string) bool {
	keywords, known := alignmentKeywords[typ]
	if !known {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// keywordCoverage returns the fraction of keywords present, capped so that a
// third of the catalog already scores full marks.
func keywordCoverage(lower string, keywords []string) float64 {
	var hits int
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return ratioCap(hits, (len(keywords)+2)/3)
}

// ratioCap returns min(n/denom, 1).
func ratioCap(n, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	v := float64(n) / float64(denom)
	if v > 1 {
		return 1
	}
	return v
}
