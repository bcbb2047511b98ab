package discovery

import (
	"regexp"
	"strings"

	"github.com/tinkerloft/refinery/internal/model"
)

// PatternCheck is one data-driven heuristic: a compiled pattern with a fixed,
// hand-calibrated impact/complexity pair. Checks never mutate each other's
// output; each pass concatenates whatever its checks produce.
type PatternCheck struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
	Type        model.OpportunityType
	Impact      float64
	Complexity  float64
}

// PresenceCheck flags a missing capability: if none of the Keywords appear in
// the artifact, the opportunity is emitted.
type PresenceCheck struct {
	Name        string
	Keywords    []string
	Description string
	Type        model.OpportunityType
	Impact      float64
	Complexity  float64
}

// SubstringCheck flags a risky construct by plain substring match.
type SubstringCheck struct {
	Name        string
	Substring   string
	Description string
	Impact      float64
	Complexity  float64
}

// defaultPerformanceCatalog returns the fixed catalog of performance
// anti-pattern checks.
func defaultPerformanceCatalog() []PatternCheck {
	return []PatternCheck{
		{
			Name:        "nested_loops",
			Pattern:     regexp.MustCompile(`(?s)\bfor\b[^\n{]*\{[^{}]*\bfor\b`),
			Description: "Nested loops detected; consider restructuring to reduce quadratic work",
			Type:        model.OpportunityPerformance,
			Impact:      0.7,
			Complexity:  0.5,
		},
		{
			Name:        "string_concat_in_loop",
			Pattern:     regexp.MustCompile(`(?s)\bfor\b[^\n{]*\{[^{}]*\+=\s*"`),
			Description: "String concatenation inside a loop; use a builder/buffer instead",
			Type:        model.OpportunityPerformance,
			Impact:      0.5,
			Complexity:  0.2,
		},
		{
			Name:        "select_star",
			Pattern:     regexp.MustCompile(`(?i)select\s+\*\s+from`),
			Description: "Unbounded SELECT *; fetch only the columns that are used",
			Type:        model.OpportunityPerformance,
			Impact:      0.6,
			Complexity:  0.3,
		},
		{
			Name:        "regex_compile_in_loop",
			Pattern:     regexp.MustCompile(`(?s)\bfor\b[^\n{]*\{[^{}]*(?:regexp\.MustCompile|re\.compile)\(`),
			Description: "Pattern compiled inside a loop; hoist compilation out of the hot path",
			Type:        model.OpportunityPerformance,
			Impact:      0.5,
			Complexity:  0.2,
		},
		{
			Name:        "sleep_polling",
			Pattern:     regexp.MustCompile(`(?s)\bfor\b[^\n{]*\{[^{}]*(?:time\.Sleep|sleep)\(`),
			Description: "Sleep-based polling loop; prefer events, channels, or backoff",
			Type:        model.OpportunityPerformance,
			Impact:      0.4,
			Complexity:  0.4,
		},
		{
			Name:        "sync_io_per_item",
			Pattern:     regexp.MustCompile(`(?s)\bfor\b[^\n{]*\{[^{}]*(?:os\.ReadFile|os\.WriteFile|http\.Get)\(`),
			Description: "Per-item blocking I/O in a loop; batch or parallelize the calls",
			Type:        model.OpportunityPerformance,
			Impact:      0.6,
			Complexity:  0.5,
		},
	}
}

// featureCatalogMinLines gates the missing-capability checklist: artifacts
// below this size are not expected to carry every capability, so the
// presence-absence checks stay silent for them.
const featureCatalogMinLines = 100

// defaultFeatureCatalog returns the fixed missing-capability checklist.
func defaultFeatureCatalog() []PresenceCheck {
	return []PresenceCheck{
		{
			Name:        "missing_error_handling",
			Keywords:    []string{"if err", "try:", "except", "catch", ".catch("},
			Description: "No error handling found; add failure paths for fallible operations",
			Type:        model.OpportunityFeature,
			Impact:      0.7,
			Complexity:  0.4,
		},
		{
			Name:        "missing_logging",
			Keywords:    []string{"log.", "logger", "logging", "slog"},
			Description: "No logging found; add structured logging for observability",
			Type:        model.OpportunityFeature,
			Impact:      0.5,
			Complexity:  0.3,
		},
		{
			Name:        "missing_tests",
			Keywords:    []string{"func Test", "def test_", "it(", "assert"},
			Description: "No test coverage signals found; add unit tests",
			Type:        model.OpportunityFeature,
			Impact:      0.6,
			Complexity:  0.5,
		},
		{
			Name:        "missing_input_validation",
			Keywords:    []string{"validate", "sanitize", "check(", "required"},
			Description: "No input validation found; validate external inputs",
			Type:        model.OpportunityFeature,
			Impact:      0.6,
			Complexity:  0.4,
		},
		{
			Name:        "missing_documentation",
			Keywords:    []string{"// ", "# ", "/*", "\"\"\""},
			Description: "No comments or documentation found; document intent and invariants",
			Type:        model.OpportunityMaintenance,
			Impact:      0.4,
			Complexity:  0.2,
		},
		{
			Name:        "missing_configuration",
			Keywords:    []string{"config", "env", "flag.", "getenv"},
			Description: "No configuration surface found; externalize tunable values",
			Type:        model.OpportunityFeature,
			Impact:      0.4,
			Complexity:  0.3,
		},
	}
}

// defaultSecurityCatalog returns the fixed security anti-pattern substrings.
func defaultSecurityCatalog() []SubstringCheck {
	return []SubstringCheck{
		{
			Name:        "dynamic_eval",
			Substring:   "eval(",
			Description: "Dynamic eval of runtime data; replace with explicit dispatch",
			Impact:      0.9,
			Complexity:  0.4,
		},
		{
			Name:        "dynamic_exec",
			Substring:   "exec(",
			Description: "Dynamic exec of runtime data; replace with explicit dispatch",
			Impact:      0.9,
			Complexity:  0.4,
		},
		{
			Name:        "shell_true",
			Substring:   "shell=True",
			Description: "Subprocess with shell=True; pass an argument vector instead",
			Impact:      0.8,
			Complexity:  0.3,
		},
		{
			Name:        "os_system",
			Substring:   "os.system(",
			Description: "Raw shell invocation; use a structured process API",
			Impact:      0.8,
			Complexity:  0.3,
		},
		{
			Name:        "hardcoded_api_key",
			Substring:   "api_key =",
			Description: "Hard-coded API key; load credentials from the environment",
			Impact:      0.9,
			Complexity:  0.2,
		},
		{
			Name:        "hardcoded_password",
			Substring:   "password =",
			Description: "Hard-coded password; load credentials from a secret store",
			Impact:      0.9,
			Complexity:  0.2,
		},
	}
}

// matchLine returns the 1-based line number of the first match of pattern in
// text, or 0 if the offset cannot be mapped.
func matchLine(text string, loc int) int {
	if loc < 0 || loc > len(text) {
		return 0
	}
	return strings.Count(text[:loc], "\n") + 1
}
