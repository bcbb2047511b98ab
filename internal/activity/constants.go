// Package activity contains Temporal activity implementations.
package activity

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Activity name constants to prevent typos and improve maintainability.
const (
	// Opportunity activities
	ActivityDiscoverOpportunities = "DiscoverOpportunities"
	ActivityComposeOpportunities  = "ComposeOpportunities"

	// Generation and assessment activities
	ActivityGenerateSolution = "GenerateSolution"
	ActivityAssessSolution   = "AssessSolution"

	// Versioning activities
	ActivityNextVersion       = "NextVersion"
	ActivityRecordEnhancement = "RecordEnhancement"

	// Execution activities
	ActivityExecuteEnhancement = "ExecuteEnhancement"
	ActivityMeasureImpact      = "MeasureImpact"

	// Continuation activities
	ActivityDecideContinuation       = "DecideContinuation"
	ActivityGenerateContinuation     = "GenerateContinuation"
	ActivityRecordContinuationResult = "RecordContinuationResult"

	// Slack activities
	ActivityNotifySlack = "NotifySlack"

	// Status activities
	ActivityEngineStatus = "EngineStatus"
)

// Default configuration values.
const (
	DefaultTimeoutMinutes   = 30
	DefaultMaxIterations    = 5
	DefaultGenerationModel  = "sonnet"
	DefaultArtifactID       = "solution.md"
	DefaultHomeDirName      = ".refinery"
	DefaultJournalDirName   = "journal"
	DefaultArtifactsDirName = "artifacts"
)

// ConfigValidationMode controls how configuration validation behaves.
type ConfigValidationMode int

const (
	// ConfigModeWarn logs warnings for missing configuration but allows startup.
	ConfigModeWarn ConfigValidationMode = iota
	// ConfigModeRequire returns an error if required configuration is missing.
	ConfigModeRequire
)

// ConfigIssue represents a configuration problem found during validation.
type ConfigIssue struct {
	Name        string // Environment variable or config name
	Description string // What the issue is
	Required    bool   // Whether this is required for production
}

// ValidateConfig checks that required configuration is present.
// Returns a list of configuration issues found.
func ValidateConfig() []ConfigIssue {
	var issues []ConfigIssue

	// Anthropic API key
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		issues = append(issues, ConfigIssue{
			Name:        "ANTHROPIC_API_KEY",
			Description: "Required for solution and continuation generation",
			Required:    true,
		})
	}

	// Slack token
	if os.Getenv("SLACK_BOT_TOKEN") == "" {
		issues = append(issues, ConfigIssue{
			Name:        "SLACK_BOT_TOKEN",
			Description: "Slack notifications will be skipped",
			Required:    false,
		})
	}

	// Home directory override
	if os.Getenv("REFINERY_HOME") == "" {
		issues = append(issues, ConfigIssue{
			Name:        "REFINERY_HOME",
			Description: "Journal and artifact state will live under ~/" + DefaultHomeDirName,
			Required:    false,
		})
	}

	return issues
}

// CheckConfig validates configuration and handles issues according to the mode.
// In ConfigModeWarn, it logs warnings and returns nil.
// In ConfigModeRequire, it returns an error if any required config is missing.
func CheckConfig(mode ConfigValidationMode) error {
	issues := ValidateConfig()
	if len(issues) == 0 {
		return nil
	}

	var requiredMissing []string
	for _, issue := range issues {
		if issue.Required {
			requiredMissing = append(requiredMissing, issue.Name)
		}
		log.Printf("CONFIG WARNING: %s not set - %s", issue.Name, issue.Description)
	}

	if mode == ConfigModeRequire && len(requiredMissing) > 0 {
		return fmt.Errorf("required configuration missing: %s (set REQUIRE_CONFIG=false to run with warnings only)",
			strings.Join(requiredMissing, ", "))
	}

	return nil
}
