package activity

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// solutionSchema constrains the frontmatter a generated solution document
// may carry. Validation issues are advisory; the body is still usable.
const solutionSchema = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"files": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	},
	"required": ["summary"]
}`

// SolutionDocument is a parsed solution with its frontmatter extracted.
type SolutionDocument struct {
	Summary string
	Files   []string
	Body    string
	Raw     string
	Issues  []string
}

// ParseSolutionDocument parses a generated solution's frontmatter and
// validates it against the solution schema. Documents without frontmatter
// are accepted; the summary then falls back to the first non-blank line.
func ParseSolutionDocument(raw string) (*SolutionDocument, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("solution document is empty")
	}

	doc := &SolutionDocument{Raw: raw, Body: raw}

	var fm map[string]any
	yamlFormat := frontmatter.NewFormat("---", "---", yaml.Unmarshal)
	body, err := frontmatter.Parse(bytes.NewReader([]byte(raw)), &fm, yamlFormat)
	if err != nil {
		// Malformed frontmatter is advisory: keep the raw document usable.
		doc.Issues = append(doc.Issues, fmt.Sprintf("frontmatter: %v", err))
		doc.Summary = firstLine(raw)
		return doc, nil
	}

	doc.Body = strings.TrimSpace(string(body))
	if doc.Body == "" {
		return nil, errors.New("solution document has no body")
	}

	if fm == nil {
		doc.Summary = firstLine(doc.Body)
		return doc, nil
	}

	if issues := validateSolutionFrontmatter(fm); len(issues) > 0 {
		doc.Issues = append(doc.Issues, issues...)
	}

	if s, ok := fm["summary"].(string); ok {
		doc.Summary = s
	} else {
		doc.Summary = firstLine(doc.Body)
	}
	if files, ok := fm["files"].([]any); ok {
		for _, f := range files {
			if name, ok := f.(string); ok && name != "" {
				doc.Files = append(doc.Files, name)
			}
		}
	}

	return doc, nil
}

// validateSolutionFrontmatter validates frontmatter against the solution
// schema and returns human-readable issues.
func validateSolutionFrontmatter(fm map[string]any) []string {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("solution.json", strings.NewReader(solutionSchema)); err != nil {
		return []string{fmt.Sprintf("schema resource: %v", err)}
	}
	schema, err := compiler.Compile("solution.json")
	if err != nil {
		return []string{fmt.Sprintf("schema compile: %v", err)}
	}

	if err := schema.Validate(fm); err != nil {
		validationErr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return []string{err.Error()}
		}
		var issues []string
		collectValidationIssues(validationErr, &issues)
		return issues
	}
	return nil
}

// collectValidationIssues recursively extracts validation error messages.
func collectValidationIssues(err *jsonschema.ValidationError, issues *[]string) {
	if err.Message != "" {
		path := err.InstanceLocation
		if path == "" {
			path = "/"
		}
		*issues = append(*issues, fmt.Sprintf("%s: %s", path, err.Message))
	}
	for _, cause := range err.Causes {
		collectValidationIssues(cause, issues)
	}
}

// firstLine returns the first non-blank line, trimmed of markdown heading
// markers.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
