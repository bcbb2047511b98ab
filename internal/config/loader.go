// Package config provides configuration loading utilities.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinkerloft/refinery/internal/model"
)

// SupportedVersions lists all schema versions supported by this loader.
var SupportedVersions = []int{1}

// versionHeader is used to extract just the version from YAML.
type versionHeader struct {
	Version *int `yaml:"version"`
}

// validModelTypes are the accepted model tier names. Empty means the
// generator's default.
var validModelTypes = map[string]bool{
	"":       true,
	"haiku":  true,
	"sonnet": true,
	"opus":   true,
}

// LoadTask loads a Task from YAML data with schema version validation.
func LoadTask(data []byte) (*model.Task, error) {
	var header versionHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	if header.Version == nil {
		return nil, errors.New("version field is required")
	}

	switch *header.Version {
	case 1:
		return loadTaskV1(data)
	default:
		return nil, fmt.Errorf("unsupported schema version: %d (supported: %v)", *header.Version, SupportedVersions)
	}
}

// LoadTaskFile loads a Task from a YAML file path.
func LoadTaskFile(path string) (*model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadTask(data)
}

// taskV1 is the internal representation for schema version 1.
type taskV1 struct {
	Version         int    `yaml:"version"`
	ID              string `yaml:"id"`
	TaskType        string `yaml:"task_type,omitempty"`
	Prompt          string `yaml:"prompt"`
	InitialResponse string `yaml:"initial_response,omitempty"`
	Artifact        string `yaml:"artifact,omitempty"`
	MaxIterations   int    `yaml:"max_iterations,omitempty"`
	Model           string `yaml:"model,omitempty"`
	AutoPromote     *bool  `yaml:"auto_promote,omitempty"`
	TimeoutMinutes  int    `yaml:"timeout_minutes,omitempty"`
	SlackChannel    string `yaml:"slack_channel,omitempty"`
	Requester       string `yaml:"requester,omitempty"`
}

// loadTaskV1 loads a version 1 task from YAML data.
func loadTaskV1(data []byte) (*model.Task, error) {
	var tv1 taskV1
	if err := yaml.Unmarshal(data, &tv1); err != nil {
		return nil, fmt.Errorf("failed to parse task v1: %w", err)
	}

	if tv1.ID == "" {
		return nil, errors.New("id field is required")
	}
	if tv1.Prompt == "" {
		return nil, errors.New("prompt field is required")
	}
	if tv1.MaxIterations < 0 {
		return nil, errors.New("max_iterations cannot be negative")
	}
	if tv1.TimeoutMinutes < 0 {
		return nil, errors.New("timeout_minutes cannot be negative")
	}
	if !validModelTypes[tv1.Model] {
		return nil, fmt.Errorf("unknown model type %q (supported: haiku, sonnet, opus)", tv1.Model)
	}

	task := &model.Task{
		ID:              tv1.ID,
		TaskType:        tv1.TaskType,
		OriginalPrompt:  tv1.Prompt,
		InitialResponse: tv1.InitialResponse,
		ArtifactPath:    tv1.Artifact,
		MaxIterations:   tv1.MaxIterations,
		ModelType:       tv1.Model,
		TimeoutMinutes:  tv1.TimeoutMinutes,
	}

	// Auto-promotion defaults to off: promoting an artifact without a human
	// in the loop is opt-in.
	if tv1.AutoPromote != nil {
		task.AutoPromote = *tv1.AutoPromote
	}

	if tv1.SlackChannel != "" {
		task.SlackChannel = &tv1.SlackChannel
	}
	if tv1.Requester != "" {
		task.Requester = &tv1.Requester
	}

	return task, nil
}
