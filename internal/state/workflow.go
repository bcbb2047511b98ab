// Package state persists the CLI's per-user bookkeeping under the refinery
// home directory. Today that is just the ID of the most recently started
// workflow, so follow-up commands can omit --workflow-id.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	homeDirName      = ".refinery"
	lastWorkflowFile = "last-workflow"
)

// homeDir resolves the refinery state directory. REFINERY_HOME overrides
// the default of ~/.refinery, matching the worker's layout.
func homeDir() (string, error) {
	if home := os.Getenv("REFINERY_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(userHome, homeDirName), nil
}

func lastWorkflowPath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, lastWorkflowFile), nil
}

// SaveLastWorkflow remembers workflowID as the most recently started
// workflow.
func SaveLastWorkflow(workflowID string) error {
	path, err := lastWorkflowPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(workflowID+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving last workflow: %w", err)
	}
	return nil
}

// GetLastWorkflow returns the most recently saved workflow ID.
func GetLastWorkflow() (string, error) {
	path, err := lastWorkflowPath()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("no previous workflow found")
	}
	if err != nil {
		return "", fmt.Errorf("reading last workflow: %w", err)
	}

	workflowID := strings.TrimSpace(string(data))
	if workflowID == "" {
		return "", errors.New("last workflow file is empty")
	}
	return workflowID, nil
}
