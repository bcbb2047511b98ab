package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetLastWorkflow(t *testing.T) {
	t.Setenv("REFINERY_HOME", t.TempDir())

	workflowID := "continuation-task-1234567890"
	require.NoError(t, SaveLastWorkflow(workflowID))

	got, err := GetLastWorkflow()
	require.NoError(t, err)
	assert.Equal(t, workflowID, got)
}

func TestSaveLastWorkflowCreatesStateDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "refinery")
	t.Setenv("REFINERY_HOME", home)

	require.NoError(t, SaveLastWorkflow("cycle-abc123"))

	_, err := os.Stat(filepath.Join(home, lastWorkflowFile))
	require.NoError(t, err)
}

func TestGetLastWorkflowNoFile(t *testing.T) {
	t.Setenv("REFINERY_HOME", t.TempDir())

	_, err := GetLastWorkflow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no previous workflow")
}

func TestGetLastWorkflowEmptyFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("REFINERY_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, lastWorkflowFile), []byte("\n"), 0o600))

	_, err := GetLastWorkflow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestHomeDirFallsBackToUserHome(t *testing.T) {
	t.Setenv("REFINERY_HOME", "")
	t.Setenv("HOME", t.TempDir())

	home, err := homeDir()
	require.NoError(t, err)
	assert.Equal(t, homeDirName, filepath.Base(home))
}
