// Package artifact provides local persistent storage for enhancement
// artifacts, with staging and backup areas used by the execution pipeline.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reader reads artifact content by ID.
type Reader interface {
	Read(id string) (string, error)
}

// Writer writes artifact content by ID.
type Writer interface {
	Write(id, content string) error
}

// Store is the full artifact surface the pipeline works against: live
// content, a staging area for candidate solutions, and a backup area for
// rollback.
type Store interface {
	Reader
	Writer
	Stage(id, content string) error
	ReadStaged(id string) (string, error)
	Backup(id string) error
	Restore(id string) error
	DiscardStaged(id string) error
}

const (
	liveDir    = "live"
	stagingDir = "staging"
	backupDir  = "backup"
)

// FSStore keeps artifacts on the local filesystem.
// Layout: {BaseDir}/{live,staging,backup}/{artifact-id}
type FSStore struct {
	baseDir string
}

// NewFSStore creates an FSStore using the given base directory.
func NewFSStore(baseDir string) *FSStore {
	return &FSStore{baseDir: baseDir}
}

// DefaultStore creates an FSStore using ~/.refinery/artifacts.
func DefaultStore() *FSStore {
	home, _ := os.UserHomeDir()
	return NewFSStore(filepath.Join(home, ".refinery", "artifacts"))
}

// BaseDir returns the base directory for this store.
func (s *FSStore) BaseDir() string {
	return s.baseDir
}

// path maps an artifact ID into one of the store areas. IDs are relative
// paths; anything escaping the area is rejected.
func (s *FSStore) path(area, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty artifact ID")
	}
	clean := filepath.Clean(id)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact ID %q escapes the store", id)
	}
	return filepath.Join(s.baseDir, area, clean), nil
}

func (s *FSStore) read(area, id string) (string, error) {
	path, err := s.path(area, id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading artifact %q: %w", id, err)
	}
	return string(data), nil
}

func (s *FSStore) write(area, id, content string) error {
	path, err := s.path(area, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing artifact %q: %w", id, err)
	}
	return nil
}

// Read returns the live content of an artifact.
func (s *FSStore) Read(id string) (string, error) {
	return s.read(liveDir, id)
}

// Write replaces the live content of an artifact.
func (s *FSStore) Write(id, content string) error {
	return s.write(liveDir, id, content)
}

// Stage places a candidate solution in the staging area without touching
// live content.
func (s *FSStore) Stage(id, content string) error {
	return s.write(stagingDir, id, content)
}

// ReadStaged returns the staged candidate for an artifact.
func (s *FSStore) ReadStaged(id string) (string, error) {
	return s.read(stagingDir, id)
}

// DiscardStaged removes a staged candidate. Missing candidates are not an
// error.
func (s *FSStore) DiscardStaged(id string) error {
	path, err := s.path(stagingDir, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding staged artifact %q: %w", id, err)
	}
	return nil
}

// Backup copies the current live content into the backup area, replacing any
// previous backup for the same artifact.
func (s *FSStore) Backup(id string) error {
	content, err := s.Read(id)
	if err != nil {
		return fmt.Errorf("backing up artifact %q: %w", id, err)
	}
	return s.write(backupDir, id, content)
}

// Restore copies the backup content over the live content. It fails if no
// backup exists; the live artifact is left untouched in that case.
func (s *FSStore) Restore(id string) error {
	content, err := s.read(backupDir, id)
	if err != nil {
		return fmt.Errorf("restoring artifact %q: %w", id, err)
	}
	return s.Write(id, content)
}
