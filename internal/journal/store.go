// Package journal provides the append-only enhancement journal on the local
// filesystem. One YAML file per record, keyed by version.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tinkerloft/refinery/internal/model"
	"github.com/tinkerloft/refinery/internal/version"
)

// Store manages enhancement records on the local filesystem.
// Layout: {BaseDir}/v{version}.yaml
type Store struct {
	baseDir string

	// Serializes appends; reads may observe a slightly stale listing.
	mu sync.Mutex
}

// NewStore creates a Store using the given base directory.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore creates a Store using ~/.refinery/journal.
func DefaultStore() *Store {
	home, _ := os.UserHomeDir()
	return NewStore(filepath.Join(home, ".refinery", "journal"))
}

// BaseDir returns the base directory for this store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) recordPath(ver string) string {
	return filepath.Join(s.baseDir, "v"+ver+".yaml")
}

// Append persists a record. Records are append-only: a version that already
// exists is an error, and nothing is ever rewritten.
func (s *Store) Append(record model.EnhancementRecord) error {
	if _, err := version.Parse(record.Version); err != nil {
		return fmt.Errorf("appending journal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(record.Version)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("journal already has a record for version %s", record.Version)
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling journal record: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// List returns all records sorted ascending by version.
func (s *Store) List() ([]model.EnhancementRecord, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading journal dir: %w", err)
	}

	var records []model.EnhancementRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		record, err := readRecord(filepath.Join(s.baseDir, e.Name()))
		if err != nil {
			continue // skip malformed records
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, errA := version.Parse(records[i].Version)
		b, errB := version.Parse(records[j].Version)
		if errA != nil || errB != nil {
			return records[i].Version < records[j].Version
		}
		return version.Compare(a, b) < 0
	})
	return records, nil
}

// Latest returns the highest-versioned record, or nil if the journal is
// empty.
func (s *Store) Latest() (*model.EnhancementRecord, error) {
	records, err := s.List()
	if err != nil || len(records) == 0 {
		return nil, err
	}
	latest := records[len(records)-1]
	return &latest, nil
}

// Get returns the record for an exact version, or nil if absent.
func (s *Store) Get(ver string) (*model.EnhancementRecord, error) {
	record, err := readRecord(s.recordPath(ver))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Used reports whether a version has ever been recorded.
func (s *Store) Used(ver string) (bool, error) {
	_, err := os.Stat(s.recordPath(ver))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing journal for %s: %w", ver, err)
	}
	return true, nil
}

// RecursiveCount returns how many recorded enhancements were
// recursive-improvement ones.
func (s *Store) RecursiveCount() (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}
	var n int
	for _, r := range records {
		if r.Opportunity.Type == model.OpportunityRecursive {
			n++
		}
	}
	return n, nil
}

func readRecord(path string) (model.EnhancementRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.EnhancementRecord{}, err
	}
	var record model.EnhancementRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return model.EnhancementRecord{}, fmt.Errorf("parsing journal record %s: %w", filepath.Base(path), err)
	}
	return record, nil
}
