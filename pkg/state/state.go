// Package state persists the outcome of the last assembler run so later
// commands can tell whether the archive on disk is usable.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/uberpack/uberpack/pkg/types"
)

const recordFile = "last-run.json"

// ErrNoRecord means no run has been recorded yet
var ErrNoRecord = errors.New("no run recorded")

// RunRecord is the persisted summary of one run
type RunRecord struct {
	RunID           string         `json:"runId"`
	State           types.RunState `json:"state"`
	ArchivePath     string         `json:"archivePath"`
	StartedAt       time.Time      `json:"startedAt"`
	Duration        time.Duration  `json:"duration"`
	Layers          int            `json:"layers"`
	ManifestEntries int            `json:"manifestEntries"`
	InputDirs       []string       `json:"inputDirs,omitempty"`
	LastError       string         `json:"lastError,omitempty"`
	ProcessID       int            `json:"processId"`
}

// Usable reports whether the recorded archive may be consumed
func (r *RunRecord) Usable() bool {
	return r.State == types.RunStateDone
}

// Store reads and writes the run record under a state directory
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the record file location
func (s *Store) Path() string {
	return filepath.Join(s.dir, recordFile)
}

// Save writes the record atomically
func (s *Store) Save(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ProcessID == 0 {
		rec.ProcessID = os.Getpid()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := s.Path()
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename run record: %w", err)
	}
	return nil
}

// Load reads the last record
func (s *Store) Load() (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecord
		}
		return nil, err
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse run record: %w", err)
	}
	return &rec, nil
}

// Clear removes the record
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
