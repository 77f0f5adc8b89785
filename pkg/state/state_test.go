package state_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uberpack/uberpack/pkg/state"
	"github.com/uberpack/uberpack/pkg/types"
)

func TestStore_LoadWithoutRecord(t *testing.T) {
	s := state.NewStore(t.TempDir())
	if _, err := s.Load(); !errors.Is(err, state.ErrNoRecord) {
		t.Errorf("expected ErrNoRecord, got %v", err)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".uberpack")
	s := state.NewStore(dir)

	rec := state.RunRecord{
		RunID:           "run_1",
		State:           types.RunStateDone,
		ArchivePath:     "target/uber/uber.jar",
		StartedAt:       time.Now().Truncate(time.Second),
		Duration:        1500 * time.Millisecond,
		Layers:          2,
		ManifestEntries: 5,
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.RunID != "run_1" || loaded.Layers != 2 {
		t.Errorf("unexpected record %+v", loaded)
	}
	if !loaded.Usable() {
		t.Error("expected DONE record to be usable")
	}
	if loaded.ProcessID != os.Getpid() {
		t.Errorf("expected process id %d, got %d", os.Getpid(), loaded.ProcessID)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestRunRecord_FailedNotUsable(t *testing.T) {
	rec := state.RunRecord{State: types.RunStateFailed, LastError: "disk full"}
	if rec.Usable() {
		t.Error("failed run must not be usable")
	}
}

func TestStore_Clear(t *testing.T) {
	s := state.NewStore(t.TempDir())
	if err := s.Clear(); err != nil {
		t.Errorf("clear without record should succeed: %v", err)
	}
	if err := s.Save(state.RunRecord{RunID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, state.ErrNoRecord) {
		t.Errorf("expected record gone, got %v", err)
	}
}
