package history

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRunTracksTriggerAndResetsFailuresOnSuccess(t *testing.T) {
	s := openTestStore(t)
	const hash = "s:true:abc123"

	if err := s.RecordRun(hash, false, errors.New("boom")); err != nil {
		t.Fatalf("RecordRun (failure): %v", err)
	}
	if err := s.RecordRun(hash, false, errors.New("boom again")); err != nil {
		t.Fatalf("RecordRun (failure 2): %v", err)
	}
	state, err := s.State(hash)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.ConsecutiveFailures != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", state.ConsecutiveFailures)
	}

	if err := s.RecordRun(hash, true, nil); err != nil {
		t.Fatalf("RecordRun (success): %v", err)
	}
	state, err = s.State(hash)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want reset to 0 after a clean run", state.ConsecutiveFailures)
	}
	if state.LastTriggeredAt == 0 {
		t.Errorf("expected LastTriggeredAt to be set after a triggering run")
	}
}

func TestStateIsZeroForAnUnknownHash(t *testing.T) {
	s := openTestStore(t)
	state, err := s.State("s:never-seen")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Hash != "" {
		t.Errorf("expected zero State for an unknown hash, got %+v", state)
	}
}
