package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cogtask/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run and opens its log.
func createTestRun(t *testing.T, s *Store, id string) *RunLog {
	t.Helper()
	ctx := context.Background()
	run := Run{ID: id, Task: "demo", Block: "b1", StartedAt: testutil.Epoch}
	if err := s.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	log, err := s.OpenRunLog(ctx, id)
	if err != nil {
		t.Fatalf("OpenRunLog() failed: %v", err)
	}
	return log
}
