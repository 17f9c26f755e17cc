package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "nested", "state.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// A second migration is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("repeated migration failed: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "operations", "events"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestSaveRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := &RunRecord{
		ID:        "run-001",
		PlanID:    "plan-001",
		Status:    "running",
		ToCreate:  2,
		ToDelete:  1,
		StartedAt: started,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.PlanID != "plan-001" || got.Status != "running" || got.ToCreate != 2 || got.ToDelete != 1 {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected StartedAt %v, got %v", started, got.StartedAt)
	}
	if got.CompletedAt != nil || got.Error != nil {
		t.Errorf("expected no completion yet, got %+v", got)
	}

	completed := started.Add(3 * time.Second)
	run.Status = "failed"
	run.Attempted = 2
	run.Succeeded = 1
	run.Error = strPtr("error while creating Role=x: boom")
	run.CompletedAt = &completed
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to update run: %v", err)
	}

	got, err = store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}
	if got.Status != "failed" || got.Attempted != 2 || got.Succeeded != 1 {
		t.Errorf("unexpected progress: %+v", got)
	}
	if got.Error == nil || *got.Error != "error while creating Role=x: boom" {
		t.Errorf("unexpected error: %v", got.Error)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("unexpected CompletedAt: %v", got.CompletedAt)
	}
}

func TestSaveRun_InvalidStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.SaveRun(context.Background(), &RunRecord{ID: "r", PlanID: "p", Status: "bogus", StartedAt: time.Now()})
	if err == nil {
		t.Error("expected constraint violation for unknown status")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := &RunRecord{ID: id, PlanID: "p", Status: "succeeded", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to save run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("expected newest first [c b], got %v", runIDs(runs))
	}

	runs, err = store.ListRuns(ctx, 10, 2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "a" {
		t.Errorf("expected [a] at offset 2, got %v", runIDs(runs))
	}
}

func runIDs(runs []*RunRecord) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := store.SaveRun(ctx, &RunRecord{ID: "run-1", PlanID: "p", Status: "running", StartedAt: now}); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	ops := []*OperationRecord{
		{RunID: "run-1", Sequence: 2, Action: "delete", Kind: "Role", ResourceID: "Role=b", Status: "started", StartedAt: now},
		{RunID: "run-1", Sequence: 1, Action: "create", Kind: "Role", ResourceID: "Role=a", Status: "started", StartedAt: now},
	}
	for _, op := range ops {
		if err := store.CreateOperation(ctx, op); err != nil {
			t.Fatalf("failed to create operation: %v", err)
		}
	}

	completed := now.Add(150 * time.Millisecond)
	err := store.FinishOperation(ctx, &OperationRecord{
		RunID:       "run-1",
		Sequence:    2,
		Status:      "failed",
		Error:       strPtr("boom"),
		CompletedAt: &completed,
		DurationMs:  150,
	})
	if err != nil {
		t.Fatalf("failed to finish operation: %v", err)
	}

	listed, err := store.ListOperations(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(listed))
	}
	if listed[0].ResourceID != "Role=a" || listed[1].ResourceID != "Role=b" {
		t.Errorf("expected sequence order, got %s, %s", listed[0].ResourceID, listed[1].ResourceID)
	}
	if listed[1].Status != "failed" || listed[1].Error == nil || *listed[1].Error != "boom" || listed[1].DurationMs != 150 {
		t.Errorf("unexpected finished operation: %+v", listed[1])
	}
	if listed[0].CompletedAt != nil {
		t.Errorf("unfinished operation should have no CompletedAt")
	}

	err = store.FinishOperation(ctx, &OperationRecord{RunID: "run-1", Sequence: 9, Status: "succeeded"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown operation, got %v", err)
	}
}

func TestCreateOperation_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateOperation(context.Background(), &OperationRecord{
		RunID: "nope", Sequence: 1, Action: "create", Kind: "Role", ResourceID: "Role=a", Status: "started", StartedAt: time.Now(),
	})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events := []*Event{
		{RunID: strPtr("run-1"), Type: "run_started", Level: EventLevelInfo, Message: "start"},
		{RunID: strPtr("run-1"), Type: "operation_failed", Level: EventLevelError, ResourceID: strPtr("Role=a"), Message: "boom"},
		{RunID: strPtr("run-2"), Type: "run_started", Level: EventLevelInfo, Message: "other"},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be assigned")
		}
	}

	tests := []struct {
		name     string
		runID    *string
		level    *EventLevel
		expected []string
	}{
		{"all", nil, nil, []string{"start", "boom", "other"}},
		{"by run", strPtr("run-1"), nil, []string{"start", "boom"}},
		{"by level", nil, func() *EventLevel { l := EventLevelError; return &l }(), []string{"boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetEvents(ctx, tt.runID, tt.level, 100, 0)
			if err != nil {
				t.Fatalf("failed to get events: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d events, got %d", len(tt.expected), len(got))
			}
			for i, msg := range tt.expected {
				if got[i].Message != msg {
					t.Errorf("event %d: expected %q, got %q", i, msg, got[i].Message)
				}
			}
		})
	}
}

func TestDeleteRunsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := &RunRecord{ID: "old", PlanID: "p", Status: "succeeded", StartedAt: cutoff.Add(-time.Hour)}
	recent := &RunRecord{ID: "recent", PlanID: "p", Status: "succeeded", StartedAt: cutoff.Add(time.Hour)}
	for _, r := range []*RunRecord{old, recent} {
		if err := store.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		op := &OperationRecord{RunID: r.ID, Sequence: 1, Action: "create", Kind: "Role", ResourceID: "Role=a", Status: "succeeded", StartedAt: r.StartedAt}
		if err := store.CreateOperation(ctx, op); err != nil {
			t.Fatalf("failed to create operation: %v", err)
		}
		if err := store.AppendEvent(ctx, &Event{RunID: strPtr(r.ID), Type: "run_started", Level: EventLevelInfo, Message: r.ID}); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	deleted, err := store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("failed to delete runs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted run, got %d", deleted)
	}

	if _, err := store.GetRun(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old run should be gone, got %v", err)
	}
	if ops, _ := store.ListOperations(ctx, "old"); len(ops) != 0 {
		t.Errorf("operations of the old run should cascade, got %d", len(ops))
	}
	if events, _ := store.GetEvents(ctx, strPtr("old"), nil, 10, 0); len(events) != 0 {
		t.Errorf("events of the old run should be deleted, got %d", len(events))
	}
	if ops, _ := store.ListOperations(ctx, "recent"); len(ops) != 1 {
		t.Errorf("recent run should keep its operations")
	}
}
