package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ciadmin/ciadmin/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: ":memory:", // Use in-memory database for example
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveRun demonstrates recording a run and its operations.
func ExampleSQLiteStore_SaveRun() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	started := time.Now()
	run := &stores.RunRecord{
		ID:        "run-001",
		PlanID:    "plan-001",
		Status:    "running",
		ToCreate:  1,
		StartedAt: started,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	if err := store.CreateOperation(ctx, &stores.OperationRecord{
		RunID:      run.ID,
		Sequence:   1,
		Action:     "create",
		Kind:       "Role",
		ResourceID: "Role=repo:github.com/org/app",
		Status:     "succeeded",
		StartedAt:  started,
	}); err != nil {
		log.Fatal(err)
	}

	completed := time.Now()
	run.Status = "succeeded"
	run.Attempted = 1
	run.Succeeded = 1
	run.CompletedAt = &completed
	if err := store.SaveRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetRun(ctx, "run-001")
	if err != nil {
		log.Fatal(err)
	}
	ops, _ := store.ListOperations(ctx, "run-001")

	fmt.Printf("Run ID: %s, Status: %s, Operations: %d\n", retrieved.ID, retrieved.Status, len(ops))
	// Output: Run ID: run-001, Status: succeeded, Operations: 1
}

// ExampleSQLiteStore_GetEvents demonstrates reading the event log of a run.
func ExampleSQLiteStore_GetEvents() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	runID := "run-001"
	for _, e := range [][2]string{
		{"run_started", "applying 1 operations"},
		{"run_completed", "applied 1 operations"},
	} {
		_ = store.AppendEvent(ctx, &stores.Event{
			RunID:   &runID,
			Type:    e[0],
			Level:   stores.EventLevelInfo,
			Message: e[1],
		})
	}

	events, err := store.GetEvents(ctx, &runID, nil, 10, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range events {
		fmt.Println(e.Message)
	}
	// Output:
	// applying 1 operations
	// applied 1 operations
}
