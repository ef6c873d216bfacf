package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"foldsim/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              id,
		Sequence:        "GGGGAAAACCCC",
		StartStructure:  "............",
		Substrate:       "dna",
		Temperature:     37,
		RateMethod:      "kawasaki",
		Seed:            7,
		Trials:          2,
		CreatedAt:       created,
		Summary: model.RunSummary{
			Completed: 2,
			Reasons:   map[string]int{"normal": 2},
			Tags:      map[string]int{"hairpin": 2},
		},
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := sampleRun("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}
	input.Summary.Tags["hairpin"] = 99

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if output.Sequence != input.Sequence || output.Summary.Tags["hairpin"] != 2 {
		t.Fatalf("unexpected run: %+v", output)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestMemoryStoreTrialsAndTrajectoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	trials := []model.TrialRecord{
		{VersionedRecord: Versioned(), RunID: "run-1", Index: 0, Seed: 7, Reason: "normal", Tag: "hairpin", Time: 1e-6, Steps: 12},
		{VersionedRecord: Versioned(), RunID: "run-1", Index: 1, Seed: 8, Reason: "time", Tag: "timeout", Time: 1e-3, Steps: 400},
	}
	if err := store.SaveTrials(ctx, "run-1", trials); err != nil {
		t.Fatalf("save trials: %v", err)
	}
	trials[0].Tag = "mutated"

	output, ok, err := store.GetTrials(ctx, "run-1")
	if err != nil {
		t.Fatalf("get trials: %v", err)
	}
	if !ok || len(output) != 2 || output[0].Tag != "hairpin" || output[1].Steps != 400 {
		t.Fatalf("unexpected trials: %+v", output)
	}

	trajectory := model.Trajectory{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Trial:           1,
		Snapshots: []model.Snapshot{
			{Step: 0, Time: 0, Structure: "....", Energy: 0},
			{Step: 10, Time: 1e-7, Structure: "(..)", Energy: -1.5},
		},
	}
	if err := store.SaveTrajectory(ctx, trajectory); err != nil {
		t.Fatalf("save trajectory: %v", err)
	}
	loaded, ok, err := store.GetTrajectory(ctx, "run-1", 1)
	if err != nil {
		t.Fatalf("get trajectory: %v", err)
	}
	if !ok || len(loaded.Snapshots) != 2 || loaded.Snapshots[1].Structure != "(..)" {
		t.Fatalf("unexpected trajectory: %+v", loaded)
	}
	if _, ok, _ := store.GetTrajectory(ctx, "run-1", 0); ok {
		t.Fatal("expected no trajectory for trial 0")
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), sampleRun("run-1", time.Now()))
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}
