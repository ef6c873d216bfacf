package stats

import (
	"os"
	"path/filepath"
	"testing"

	"foldsim/internal/model"
	"foldsim/internal/sim"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Sequence:       "GGGGAAAACCCC",
			StartStructure: "............",
			Substrate:      "dna",
			Temperature:    37,
			RateMethod:     "kawasaki",
			Seed:           1,
			Trials:         2,
			Workers:        2,
			StopConditions: []sim.StopCondition{{Tag: "hairpin", Kind: sim.MatchExact, Structure: "((((....))))"}},
		},
		Summary: model.RunSummary{Completed: 1, KEff: 1e6},
		Trials: []model.TrialRecord{
			{RunID: runID, Index: 0, Seed: 1, Reason: "normal", Tag: "hairpin", Time: 1e-6, Steps: 40, Energy: -2.02, Structure: "((((....))))"},
			{RunID: runID, Index: 1, Seed: 2, Reason: "time", Tag: "timeout", Time: 1e-3, Steps: 9000, Energy: 0, Structure: "............"},
		},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	required := []string{"config.json", "summary.json", "trials.json", "trials.csv"}
	for _, file := range required {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "trajectories.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no trajectories file, got %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range required {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	withTrajectories := sampleArtifacts(runID)
	withTrajectories.Trajectories = []model.Trajectory{{RunID: runID, Trial: 0, Snapshots: []model.Snapshot{{Step: 0, Structure: "............"}}}}
	if _, err := WriteRunArtifacts(baseDir, withTrajectories); err != nil {
		t.Fatalf("rewrite artifacts: %v", err)
	}
	exportedDir, err = ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts with trajectories: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportedDir, "trajectories.json")); err != nil {
		t.Fatalf("expected exported trajectories: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Sequence != "GGGGAAAACCCC" || len(cfg.StopConditions) != 1 || cfg.StopConditions[0].Tag != "hairpin" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	summary, ok, err := ReadSummary(baseDir, runID)
	if err != nil || !ok || summary.KEff != 1e6 {
		t.Fatalf("unexpected summary: %+v ok=%t err=%v", summary, ok, err)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "", t.TempDir()); err == nil {
		t.Fatal("expected run id error on export")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run error on export")
	}
}

func TestTrialsCSVRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-csv")
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	trials, ok, err := ReadTrialsCSV(baseDir, "run-csv")
	if err != nil {
		t.Fatalf("read trials csv: %v", err)
	}
	if !ok || len(trials) != 2 {
		t.Fatalf("unexpected trials: %+v", trials)
	}
	if trials[0] != artifacts.Trials[0] || trials[1] != artifacts.Trials[1] {
		t.Fatalf("trials changed through csv: %+v", trials)
	}

	if _, ok, err := ReadTrialsCSV(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing trials, ok=%t err=%v", ok, err)
	}
}

func TestRunIndexOrdering(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Trials: 9, CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}
	if index[0].RunID != "c" || index[1].RunID != "b" || index[2].RunID != "a" {
		t.Fatalf("unexpected order: %+v", index)
	}
	if index[2].Trials != 9 {
		t.Fatalf("expected replaced entry, got %+v", index[2])
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	index, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
}
