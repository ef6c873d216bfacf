package storage

import (
	"context"
	"errors"

	"foldsim/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store defines transaction-like persistence operations for simulation runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTrials(ctx context.Context, runID string, trials []model.TrialRecord) error
	GetTrials(ctx context.Context, runID string) ([]model.TrialRecord, bool, error)
	SaveTrajectory(ctx context.Context, trajectory model.Trajectory) error
	GetTrajectory(ctx context.Context, runID string, trial int) (model.Trajectory, bool, error)
}

// Versioned stamps a record with the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}
