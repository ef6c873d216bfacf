package storage

import (
	"context"
	"maps"
	"sort"
	"sync"

	"foldsim/internal/model"
)

type trajectoryKey struct {
	runID string
	trial int
}

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	trials       map[string][]model.TrialRecord
	trajectories map[trajectoryKey]model.Trajectory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.trials = make(map[string][]model.TrialRecord)
	s.trajectories = make(map[trajectoryKey]model.Trajectory)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	run.Summary.Reasons = maps.Clone(run.Summary.Reasons)
	run.Summary.Tags = maps.Clone(run.Summary.Tags)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, runID string, trials []model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.trials[runID] = append([]model.TrialRecord(nil), trials...)
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, runID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TrialRecord(nil), trials...), true, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, trajectory model.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	trajectory.Snapshots = append([]model.Snapshot(nil), trajectory.Snapshots...)
	s.trajectories[trajectoryKey{runID: trajectory.RunID, trial: trajectory.Trial}] = trajectory
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string, trial int) (model.Trajectory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectory, ok := s.trajectories[trajectoryKey{runID: runID, trial: trial}]
	if !ok {
		return model.Trajectory{}, false, nil
	}
	trajectory.Snapshots = append([]model.Snapshot(nil), trajectory.Snapshots...)
	return trajectory, true, nil
}

// sortRuns orders runs newest first, breaking ties by id.
func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
