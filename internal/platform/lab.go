package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"foldsim/internal/energy"
	"foldsim/internal/loopgraph"
	"foldsim/internal/model"
	"foldsim/internal/nucleic"
	"foldsim/internal/sim"
	"foldsim/internal/stats"
	"foldsim/internal/storage"
)

var ErrNotStarted = errors.New("lab is not initialized")

type Config struct {
	Store    storage.Store
	Logger   *log.Logger
	Recorder sim.Recorder
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// BatchConfig describes independent trajectories started from one state.
type BatchConfig struct {
	RunID     string
	Sequence  string
	Structure string
	Params    energy.Params
	Preset    string
	Cache     bool
	Graph     loopgraph.Options
	Sim       sim.Options
	Seed      int64
	Trials    int
	Workers   int
	// KeepTrajectories persists recorded snapshots per trial. Recording
	// itself is driven by Sim.OutputInterval and Sim.OutputTime.
	KeepTrajectories bool
	// OnTrial is called once per finished trial, from worker goroutines.
	OnTrial func(model.TrialRecord)
}

type BatchResult struct {
	Run          model.RunRecord
	Trials       []model.TrialRecord
	Trajectories []model.Trajectory
	Elapsed      time.Duration
}

type batchObserver interface {
	ObserveBatch(d time.Duration)
}

// Lab runs batches of simulations and persists their outcomes.
type Lab struct {
	store    storage.Store
	logger   *log.Logger
	recorder sim.Recorder

	mu             sync.RWMutex
	started        bool
	lastStopReason StopReason
	runs           map[string]context.CancelFunc
}

func NewLab(cfg Config) *Lab {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Lab{
		store:          cfg.Store,
		logger:         logger,
		recorder:       cfg.Recorder,
		runs:           make(map[string]context.CancelFunc),
		lastStopReason: StopReasonNormal,
	}
}

func (l *Lab) Init(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}
	l.started = true
	return nil
}

func (l *Lab) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

func (l *Lab) LastStopReason() StopReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastStopReason
}

func (l *Lab) Store() storage.Store { return l.store }

// RunBatch runs cfg.Trials trajectories with seeds Seed, Seed+1, ... on at
// most cfg.Workers goroutines. A trial that fails is recorded with reason
// error; only configuration faults, cancellation and persistence failures
// fail the batch.
func (l *Lab) RunBatch(ctx context.Context, cfg BatchConfig) (BatchResult, error) {
	if !l.Started() {
		return BatchResult{}, ErrNotStarted
	}
	if cfg.Trials <= 0 {
		return BatchResult{}, fmt.Errorf("trials must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	seq, err := nucleic.ParseSequence(cfg.Sequence)
	if err != nil {
		return BatchResult{}, err
	}
	structure := cfg.Structure
	if structure == "" {
		structure = nucleic.OpenStructure(seq)
	}
	pairs, err := nucleic.ParseStructure(structure, seq)
	if err != nil {
		return BatchResult{}, err
	}
	for _, cond := range cfg.Sim.StopConditions {
		if err := cond.Validate(seq); err != nil {
			return BatchResult{}, err
		}
	}
	var opts []energy.Option
	if cfg.Cache {
		opts = append(opts, energy.WithCache())
	}
	em, err := energy.NewModel(cfg.Params, opts...)
	if err != nil {
		return BatchResult{}, err
	}
	// Catch structural faults once instead of once per trial.
	if _, err := loopgraph.New(seq, pairs, em, cfg.Graph); err != nil {
		return BatchResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := l.registerRun(runID, cancel); err != nil {
		return BatchResult{}, err
	}
	defer l.unregisterRun(runID)

	start := time.Now()
	l.logger.Info("batch started", "run", runID, "trials", cfg.Trials, "workers", cfg.Workers, "seed", cfg.Seed)

	trials := make([]model.TrialRecord, cfg.Trials)
	trajectories := make([]model.Trajectory, cfg.Trials)
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Trials; i++ {
		g.Go(func() error {
			res, err := l.runTrial(gctx, seq, pairs, em, cfg, i)
			trials[i] = trialRecord(runID, i, res)
			if cfg.KeepTrajectories && len(res.Trajectory) > 0 {
				trajectories[i] = model.Trajectory{
					VersionedRecord: storage.Versioned(),
					RunID:           runID,
					Trial:           i,
					Snapshots:       res.Trajectory,
				}
			}
			if cfg.OnTrial != nil {
				cfg.OnTrial(trials[i])
			}
			if err != nil && gctx.Err() != nil {
				return err
			}
			if err != nil {
				l.logger.Warn("trial failed", "run", runID, "trial", i, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, fmt.Errorf("run %s: %w", runID, err)
	}

	kept := make([]model.Trajectory, 0, len(trajectories))
	for _, traj := range trajectories {
		if traj.RunID != "" {
			kept = append(kept, traj)
		}
	}

	params := em.Params()
	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Sequence:        seq.String(),
		StartStructure:  structure,
		Substrate:       params.Substrate,
		Temperature:     params.Temperature,
		RateMethod:      string(params.RateMethod),
		Preset:          cfg.Preset,
		Seed:            cfg.Seed,
		Trials:          cfg.Trials,
		MaxTime:         cfg.Sim.MaxTime,
		CreatedAt:       start.UTC(),
		Summary:         stats.Summarize(trials, rand.New(rand.NewSource(cfg.Seed))),
	}
	if err := l.persist(ctx, run, trials, kept); err != nil {
		return BatchResult{}, err
	}

	elapsed := time.Since(start)
	if obs, ok := l.recorder.(batchObserver); ok {
		obs.ObserveBatch(elapsed)
	}
	l.logger.Info("batch finished",
		"run", runID,
		"completed", run.Summary.Completed,
		"trials", cfg.Trials,
		"k_eff", run.Summary.KEff,
		"elapsed", elapsed,
	)
	return BatchResult{Run: run, Trials: trials, Trajectories: kept, Elapsed: elapsed}, nil
}

func (l *Lab) runTrial(ctx context.Context, seq nucleic.Sequence, pairs []int, em *energy.Model, cfg BatchConfig, index int) (sim.Result, error) {
	seed := cfg.Seed + int64(index)
	failed := sim.Result{Seed: seed, Reason: sim.ReasonError, Tag: sim.TagError}

	c, err := loopgraph.New(seq, pairs, em, cfg.Graph)
	if err != nil {
		return failed, err
	}
	s, err := sim.New(c, sim.NewTimer(seed), cfg.Sim, l.logger.With("trial", index))
	if err != nil {
		return failed, err
	}
	if l.recorder != nil {
		s.SetRecorder(l.recorder)
	}
	return s.Run(ctx)
}

func trialRecord(runID string, index int, res sim.Result) model.TrialRecord {
	return model.TrialRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Index:           index,
		Seed:            res.Seed,
		Reason:          string(res.Reason),
		Tag:             res.Tag,
		Time:            res.Time,
		Steps:           res.Steps,
		Structure:       res.Structure,
		Energy:          res.Energy,
	}
}

func (l *Lab) persist(ctx context.Context, run model.RunRecord, trials []model.TrialRecord, trajectories []model.Trajectory) error {
	if err := l.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	if err := l.store.SaveTrials(ctx, run.ID, trials); err != nil {
		return fmt.Errorf("save trials %s: %w", run.ID, err)
	}
	for _, traj := range trajectories {
		if err := l.store.SaveTrajectory(ctx, traj); err != nil {
			return fmt.Errorf("save trajectory %s/%d: %w", run.ID, traj.Trial, err)
		}
	}
	return nil
}

// Runs lists persisted runs, newest first.
func (l *Lab) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if !l.Started() {
		return nil, ErrNotStarted
	}
	return l.store.ListRuns(ctx)
}

// Run loads a persisted run with its trials.
func (l *Lab) Run(ctx context.Context, runID string) (model.RunRecord, []model.TrialRecord, bool, error) {
	if !l.Started() {
		return model.RunRecord{}, nil, false, ErrNotStarted
	}
	run, ok, err := l.store.GetRun(ctx, runID)
	if err != nil || !ok {
		return model.RunRecord{}, nil, ok, err
	}
	trials, _, err := l.store.GetTrials(ctx, runID)
	if err != nil {
		return model.RunRecord{}, nil, false, err
	}
	return run, trials, true, nil
}

func (l *Lab) Trajectory(ctx context.Context, runID string, trial int) (model.Trajectory, bool, error) {
	if !l.Started() {
		return model.Trajectory{}, false, ErrNotStarted
	}
	return l.store.GetTrajectory(ctx, runID, trial)
}

// StopRun cancels an active batch. Unfinished trials end with reason
// cancelled and the batch returns the cancellation error.
func (l *Lab) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.RLock()
	cancel, ok := l.runs[runID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (l *Lab) ActiveRuns() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.runs))
	for id := range l.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Lab) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
	default:
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cancel := range l.runs {
		cancel()
	}
	l.started = false
	l.lastStopReason = reason
	l.runs = make(map[string]context.CancelFunc)
	return nil
}

func (l *Lab) registerRun(runID string, cancel context.CancelFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return ErrNotStarted
	}
	if _, exists := l.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	l.runs[runID] = cancel
	return nil
}

func (l *Lab) unregisterRun(runID string) {
	l.mu.Lock()
	delete(l.runs, runID)
	l.mu.Unlock()
}
