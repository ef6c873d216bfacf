// Package foldsim is the public entry point for running kinetic folding
// simulations and querying their persisted results.
package foldsim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"foldsim/internal/config"
	"foldsim/internal/model"
	"foldsim/internal/platform"
	"foldsim/internal/sim"
	"foldsim/internal/stats"
	"foldsim/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "foldsim.db"
)

type (
	StopCondition = sim.StopCondition
	TrialRecord   = model.TrialRecord
	RunRecord     = model.RunRecord
	Trajectory    = model.Trajectory
)

// Recorder receives per-step and per-trajectory observations from every
// simulation the client runs.
type Recorder interface {
	ObserveStep(action string)
	ObserveTrajectory(reason string, simTime float64)
}

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *log.Logger
	Recorder     Recorder
}

type Client struct {
	store    storage.Store
	mu       sync.Mutex
	lab      *platform.Lab
	logger   *log.Logger
	recorder Recorder

	artifactsDir string
	exportsDir   string
}

// ModelOptions select the energy model and move set.
type ModelOptions struct {
	Substrate   string
	Temperature *float64
	Preset      string
	RateMethod  string
	ParamsFile  string
	GTEnable    bool
	ShiftMoves  bool
	Cache       bool
}

type RunRequest struct {
	RunID     string
	Sequence  string
	Structure string
	Model     ModelOptions

	Trials           int
	Workers          int
	Seed             *int64
	MaxTime          float64
	MaxSteps         int64
	OutputInterval   int64
	OutputTime       float64
	KeepTrajectories bool
	StopConditions   []StopCondition
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Seed         int64
	Trials       int
	Completed    int
	Tags         map[string]int
	Reasons      map[string]int
	MeanTime     float64
	KEff         float64
	Log10KEff    float64
	KEffLow      float64
	KEffHigh     float64
	TotalSteps   int64
	Elapsed      time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Sequence     string
	Seed         int64
	Trials       int
	Completed    int
	Workers      int
	KEff         float64
}

type ShowRequest struct {
	RunID  string
	Latest bool
	// Trial, when non-nil, also loads that trial's trajectory.
	Trial *int
}

type RunDetail struct {
	Run        RunRecord
	Trials     []TrialRecord
	Trajectory *Trajectory
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		recorder:     opts.Recorder,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

// Close cancels any runs still in progress and releases the store.
func (c *Client) Close() error {
	c.mu.Lock()
	lab := c.lab
	c.mu.Unlock()
	if lab != nil && lab.Started() {
		if err := lab.StopWithReason(platform.StopReasonShutdown); err != nil {
			return err
		}
		c.logger.Debug("lab stopped", "reason", lab.LastStopReason())
	}
	return storage.CloseIfSupported(c.store)
}

// StopRun cancels a run in progress on this client. The Run call that
// started it returns the cancellation error and persists nothing.
func (c *Client) StopRun(runID string) error {
	c.mu.Lock()
	lab := c.lab
	c.mu.Unlock()
	if lab == nil {
		return fmt.Errorf("run not active: %s", runID)
	}
	return lab.StopRun(runID)
}

// ActiveRuns lists the IDs of runs in progress, sorted.
func (c *Client) ActiveRuns() []string {
	c.mu.Lock()
	lab := c.lab
	c.mu.Unlock()
	if lab == nil {
		return nil
	}
	return lab.ActiveRuns()
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLab(ctx)
	return err
}

// Run simulates req and writes its artifacts under the client's artifacts
// directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.config()
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return RunSummary{}, err
	}
	return c.run(ctx, cfg, req.RunID)
}

// RunFile simulates the YAML run configuration at path. Its store, logging,
// metrics and artifacts sections are left to whoever builds the Client.
func (c *Client) RunFile(ctx context.Context, path string) (RunSummary, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return RunSummary{}, err
	}
	return c.run(ctx, cfg, "")
}

func (req RunRequest) config() *config.RunConfig {
	cfg := &config.RunConfig{
		Sequence:  req.Sequence,
		Structure: req.Structure,
		Energy:    req.Model.energyConfig(),
		Simulation: config.SimulationConfig{
			Trials:           req.Trials,
			Workers:          req.Workers,
			Seed:             req.Seed,
			MaxTime:          req.MaxTime,
			MaxSteps:         req.MaxSteps,
			OutputInterval:   req.OutputInterval,
			OutputTime:       req.OutputTime,
			KeepTrajectories: req.KeepTrajectories,
			StopConditions:   append([]StopCondition(nil), req.StopConditions...),
		},
	}
	return cfg
}

func (m ModelOptions) energyConfig() config.EnergyConfig {
	return config.EnergyConfig{
		Substrate:   m.Substrate,
		Temperature: m.Temperature,
		Preset:      m.Preset,
		RateMethod:  m.RateMethod,
		ParamsFile:  m.ParamsFile,
		GTEnable:    m.GTEnable,
		ShiftMoves:  m.ShiftMoves,
		Cache:       m.Cache,
	}
}

func (c *Client) run(ctx context.Context, cfg *config.RunConfig, runID string) (RunSummary, error) {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	params, err := cfg.EnergyParams()
	if err != nil {
		return RunSummary{}, err
	}

	onTrial := func(t model.TrialRecord) {
		c.logger.Debug("trial finished",
			"run", t.RunID, "trial", t.Index, "reason", t.Reason, "tag", t.Tag, "time", t.Time, "steps", t.Steps)
	}
		result, err := lab.RunBatch(ctx, platform.BatchConfig{
		RunID:            runID,
		Sequence:         cfg.Sequence,
		Structure:        cfg.Structure,
		Params:           params,
		Preset:           cfg.Energy.Preset,
		Cache:            cfg.Energy.Cache,
		Graph:            cfg.GraphOptions(),
		Sim:              cfg.SimOptions(),
		Seed:             cfg.Seed(),
		Trials:           cfg.Simulation.Trials,
		Workers:          cfg.Simulation.Workers,
		KeepTrajectories: cfg.Simulation.KeepTrajectories,
		OnTrial:          onTrial,
	})
	if err != nil {
		return RunSummary{}, err
	}
	run := result.Run

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          run.ID,
			Sequence:       run.Sequence,
			StartStructure: run.StartStructure,
			Substrate:      run.Substrate,
			Temperature:    run.Temperature,
			RateMethod:     run.RateMethod,
			Preset:         run.Preset,
			GTEnable:       cfg.Energy.GTEnable,
			ShiftMoves:     cfg.Energy.ShiftMoves,
			Seed:           run.Seed,
			Trials:         run.Trials,
			Workers:        cfg.Simulation.Workers,
			MaxTime:        cfg.Simulation.MaxTime,
			MaxSteps:       cfg.Simulation.MaxSteps,
			OutputInterval: cfg.Simulation.OutputInterval,
			OutputTime:     cfg.Simulation.OutputTime,
			StopConditions: cfg.Simulation.StopConditions,
			CreatedAtUTC:   run.CreatedAt.Format(time.RFC3339Nano),
		},
		Summary:      run.Summary,
		Trials:       result.Trials,
		Trajectories: result.Trajectories,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        run.ID,
		Sequence:     run.Sequence,
		Trials:       run.Trials,
		Completed:    run.Summary.Completed,
		Seed:         run.Seed,
		Workers:      cfg.Simulation.Workers,
		KEff:         run.Summary.KEff,
		CreatedAtUTC: run.CreatedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	s := run.Summary
	return RunSummary{
		RunID:        run.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Seed:         run.Seed,
		Trials:       run.Trials,
		Completed:    s.Completed,
		Tags:         s.Tags,
		Reasons:      s.Reasons,
		MeanTime:     s.MeanTime,
		KEff:         s.KEff,
		Log10KEff:    s.Log10KEff,
		KEffLow:      s.KEffLow,
		KEffHigh:     s.KEffHigh,
		TotalSteps:   s.TotalSteps,
		Elapsed:      result.Elapsed,
	}, nil
}

// Runs lists runs from the artifacts index, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Sequence:     e.Sequence,
			Seed:         e.Seed,
			Trials:       e.Trials,
			Completed:    e.Completed,
			Workers:      e.Workers,
			KEff:         e.KEff,
		})
	}
	return out, nil
}

// Show loads a run from the store, falling back to its artifacts when the
// store does not hold it (for example a memory store in a new process).
func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunDetail{}, err
	}

	run, trials, ok, err := lab.Run(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		run, trials, ok, err = c.readArtifacts(runID)
		if err != nil {
			return RunDetail{}, err
		}
		if !ok {
			return RunDetail{}, fmt.Errorf("run not found: %s", runID)
		}
	}

	detail := RunDetail{Run: run, Trials: trials}
	if req.Trial != nil {
		traj, ok, err := lab.Trajectory(ctx, runID, *req.Trial)
		if err != nil {
			return RunDetail{}, err
		}
		if !ok {
			return RunDetail{}, fmt.Errorf("trajectory not found: %s/%d", runID, *req.Trial)
		}
		detail.Trajectory = &traj
	}
	return detail, nil
}

func (c *Client) readArtifacts(runID string) (RunRecord, []TrialRecord, bool, error) {
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil || !ok {
		return RunRecord{}, nil, false, err
	}
	summary, _, err := stats.ReadSummary(c.artifactsDir, runID)
	if err != nil {
		return RunRecord{}, nil, false, err
	}
	trials, _, err := stats.ReadTrialsCSV(c.artifactsDir, runID)
	if err != nil {
		return RunRecord{}, nil, false, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, cfg.CreatedAtUTC)
	return RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              cfg.RunID,
		Sequence:        cfg.Sequence,
		StartStructure:  cfg.StartStructure,
		Substrate:       cfg.Substrate,
		Temperature:     cfg.Temperature,
		RateMethod:      cfg.RateMethod,
		Preset:          cfg.Preset,
		Seed:            cfg.Seed,
		Trials:          cfg.Trials,
		MaxTime:         cfg.MaxTime,
		CreatedAt:       createdAt,
		Summary:         summary,
	}, trials, true, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureLab(ctx context.Context) (*platform.Lab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lab != nil && c.lab.Started() {
		return c.lab, nil
	}
	cfg := platform.Config{Store: c.store, Logger: c.logger}
	if c.recorder != nil {
		cfg.Recorder = c.recorder
	}
	lab := platform.NewLab(cfg)
	if err := lab.Init(ctx); err != nil {
		return nil, err
	}
	c.lab = lab
	return c.lab, nil
}
