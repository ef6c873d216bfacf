package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one batch of independent trajectories started from the
// same state with the same options.
type RunRecord struct {
	VersionedRecord
	ID             string     `json:"id"`
	Sequence       string     `json:"sequence"`
	StartStructure string     `json:"start_structure"`
	Substrate      string     `json:"substrate"`
	Temperature    float64    `json:"temperature"`
	RateMethod     string     `json:"rate_method"`
	Preset         string     `json:"preset,omitempty"`
	Seed           int64      `json:"seed"`
	Trials         int        `json:"trials"`
	MaxTime        float64    `json:"max_time"`
	CreatedAt      time.Time  `json:"created_at"`
	Summary        RunSummary `json:"summary"`
}

// RunSummary aggregates the trials of a run.
type RunSummary struct {
	Completed  int            `json:"completed"`
	Reasons    map[string]int `json:"reasons"`
	Tags       map[string]int `json:"tags"`
	MeanTime   float64        `json:"mean_time"`
	KEff       float64        `json:"k_eff"`
	Log10KEff  float64        `json:"log10_k_eff"`
	KEffLow    float64        `json:"k_eff_low"`
	KEffHigh   float64        `json:"k_eff_high"`
	TotalSteps int64          `json:"total_steps"`
}

// TrialRecord is the outcome of one trajectory.
type TrialRecord struct {
	VersionedRecord
	RunID     string  `json:"run_id"`
	Index     int     `json:"index"`
	Seed      int64   `json:"seed"`
	Reason    string  `json:"reason"`
	Tag       string  `json:"tag"`
	Time      float64 `json:"time"`
	Steps     int64   `json:"steps"`
	Structure string  `json:"structure"`
	Energy    float64 `json:"energy"`
}

// Snapshot is one recorded point of a trajectory.
type Snapshot struct {
	Step      int64   `json:"step"`
	Time      float64 `json:"time"`
	Structure string  `json:"structure"`
	Energy    float64 `json:"energy"`
}

type Trajectory struct {
	VersionedRecord
	RunID     string     `json:"run_id"`
	Trial     int        `json:"trial"`
	Snapshots []Snapshot `json:"snapshots"`
}
