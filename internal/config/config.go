// Package config loads YAML run configurations for foldsim.
package config

import "foldsim/internal/sim"

// RunConfig describes one batch of simulations.
type RunConfig struct {
	// Sequence is the strand sequence, strands separated by '+'.
	Sequence string `yaml:"sequence"`
	// Structure is the starting dot-paren structure. Empty means fully open.
	Structure string `yaml:"structure"`

	Energy     EnergyConfig     `yaml:"energy"`
	Simulation SimulationConfig `yaml:"simulation"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// ArtifactsDir receives per-run config, trials and summaries.
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type EnergyConfig struct {
	Substrate   string   `yaml:"substrate"`
	Temperature *float64 `yaml:"temperature"`
	Preset      string   `yaml:"preset"`
	// RateMethod overrides the preset's method.
	RateMethod string `yaml:"rate_method"`
	// ParamsFile is an optional YAML parameter file layered on the defaults.
	ParamsFile        string  `yaml:"params_file"`
	JoinConcentration float64 `yaml:"join_concentration"`
	GTEnable          bool    `yaml:"gt_enable"`
	ShiftMoves        bool    `yaml:"shift_moves"`
	Cache             bool    `yaml:"cache"`
}

type SimulationConfig struct {
	Trials           int                 `yaml:"trials"`
	Workers          int                 `yaml:"workers"`
	Seed             *int64              `yaml:"seed"`
	MaxTime          float64             `yaml:"max_time"`
	MaxSteps         int64               `yaml:"max_steps"`
	OutputInterval   int64               `yaml:"output_interval"`
	OutputTime       float64             `yaml:"output_time"`
	KeepTrajectories bool                `yaml:"keep_trajectories"`
	StopConditions   []sim.StopCondition `yaml:"stop_conditions"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the prometheus text exposition after a
	// batch.
	Textfile string `yaml:"textfile"`
}
