package config

import "time"

const (
	DefaultSubstrate   = "dna"
	DefaultTemperature = 37.0
	DefaultPreset      = "js_default"
	DefaultTrials      = 1
	DefaultWorkers     = 4
	DefaultMaxTime     = 1e-3
	DefaultStoreKind   = "memory"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// ApplyDefaults fills unset fields. A nil seed becomes a time-derived one.
func ApplyDefaults(cfg *RunConfig) {
	if cfg.Energy.Substrate == "" {
		cfg.Energy.Substrate = DefaultSubstrate
	}
	if cfg.Energy.Temperature == nil {
		t := DefaultTemperature
		cfg.Energy.Temperature = &t
	}
	if cfg.Energy.Preset == "" && cfg.Energy.RateMethod == "" {
		cfg.Energy.Preset = DefaultPreset
	}
	if cfg.Simulation.Trials == 0 {
		cfg.Simulation.Trials = DefaultTrials
	}
	if cfg.Simulation.Workers == 0 {
		cfg.Simulation.Workers = DefaultWorkers
	}
	if cfg.Simulation.Seed == nil {
		seed := time.Now().UnixNano()
		cfg.Simulation.Seed = &seed
	}
	if cfg.Simulation.MaxTime == 0 && cfg.Simulation.MaxSteps == 0 && len(cfg.Simulation.StopConditions) == 0 {
		cfg.Simulation.MaxTime = DefaultMaxTime
	}
	for i := range cfg.Simulation.StopConditions {
		if cfg.Simulation.StopConditions[i].Kind == "" {
			cfg.Simulation.StopConditions[i].Kind = "exact"
		}
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = DefaultStoreKind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
