package config

import (
	"errors"
	"fmt"
	"strings"

	"foldsim/internal/energy"
	"foldsim/internal/nucleic"
)

// ErrNoStartState means the configuration names no sequence to simulate.
var ErrNoStartState = errors.New("initial state was not set")

// FieldError is a validation failure for one dotted configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks cfg after defaults. A missing sequence yields
// ErrNoStartState; everything else is reported as a ValidationError.
func Validate(cfg *RunConfig) error {
	if strings.TrimSpace(cfg.Sequence) == "" {
		return ErrNoStartState
	}

	var errs []FieldError
	seq, err := nucleic.ParseSequence(cfg.Sequence)
	if err != nil {
		errs = append(errs, FieldError{Field: "sequence", Message: err.Error()})
	} else {
		if cfg.Structure != "" {
			if _, err := nucleic.ParseStructure(cfg.Structure, seq); err != nil {
				errs = append(errs, FieldError{Field: "structure", Message: err.Error()})
			}
		}
		for i, cond := range cfg.Simulation.StopConditions {
			if err := cond.Validate(seq); err != nil {
				errs = append(errs, FieldError{Field: fmt.Sprintf("simulation.stop_conditions[%d]", i), Message: err.Error()})
			}
		}
	}

	errs = append(errs, validateEnergy(&cfg.Energy)...)
	errs = append(errs, validateSimulation(&cfg.Simulation)...)

	switch cfg.Store.Kind {
	case "memory":
	case "sqlite":
		if cfg.Store.Path == "" {
			errs = append(errs, FieldError{Field: "store.path", Message: "sqlite store requires a path"})
		}
	default:
		errs = append(errs, FieldError{Field: "store.kind", Message: fmt.Sprintf("unsupported store backend %q", cfg.Store.Kind)})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, FieldError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEnergy(e *EnergyConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(e.Substrate) {
	case energy.SubstrateDNA, energy.SubstrateRNA:
	default:
		errs = append(errs, FieldError{Field: "energy.substrate", Message: fmt.Sprintf("unknown substrate %q", e.Substrate)})
	}
	if e.Temperature != nil && (*e.Temperature <= -energy.KelvinOffset || *e.Temperature > 150) {
		errs = append(errs, FieldError{Field: "energy.temperature", Message: "must be above absolute zero and at most 150 C"})
	}
	if e.Preset != "" {
		p := energy.DefaultParams()
		if err := energy.ApplyPreset(&p, e.Preset); err != nil {
			errs = append(errs, FieldError{Field: "energy.preset", Message: err.Error()})
		}
	}
	switch energy.RateMethod(e.RateMethod) {
	case "", energy.Metropolis, energy.Kawasaki, energy.Arrhenius:
	default:
		errs = append(errs, FieldError{Field: "energy.rate_method", Message: fmt.Sprintf("unknown rate method %q", e.RateMethod)})
	}
	if e.JoinConcentration < 0 {
		errs = append(errs, FieldError{Field: "energy.join_concentration", Message: "must be non-negative"})
	}
	return errs
}

func validateSimulation(s *SimulationConfig) []FieldError {
	var errs []FieldError
	if s.Trials < 1 {
		errs = append(errs, FieldError{Field: "simulation.trials", Message: "must be at least 1"})
	}
	if s.Workers < 1 {
		errs = append(errs, FieldError{Field: "simulation.workers", Message: "must be at least 1"})
	}
	if s.MaxTime < 0 {
		errs = append(errs, FieldError{Field: "simulation.max_time", Message: "must be non-negative"})
	}
	if s.MaxSteps < 0 {
		errs = append(errs, FieldError{Field: "simulation.max_steps", Message: "must be non-negative"})
	}
	if s.OutputInterval < 0 || s.OutputTime < 0 {
		errs = append(errs, FieldError{Field: "simulation.output", Message: "output interval and time must be non-negative"})
	}
	if s.KeepTrajectories && s.OutputInterval == 0 && s.OutputTime == 0 {
		errs = append(errs, FieldError{Field: "simulation.keep_trajectories", Message: "requires output_interval or output_time"})
	}
	return errs
}
