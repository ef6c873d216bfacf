package config

import (
	"fmt"

	"foldsim/internal/energy"
	"foldsim/internal/loopgraph"
	"foldsim/internal/sim"
)

// EnergyParams builds the energy parameters the configuration describes:
// the parameter file or substrate defaults, then the preset, then explicit
// overrides.
func (c *RunConfig) EnergyParams() (energy.Params, error) {
	var p energy.Params
	if c.Energy.ParamsFile != "" {
		loaded, err := energy.LoadParams(c.Energy.ParamsFile)
		if err != nil {
			return energy.Params{}, err
		}
		p = loaded
	} else {
		p = energy.ParamsFor(c.Energy.Substrate)
	}
	if c.Energy.Preset != "" {
		if err := energy.ApplyPreset(&p, c.Energy.Preset); err != nil {
			return energy.Params{}, err
		}
	}
	if c.Energy.RateMethod != "" {
		p.RateMethod = energy.RateMethod(c.Energy.RateMethod)
	}
	if c.Energy.Temperature != nil {
		p.Temperature = *c.Energy.Temperature
	}
	if c.Energy.JoinConcentration > 0 {
		p.JoinConcentration = c.Energy.JoinConcentration
	}
	if err := p.Validate(); err != nil {
		return energy.Params{}, fmt.Errorf("energy parameters: %w", err)
	}
	return p, nil
}

func (c *RunConfig) GraphOptions() loopgraph.Options {
	return loopgraph.Options{GTEnable: c.Energy.GTEnable, ShiftMoves: c.Energy.ShiftMoves}
}

func (c *RunConfig) SimOptions() sim.Options {
	return sim.Options{
		MaxTime:        c.Simulation.MaxTime,
		MaxSteps:       c.Simulation.MaxSteps,
		OutputInterval: c.Simulation.OutputInterval,
		OutputTime:     c.Simulation.OutputTime,
		StopConditions: append([]sim.StopCondition(nil), c.Simulation.StopConditions...),
	}
}

// Seed returns the configured base seed.
func (c *RunConfig) Seed() int64 {
	if c.Simulation.Seed == nil {
		return 0
	}
	return *c.Simulation.Seed
}
