package foldsim

import (
	"context"
	"fmt"

	"foldsim/internal/config"
	"foldsim/internal/energy"
	"foldsim/internal/loopgraph"
	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

// EnergyType selects what Energy reports.
type EnergyType string

const (
	// EnergyLoop is the sum of loop energies.
	EnergyLoop EnergyType = "loop"
	// EnergyComplex adds the association and volume terms for every strand
	// past the first.
	EnergyComplex EnergyType = "complex"
)

type StateRequest struct {
	Sequence  string
	Structure string
	Model     ModelOptions
}

type EnergyRequest struct {
	StateRequest
	Type EnergyType
}

type LoopEnergy struct {
	ID          string
	Kind        string
	Description string
	Energy      float64
}

type EnergyResult struct {
	Sequence  string
	Structure string
	Type      EnergyType
	Energy    float64
	// JoinRate is the concentration-scaled association rate, reported for
	// complex energies of multi-strand structures.
	JoinRate  float64
	Loops     []LoopEnergy
}

type Transition struct {
	Type    string
	Rate    float64
	ArrType float64
	Indices []int
	Loops   []string
}

type TransitionsResult struct {
	Sequence    string
	Structure   string
	Energy      float64
	TotalRate   float64
	Transitions []Transition
}

// Energy evaluates the free energy of a structure.
func (c *Client) Energy(_ context.Context, req EnergyRequest) (EnergyResult, error) {
	typ := req.Type
	if typ == "" {
		typ = EnergyLoop
	}
	if typ != EnergyLoop && typ != EnergyComplex {
		return EnergyResult{}, fmt.Errorf("unknown energy type %q", req.Type)
	}
	state, err := buildState(req.StateRequest)
	if err != nil {
		return EnergyResult{}, err
	}

	loops := state.complex.Loops()
	out := EnergyResult{
		Sequence:  state.complex.Sequence().String(),
		Structure: state.complex.Structure(),
		Type:      typ,
		Energy:    state.complex.Energy(),
		Loops:     make([]LoopEnergy, 0, len(loops)),
	}
	for _, l := range loops {
		out.Loops = append(out.Loops, LoopEnergy{
			ID:          l.ID().String(),
			Kind:        l.Kind().String(),
			Description: l.Describe(),
			Energy:      l.Energy(),
		})
	}
	if typ == EnergyComplex {
		strands := state.complex.Sequence().Strands()
		out.Energy = state.model.ComplexEnergy(out.Energy, strands)
		if strands > 1 {
			out.JoinRate = state.model.JoinRate()
		}
	}
	return out, nil
}

// Transitions lists every elementary move available from a structure with
// its rate.
func (c *Client) Transitions(_ context.Context, req StateRequest) (TransitionsResult, error) {
	state, err := buildState(req)
	if err != nil {
		return TransitionsResult{}, err
	}
	if err := state.complex.Fault(); err != nil {
		return TransitionsResult{}, err
	}

	set := state.complex.Moves()
	out := TransitionsResult{
		Sequence:    state.complex.Sequence().String(),
		Structure:   state.complex.Structure(),
		Energy:      state.complex.Energy(),
		TotalRate:   set.Rate(),
		Transitions: make([]Transition, 0, set.Count()),
	}
	for m := range set.All() {
		t := Transition{
			Type:    m.Type().String(),
			Rate:    m.Rate(),
			ArrType: m.ArrType(),
		}
		for i := 0; i < 4 && m.Index(i) != int(moves.NoIndex); i++ {
			t.Indices = append(t.Indices, m.Index(i))
		}
		for i := 0; i < m.AffectedCount(); i++ {
			t.Loops = append(t.Loops, m.Affected(i).String())
		}
		out.Transitions = append(out.Transitions, t)
	}
	return out, nil
}

type state struct {
	model   *energy.Model
	complex *loopgraph.Complex
}

func buildState(req StateRequest) (state, error) {
	cfg := &config.RunConfig{
		Sequence:  req.Sequence,
		Structure: req.Structure,
		Energy:    req.Model.energyConfig(),
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return state{}, err
	}
	params, err := cfg.EnergyParams()
	if err != nil {
		return state{}, err
	}
	em, err := energy.NewModel(params)
	if err != nil {
		return state{}, err
	}

	seq, err := nucleic.ParseSequence(cfg.Sequence)
	if err != nil {
		return state{}, err
	}
	structure := cfg.Structure
	if structure == "" {
		structure = nucleic.OpenStructure(seq)
	}
	pairs, err := nucleic.ParseStructure(structure, seq)
	if err != nil {
		return state{}, err
	}
	cx, err := loopgraph.New(seq, pairs, em, cfg.GraphOptions())
	if err != nil {
		return state{}, err
	}
	return state{model: em, complex: cx}, nil
}
