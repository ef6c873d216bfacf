package energy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RateMethod selects how a free energy change becomes a unimolecular rate.
type RateMethod string

const (
	Metropolis RateMethod = "metropolis"
	Kawasaki   RateMethod = "kawasaki"
	Arrhenius  RateMethod = "arrhenius"
)

const (
	SubstrateDNA = "dna"
	SubstrateRNA = "rna"
)

// GasConstant in kcal/(mol K).
const GasConstant = 0.0019872

const KelvinOffset = 273.15

// Params holds everything needed to build a Model. Energies are kcal/mol at
// 37 C; temperature only enters through RT.
type Params struct {
	Substrate         string          `yaml:"substrate" json:"substrate"`
	Temperature       float64         `yaml:"temperature" json:"temperature"`
	RateMethod        RateMethod      `yaml:"rate_method" json:"rate_method"`
	Unimolecular      float64         `yaml:"unimolecular_scaling" json:"unimolecular_scaling"`
	Bimolecular       float64         `yaml:"bimolecular_scaling" json:"bimolecular_scaling"`
	JoinConcentration float64         `yaml:"join_concentration" json:"join_concentration"`
	Arrhenius         ArrheniusParams `yaml:"arrhenius" json:"arrhenius"`
	Tables            Tables          `yaml:"tables" json:"tables"`
}

// ArrheniusParams are the per-context activation parameters.
type ArrheniusParams struct {
	LnAStack      float64 `yaml:"lna_stack" json:"lna_stack"`
	EStack        float64 `yaml:"e_stack" json:"e_stack"`
	LnALoop       float64 `yaml:"lna_loop" json:"lna_loop"`
	ELoop         float64 `yaml:"e_loop" json:"e_loop"`
	LnAEnd        float64 `yaml:"lna_end" json:"lna_end"`
	EEnd          float64 `yaml:"e_end" json:"e_end"`
	LnAStackLoop  float64 `yaml:"lna_stack_loop" json:"lna_stack_loop"`
	EStackLoop    float64 `yaml:"e_stack_loop" json:"e_stack_loop"`
	LnAStackEnd   float64 `yaml:"lna_stack_end" json:"lna_stack_end"`
	EStackEnd     float64 `yaml:"e_stack_end" json:"e_stack_end"`
	LnALoopEnd    float64 `yaml:"lna_loop_end" json:"lna_loop_end"`
	ELoopEnd      float64 `yaml:"e_loop_end" json:"e_loop_end"`
	LnAStackStack float64 `yaml:"lna_stack_stack" json:"lna_stack_stack"`
	EStackStack   float64 `yaml:"e_stack_stack" json:"e_stack_stack"`
}

// Tables is a compact nearest-neighbour parameter set. Length-indexed slices
// are extrapolated past their last entry.
type Tables struct {
	Stack         map[string]float64 `yaml:"stack" json:"stack"`
	MismatchStack float64            `yaml:"mismatch_stack" json:"mismatch_stack"`
	Hairpin       []float64          `yaml:"hairpin" json:"hairpin"`
	Bulge         []float64          `yaml:"bulge" json:"bulge"`
	Interior      []float64          `yaml:"interior" json:"interior"`
	TerminalAT    float64            `yaml:"terminal_at" json:"terminal_at"`
	Asymmetry     float64            `yaml:"asymmetry" json:"asymmetry"`
	MaxAsymmetry  float64            `yaml:"max_asymmetry" json:"max_asymmetry"`
	MultiA        float64            `yaml:"multi_a" json:"multi_a"`
	MultiB        float64            `yaml:"multi_b" json:"multi_b"`
	MultiC        float64            `yaml:"multi_c" json:"multi_c"`
	Association   float64            `yaml:"association" json:"association"`
}

func DefaultParams() Params {
	p := Params{
		Substrate:         SubstrateDNA,
		Temperature:       37,
		JoinConcentration: 1.0,
		Tables:            DNATables(),
	}
	_ = ApplyPreset(&p, PresetJSDefault)
	return p
}

// ParamsFor returns the defaults with the tables for the given substrate.
func ParamsFor(substrate string) Params {
	p := DefaultParams()
	if strings.EqualFold(substrate, SubstrateRNA) {
		p.Substrate = SubstrateRNA
		p.Tables = RNATables()
	}
	return p
}

// DNATables follows SantaLucia and Hicks (2004).
func DNATables() Tables {
	return Tables{
		Stack: map[string]float64{
			"AA": -1.00, "TT": -1.00,
			"AT": -0.88,
			"TA": -0.58,
			"CA": -1.45, "TG": -1.45,
			"GT": -1.44, "AC": -1.44,
			"CT": -1.28, "AG": -1.28,
			"GA": -1.30, "TC": -1.30,
			"CG": -2.17,
			"GC": -2.24,
			"GG": -1.84, "CC": -1.84,
		},
		MismatchStack: -0.5,
		Hairpin:       []float64{0, 0, 0, 3.5, 3.5, 3.3, 4.0, 4.2, 4.3, 4.5, 4.6},
		Bulge:         []float64{0, 4.0, 2.9, 3.1, 3.2, 3.3, 3.5},
		Interior:      []float64{0, 0, 0.5, 3.2, 3.6, 4.0, 4.4, 4.6, 4.8, 4.9, 4.9},
		TerminalAT:    0.5,
		Asymmetry:     0.3,
		MaxAsymmetry:  3.0,
		MultiA:        3.4,
		MultiB:        0,
		MultiC:        0.4,
		Association:   1.96,
	}
}

// RNATables follows the Turner 2004 Watson-Crick stacks and loop initiations.
func RNATables() Tables {
	return Tables{
		Stack: map[string]float64{
			"AA": -0.93, "TT": -0.93,
			"AT": -1.10,
			"TA": -1.33,
			"CT": -2.08, "AG": -2.08,
			"CA": -2.11, "TG": -2.11,
			"GT": -2.24, "AC": -2.24,
			"GA": -2.35, "TC": -2.35,
			"CG": -2.36,
			"GG": -3.26, "CC": -3.26,
			"GC": -3.42,
		},
		MismatchStack: -1.0,
		Hairpin:       []float64{0, 0, 0, 5.4, 5.6, 5.7, 5.4, 6.0, 5.5, 6.4},
		Bulge:         []float64{0, 3.8, 2.8, 3.2, 3.6, 4.0, 4.4},
		Interior:      []float64{0, 0, 0.5, 1.6, 1.1, 2.0, 2.0, 2.2, 2.3, 2.4, 2.5},
		TerminalAT:    0.45,
		Asymmetry:     0.6,
		MaxAsymmetry:  3.0,
		MultiA:        3.4,
		MultiB:        0,
		MultiC:        0.4,
		Association:   4.09,
	}
}

// LoadParams reads a YAML parameter file on top of the defaults.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read energy params %q: %w", path, err)
	}
	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse energy params %q: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func (p Params) Validate() error {
	switch strings.ToLower(p.Substrate) {
	case SubstrateDNA, SubstrateRNA:
	default:
		return fmt.Errorf("unsupported substrate: %s", p.Substrate)
	}
	switch p.RateMethod {
	case Metropolis, Kawasaki, Arrhenius:
	default:
		return fmt.Errorf("unsupported rate method: %s", p.RateMethod)
	}
	if p.Temperature <= -KelvinOffset {
		return fmt.Errorf("temperature %.2f C is below absolute zero", p.Temperature)
	}
	if p.Unimolecular <= 0 && p.RateMethod != Arrhenius {
		return errors.New("unimolecular scaling must be positive")
	}
	if p.Bimolecular <= 0 {
		return errors.New("bimolecular scaling must be positive")
	}
	if p.JoinConcentration <= 0 {
		return errors.New("join concentration must be positive")
	}
	if len(p.Tables.Stack) == 0 {
		return errors.New("stack table is empty")
	}
	if len(p.Tables.Hairpin) < 4 || len(p.Tables.Bulge) < 2 || len(p.Tables.Interior) < 3 {
		return errors.New("loop initiation tables are too short")
	}
	return nil
}

// RT returns the thermal energy at the configured temperature.
func (p Params) RT() float64 {
	return GasConstant * (p.Temperature + KelvinOffset)
}
