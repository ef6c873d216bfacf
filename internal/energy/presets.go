package energy

import (
	"fmt"
	"sort"
)

const (
	PresetJSDefault       = "js_default"
	PresetJSKawasaki25    = "js_kawasaki25"
	PresetJSKawasaki37    = "js_kawasaki37"
	PresetJSMetropolis25  = "js_metropolis25"
	PresetJSMetropolis37  = "js_metropolis37"
	PresetDNA23Metropolis = "dna23_metropolis"
	PresetDNA23Arrhenius  = "dna23_arrhenius"
)

// Rate constants from Schaeffer's thesis and the DNA23 parameter fit
// (Zolaktaf et al. 2017).
var presets = map[string]func(*Params){
	PresetJSDefault: jsKawasaki37,
	PresetJSKawasaki25: func(p *Params) {
		p.RateMethod = Kawasaki
		p.Unimolecular = 6.1e7
		p.Bimolecular = 1.29e6
	},
	PresetJSKawasaki37: jsKawasaki37,
	PresetJSMetropolis25: func(p *Params) {
		p.RateMethod = Metropolis
		p.Unimolecular = 4.4e8
		p.Bimolecular = 1.26e6
	},
	PresetJSMetropolis37: func(p *Params) {
		p.RateMethod = Metropolis
		p.Unimolecular = 7.3e8
		p.Bimolecular = 1.40e6
	},
	PresetDNA23Metropolis: func(p *Params) {
		p.RateMethod = Metropolis
		p.Unimolecular = 2.41686715e+06
		p.Bimolecular = 8.01171383e+05
	},
	PresetDNA23Arrhenius: func(p *Params) {
		p.RateMethod = Arrhenius
		p.Arrhenius = ArrheniusParams{
			LnAStack:      1.41839430e+01,
			EStack:        5.28692038e+00,
			LnALoop:       1.64236969e+01,
			ELoop:         4.46143369e+00,
			LnAEnd:        1.29648159e+01,
			EEnd:          3.49798154e+00,
			LnAStackLoop:  5.81061725e+00,
			EStackLoop:    -1.12763854e+00,
			LnAStackEnd:   1.75235569e+01,
			EStackEnd:     2.65589869e+00,
			LnALoopEnd:    2.42237267e+00,
			ELoopEnd:      8.49339120e-02,
			LnAStackStack: 8.04573830e+00,
			EStackStack:   -6.27121400e-01,
		}
		p.Bimolecular = 1.60062641e-02
	},
}

func jsKawasaki37(p *Params) {
	p.RateMethod = Kawasaki
	p.Unimolecular = 1.5e8
	p.Bimolecular = 1.38e6
}

// ApplyPreset overwrites the rate method and scaling constants of p.
func ApplyPreset(p *Params, name string) error {
	apply, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown rate preset: %s", name)
	}
	apply(p)
	return nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
