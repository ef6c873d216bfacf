package energy

import (
	"math"
	"strings"

	"github.com/patrickmn/go-cache"

	"foldsim/internal/nucleic"
)

// Model turns loop shapes into free energies and energy differences into
// rates. It is read-only after NewModel and safe for concurrent use.
type Model struct {
	params Params
	rt     float64
	cache  *cache.Cache
}

type Option func(*Model)

// WithCache memoizes loop energies by shape.
func WithCache() Option {
	return func(m *Model) {
		m.cache = cache.New(cache.NoExpiration, 0)
	}
}

func NewModel(p Params, opts ...Option) (*Model, error) {
	p.Substrate = strings.ToLower(p.Substrate)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Model{params: p, rt: p.RT()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Model) Params() Params { return m.params }

func (m *Model) RT() float64 { return m.rt }

func (m *Model) Method() RateMethod { return m.params.RateMethod }

// LoopEnergy returns the free energy of a single loop.
func (m *Model) LoopEnergy(shape LoopShape) float64 {
	if m.cache == nil {
		return m.loopEnergy(shape)
	}
	key := shape.key()
	if v, ok := m.cache.Get(key); ok {
		return v.(float64)
	}
	e := m.loopEnergy(shape)
	m.cache.Set(key, e, cache.NoExpiration)
	return e
}

func (m *Model) loopEnergy(s LoopShape) float64 {
	t := m.params.Tables
	switch s.Kind {
	case nucleic.KindHairpin:
		return m.extrapolate(t.Hairpin, s.Segments[0], 3) + m.terminal(s.Closing)
	case nucleic.KindStack:
		return m.stack(s.Closing, s.Inner[0])
	case nucleic.KindBulge:
		n := s.Segments[0] + s.Segments[1]
		if n == 1 {
			return m.extrapolate(t.Bulge, 1, 1) + m.stack(s.Closing, s.Inner[0])
		}
		return m.extrapolate(t.Bulge, n, 1) + m.terminal(s.Closing) + m.terminal(s.Inner[0])
	case nucleic.KindInterior:
		a, b := s.Segments[0], s.Segments[1]
		asym := math.Min(t.Asymmetry*math.Abs(float64(a-b)), t.MaxAsymmetry)
		return m.extrapolate(t.Interior, a+b, 2) + asym + m.terminal(s.Closing) + m.terminal(s.Inner[0])
	case nucleic.KindMulti:
		e := t.MultiA + t.MultiB*float64(s.Unpaired()) + t.MultiC*float64(len(s.Inner)+1)
		e += m.terminal(s.Closing)
		for _, p := range s.Inner {
			e += m.terminal(p)
		}
		return e
	case nucleic.KindOpen:
		e := 0.0
		if s.Closed {
			e += m.terminal(s.Closing)
		}
		for _, p := range s.Inner {
			e += m.terminal(p)
		}
		return e
	default:
		return math.NaN()
	}
}

// stack prices closing pair (i,j) stacked on inner pair (i+1,j-1).
func (m *Model) stack(closing, inner Pair) float64 {
	if !closing.watsonCrick() || !inner.watsonCrick() {
		return m.params.Tables.MismatchStack
	}
	v, ok := m.params.Tables.Stack[closing.Five.String()+inner.Five.String()]
	if !ok {
		return m.params.Tables.MismatchStack
	}
	return v
}

func (m *Model) terminal(p Pair) float64 {
	if p.terminalAT() {
		return m.params.Tables.TerminalAT
	}
	return 0
}

// extrapolate looks up a length-indexed table, using the Jacobson-Stockmayer
// log term past its end. Lengths below min are not valid loops.
func (m *Model) extrapolate(table []float64, n, min int) float64 {
	if n < min {
		return math.Inf(1)
	}
	last := len(table) - 1
	if n <= last {
		return table[n]
	}
	return table[last] + 1.75*m.rt*math.Log(float64(n)/float64(last))
}

// UnimolecularRate converts the energy change of an intramolecular move into a
// rate. Under Arrhenius the scale comes from Prefactor instead.
func (m *Model) UnimolecularRate(dE float64) float64 {
	switch m.params.RateMethod {
	case Kawasaki:
		return m.params.Unimolecular * math.Exp(-dE/(2*m.rt))
	case Metropolis:
		if dE <= 0 {
			return m.params.Unimolecular
		}
		return m.params.Unimolecular * math.Exp(-dE/m.rt)
	default:
		if dE <= 0 {
			return 1
		}
		return math.Exp(-dE / m.rt)
	}
}

// DissociationRate is the rate of breaking the last pair holding two strands
// together. dE is the loop energy change without the association term.
func (m *Model) DissociationRate(dE float64) float64 {
	return m.params.Bimolecular * math.Exp((m.params.Tables.Association-dE)/m.rt)
}

// JoinRate is the concentration-scaled rate of two strands associating.
func (m *Model) JoinRate() float64 {
	return m.params.Bimolecular * m.params.JoinConcentration
}

func (m *Model) UsesArrhenius() bool {
	return m.params.RateMethod == Arrhenius
}

// Prefactor returns exp(lnA - E/RT) summed over both sides of a pair.
func (m *Model) Prefactor(left, right Context) float64 {
	lnL, eL := m.params.Arrhenius.term(left)
	lnR, eR := m.params.Arrhenius.term(right)
	return math.Exp(lnL + lnR - (eL+eR)/m.rt)
}

// ComplexEnergy adds the association and volume terms for a complex of the
// given number of strands to a loop energy sum.
func (m *Model) ComplexEnergy(loops float64, strands int) float64 {
	if strands <= 1 {
		return loops
	}
	volume := -m.rt * math.Log(m.params.JoinConcentration)
	return loops + float64(strands-1)*(m.params.Tables.Association+volume)
}
