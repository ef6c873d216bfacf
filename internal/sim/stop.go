package sim

import (
	"errors"
	"fmt"
	"strings"

	"foldsim/internal/nucleic"
)

// StopReason says why a trajectory ended.
type StopReason string

const (
	ReasonNormal       StopReason = "normal"
	ReasonTime         StopReason = "time"
	ReasonNoMoves      StopReason = "no_moves"
	ReasonMaxSteps     StopReason = "max_steps"
	ReasonDissociation StopReason = "dissociation"
	ReasonNaN          StopReason = "nan"
	ReasonError        StopReason = "error"
	ReasonCancelled    StopReason = "cancelled"
)

const (
	TagTimeout      = "timeout"
	TagNoInitial    = "noinitial"
	TagNaN          = "nan"
	TagError        = "error"
	TagDissociation = "dissociation"
	TagMaxSteps     = "max_steps"
	TagCancelled    = "cancelled"
)

// MatchKind selects how a stop condition compares structures.
type MatchKind string

const (
	// MatchExact requires the whole structure to agree.
	MatchExact MatchKind = "exact"
	// MatchCount allows up to Tolerance bases whose partner disagrees.
	MatchCount MatchKind = "count"
	// MatchLoose is MatchCount restricted to positions not marked '*'.
	MatchLoose MatchKind = "loose"
)

const wildcard = '*'

var ErrBadStopCondition = errors.New("invalid stop condition")

// StopCondition ends a trajectory with Tag when the current structure
// matches Structure.
type StopCondition struct {
	Tag       string    `yaml:"tag" json:"tag"`
	Kind      MatchKind `yaml:"kind" json:"kind"`
	Structure string    `yaml:"structure" json:"structure"`
	Tolerance int       `yaml:"tolerance" json:"tolerance"`
}

type matcher struct {
	tag       string
	kind      MatchKind
	pairs     []int
	ignore    []bool
	tolerance int
}

func (c StopCondition) compile(seq nucleic.Sequence) (matcher, error) {
	if c.Tag == "" {
		return matcher{}, fmt.Errorf("%w: tag is required", ErrBadStopCondition)
	}
	kind := c.Kind
	if kind == "" {
		kind = MatchExact
	}
	switch kind {
	case MatchExact, MatchCount, MatchLoose:
	default:
		return matcher{}, fmt.Errorf("%w: %s: unknown kind %q", ErrBadStopCondition, c.Tag, c.Kind)
	}
	if c.Tolerance < 0 {
		return matcher{}, fmt.Errorf("%w: %s: negative tolerance", ErrBadStopCondition, c.Tag)
	}
	if kind != MatchLoose && strings.ContainsRune(c.Structure, wildcard) {
		return matcher{}, fmt.Errorf("%w: %s: wildcards need kind loose", ErrBadStopCondition, c.Tag)
	}

	ignore := make([]bool, 0, seq.Len())
	for _, r := range c.Structure {
		if r == nucleic.StrandBreak {
			continue
		}
		ignore = append(ignore, r == wildcard)
	}
	pairs, err := nucleic.ParseStructure(strings.ReplaceAll(c.Structure, string(wildcard), "."), seq)
	if err != nil {
		return matcher{}, fmt.Errorf("%w: %s: %v", ErrBadStopCondition, c.Tag, err)
	}
	m := matcher{tag: c.Tag, kind: kind, pairs: pairs, ignore: ignore, tolerance: c.Tolerance}
	if kind == MatchExact {
		m.tolerance = 0
	}
	return m, nil
}

// Validate checks that the condition parses against seq.
func (c StopCondition) Validate(seq nucleic.Sequence) error {
	_, err := c.compile(seq)
	return err
}

func (m matcher) matches(pairs []int) bool {
	misses := 0
	for i, p := range m.pairs {
		if m.ignore[i] || pairs[i] == p {
			continue
		}
		misses++
		if misses > m.tolerance {
			return false
		}
	}
	return true
}
