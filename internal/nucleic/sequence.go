package nucleic

import (
	"errors"
	"fmt"
	"strings"
)

// Base is a single nucleotide. U is read as T.
type Base uint8

const (
	BaseNone Base = iota
	BaseA
	BaseC
	BaseG
	BaseT
)

// StrandBreak separates strands in sequence and structure strings.
const StrandBreak = '+'

var ErrEmptySequence = errors.New("sequence is empty")

func (b Base) String() string {
	switch b {
	case BaseA:
		return "A"
	case BaseC:
		return "C"
	case BaseG:
		return "G"
	case BaseT:
		return "T"
	default:
		return "N"
	}
}

func ParseBase(r rune) (Base, error) {
	switch r {
	case 'A', 'a':
		return BaseA, nil
	case 'C', 'c':
		return BaseC, nil
	case 'G', 'g':
		return BaseG, nil
	case 'T', 't', 'U', 'u':
		return BaseT, nil
	default:
		return BaseNone, fmt.Errorf("invalid base %q", r)
	}
}

// Complement returns the Watson-Crick partner.
func (b Base) Complement() Base {
	switch b {
	case BaseA:
		return BaseT
	case BaseT:
		return BaseA
	case BaseC:
		return BaseG
	case BaseG:
		return BaseC
	default:
		return BaseNone
	}
}

// IsWatsonCrick reports whether a and b form an AT or GC pair.
func IsWatsonCrick(a, b Base) bool {
	return a != BaseNone && a.Complement() == b
}

// CanPair reports whether a and b may form a base pair. Wobble G-T pairs are
// allowed only when gt is set.
func CanPair(a, b Base, gt bool) bool {
	if IsWatsonCrick(a, b) {
		return true
	}
	return gt && ((a == BaseG && b == BaseT) || (a == BaseT && b == BaseG))
}

// Sequence is the flat concatenation of one or more strands. Positions are
// absolute indices into the concatenation.
type Sequence struct {
	bases    []Base
	strandOf []int
	ends     []int
}

func ParseSequence(s string) (Sequence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sequence{}, ErrEmptySequence
	}

	var seq Sequence
	strand, strandLen := 0, 0
	for i, r := range s {
		if r == StrandBreak {
			if strandLen == 0 {
				return Sequence{}, fmt.Errorf("empty strand before position %d", i)
			}
			seq.ends = append(seq.ends, len(seq.bases)-1)
			strand++
			strandLen = 0
			continue
		}
		b, err := ParseBase(r)
		if err != nil {
			return Sequence{}, fmt.Errorf("position %d: %w", i, err)
		}
		seq.bases = append(seq.bases, b)
		seq.strandOf = append(seq.strandOf, strand)
		strandLen++
	}
	if strandLen == 0 {
		return Sequence{}, errors.New("empty strand at end of sequence")
	}
	seq.ends = append(seq.ends, len(seq.bases)-1)
	return seq, nil
}

func MustParseSequence(s string) Sequence {
	seq, err := ParseSequence(s)
	if err != nil {
		panic(err)
	}
	return seq
}

func (s Sequence) Len() int { return len(s.bases) }

func (s Sequence) Base(i int) Base { return s.bases[i] }

func (s Sequence) Strands() int { return len(s.ends) }

func (s Sequence) StrandOf(i int) int { return s.strandOf[i] }

// NickAfter reports whether the backbone link from i to i+1 is a strand break.
// The last base of the concatenation has no successor and reports false.
func (s Sequence) NickAfter(i int) bool {
	if i < 0 || i >= len(s.bases)-1 {
		return false
	}
	return s.strandOf[i] != s.strandOf[i+1]
}

func (s Sequence) String() string {
	var b strings.Builder
	for i, base := range s.bases {
		b.WriteString(base.String())
		if s.NickAfter(i) {
			b.WriteRune(StrandBreak)
		}
	}
	return b.String()
}
