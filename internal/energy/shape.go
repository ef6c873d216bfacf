package energy

import (
	"strconv"
	"strings"

	"foldsim/internal/nucleic"
)

// Pair is a base pair given by its 5' and 3' bases.
type Pair struct {
	Five  nucleic.Base
	Three nucleic.Base
}

func (p Pair) watsonCrick() bool {
	return nucleic.IsWatsonCrick(p.Five, p.Three)
}

func (p Pair) terminalAT() bool {
	return !(p.Five == nucleic.BaseG && p.Three == nucleic.BaseC) &&
		!(p.Five == nucleic.BaseC && p.Three == nucleic.BaseG)
}

// LoopShape is everything the model needs to price one loop. Segments holds
// the unpaired run lengths between consecutive pairs, one more than Inner.
type LoopShape struct {
	Kind     nucleic.LoopKind
	Closed   bool
	Closing  Pair
	Inner    []Pair
	Segments []int
}

func (s LoopShape) Unpaired() int {
	n := 0
	for _, seg := range s.Segments {
		n += seg
	}
	return n
}

func (s LoopShape) key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(s.Kind)))
	if s.Closed {
		b.WriteByte('|')
		b.WriteString(s.Closing.Five.String())
		b.WriteString(s.Closing.Three.String())
	}
	for _, p := range s.Inner {
		b.WriteByte('|')
		b.WriteString(p.Five.String())
		b.WriteString(p.Three.String())
	}
	for _, seg := range s.Segments {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(seg))
	}
	return b.String()
}
