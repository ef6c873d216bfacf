package loopgraph

import (
	"fmt"
	"io"
	"iter"
	"math"

	"foldsim/internal/moves"
)

// MoveSet is the complex-wide move container. It scans loops in arena order,
// so a draw matches a flat scan over every loop's list in that order.
type MoveSet struct {
	c *Complex
}

var _ moves.MoveContainer = (*MoveSet)(nil)

// AddMove files m under its first affected loop.
func (s *MoveSet) AddMove(m *moves.Move) {
	if n := s.c.lookup(m.Affected(0)); n != nil {
		s.c.addMove(n.base(), m)
	}
}

func (s *MoveSet) Rate() float64 {
	total := 0.0
	for _, sl := range s.c.slots {
		if sl.node != nil {
			total += sl.node.Moves().Rate()
		}
	}
	return total
}

func (s *MoveSet) Count() int {
	n := 0
	for _, sl := range s.c.slots {
		if sl.node != nil {
			n += sl.node.Moves().Count()
		}
	}
	return n
}

func (s *MoveSet) Choose(src moves.Source) (*moves.Move, error) {
	total := s.Rate()
	if !(total > 0) {
		return nil, moves.ErrNoMoves
	}
	target := src.Float64() * total
	var last *moves.MoveList
	for _, sl := range s.c.slots {
		if sl.node == nil {
			continue
		}
		list := sl.node.Moves()
		r := list.Rate()
		if r <= 0 {
			continue
		}
		last = list
		if target <= r {
			if m := list.Pick(target); m != nil {
				return m, nil
			}
		}
		target -= r
	}
	if last != nil {
		if m := last.Pick(math.Inf(1)); m != nil {
			return m, nil
		}
	}
	return nil, moves.ErrNoMoves
}

func (s *MoveSet) Next(cur moves.Cursor) (*moves.Move, moves.Cursor) {
	slot, pos := cur.Position()
	for ; slot < len(s.c.slots); slot, pos = slot+1, 0 {
		n := s.c.slots[slot].node
		if n == nil {
			continue
		}
		if m, next := n.Moves().Next(moves.At(0, pos)); m != nil {
			_, inner := next.Position()
			return m, moves.At(slot, inner)
		}
	}
	return nil, moves.At(slot, 0)
}

func (s *MoveSet) All() iter.Seq[*moves.Move] {
	return func(yield func(*moves.Move) bool) {
		for _, sl := range s.c.slots {
			if sl.node == nil {
				continue
			}
			for m := range sl.node.Moves().All() {
				if !yield(m) {
					return
				}
			}
		}
	}
}

func (s *MoveSet) ResetDeleted() {
	for _, sl := range s.c.slots {
		if sl.node != nil {
			sl.node.Moves().ResetDeleted()
		}
	}
}

// Resum recomputes every loop's total exactly and returns the sum.
func (s *MoveSet) Resum() float64 {
	total := 0.0
	for _, sl := range s.c.slots {
		if sl.node != nil {
			total += sl.node.Moves().Resum()
		}
	}
	return total
}

func (s *MoveSet) Dump(w io.Writer, verbose bool) error {
	if _, err := fmt.Fprintf(w, "complex moves=%d total=%.6g\n", s.Count(), s.Rate()); err != nil {
		return err
	}
	for _, l := range s.c.Loops() {
		if _, err := fmt.Fprintf(w, "%s %s: ", l.ID(), l.Describe()); err != nil {
			return err
		}
		if err := l.Moves().Dump(w, verbose); err != nil {
			return err
		}
	}
	return nil
}
