package moves

import (
	"fmt"
	"io"
	"iter"
	"math"
)

const (
	initialCapacity = 8
	// resumInterval bounds how many incremental additions may accumulate
	// round-off before the total is recomputed exactly.
	resumInterval = 1024
)

// MoveList is a flat weighted array of moves with a sidecar of invalidated
// entries awaiting ResetDeleted. Invalidated slots stay in place as nil until
// ResetDeleted compacts them, so cursors taken before an invalidation keep
// their positions.
type MoveList struct {
	moves   []*Move
	deleted []*Move
	live    int
	total   float64
	adds    int
}

func NewMoveList(capacity int) *MoveList {
	if capacity < initialCapacity {
		capacity = initialCapacity
	}
	return &MoveList{moves: make([]*Move, 0, capacity)}
}

func (l *MoveList) AddMove(m *Move) {
	l.moves = push(l.moves, m)
	l.live++
	l.total += m.Rate()
	l.adds++
	if l.adds >= resumInterval {
		l.Resum()
	}
}

// push appends, doubling capacity when full so existing order is preserved.
func push(dst []*Move, m *Move) []*Move {
	if len(dst) == cap(dst) {
		grown := make([]*Move, len(dst), max(2*cap(dst), initialCapacity))
		copy(grown, dst)
		dst = grown
	}
	return append(dst, m)
}

func (l *MoveList) Rate() float64 { return l.total }

func (l *MoveList) Count() int { return l.live }

func (l *MoveList) DeletedCount() int { return len(l.deleted) }

// Resum recomputes the total exactly and returns it.
func (l *MoveList) Resum() float64 {
	sum := 0.0
	for _, m := range l.moves {
		if m != nil {
			sum += m.Rate()
		}
	}
	l.total = sum
	l.adds = 0
	return sum
}

// Pick returns the first move whose cumulative rate reaches target. Zero-rate
// moves are never returned; a target past the end from round-off yields the
// last positive-rate move. Returns nil when nothing has positive rate.
func (l *MoveList) Pick(target float64) *Move {
	var last *Move
	acc := 0.0
	for _, m := range l.moves {
		if m == nil {
			continue
		}
		r := m.Rate()
		if r <= 0 {
			continue
		}
		acc += r
		last = m
		if acc >= target {
			return m
		}
	}
	return last
}

func (l *MoveList) Choose(src Source) (*Move, error) {
	if l.live == 0 || !(l.total > 0) {
		return nil, ErrNoMoves
	}
	m := l.Pick(src.Float64() * l.total)
	if m == nil {
		return nil, ErrNoMoves
	}
	return m, nil
}

func (l *MoveList) Next(cur Cursor) (*Move, Cursor) {
	for cur.inner < len(l.moves) {
		m := l.moves[cur.inner]
		cur.inner++
		if m != nil {
			return m, cur
		}
	}
	return nil, cur
}

func (l *MoveList) All() iter.Seq[*Move] {
	return func(yield func(*Move) bool) {
		for _, m := range l.moves {
			if m == nil {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Invalidate moves every entry matching stale into the sidecar, leaving a
// hole in its slot, and resums the total. It returns the number moved.
func (l *MoveList) Invalidate(stale func(*Move) bool) int {
	n := 0
	for i, m := range l.moves {
		if m == nil || !stale(m) {
			continue
		}
		l.deleted = push(l.deleted, m)
		l.moves[i] = nil
		l.total -= m.Rate()
		n++
	}
	if n > 0 {
		l.live -= n
		l.Resum()
	}
	return n
}

// Retire moves every entry into the sidecar.
func (l *MoveList) Retire() {
	for i, m := range l.moves {
		if m != nil {
			l.deleted = push(l.deleted, m)
			l.moves[i] = nil
		}
	}
	l.live = 0
	l.total = 0
	l.adds = 0
}

// ResetDeleted drops the sidecar and closes the holes it left, keeping the
// survivors in order and both capacities.
func (l *MoveList) ResetDeleted() {
	if len(l.deleted) == 0 {
		return
	}
	kept := l.moves[:0]
	for _, m := range l.moves {
		if m != nil {
			kept = append(kept, m)
		}
	}
	clear(l.moves[len(kept):])
	l.moves = kept
	clear(l.deleted)
	l.deleted = l.deleted[:0]
}

func (l *MoveList) Dump(w io.Writer, verbose bool) error {
	if _, err := fmt.Fprintf(w, "moves=%d deleted=%d total=%.6g\n", l.live, len(l.deleted), l.total); err != nil {
		return err
	}
	if !verbose {
		return nil
	}
	for i, m := range l.moves {
		if m == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %4d %s\n", i, m); err != nil {
			return err
		}
	}
	return nil
}

// Valid reports whether r may enter a weighted container.
func Valid(r float64) bool {
	return r >= 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
}

var _ MoveContainer = (*MoveList)(nil)
