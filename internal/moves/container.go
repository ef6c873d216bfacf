package moves

import (
	"errors"
	"io"
	"iter"
)

// ErrNoMoves signals that the container holds no positive rate to draw from.
var ErrNoMoves = errors.New("no moves available")

// Source supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Cursor is an opaque position for Next. The zero value starts at the
// beginning.
type Cursor struct {
	outer int
	inner int
}

// At builds a cursor for containers that nest lists.
func At(outer, inner int) Cursor {
	return Cursor{outer: outer, inner: inner}
}

func (c Cursor) Position() (outer, inner int) {
	return c.outer, c.inner
}

// MoveContainer aggregates currently valid moves and draws one with
// probability proportional to its rate.
type MoveContainer interface {
	AddMove(m *Move)
	Rate() float64
	Choose(src Source) (*Move, error)
	Next(cur Cursor) (*Move, Cursor)
	All() iter.Seq[*Move]
	Count() int
	ResetDeleted()
	Dump(w io.Writer, verbose bool) error
}
