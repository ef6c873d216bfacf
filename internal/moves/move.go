package moves

import (
	"errors"
	"fmt"
	"strings"
)

// Type is a move bitmask: one action bit plus optional variant bits.
type Type uint32

const (
	Invalid  Type = 0
	Create   Type = 1
	Delete   Type = 2
	Shift    Type = 4
	Variant1 Type = 8
	Variant2 Type = 16
	Variant3 Type = 32
)

const actionMask = Create | Delete | Shift

func (t Type) Action() Type { return t & actionMask }

func (t Type) Has(variant Type) bool { return t&variant != 0 }

func (t Type) String() string {
	var b strings.Builder
	switch t.Action() {
	case Create:
		b.WriteString("create")
	case Delete:
		b.WriteString("delete")
	case Shift:
		b.WriteString("shift")
	default:
		return "invalid"
	}
	for i, v := range []Type{Variant1, Variant2, Variant3} {
		if t.Has(v) {
			fmt.Fprintf(&b, "_%d", i+1)
		}
	}
	return b.String()
}

// NoIndex fills unused index slots.
const NoIndex int32 = -1

const maxIndices = 4

var (
	ErrStaleMove   = errors.New("move references a loop that no longer exists")
	ErrInvalidMove = errors.New("move has no action")
)

// LoopID is a generation-counted handle into a loop arena. The zero value
// never names a live loop.
type LoopID struct {
	Slot int32
	Gen  uint32
}

func (id LoopID) IsZero() bool { return id.Gen == 0 }

func (id LoopID) String() string {
	if id.IsZero() {
		return "L-"
	}
	return fmt.Sprintf("L%d.%d", id.Slot, id.Gen)
}

// Graph applies moves to the structure that generated them.
type Graph interface {
	ApplyMove(m *Move) (LoopID, error)
}

// Move is one candidate elementary transition. Indices are absolute base
// positions; create and delete carry (i, j), shift carries (i, j, i', j').
type Move struct {
	typ       Type
	rate      RateEnv
	index     [maxIndices]int32
	affected  [2]LoopID
	nAffected uint8
}

// NewLoopMove builds a move that touches a single loop.
func NewLoopMove(typ Type, rate RateEnv, loop LoopID, idx ...int) *Move {
	m := &Move{typ: typ, rate: rate, nAffected: 1}
	m.affected[0] = loop
	m.setIndices(idx)
	return m
}

// NewBridgeMove builds a move that touches two adjacent loops.
func NewBridgeMove(typ Type, rate RateEnv, a, b LoopID, idx ...int) *Move {
	m := &Move{typ: typ, rate: rate, nAffected: 2}
	m.affected[0] = a
	m.affected[1] = b
	m.setIndices(idx)
	return m
}

func (m *Move) setIndices(idx []int) {
	if len(idx) > maxIndices {
		panic(fmt.Sprintf("moves: %d indices, at most %d", len(idx), maxIndices))
	}
	for i := range m.index {
		m.index[i] = NoIndex
	}
	for i, v := range idx {
		m.index[i] = int32(v)
	}
}

func (m *Move) Rate() float64 { return m.rate.Rate }

func (m *Move) RateEnv() RateEnv { return m.rate }

func (m *Move) Type() Type { return m.typ }

func (m *Move) ArrType() float64 { return m.rate.ArrType }

func (m *Move) AffectedCount() int { return int(m.nAffected) }

// Affected returns the i-th loop handle. Asking past the number of affected
// loops is a programming error.
func (m *Move) Affected(i int) LoopID {
	if i < 0 || i >= int(m.nAffected) {
		panic(fmt.Sprintf("moves: affected loop %d of %d", i, m.nAffected))
	}
	return m.affected[i]
}

// References reports whether the move touches loop id.
func (m *Move) References(id LoopID) bool {
	for i := 0; i < int(m.nAffected); i++ {
		if m.affected[i] == id {
			return true
		}
	}
	return false
}

func (m *Move) Index(i int) int { return int(m.index[i]) }

// Apply performs the move on g and returns the loop to enumerate from. A move
// must not be applied twice.
func (m *Move) Apply(g Graph) (LoopID, error) {
	if m.typ.Action() == Invalid {
		return LoopID{}, ErrInvalidMove
	}
	return g.ApplyMove(m)
}

func (m *Move) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %s", m.typ, m.rate)
	b.WriteString(" idx=")
	for i, v := range m.index {
		if v == NoIndex {
			break
		}
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteString(" loops=")
	for i := 0; i < int(m.nAffected); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(m.affected[i].String())
	}
	return b.String()
}
