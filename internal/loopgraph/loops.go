package loopgraph

import (
	"fmt"

	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

// Loop is a read-only view of one node of the loop graph.
type Loop interface {
	ID() moves.LoopID
	Kind() nucleic.LoopKind
	Energy() float64
	Moves() *moves.MoveList
	Parent() moves.LoopID
	Children() []moves.LoopID
	// Closing returns the closing pair; ok is false for the exterior loop.
	Closing() (i, j int, ok bool)
	Breaks() int
	Describe() string
}

type node interface {
	Loop
	base() *loopBase
	creates(c *Complex)
}

type loopBase struct {
	geometry
	id       moves.LoopID
	kind     nucleic.LoopKind
	energy   float64
	parent   moves.LoopID
	children []moves.LoopID
	list     *moves.MoveList
}

func (l *loopBase) base() *loopBase { return l }

func (l *loopBase) ID() moves.LoopID { return l.id }

func (l *loopBase) Kind() nucleic.LoopKind { return l.kind }

func (l *loopBase) Energy() float64 { return l.energy }

func (l *loopBase) Moves() *moves.MoveList { return l.list }

func (l *loopBase) Parent() moves.LoopID { return l.parent }

func (l *loopBase) Children() []moves.LoopID {
	return append([]moves.LoopID(nil), l.children...)
}

func (l *loopBase) Closing() (int, int, bool) {
	if l.closing.exterior() {
		return 0, 0, false
	}
	return l.closing.open, l.closing.close, true
}

func (l *loopBase) Breaks() int { return l.breaks }

// HairpinLoop is closed by one pair and encloses no other pair.
type HairpinLoop struct{ loopBase }

func (l *HairpinLoop) creates(c *Complex) { c.createsBetween(&l.loopBase, 0, 0) }

func (l *HairpinLoop) Describe() string {
	return fmt.Sprintf("hairpin %d-%d size=%d dG=%.2f", l.closing.open, l.closing.close, l.segments[0], l.energy)
}

// StackLoop joins two adjacent pairs. It has no unpaired bases to pair.
type StackLoop struct{ loopBase }

func (l *StackLoop) creates(*Complex) {}

func (l *StackLoop) Describe() string {
	in := l.inner[0]
	return fmt.Sprintf("stack %d-%d/%d-%d dG=%.2f", l.closing.open, l.closing.close, in.open, in.close, l.energy)
}

// BulgeLoop has unpaired bases on one side only.
type BulgeLoop struct{ loopBase }

func (l *BulgeLoop) creates(c *Complex) {
	side := 0
	if l.segments[0] == 0 {
		side = 1
	}
	c.createsBetween(&l.loopBase, side, side)
}

func (l *BulgeLoop) Describe() string {
	in := l.inner[0]
	return fmt.Sprintf("bulge %d-%d/%d-%d size=%d dG=%.2f", l.closing.open, l.closing.close, in.open, in.close, l.unpaired(), l.energy)
}

// InteriorLoop has unpaired bases on both sides of its inner pair.
type InteriorLoop struct{ loopBase }

func (l *InteriorLoop) creates(c *Complex) {
	c.createsBetween(&l.loopBase, 0, 0)
	c.createsBetween(&l.loopBase, 1, 1)
	c.createsBetween(&l.loopBase, 0, 1)
}

func (l *InteriorLoop) Describe() string {
	in := l.inner[0]
	return fmt.Sprintf("interior %d-%d/%d-%d %dx%d dG=%.2f", l.closing.open, l.closing.close, in.open, in.close, l.segments[0], l.segments[1], l.energy)
}

// MultiLoop encloses two or more pairs.
type MultiLoop struct{ loopBase }

func (l *MultiLoop) creates(c *Complex) { c.createsAll(&l.loopBase) }

func (l *MultiLoop) Describe() string {
	return fmt.Sprintf("multi %d-%d branches=%d unpaired=%d dG=%.2f", l.closing.open, l.closing.close, len(l.inner)+1, l.unpaired(), l.energy)
}

// OpenLoop contains a strand break. The exterior loop is always open.
type OpenLoop struct{ loopBase }

// creates skips loops with more than one break: pairing across them would be
// a bimolecular join.
func (l *OpenLoop) creates(c *Complex) {
	if l.breaks > 1 {
		return
	}
	c.createsAll(&l.loopBase)
}

func (l *OpenLoop) Describe() string {
	if l.closing.exterior() {
		return fmt.Sprintf("open exterior pairs=%d unpaired=%d dG=%.2f", len(l.inner), l.unpaired(), l.energy)
	}
	return fmt.Sprintf("open %d-%d pairs=%d unpaired=%d dG=%.2f", l.closing.open, l.closing.close, len(l.inner), l.unpaired(), l.energy)
}

func wrap(b loopBase) node {
	switch b.kind {
	case nucleic.KindHairpin:
		return &HairpinLoop{b}
	case nucleic.KindStack:
		return &StackLoop{b}
	case nucleic.KindBulge:
		return &BulgeLoop{b}
	case nucleic.KindInterior:
		return &InteriorLoop{b}
	case nucleic.KindMulti:
		return &MultiLoop{b}
	default:
		return &OpenLoop{b}
	}
}
