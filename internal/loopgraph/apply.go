package loopgraph

import (
	"slices"

	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

var _ moves.Graph = (*Complex)(nil)

// ApplyMove performs m on the graph and returns the outermost loop it
// created. Moves whose loops are gone, or whose pairs no longer match the
// table, yield moves.ErrStaleMove.
func (c *Complex) ApplyMove(m *moves.Move) (moves.LoopID, error) {
	for k := 0; k < m.AffectedCount(); k++ {
		if c.lookup(m.Affected(k)) == nil {
			return moves.LoopID{}, moves.ErrStaleMove
		}
	}
	switch m.Type().Action() {
	case moves.Create:
		return c.applyCreate(m)
	case moves.Delete:
		return c.applyDelete(m)
	case moves.Shift:
		return c.applyShift(m)
	default:
		return moves.LoopID{}, moves.ErrInvalidMove
	}
}

func (c *Complex) applyCreate(m *moves.Move) (moves.LoopID, error) {
	l := c.lookup(m.Affected(0)).base()
	u, v := m.Index(0), m.Index(1)
	if c.pair[u] != nucleic.Unpaired || c.pair[v] != nucleic.Unpaired || c.home[u] != l.id || c.home[v] != l.id {
		return moves.LoopID{}, moves.ErrStaleMove
	}
	c.pair[u], c.pair[v] = v, u
	return c.rewire([]*loopBase{l}, l.parent, []span{l.closing, {open: u, close: v}}), nil
}

func (c *Complex) applyDelete(m *moves.Move) (moves.LoopID, error) {
	a, b, err := c.bridged(m)
	if err != nil {
		return moves.LoopID{}, err
	}
	c.pair[a.closing.open], c.pair[a.closing.close] = nucleic.Unpaired, nucleic.Unpaired
	root := c.rewire([]*loopBase{a, b}, b.parent, []span{b.closing})
	if m.Type().Has(moves.Variant3) {
		c.dissociated = true
	}
	return root, nil
}

func (c *Complex) applyShift(m *moves.Move) (moves.LoopID, error) {
	a, b, err := c.bridged(m)
	if err != nil {
		return moves.LoopID{}, err
	}
	to := span{open: m.Index(2), close: m.Index(3)}
	c.pair[a.closing.open], c.pair[a.closing.close] = nucleic.Unpaired, nucleic.Unpaired
	if c.pair[to.open] != nucleic.Unpaired || c.pair[to.close] != nucleic.Unpaired {
		c.pair[a.closing.open], c.pair[a.closing.close] = a.closing.close, a.closing.open
		return moves.LoopID{}, moves.ErrStaleMove
	}
	c.pair[to.open], c.pair[to.close] = to.close, to.open
	return c.rewire([]*loopBase{a, b}, b.parent, []span{b.closing, to}), nil
}

// bridged resolves the (child, parent) loops of a delete or shift and checks
// that the child is still closed by the move's pair.
func (c *Complex) bridged(m *moves.Move) (*loopBase, *loopBase, error) {
	a := c.lookup(m.Affected(0)).base()
	b := c.lookup(m.Affected(1)).base()
	if a.parent != b.id || a.closing != (span{open: m.Index(0), close: m.Index(1)}) {
		return nil, nil, moves.ErrStaleMove
	}
	return a, b, nil
}

// rewire replaces the old loops with loops closed by closings, the first of
// which takes the old outermost loop's place under parent. Surviving loops
// that now hang off a new loop drop their moves into the freed loops and
// regenerate their closing-pair moves.
func (c *Complex) rewire(old []*loopBase, parent moves.LoopID, closings []span) moves.LoopID {
	freed := make([]moves.LoopID, len(old))
	for k, l := range old {
		freed[k] = l.id
		l.list.Retire()
		c.release(l.id)
	}

	created := make([]*loopBase, len(closings))
	for k, s := range closings {
		created[k] = c.build(s)
	}
	outer := created[0]
	outer.parent = parent
	if p := c.lookup(parent); p != nil {
		pb := p.base()
		for k, in := range pb.inner {
			if in == outer.closing {
				pb.children[k] = outer.id
			}
		}
	}

	fresh := make([]moves.LoopID, len(created))
	for k, l := range created {
		fresh[k] = l.id
	}
	for _, l := range created {
		c.link(l)
	}
	for _, l := range created {
		for _, child := range l.children {
			if slices.Contains(fresh, child) {
				continue
			}
			if n := c.lookup(child); n != nil {
				c.refresh(n.base(), freed)
			}
		}
	}
	for _, l := range created {
		c.enumerate(c.lookup(l.id))
	}
	return outer.id
}

// refresh invalidates l's moves that touch freed loops and regenerates its
// closing-pair moves against its new parent.
func (c *Complex) refresh(l *loopBase, freed []moves.LoopID) {
	l.list.Invalidate(func(m *moves.Move) bool {
		for _, id := range freed {
			if m.References(id) {
				return true
			}
		}
		return false
	})
	c.closingMoves(l)
}
