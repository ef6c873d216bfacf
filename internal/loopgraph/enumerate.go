package loopgraph

import (
	"fmt"

	"foldsim/internal/energy"
	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

func (c *Complex) enumerate(n node) {
	l := n.base()
	n.creates(c)
	if !l.closing.exterior() {
		c.closingMoves(l)
	}
}

// createsAll enumerates pair creation between every pair of segments.
func (c *Complex) createsAll(l *loopBase) {
	for s1 := range l.segments {
		for s2 := s1; s2 < len(l.segments); s2++ {
			c.createsBetween(l, s1, s2)
		}
	}
}

// createsBetween enumerates new pairs (u, v) with u in segment s1 and v in
// segment s2 of loop l, s1 <= s2.
func (c *Complex) createsBetween(l *loopBase, s1, s2 int) {
	left1, right1 := l.segmentBounds(s1)
	left2, right2 := l.segmentBounds(s2)
	enclosed := l.inner[s1:s2]
	for u := left1 + 1; u < right1; u++ {
		from := left2 + 1
		if s1 == s2 {
			from = u + 1
		}
		for v := from; v < right2; v++ {
			if !nucleic.CanPair(c.seq.Base(u), c.seq.Base(v), c.opts.GTEnable) {
				continue
			}
			pair := span{open: u, close: v}
			inside := c.measure(pair, enclosed)
			if len(enclosed) == 0 && inside.breaks == 0 && inside.segments[0] < c.opts.MinHairpin {
				continue
			}
			outside := c.measure(l.closing, insertSpan(l.inner, s1, s2, pair))
			dE := c.energyOf(inside) + c.energyOf(outside) - l.energy

			typ := moves.Create | moves.Variant1
			if s1 != s2 {
				typ = moves.Create | moves.Variant2
			}
			if inside.breaks > 0 {
				typ |= moves.Variant3
			}
			innerCtx, outerCtx := c.contexts(u, v)
			rate := moves.NewRateEnv(c.model.UnimolecularRate(dE), c.model, innerCtx, outerCtx)
			c.addMove(l, moves.NewLoopMove(typ, rate, l.id, u, v))
		}
	}
}

// closingMoves enumerates the delete and shifts of l's closing pair. Both
// touch l and its parent.
func (c *Complex) closingMoves(l *loopBase) {
	parentNode := c.lookup(l.parent)
	if parentNode == nil {
		c.recordFault(fmt.Errorf("loop %s has no live parent", l.id))
		return
	}
	p := parentNode.base()
	i, j := l.closing.open, l.closing.close

	merged := c.measure(p.closing, replaceSpan(p.inner, l.closing, l.inner))
	dE := c.energyOf(merged) - l.energy - p.energy
	typ := moves.Delete
	if l.kind == nucleic.KindStack {
		typ |= moves.Variant1
	}
	if merged.breaks > 0 {
		typ |= moves.Variant2
	}
	var rate moves.RateEnv
	if l.breaks > 0 && p.breaks > 0 {
		typ |= moves.Variant3
		rate = moves.FixedRate(c.model.DissociationRate(dE))
	} else {
		innerCtx, outerCtx := c.contexts(i, j)
		rate = moves.NewRateEnv(c.model.UnimolecularRate(dE), c.model, innerCtx, outerCtx)
	}
	c.addMove(l, moves.NewBridgeMove(typ, rate, l.id, p.id, i, j))

	if c.opts.ShiftMoves {
		c.shiftMoves(l, p)
	}
}

// shiftMoves slides one end of l's closing pair onto an adjacent unpaired
// base of the same strand, from inside l or from the parent p.
func (c *Complex) shiftMoves(l, p *loopBase) {
	i, j := l.closing.open, l.closing.close
	candidates := []struct {
		to    span
		moved int
		inner bool
	}{
		{span{i, j - 1}, j - 1, true},
		{span{i + 1, j}, i + 1, true},
		{span{i, j + 1}, j + 1, false},
		{span{i - 1, j}, i - 1, false},
	}
	for _, cand := range candidates {
		to, moved := cand.to, cand.moved
		if to.open < 0 || to.close >= c.seq.Len() || to.open >= to.close {
			continue
		}
		if c.pair[moved] != nucleic.Unpaired {
			continue
		}
		if c.seq.NickAfter(min(moved, movedFrom(moved, i, j))) {
			continue
		}
		if !nucleic.CanPair(c.seq.Base(to.open), c.seq.Base(to.close), c.opts.GTEnable) {
			continue
		}
		after := c.measure(to, l.inner)
		if len(l.inner) == 0 && after.breaks == 0 && after.segments[0] < c.opts.MinHairpin {
			continue
		}
		outer := c.measure(p.closing, replaceSpan(p.inner, l.closing, []span{to}))
		dE := c.energyOf(after) + c.energyOf(outer) - l.energy - p.energy

		typ := moves.Shift | moves.Variant2
		if cand.inner {
			typ = moves.Shift | moves.Variant1
		}
		innerCtx, outerCtx := c.shiftedContexts(l.closing, to)
		rate := moves.NewRateEnv(c.model.UnimolecularRate(dE), c.model, innerCtx, outerCtx)
		c.addMove(l, moves.NewBridgeMove(typ, rate, l.id, p.id, i, j, to.open, to.close))
	}
}

// movedFrom returns the end of the pair (i, j) adjacent to moved.
func movedFrom(moved, i, j int) int {
	if moved == i-1 || moved == i+1 {
		return i
	}
	return j
}

// contexts classifies both sides of the pair (u, v) against the current pair
// table.
func (c *Complex) contexts(u, v int) (inner, outer energy.Context) {
	n := c.seq.Len()
	inner = c.side(u+1, v-1, u+1 < v && !c.seq.NickAfter(u), v-1 > u && !c.seq.NickAfter(v-1))
	outer = c.side(u-1, v+1, u > 0 && !c.seq.NickAfter(u-1), v+1 < n && !c.seq.NickAfter(v))
	return inner, outer
}

// shiftedContexts classifies the pair to as it would be after replacing from.
func (c *Complex) shiftedContexts(from, to span) (energy.Context, energy.Context) {
	saved := [4]int{c.pair[from.open], c.pair[from.close], c.pair[to.open], c.pair[to.close]}
	c.pair[from.open], c.pair[from.close] = nucleic.Unpaired, nucleic.Unpaired
	c.pair[to.open], c.pair[to.close] = to.close, to.open
	inner, outer := c.contexts(to.open, to.close)
	c.pair[from.open], c.pair[from.close] = saved[0], saved[1]
	c.pair[to.open], c.pair[to.close] = saved[2], saved[3]
	return inner, outer
}

func (c *Complex) side(a, b int, hasA, hasB bool) energy.Context {
	if hasA && hasB && c.pair[a] == b {
		return energy.ContextStack
	}
	return energy.Combine(c.flank(a, hasA), c.flank(b, hasB))
}

func (c *Complex) flank(x int, present bool) energy.Flank {
	switch {
	case !present:
		return energy.FlankEnd
	case c.pair[x] == nucleic.Unpaired:
		return energy.FlankLoop
	default:
		return energy.FlankStack
	}
}

func (c *Complex) addMove(l *loopBase, m *moves.Move) {
	if !moves.Valid(m.Rate()) {
		c.recordFault(fmt.Errorf("%w: %s rate %v in %s", ErrNumericalFault, m.Type(), m.Rate(), l.id))
		return
	}
	l.list.AddMove(m)
}

func (c *Complex) recordFault(err error) {
	if c.fault == nil {
		c.fault = err
	}
}
