package loopgraph

import (
	"foldsim/internal/energy"
	"foldsim/internal/nucleic"
)

// span is a base pair (open < close). The exterior loop is closed by the
// virtual span (-1, n).
type span struct {
	open  int
	close int
}

func (s span) exterior() bool { return s.open < 0 }

// geometry is the boundary of one loop: the closing span, the inner pairs in
// 5' to 3' order, unpaired run lengths between them and the strand breaks
// crossed by the loop's backbone. The exterior loop counts the wrap from the
// last base to the first as a break.
type geometry struct {
	closing  span
	inner    []span
	segments []int
	breaks   int
}

func (g geometry) classify() nucleic.LoopKind {
	return nucleic.Classify(g.breaks, g.segments)
}

// segmentBounds returns the paired bases that delimit unpaired run s.
func (g geometry) segmentBounds(s int) (left, right int) {
	left = g.closing.open
	if s > 0 {
		left = g.inner[s-1].close
	}
	right = g.closing.close
	if s < len(g.inner) {
		right = g.inner[s].open
	}
	return left, right
}

func (g geometry) unpaired() int {
	n := 0
	for _, seg := range g.segments {
		n += seg
	}
	return n
}

func (c *Complex) measure(closing span, inner []span) geometry {
	g := geometry{closing: closing, inner: inner, segments: make([]int, len(inner)+1)}
	if closing.exterior() {
		g.breaks = 1
	}
	for s := range g.segments {
		left, right := g.segmentBounds(s)
		g.segments[s] = right - left - 1
		g.breaks += c.nicksBetween(left, right)
	}
	return g
}

// nicksBetween counts strand breaks on backbone links x -> x+1 with
// left <= x < right.
func (c *Complex) nicksBetween(left, right int) int {
	lo := max(left, 0)
	hi := min(right, c.seq.Len())
	if hi <= lo {
		return 0
	}
	return c.nickPrefix[hi] - c.nickPrefix[lo]
}

// walk lists the pairs directly enclosed by closing.
func (c *Complex) walk(closing span) []span {
	var inner []span
	end := closing.close
	for k := closing.open + 1; k < end; {
		if p := c.pair[k]; p > k {
			inner = append(inner, span{open: k, close: p})
			k = p + 1
			continue
		}
		k++
	}
	return inner
}

func (c *Complex) pairOf(s span) energy.Pair {
	return energy.Pair{Five: c.seq.Base(s.open), Three: c.seq.Base(s.close)}
}

func (c *Complex) shape(g geometry) energy.LoopShape {
	shape := energy.LoopShape{
		Kind:     g.classify(),
		Segments: g.segments,
		Inner:    make([]energy.Pair, len(g.inner)),
	}
	if !g.closing.exterior() {
		shape.Closed = true
		shape.Closing = c.pairOf(g.closing)
	}
	for k, in := range g.inner {
		shape.Inner[k] = c.pairOf(in)
	}
	return shape
}

func (c *Complex) energyOf(g geometry) float64 {
	return c.model.LoopEnergy(c.shape(g))
}

// replaceSpan returns inner with target swapped for with, in place order.
func replaceSpan(inner []span, target span, with []span) []span {
	out := make([]span, 0, len(inner)+len(with))
	for _, in := range inner {
		if in == target {
			out = append(out, with...)
			continue
		}
		out = append(out, in)
	}
	return out
}

// insertSpan returns inner[:lo] + s + inner[hi:].
func insertSpan(inner []span, lo, hi int, s span) []span {
	out := make([]span, 0, len(inner)-(hi-lo)+1)
	out = append(out, inner[:lo]...)
	out = append(out, s)
	return append(out, inner[hi:]...)
}
