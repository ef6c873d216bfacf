package loopgraph

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"foldsim/internal/energy"
	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

var (
	ErrNoEnergyModel  = errors.New("energy model is required")
	ErrEmptyComplex   = errors.New("complex has no bases")
	ErrDisconnected   = errors.New("structure does not connect all strands")
	ErrNumericalFault = errors.New("numerical fault in move rate")
)

const defaultMinHairpin = 3

// EnergyModel prices loops and converts energy changes into rates.
type EnergyModel interface {
	moves.RateModel
	LoopEnergy(shape energy.LoopShape) float64
	UnimolecularRate(dE float64) float64
	DissociationRate(dE float64) float64
}

type Options struct {
	GTEnable   bool
	ShiftMoves bool
	MinHairpin int
}

func (o Options) withDefaults() Options {
	if o.MinHairpin <= 0 {
		o.MinHairpin = defaultMinHairpin
	}
	return o
}

type slot struct {
	gen  uint32
	node node
}

// Complex is the loop graph of one connected set of strands. It owns every
// loop; loops and moves refer to each other only through LoopID handles.
// A Complex is not safe for concurrent use.
type Complex struct {
	seq        nucleic.Sequence
	model      EnergyModel
	opts       Options
	pair       []int
	nickPrefix []int

	slots    []slot
	free     []int32
	closes   []moves.LoopID
	home     []moves.LoopID
	exterior moves.LoopID

	fault       error
	dissociated bool
}

// New builds the loop graph for seq folded into pairs and enumerates every
// loop's moves.
func New(seq nucleic.Sequence, pairs []int, model EnergyModel, opts Options) (*Complex, error) {
	if model == nil {
		return nil, ErrNoEnergyModel
	}
	n := seq.Len()
	if n == 0 {
		return nil, ErrEmptyComplex
	}
	if len(pairs) != n {
		return nil, fmt.Errorf("pair table has %d entries, sequence has %d bases", len(pairs), n)
	}
	opts = opts.withDefaults()
	c := &Complex{
		seq:        seq,
		model:      model,
		opts:       opts,
		pair:       append([]int(nil), pairs...),
		nickPrefix: make([]int, n+1),
		closes:     make([]moves.LoopID, n),
		home:       make([]moves.LoopID, n),
	}
	for i := 0; i < n; i++ {
		c.nickPrefix[i+1] = c.nickPrefix[i]
		if seq.NickAfter(i) {
			c.nickPrefix[i+1]++
		}
	}
	for i, p := range c.pair {
		if p == nucleic.Unpaired || p < i {
			continue
		}
		if p >= n || c.pair[p] != i {
			return nil, fmt.Errorf("pair table entry %d -> %d is not symmetric", i, p)
		}
		if !nucleic.CanPair(seq.Base(i), seq.Base(p), opts.GTEnable) {
			return nil, fmt.Errorf("bases %d (%s) and %d (%s) cannot pair", i, seq.Base(i), p, seq.Base(p))
		}
	}

	built := []*loopBase{c.build(span{open: -1, close: n})}
	for i, p := range c.pair {
		if p > i {
			built = append(built, c.build(span{open: i, close: p}))
		}
	}
	for _, l := range built {
		c.link(l)
		if l.breaks > 1 {
			return nil, fmt.Errorf("%w: loop %s crosses %d strand breaks", ErrDisconnected, l.closing.describe(), l.breaks)
		}
		if l.kind == nucleic.KindHairpin && l.segments[0] < opts.MinHairpin {
			return nil, fmt.Errorf("hairpin %s has %d unpaired bases, minimum is %d", l.closing.describe(), l.segments[0], opts.MinHairpin)
		}
		if math.IsNaN(l.energy) || math.IsInf(l.energy, 0) {
			return nil, fmt.Errorf("loop %s has undefined energy", l.closing.describe())
		}
	}
	for _, l := range built {
		c.enumerate(c.lookup(l.id))
	}
	return c, nil
}

func (s span) describe() string {
	if s.exterior() {
		return "exterior"
	}
	return fmt.Sprintf("%d-%d", s.open, s.close)
}

func (c *Complex) alloc(n node) moves.LoopID {
	var idx int32
	if k := len(c.free); k > 0 {
		idx = c.free[k-1]
		c.free = c.free[:k-1]
	} else {
		idx = int32(len(c.slots))
		c.slots = append(c.slots, slot{})
	}
	s := &c.slots[idx]
	s.gen++
	s.node = n
	id := moves.LoopID{Slot: idx, Gen: s.gen}
	n.base().id = id
	return id
}

func (c *Complex) release(id moves.LoopID) {
	c.slots[id.Slot].node = nil
	c.free = append(c.free, id.Slot)
}

func (c *Complex) lookup(id moves.LoopID) node {
	if id.IsZero() || int(id.Slot) >= len(c.slots) {
		return nil
	}
	s := c.slots[id.Slot]
	if s.node == nil || s.gen != id.Gen {
		return nil
	}
	return s.node
}

// build allocates the loop closed by closing from the current pair table and
// indexes it. Adjacency is left to link.
func (c *Complex) build(closing span) *loopBase {
	g := c.measure(closing, c.walk(closing))
	n := wrap(loopBase{
		geometry: g,
		kind:     g.classify(),
		energy:   c.energyOf(g),
		children: make([]moves.LoopID, len(g.inner)),
		list:     moves.NewMoveList(0),
	})
	id := c.alloc(n)
	if closing.exterior() {
		c.exterior = id
	} else {
		c.closes[closing.open] = id
	}
	for s := range g.segments {
		left, right := g.segmentBounds(s)
		for k := left + 1; k < right; k++ {
			c.home[k] = id
		}
	}
	return n.base()
}

// link points l at the loops closed by its inner pairs and makes l their
// parent.
func (c *Complex) link(l *loopBase) {
	for k, in := range l.inner {
		child := c.closes[in.open]
		l.children[k] = child
		if n := c.lookup(child); n != nil {
			n.base().parent = l.id
		}
	}
}

func (c *Complex) Sequence() nucleic.Sequence { return c.seq }

func (c *Complex) Structure() string {
	return nucleic.FormatStructure(c.pair, c.seq)
}

func (c *Complex) Pairs() []int {
	return append([]int(nil), c.pair...)
}

func (c *Complex) PairCount() int {
	return nucleic.PairCount(c.pair)
}

// Energy is the sum of all loop energies.
func (c *Complex) Energy() float64 {
	sum := 0.0
	for _, s := range c.slots {
		if s.node != nil {
			sum += s.node.Energy()
		}
	}
	return sum
}

// Loops returns the live loops in arena order.
func (c *Complex) Loops() []Loop {
	out := make([]Loop, 0, len(c.slots))
	for _, s := range c.slots {
		if s.node != nil {
			out = append(out, s.node)
		}
	}
	return out
}

func (c *Complex) Loop(id moves.LoopID) (Loop, bool) {
	n := c.lookup(id)
	if n == nil {
		return nil, false
	}
	return n, true
}

func (c *Complex) Exterior() moves.LoopID { return c.exterior }

// Fault returns the first numerical or consistency fault seen during
// enumeration.
func (c *Complex) Fault() error { return c.fault }

// Dissociated reports whether a dissociation move has split the complex.
func (c *Complex) Dissociated() bool { return c.dissociated }

// Moves returns the container over every live loop's moves.
func (c *Complex) Moves() *MoveSet { return &MoveSet{c: c} }

func (c *Complex) Describe(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", c.seq, c.Structure())
	for _, l := range c.Loops() {
		fmt.Fprintf(&b, "%s %s parent=%s moves=%d\n", l.ID(), l.Describe(), l.Parent(), l.Moves().Count())
	}
	_, err := io.WriteString(w, b.String())
	return err
}
