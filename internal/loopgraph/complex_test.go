package loopgraph

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foldsim/internal/energy"
	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func testModel(t *testing.T, preset string) *energy.Model {
	t.Helper()
	p := energy.DefaultParams()
	require.NoError(t, energy.ApplyPreset(&p, preset))
	m, err := energy.NewModel(p)
	require.NoError(t, err)
	return m
}

func fold(t *testing.T, model EnergyModel, sequence, structure string, opts Options) *Complex {
	t.Helper()
	seq, err := nucleic.ParseSequence(sequence)
	require.NoError(t, err)
	pairs, err := nucleic.ParseStructure(structure, seq)
	require.NoError(t, err)
	c, err := New(seq, pairs, model, opts)
	require.NoError(t, err)
	return c
}

func closingString(l Loop) string {
	i, j, ok := l.Closing()
	if !ok {
		return "ext"
	}
	return fmt.Sprintf("%d-%d", i, j)
}

// signature captures loop kinds, adjacency and move counts independently of
// arena slot assignment.
func signature(c *Complex) []string {
	var out []string
	for _, l := range c.Loops() {
		parent := "-"
		if p, ok := c.Loop(l.Parent()); ok {
			parent = closingString(p)
		}
		var children []string
		for _, id := range l.Children() {
			ch, ok := c.Loop(id)
			if !ok {
				children = append(children, "dangling")
				continue
			}
			children = append(children, closingString(ch))
		}
		out = append(out, fmt.Sprintf("%s %s parent=%s children=%v moves=%d", l.Kind(), closingString(l), parent, children, l.Moves().Count()))
	}
	sort.Strings(out)
	return out
}

func kinds(c *Complex) map[nucleic.LoopKind]int {
	out := map[nucleic.LoopKind]int{}
	for _, l := range c.Loops() {
		out[l.Kind()]++
	}
	return out
}

func TestLoopClassification(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)

	multi := fold(t, model, "GGAGGAAAACCAGGAAAACCACC", "((.((....)).((....)).))", Options{})
	assert.Equal(t, map[nucleic.LoopKind]int{
		nucleic.KindOpen:    1,
		nucleic.KindStack:   3,
		nucleic.KindMulti:   1,
		nucleic.KindHairpin: 2,
	}, kinds(multi))

	interior := fold(t, model, "GGAGGAAAACCACC", "((.((....)).))", Options{})
	assert.Equal(t, 1, kinds(interior)[nucleic.KindInterior])

	bulge := fold(t, model, "GGAGGAAAACCCC", "((.((....))))", Options{})
	assert.Equal(t, 1, kinds(bulge)[nucleic.KindBulge])

	duplex := fold(t, model, "GGGG+CCCC", "((((+))))", Options{})
	assert.Equal(t, map[nucleic.LoopKind]int{nucleic.KindOpen: 2, nucleic.KindStack: 3}, kinds(duplex))
}

func TestNewRejectsBadConfigurations(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	seq := nucleic.MustParseSequence("GAAC")
	open := []int{-1, -1, -1, -1}

	_, err := New(seq, open, nil, Options{})
	assert.ErrorIs(t, err, ErrNoEnergyModel)

	_, err = New(seq, []int{3, -1, -1, 0}, model, Options{})
	assert.Error(t, err, "hairpin below minimum size")

	_, err = New(seq, []int{-1, 2, 1, -1}, model, Options{})
	assert.Error(t, err, "A-A cannot pair")

	_, err = New(seq, open[:3], model, Options{})
	assert.Error(t, err)

	split := nucleic.MustParseSequence("GGGG+CCCC")
	_, err = New(split, make8(-1), model, Options{})
	assert.ErrorIs(t, err, ErrDisconnected)
}

func make8(v int) []int {
	out := make([]int, 8)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestOpenHairpinSingleStep(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GGGGAAAACCCC", "............", Options{})
	set := c.Moves()

	creates := 0
	for m := range set.All() {
		if m.Type().Action() == moves.Create {
			creates++
			assert.Greater(t, m.Rate(), 0.0)
			assert.True(t, m.Type().Has(moves.Variant1))
		}
	}
	require.Equal(t, 16, creates)
	require.Equal(t, 16, set.Count())

	before := c.PairCount()
	m, err := set.Choose(rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	root, err := m.Apply(c)
	require.NoError(t, err)
	set.ResetDeleted()

	assert.Equal(t, c.Exterior(), root)
	assert.Equal(t, before+1, c.PairCount())
	assert.NoError(t, c.Fault())
	got := set.Rate()
	want := set.Resum()
	assert.InDelta(t, want, got, want*1e-9)
	assert.Len(t, c.Loops(), 2)
}

func TestCreateThenDeleteRestoresTopology(t *testing.T) {
	model := testModel(t, energy.PresetJSMetropolis37)
	seq := nucleic.MustParseSequence("GCGCAAATTTGCGCAAAAGCGCTTTTGCGCAAAGGG")
	opts := Options{GTEnable: true, ShiftMoves: true}

	walker, err := New(seq, openPairs(seq.Len()), model, opts)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))
	for step := 0; step < 30; step++ {
		m, err := walker.Moves().Choose(rng)
		if err != nil {
			break
		}
		_, err = m.Apply(walker)
		require.NoError(t, err)
		walker.Moves().ResetDeleted()
	}
	require.NoError(t, walker.Fault())

	fresh, err := New(seq, walker.Pairs(), model, opts)
	require.NoError(t, err)
	assert.Equal(t, signature(fresh), signature(walker), "incremental rewiring diverged from a fresh build")
	assert.InEpsilon(t, fresh.Moves().Resum(), walker.Moves().Rate(), 1e-9)

	start := walker.Pairs()
	var createCount int
	for m := range fresh.Moves().All() {
		if m.Type().Action() == moves.Create {
			createCount++
		}
	}
	require.Positive(t, createCount)

	for k := 0; k < createCount; k++ {
		c, err := New(seq, start, model, opts)
		require.NoError(t, err)
		before := signature(c)
		structure := c.Structure()

		create := nthMove(c, moves.Create, k)
		u, v := create.Index(0), create.Index(1)
		_, err = create.Apply(c)
		require.NoError(t, err)
		c.Moves().ResetDeleted()

		var del *moves.Move
		for m := range c.Moves().All() {
			if m.Type().Action() == moves.Delete && m.Index(0) == u && m.Index(1) == v {
				del = m
			}
		}
		require.NotNil(t, del, "no delete for %d-%d", u, v)
		_, err = del.Apply(c)
		require.NoError(t, err)
		c.Moves().ResetDeleted()

		assert.Equal(t, structure, c.Structure())
		assert.Equal(t, before, signature(c), "create %d-%d", u, v)
	}
}

// moveKeys lists every move by type, indices, rate and Arrhenius tag, sorted
// so that arena slot assignment does not matter.
func moveKeys(c *Complex) []string {
	var out []string
	for m := range c.Moves().All() {
		idx := make([]int, 0, 4)
		for i := 0; i < 4 && m.Index(i) != int(moves.NoIndex); i++ {
			idx = append(idx, m.Index(i))
		}
		out = append(out, fmt.Sprintf("%s %v %.9g %g", m.Type(), idx, m.Rate(), m.ArrType()))
	}
	sort.Strings(out)
	return out
}

func TestIncrementalMovesMatchRebuild(t *testing.T) {
	cases := []struct {
		name      string
		preset    string
		sequence  string
		structure string
	}{
		{"single strand kawasaki", energy.PresetJSDefault, "GCGCAAATTTGCGCAAAAGCGCTTTTGCGCAAAGGG", "...................................."},
		{"duplex arrhenius", energy.PresetDNA23Arrhenius, "GCGCGCAT+ATGCGCGC", "((((((((+))))))))"},
		{"three strands arrhenius", energy.PresetDNA23Arrhenius, "GCGGCG+CGCCGCAGGCGGC+GCCGCC", "((((((+)))))).((((((+))))))"},
		{"three strands metropolis", energy.PresetJSMetropolis37, "GCGGCG+CGCCGCAGGCGGC+GCCGCC", "((((((+)))))).((((((+))))))"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := testModel(t, tc.preset)
			opts := Options{GTEnable: true, ShiftMoves: true}
			walker := fold(t, model, tc.sequence, tc.structure, opts)
			seq := walker.Sequence()
			rng := rand.New(rand.NewSource(17))

			steps := 0
			for ; steps < 1500; steps++ {
				m, err := walker.Moves().Choose(rng)
				if err != nil {
					break
				}
				_, err = m.Apply(walker)
				require.NoError(t, err, "step %d: %s", steps, m)
				walker.Moves().ResetDeleted()
				require.NoError(t, walker.Fault())
				if walker.Dissociated() {
					break
				}

				fresh, err := New(seq, walker.Pairs(), model, opts)
				require.NoError(t, err, "step %d: rebuild %s", steps, walker.Structure())
				require.Equal(t, moveKeys(fresh), moveKeys(walker), "step %d: %s", steps, walker.Structure())
				require.Equal(t, fresh.Moves().Count(), walker.Moves().Count())
				require.InEpsilon(t, fresh.Moves().Rate(), walker.Moves().Rate(), 1e-9, "step %d", steps)
				require.InDelta(t, fresh.Energy(), walker.Energy(), 1e-9, "step %d", steps)
			}
			assert.Greater(t, steps, 100, "walk ended early at %s", walker.Structure())
		})
	}
}

func openPairs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = nucleic.Unpaired
	}
	return out
}

func nthMove(c *Complex, action moves.Type, k int) *moves.Move {
	for m := range c.Moves().All() {
		if m.Type().Action() != action {
			continue
		}
		if k == 0 {
			return m
		}
		k--
	}
	return nil
}

func TestAggregateChoiceMatchesFlatScan(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GGAGGAAAACCAGGAAAACCACCAAAGGTTCCA", "((.((....)).((....)).))..........", Options{GTEnable: true})
	set := c.Moves()
	total := set.Rate()
	require.Greater(t, total, 0.0)

	for _, u := range []float64{0, 0.1, 0.33, 0.5, 0.77, 0.999999} {
		got, err := set.Choose(fixedSource(u))
		require.NoError(t, err)

		target := u * total
		acc := 0.0
		var want *moves.Move
		for m := range set.All() {
			if m.Rate() <= 0 {
				continue
			}
			acc += m.Rate()
			want = m
			if acc >= target {
				break
			}
		}
		assert.Same(t, want, got, "u=%v", u)
	}
}

func TestMoveSetCursorWalksEveryMove(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GGAGGAAAACCAGGAAAACCACCAAAGGA", "((.((....)).((....)).))......", Options{})
	set := c.Moves()

	seen := 0
	var cur moves.Cursor
	for {
		m, next := set.Next(cur)
		if m == nil {
			break
		}
		seen++
		cur = next
	}
	assert.Equal(t, set.Count(), seen)
}

func TestTooShortForHairpinHasNoMoves(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GAAC", "....", Options{})
	assert.Zero(t, c.Moves().Count())
	_, err := c.Moves().Choose(fixedSource(0.5))
	assert.ErrorIs(t, err, moves.ErrNoMoves)
}

func TestStaleMoveIsRejected(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GGGGAAAACCCC", "............", Options{})
	m, err := c.Moves().Choose(fixedSource(0.5))
	require.NoError(t, err)
	_, err = m.Apply(c)
	require.NoError(t, err)

	_, err = m.Apply(c)
	assert.ErrorIs(t, err, moves.ErrStaleMove)
}

func TestDissociationSplitsComplex(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GAAA+AAAC", "(...+...)", Options{})

	var del *moves.Move
	for m := range c.Moves().All() {
		if m.Type().Action() == moves.Delete {
			del = m
		}
	}
	require.NotNil(t, del)
	assert.True(t, del.Type().Has(moves.Variant3))
	assert.Greater(t, del.Rate(), 0.0)
	assert.Equal(t, moves.NoArrType, del.ArrType())

	_, err := del.Apply(c)
	require.NoError(t, err)
	assert.True(t, c.Dissociated())
	assert.Equal(t, "....+....", c.Structure())
	assert.Zero(t, c.Moves().Count())
}

func TestShiftMoves(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GAAAACC", "(....).", Options{ShiftMoves: true})

	var shifts []*moves.Move
	for m := range c.Moves().All() {
		if m.Type().Action() == moves.Shift {
			shifts = append(shifts, m)
		}
	}
	require.Len(t, shifts, 1)
	shift := shifts[0]
	assert.True(t, shift.Type().Has(moves.Variant2))
	assert.Equal(t, []int{0, 5, 0, 6}, []int{shift.Index(0), shift.Index(1), shift.Index(2), shift.Index(3)})

	_, err := shift.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, "(.....)", c.Structure())

	back := nthMove(c, moves.Shift, 0)
	require.NotNil(t, back)
	assert.True(t, back.Type().Has(moves.Variant1))
	assert.Equal(t, 5, back.Index(3))
}

func TestArrheniusContextsOnCreate(t *testing.T) {
	model := testModel(t, energy.PresetDNA23Arrhenius)
	c := fold(t, model, "GGGGAAAACCCC", "............", Options{})

	var outermost *moves.Move
	for m := range c.Moves().All() {
		if m.Index(0) == 0 && m.Index(1) == 11 {
			outermost = m
		}
	}
	require.NotNil(t, outermost)
	assert.Equal(t, float64(energy.ContextLoop.Prime()*energy.ContextEnd.Prime()), outermost.ArrType())
}

type brokenModel struct{ *energy.Model }

func (brokenModel) UnimolecularRate(float64) float64 { return math.NaN() }

func TestNumericalFaultIsRecorded(t *testing.T) {
	model := brokenModel{testModel(t, energy.PresetJSDefault)}
	c := fold(t, model, "GGGGAAAACCCC", "............", Options{})

	assert.ErrorIs(t, c.Fault(), ErrNumericalFault)
	assert.Zero(t, c.Moves().Count())
}

func TestDescribe(t *testing.T) {
	model := testModel(t, energy.PresetJSDefault)
	c := fold(t, model, "GGAGGAAAACCACC", "((.((....)).))", Options{})

	var buf bytes.Buffer
	require.NoError(t, c.Describe(&buf))
	assert.Contains(t, buf.String(), "interior 1-12/3-10 1x1")
	assert.Contains(t, buf.String(), "hairpin 4-9 size=4")

	buf.Reset()
	require.NoError(t, c.Moves().Dump(&buf, true))
	assert.Contains(t, buf.String(), "delete")
}
