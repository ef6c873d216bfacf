package sim

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foldsim/internal/energy"
	"foldsim/internal/loopgraph"
	"foldsim/internal/moves"
	"foldsim/internal/nucleic"
)

func newComplex(t *testing.T, model loopgraph.EnergyModel, sequence, structure string) *loopgraph.Complex {
	t.Helper()
	seq, err := nucleic.ParseSequence(sequence)
	require.NoError(t, err)
	pairs, err := nucleic.ParseStructure(structure, seq)
	require.NoError(t, err)
	c, err := loopgraph.New(seq, pairs, model, loopgraph.Options{})
	require.NoError(t, err)
	return c
}

func defaultModel(t *testing.T) *energy.Model {
	t.Helper()
	m, err := energy.NewModel(energy.DefaultParams())
	require.NoError(t, err)
	return m
}

func newSimulator(t *testing.T, c *loopgraph.Complex, seed int64, opts Options) *Simulator {
	t.Helper()
	s, err := New(c, NewTimer(seed), opts, log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func TestTimerIntervalMean(t *testing.T) {
	timer := NewTimer(11)
	const rate = 250.0
	const draws = 200000
	sum := 0.0
	for i := 0; i < draws; i++ {
		sum += timer.Interval(rate)
	}
	assert.InEpsilon(t, 1/rate, sum/draws, 0.02)

	a, b := NewTimer(3), NewTimer(3)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, int64(3), a.Seed())
}

func TestStopConditionMatching(t *testing.T) {
	seq := nucleic.MustParseSequence("GGGGAAAACCCC")
	target, err := nucleic.ParseStructure("((((....))))", seq)
	require.NoError(t, err)
	frayed, err := nucleic.ParseStructure(".(((....))).", seq)
	require.NoError(t, err)

	exact, err := StopCondition{Tag: "hairpin", Structure: "((((....))))"}.compile(seq)
	require.NoError(t, err)
	assert.True(t, exact.matches(target))
	assert.False(t, exact.matches(frayed))

	count, err := StopCondition{Tag: "near", Kind: MatchCount, Structure: "((((....))))", Tolerance: 2}.compile(seq)
	require.NoError(t, err)
	assert.True(t, count.matches(frayed))

	loose, err := StopCondition{Tag: "core", Kind: MatchLoose, Structure: "*(((....)))*"}.compile(seq)
	require.NoError(t, err)
	assert.True(t, loose.matches(frayed))
	assert.True(t, loose.matches(target))
}

func TestStopConditionValidation(t *testing.T) {
	seq := nucleic.MustParseSequence("GGGGAAAACCCC")
	cases := []StopCondition{
		{Structure: "((((....))))"},
		{Tag: "x", Kind: "fuzzy", Structure: "((((....))))"},
		{Tag: "x", Structure: "*(((....)))*"},
		{Tag: "x", Kind: MatchCount, Structure: "((((....))))", Tolerance: -1},
		{Tag: "x", Structure: "(((....)))"},
	}
	for _, c := range cases {
		assert.ErrorIs(t, c.Validate(seq), ErrBadStopCondition, "%+v", c)
	}
}

func TestRunReachesHairpin(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 42, Options{
		MaxSteps:       1000000,
		StopConditions: []StopCondition{{Tag: "hairpin", Structure: "((((....))))"}},
	})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonNormal, res.Reason)
	assert.Equal(t, "hairpin", res.Tag)
	assert.Equal(t, "((((....))))", res.Structure)
	assert.Greater(t, res.Time, 0.0)
	assert.Positive(t, res.Steps)
	assert.Less(t, res.Energy, 0.0)
	assert.Contains(t, res.Status(), "tag=hairpin")
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	model := defaultModel(t)
	run := func(seed int64) Result {
		c := newComplex(t, model, "GGGGAAAACCCCAAAGGTTCC", ".....................")
		s := newSimulator(t, c, seed, Options{MaxSteps: 500})
		res, err := s.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(9), run(9)
	assert.Equal(t, a, b)
	assert.Equal(t, ReasonMaxSteps, a.Reason)
	assert.Equal(t, int64(500), a.Steps)
}

func TestRunStopsOnTimeLimit(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 1, Options{MaxTime: 1e-15})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonTime, res.Reason)
	assert.Equal(t, TagTimeout, res.Tag)
	assert.Equal(t, 1e-15, res.Time)
}

func TestRunWithoutMovesIsNoInitial(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GAAC", "....")
	s := newSimulator(t, c, 1, Options{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonNoMoves, res.Reason)
	assert.Equal(t, TagNoInitial, res.Tag)
	assert.Zero(t, res.Steps)
}

func TestRunStopsOnDissociation(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GAAA+AAAC", "(...+...)")
	s := newSimulator(t, c, 1, Options{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonDissociation, res.Reason)
	assert.Equal(t, int64(1), res.Steps)
	assert.Equal(t, "....+....", res.Structure)
}

type countingRecorder struct {
	steps   map[string]int
	reasons []string
}

func (r *countingRecorder) ObserveStep(action string) { r.steps[action]++ }

func (r *countingRecorder) ObserveTrajectory(reason string, _ float64) {
	r.reasons = append(r.reasons, reason)
}

func TestStepReportsAndTrajectory(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 5, Options{MaxSteps: 3, OutputInterval: 1})
	rec := &countingRecorder{steps: map[string]int{}}
	s.SetRecorder(rec)

	var reports []StepReport
	s.OnStep(func(r StepReport) { reports = append(reports, r) })

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, int64(i+1), r.Step)
		assert.Greater(t, r.TotalRate, 0.0)
		if i > 0 {
			assert.InEpsilon(t, reports[i-1].TotalRate, r.DrawRate, 1e-12)
		}
		assert.NotEmpty(t, r.Affected)
		assert.Equal(t, moves.NoArrType, r.ArrType)
	}
	assert.Equal(t, reports[0].Type.Action(), moves.Create)
	assert.Len(t, res.Trajectory, 4)
	assert.Equal(t, "............", res.Trajectory[0].Structure)
	assert.Equal(t, res.Structure, res.Trajectory[3].Structure)

	total := 0
	for _, n := range rec.steps {
		total += n
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{string(ReasonMaxSteps)}, rec.reasons)
}

func TestStepReportsPostStepTotalRate(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 9, Options{})
	before := c.Moves().Rate()

	first, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, before, first.DrawRate)
	assert.InEpsilon(t, c.Moves().Rate(), first.TotalRate, 1e-12)
	assert.NotEqual(t, first.DrawRate, first.TotalRate)

	second, err := s.Step()
	require.NoError(t, err)
	assert.InEpsilon(t, first.TotalRate, second.DrawRate, 1e-12)
	assert.InEpsilon(t, c.Moves().Rate(), second.TotalRate, 1e-12)
}

func TestRecordAdvancesOutputTimeOnIntervalSnapshots(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 1, Options{OutputInterval: 2, OutputTime: 1e-6})

	s.steps = 2
	s.timer.Advance(1.5e-6)
	s.record()
	require.Len(t, s.trajectory, 1)

	// Same output window as the interval snapshot: nothing new.
	s.steps = 3
	s.timer.Advance(0.2e-6)
	s.record()
	assert.Len(t, s.trajectory, 1)

	s.steps = 5
	s.timer.Advance(0.5e-6)
	s.record()
	assert.Len(t, s.trajectory, 2)
	assert.Equal(t, int64(5), s.trajectory[1].Step)
}

func TestRunHonoursCancellation(t *testing.T) {
	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 5, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCancelled, res.Reason)
}

type nanModel struct{ *energy.Model }

func (nanModel) UnimolecularRate(float64) float64 { return math.NaN() }

func TestRunStopsOnNumericalFault(t *testing.T) {
	c := newComplex(t, nanModel{defaultModel(t)}, "GGGGAAAACCCC", "............")
	s := newSimulator(t, c, 5, Options{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonNaN, res.Reason)
	assert.Equal(t, TagNaN, res.Tag)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, NewTimer(1), Options{}, nil)
	assert.ErrorIs(t, err, ErrNoComplex)

	c := newComplex(t, defaultModel(t), "GGGGAAAACCCC", "............")
	_, err = New(c, nil, Options{}, nil)
	assert.ErrorIs(t, err, ErrNoTimer)

	_, err = New(c, NewTimer(1), Options{MaxTime: -1}, nil)
	assert.Error(t, err)

	_, err = New(c, NewTimer(1), Options{StopConditions: []StopCondition{{Tag: "x", Structure: "(("}}}, nil)
	assert.ErrorIs(t, err, ErrBadStopCondition)
}
