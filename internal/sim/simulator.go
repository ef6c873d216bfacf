package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"foldsim/internal/loopgraph"
	"foldsim/internal/model"
	"foldsim/internal/moves"
)

var (
	ErrNoComplex = errors.New("simulator requires a complex")
	ErrNoTimer   = errors.New("simulator requires a timer")

	errTimeLimit = errors.New("time limit reached")
)

// Options bound a trajectory and control what it records.
type Options struct {
	// MaxTime is the simulated-time limit in seconds; zero means none.
	MaxTime float64
	// MaxSteps caps the number of applied moves; zero means none.
	MaxSteps int64
	// OutputInterval records a snapshot every N steps.
	OutputInterval int64
	// OutputTime records a snapshot each time the clock passes a multiple
	// of this many seconds.
	OutputTime     float64
	StopConditions []StopCondition
}

func (o Options) recording() bool {
	return o.OutputInterval > 0 || o.OutputTime > 0
}

// StepReport describes one applied move. DrawRate is the total rate the
// move was drawn from; TotalRate is the total of the state it produced.
type StepReport struct {
	Step      int64
	Time      float64
	Type      moves.Type
	Affected  []moves.LoopID
	Root      moves.LoopID
	DrawRate  float64
	TotalRate float64
	ArrType   float64
}

type StepFunc func(StepReport)

// Recorder receives per-step and per-trajectory observations, typically a
// metrics collector.
type Recorder interface {
	ObserveStep(action string)
	ObserveTrajectory(reason string, simTime float64)
}

// Result is the outcome of one trajectory.
type Result struct {
	Seed       int64
	Reason     StopReason
	Tag        string
	Time       float64
	Steps      int64
	Structure  string
	Energy     float64
	Trajectory []model.Snapshot
}

// Status renders the result as a one-line summary.
func (r Result) Status() string {
	return fmt.Sprintf("seed=%d reason=%s tag=%s time=%.6g steps=%d structure=%s dG=%.2f",
		r.Seed, r.Reason, r.Tag, r.Time, r.Steps, r.Structure, r.Energy)
}

// Simulator runs the kinetic Monte Carlo loop over one complex.
type Simulator struct {
	complex  *loopgraph.Complex
	timer    *Timer
	opts     Options
	stops    []matcher
	logger   *log.Logger
	onStep   StepFunc
	recorder Recorder

	steps      int64
	nextOutput float64
	trajectory []model.Snapshot
}

func New(c *loopgraph.Complex, timer *Timer, opts Options, logger *log.Logger) (*Simulator, error) {
	if c == nil {
		return nil, ErrNoComplex
	}
	if timer == nil {
		return nil, ErrNoTimer
	}
	if opts.MaxTime < 0 || opts.MaxSteps < 0 || opts.OutputInterval < 0 || opts.OutputTime < 0 {
		return nil, fmt.Errorf("simulation limits must be non-negative")
	}
	stops := make([]matcher, 0, len(opts.StopConditions))
	for _, cond := range opts.StopConditions {
		m, err := cond.compile(c.Sequence())
		if err != nil {
			return nil, err
		}
		stops = append(stops, m)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		complex:    c,
		timer:      timer,
		opts:       opts,
		stops:      stops,
		logger:     logger.With("seed", timer.Seed()),
		nextOutput: opts.OutputTime,
	}, nil
}

func (s *Simulator) OnStep(fn StepFunc) { s.onStep = fn }

func (s *Simulator) SetRecorder(r Recorder) { s.recorder = r }

func (s *Simulator) Steps() int64 { return s.steps }

func (s *Simulator) Complex() *loopgraph.Complex { return s.complex }

// Step draws one move, applies it and advances the clock. It returns
// moves.ErrNoMoves when nothing can happen, loopgraph.ErrNumericalFault on a
// bad rate and moves.ErrStaleMove if the graph is inconsistent.
func (s *Simulator) Step() (StepReport, error) {
	if err := s.complex.Fault(); err != nil {
		return StepReport{}, err
	}
	set := s.complex.Moves()
	total := set.Rate()
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return StepReport{}, fmt.Errorf("%w: total rate %v", loopgraph.ErrNumericalFault, total)
	}
	m, err := set.Choose(s.timer)
	if err != nil {
		return StepReport{}, err
	}
	dt := s.timer.Interval(total)
	if s.opts.MaxTime > 0 && s.timer.Now()+dt > s.opts.MaxTime {
		s.timer.Advance(s.opts.MaxTime - s.timer.Now())
		return StepReport{}, errTimeLimit
	}

	affected := make([]moves.LoopID, m.AffectedCount())
	for k := range affected {
		affected[k] = m.Affected(k)
	}
	root, err := m.Apply(s.complex)
	if err != nil {
		return StepReport{}, fmt.Errorf("apply %s: %w", m, err)
	}
	set.ResetDeleted()
	s.timer.Advance(dt)
	s.steps++

	report := StepReport{
		Step:      s.steps,
		Time:      s.timer.Now(),
		Type:      m.Type(),
		Affected:  affected,
		Root:      root,
		DrawRate:  total,
		TotalRate: set.Rate(),
		ArrType:   m.ArrType(),
	}
	if s.onStep != nil {
		s.onStep(report)
	}
	if s.recorder != nil {
		s.recorder.ObserveStep(m.Type().Action().String())
	}
	return report, nil
}

// Run steps until a stop condition, a limit, exhaustion, a fault or ctx
// cancellation. The returned error is non-nil only for graph faults and
// cancellation; every other ending is described by the Result.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	if s.opts.recording() {
		s.snapshot()
	}
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(ReasonCancelled, TagCancelled), err
		}
		if s.opts.MaxSteps > 0 && s.steps >= s.opts.MaxSteps {
			return s.finish(ReasonMaxSteps, TagMaxSteps), nil
		}

		_, err := s.Step()
		switch {
		case err == nil:
		case errors.Is(err, errTimeLimit):
			return s.finish(ReasonTime, TagTimeout), nil
		case errors.Is(err, moves.ErrNoMoves):
			tag := ""
			if s.steps == 0 {
				tag = TagNoInitial
			}
			return s.finish(ReasonNoMoves, tag), nil
		case errors.Is(err, loopgraph.ErrNumericalFault):
			s.logger.Error("numerical fault", "err", err, "step", s.steps)
			return s.finish(ReasonNaN, TagNaN), nil
		default:
			s.logger.Error("step failed", "err", err, "step", s.steps)
			return s.finish(ReasonError, TagError), err
		}

		s.record()
		if s.complex.Dissociated() {
			return s.finish(ReasonDissociation, TagDissociation), nil
		}
		if tag, ok := s.matchStop(); ok {
			return s.finish(ReasonNormal, tag), nil
		}
	}
}

func (s *Simulator) matchStop() (string, bool) {
	if len(s.stops) == 0 {
		return "", false
	}
	pairs := s.complex.Pairs()
	for _, m := range s.stops {
		if m.matches(pairs) {
			return m.tag, true
		}
	}
	return "", false
}

func (s *Simulator) record() {
	byStep := s.opts.OutputInterval > 0 && s.steps%s.opts.OutputInterval == 0
	byTime := s.opts.OutputTime > 0 && s.timer.Now() >= s.nextOutput
	if !byStep && !byTime {
		return
	}
	s.snapshot()
	if s.opts.OutputTime > 0 {
		for s.nextOutput <= s.timer.Now() {
			s.nextOutput += s.opts.OutputTime
		}
	}
}

func (s *Simulator) snapshot() {
	s.trajectory = append(s.trajectory, model.Snapshot{
		Step:      s.steps,
		Time:      s.timer.Now(),
		Structure: s.complex.Structure(),
		Energy:    s.complex.Energy(),
	})
}

func (s *Simulator) finish(reason StopReason, tag string) Result {
	if s.opts.recording() {
		if n := len(s.trajectory); n == 0 || s.trajectory[n-1].Step != s.steps {
			s.snapshot()
		}
	}
	res := Result{
		Seed:       s.timer.Seed(),
		Reason:     reason,
		Tag:        tag,
		Time:       s.timer.Now(),
		Steps:      s.steps,
		Structure:  s.complex.Structure(),
		Energy:     s.complex.Energy(),
		Trajectory: s.trajectory,
	}
	if s.recorder != nil {
		s.recorder.ObserveTrajectory(string(reason), res.Time)
	}
	s.logger.Debug("trajectory stopped", "reason", reason, "tag", tag, "steps", s.steps, "time", res.Time)
	return res
}
