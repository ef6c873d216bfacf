package sim

import "math/rand"

// Timer is the simulated clock and the random stream that drives it. One
// Timer belongs to one trajectory.
type Timer struct {
	seed int64
	rng  *rand.Rand
	now  float64
}

func NewTimer(seed int64) *Timer {
	return &Timer{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Float64 draws uniformly from [0, 1).
func (t *Timer) Float64() float64 { return t.rng.Float64() }

// Interval draws an exponential waiting time with mean 1/rate.
func (t *Timer) Interval(rate float64) float64 {
	return t.rng.ExpFloat64() / rate
}

func (t *Timer) Advance(dt float64) { t.now += dt }

func (t *Timer) Now() float64 { return t.now }

func (t *Timer) Seed() int64 { return t.seed }
