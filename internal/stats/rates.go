package stats

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"foldsim/internal/model"
	"foldsim/internal/sim"
)

// DefaultBootstrapSamples is the resample count for rate intervals.
const DefaultBootstrapSamples = 1000

var ErrNoSuccesses = errors.New("no successful trials")

// RateEstimate is a first-passage rate over successful trials.
type RateEstimate struct {
	N         int
	MeanTime  float64
	KEff      float64
	Log10KEff float64
}

// FirstPassageRate estimates kEff = 1/mean first-passage time.
func FirstPassageRate(times []float64) (RateEstimate, error) {
	if len(times) == 0 {
		return RateEstimate{}, ErrNoSuccesses
	}
	mean := meanOf(times)
	if !(mean > 0) {
		return RateEstimate{}, errors.New("mean first-passage time must be positive")
	}
	k := 1 / mean
	return RateEstimate{N: len(times), MeanTime: mean, KEff: k, Log10KEff: math.Log10(k)}, nil
}

// Bootstrap resamples times with replacement and returns the 2.5th and 97.5th
// percentiles of kEff.
func Bootstrap(times []float64, samples int, rng *rand.Rand) (low, high float64, err error) {
	if len(times) == 0 {
		return 0, 0, ErrNoSuccesses
	}
	if samples <= 0 {
		samples = DefaultBootstrapSamples
	}
	rates := make([]float64, 0, samples)
	resample := make([]float64, len(times))
	for s := 0; s < samples; s++ {
		for i := range resample {
			resample[i] = times[rng.Intn(len(times))]
		}
		if mean := meanOf(resample); mean > 0 {
			rates = append(rates, 1/mean)
		}
	}
	if len(rates) == 0 {
		return 0, 0, errors.New("bootstrap produced no finite rates")
	}
	sort.Float64s(rates)
	return percentile(rates, 0.025), percentile(rates, 0.975), nil
}

// Summarize folds trials into a run summary. Trials that ended on a stop
// condition count as first passages.
func Summarize(trials []model.TrialRecord, rng *rand.Rand) model.RunSummary {
	summary := model.RunSummary{
		Reasons: map[string]int{},
		Tags:    map[string]int{},
	}
	var times []float64
	for _, trial := range trials {
		summary.Reasons[trial.Reason]++
		if trial.Tag != "" {
			summary.Tags[trial.Tag]++
		}
		summary.TotalSteps += trial.Steps
		if trial.Reason == string(sim.ReasonNormal) {
			summary.Completed++
			times = append(times, trial.Time)
		}
	}
	est, err := FirstPassageRate(times)
	if err != nil {
		return summary
	}
	summary.MeanTime = est.MeanTime
	summary.KEff = est.KEff
	summary.Log10KEff = est.Log10KEff
	if rng != nil {
		if low, high, err := Bootstrap(times, DefaultBootstrapSamples, rng); err == nil {
			summary.KEffLow, summary.KEffHigh = low, high
		}
	}
	return summary
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile reads a linearly interpolated quantile from sorted values.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
