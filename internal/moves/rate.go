package moves

import (
	"fmt"

	"foldsim/internal/energy"
)

// NoArrType marks a RateEnv that did not use Arrhenius composition.
const NoArrType = -444.0

// RateModel is the part of the energy model that RateEnv consults.
type RateModel interface {
	UsesArrhenius() bool
	Prefactor(left, right energy.Context) float64
}

// RateEnv pairs a move's rate with the Arrhenius context pair that produced it.
// The zero value is a placeholder.
type RateEnv struct {
	Rate    float64
	ArrType float64
}

func NewRateEnv(rate float64, model RateModel, left, right energy.Context) RateEnv {
	if model == nil || !model.UsesArrhenius() {
		return RateEnv{Rate: rate, ArrType: NoArrType}
	}
	return RateEnv{
		Rate:    rate * model.Prefactor(left, right),
		ArrType: float64(left.Prime() * right.Prime()),
	}
}

// FixedRate is a rate that takes no context prefactor.
func FixedRate(rate float64) RateEnv {
	return RateEnv{Rate: rate, ArrType: NoArrType}
}

func (r RateEnv) String() string {
	if r.ArrType == NoArrType {
		return fmt.Sprintf("rate=%.6g", r.Rate)
	}
	return fmt.Sprintf("rate=%.6g arr=%g", r.Rate, r.ArrType)
}
