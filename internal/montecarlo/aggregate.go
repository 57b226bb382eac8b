package montecarlo

import (
	"math"

	"risk-models/internal/apperr"
)

func invalidTrials(n int) error {
	return apperr.Invalid("trials must be positive, got %d", n)
}

// period returns the NPV time index of the parameter declared at position i.
func period(p Parameter, i int) int {
	if p.Period != nil {
		return *p.Period
	}
	return i
}

// Combine folds one sample vector per parameter into a single vector of
// per-trial outputs. Unknown or empty rules behave as sum.
func Combine(params []Parameter, samples [][]float64, rule Rule, discountRate *float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, apperr.Invalid("no sample vectors to combine")
	}
	if len(params) != len(samples) {
		return nil, apperr.Invalid("%d parameters but %d sample vectors", len(params), len(samples))
	}
	n := len(samples[0])
	for i, s := range samples {
		if len(s) != n {
			return nil, apperr.Invalid("sample vector %d has %d values, want %d", i, len(s), n)
		}
	}
	if rule == RuleNPV {
		if discountRate == nil {
			return nil, apperr.Invalid("npv rule requires a discount rate")
		}
		if err := checkDiscountRate(*discountRate); err != nil {
			return nil, err
		}
	}

	out := make([]float64, n)
	switch rule {
	case RuleProduct:
		for t := range out {
			out[t] = 1
		}
		for _, s := range samples {
			for t, v := range s {
				out[t] *= v
			}
		}

	case RuleNPV:
		for i, s := range samples {
			df := math.Pow(1+*discountRate, float64(period(params[i], i)))
			for t, v := range s {
				out[t] += v / df
			}
		}

	default:
		for _, s := range samples {
			for t, v := range s {
				out[t] += v
			}
		}
	}
	return out, nil
}
