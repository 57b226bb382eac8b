package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// lowSampleDays is the sample size below which tail estimates are flagged.
const lowSampleDays = 20

// TailRisk is an empirical 95/99 tail summary of a P&L series.
// Losses are reported as positive numbers.
type TailRisk struct {
	VaR95        float64 `json:"var_95"`
	VaR99        float64 `json:"var_99"`
	ES95         float64 `json:"es_95"`
	ES99         float64 `json:"es_99"`
	WorstLoss    float64 `json:"worst_loss"`
	TypicalScale float64 `json:"typical_scale"`
	SampleSize   int     `json:"sample_size"`
	LowSample    bool    `json:"low_sample"`
}

// SummarizeTail computes historical VaR and ES at 95% and 99% from pnls.
// ES averages the worst observations up to and including the VaR rank.
func SummarizeTail(pnls []float64) TailRisk {
	if len(pnls) == 0 {
		return TailRisk{}
	}
	sorted := append([]float64(nil), pnls...)
	sort.Float64s(sorted)

	var95, es95 := tailAt(sorted, 0.05)
	var99, es99 := tailAt(sorted, 0.01)
	return TailRisk{
		VaR95:        -var95,
		VaR99:        -var99,
		ES95:         -es95,
		ES99:         -es99,
		WorstLoss:    -floats.Min(sorted),
		TypicalScale: robustScale(sorted),
		SampleSize:   len(sorted),
		LowSample:    len(sorted) < lowSampleDays,
	}
}

func tailAt(sorted []float64, q float64) (v, es float64) {
	n := len(sorted)
	idx := int(math.Floor(q * float64(n)))
	idx = max(0, min(idx, n-1))
	return sorted[idx], stat.Mean(sorted[:idx+1], nil)
}

// robustScale is the median absolute value, a typical period magnitude.
func robustScale(x []float64) float64 {
	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	n := len(abs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return abs[n/2]
	}
	return 0.5 * (abs[n/2-1] + abs[n/2])
}
