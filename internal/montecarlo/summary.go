package montecarlo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"risk-models/internal/apperr"
)

// HistogramBins is the fixed bin count of every outcome histogram.
const HistogramBins = 50

// Statistics summarizes a combined output vector. Percentiles use the
// nearest-rank convention sorted[floor(f*N)] without interpolation.
// ProbNegative and ProbPositive are percentages.
type Statistics struct {
	Trials       int     `json:"trials"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	CV           float64 `json:"coefficient_of_variation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Range        float64 `json:"range"`
	P5           float64 `json:"p5"`
	P10          float64 `json:"p10"`
	P25          float64 `json:"p25"`
	P50          float64 `json:"p50"`
	P75          float64 `json:"p75"`
	P90          float64 `json:"p90"`
	P95          float64 `json:"p95"`
	ProbNegative float64 `json:"prob_negative"`
	ProbPositive float64 `json:"prob_positive"`
}

// Histogram holds HistogramBins bin centers and their counts.
type Histogram struct {
	BinCenters  []float64 `json:"bin_centers"`
	Frequencies []int     `json:"frequencies"`
	BinWidth    float64   `json:"bin_width"`
}

// Outcome is the result of one simulation batch.
type Outcome struct {
	Statistics Statistics `json:"statistics"`
	Histogram  Histogram  `json:"histogram"`

	sorted []float64
}

// Percentile returns the nearest-rank value at p percent (0..100) of the
// sorted output.
func (o *Outcome) Percentile(p float64) (float64, error) {
	if len(o.sorted) == 0 {
		return 0, apperr.Invalid("outcome holds no values")
	}
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, apperr.Invalid("percentile must be within [0, 100], got %v", p)
	}
	return Percentile(o.sorted, p/100), nil
}

// Values returns a copy of the sorted per-trial outputs.
func (o *Outcome) Values() []float64 {
	return append([]float64(nil), o.sorted...)
}

// Percentile returns sorted[floor(f*N)], clamped to the last element so
// that f == 1 is the maximum. sorted must be ascending and non-empty.
func Percentile(sorted []float64, f float64) float64 {
	idx := int(math.Floor(f * float64(len(sorted))))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// moments returns the population mean and standard deviation of sorted.
// Values are scaled by a power of two first so squared deviations of large
// magnitudes do not overflow; the scaling is exact.
func moments(sorted []float64) (mean, std float64) {
	peak := math.Max(math.Abs(sorted[0]), math.Abs(sorted[len(sorted)-1]))
	if peak == 0 {
		return 0, 0
	}
	_, exp := math.Frexp(peak)
	scaled := make([]float64, len(sorted))
	for i, v := range sorted {
		scaled[i] = math.Ldexp(v, -exp)
	}
	m, variance := stat.PopMeanVariance(scaled, nil)
	return math.Ldexp(m, exp), math.Ldexp(math.Sqrt(math.Max(0, variance)), exp)
}

// Summarize computes statistics and the histogram for values.
// values is not modified. NaN or infinite values, and a spread wider than
// float64 can hold, are rejected.
func Summarize(values []float64) (*Outcome, error) {
	n := len(values)
	if n == 0 {
		return nil, apperr.Invalid("cannot summarize an empty value vector")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperr.Invalid("value %d is not finite (%v)", i, v)
		}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[n-1]
	if math.IsInf(hi-lo, 0) {
		return nil, apperr.Invalid("value range [%v, %v] overflows float64", lo, hi)
	}

	mean, std := moments(sorted)

	// A mean too close to zero for the ratio to be finite is treated as zero.
	cv := 0.0
	if mean != 0 {
		cv = math.Abs(std/mean) * 100
		if math.IsInf(cv, 0) {
			cv = 0
		}
	}

	var neg, pos int
	for _, v := range sorted {
		if v < 0 {
			neg++
		} else if v > 0 {
			pos++
		}
	}

	st := Statistics{
		Trials:       n,
		Mean:         mean,
		StdDev:       std,
		CV:           cv,
		Min:          lo,
		Max:          hi,
		Range:        hi - lo,
		P5:           Percentile(sorted, 0.05),
		P10:          Percentile(sorted, 0.10),
		P25:          Percentile(sorted, 0.25),
		P50:          Percentile(sorted, 0.50),
		P75:          Percentile(sorted, 0.75),
		P90:          Percentile(sorted, 0.90),
		P95:          Percentile(sorted, 0.95),
		ProbNegative: float64(neg) / float64(n) * 100,
		ProbPositive: float64(pos) / float64(n) * 100,
	}

	return &Outcome{
		Statistics: st,
		Histogram:  buildHistogram(sorted, lo, hi),
		sorted:     sorted,
	}, nil
}

func buildHistogram(sorted []float64, lo, hi float64) Histogram {
	// Dividing first keeps the width finite when hi-lo overflows.
	width := hi/HistogramBins - lo/HistogramBins
	if hi == lo {
		width = 1
	}
	h := Histogram{
		BinCenters:  make([]float64, HistogramBins),
		Frequencies: make([]int, HistogramBins),
		BinWidth:    width,
	}
	for i := range h.BinCenters {
		h.BinCenters[i] = lo + (float64(i)+0.5)*width
	}
	for _, v := range sorted {
		pos := (v - lo) / width
		if math.IsInf(pos, 0) {
			pos = v/width - lo/width
		}
		idx := int(math.Floor(pos))
		if idx < 0 {
			idx = 0
		} else if idx >= HistogramBins {
			idx = HistogramBins - 1
		}
		h.Frequencies[idx]++
	}
	return h
}
