package portfolio

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// universe holds the inputs every candidate is scored against.
type universe struct {
	means    []float64
	vols     []float64
	cov      *mat.Dense
	riskFree float64
}

func newUniverse(assets []Asset, corr [][]float64, riskFree float64) *universe {
	n := len(assets)
	u := &universe{
		means:    make([]float64, n),
		vols:     make([]float64, n),
		cov:      mat.NewDense(n, n, nil),
		riskFree: riskFree,
	}
	for i, a := range assets {
		u.means[i] = a.ExpectedReturn
		u.vols[i] = a.Volatility
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			u.cov.Set(i, j, u.vols[i]*u.vols[j]*corr[i][j])
		}
	}
	return u
}

func (u *universe) size() int { return len(u.means) }

// covariance copies the matrix out as nested slices.
func (u *universe) covariance() [][]float64 {
	n := u.size()
	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, u.cov)
	}
	return out
}

func (u *universe) variance(w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, u.cov, v)
}

func (u *universe) expectedReturn(w []float64) float64 {
	return floats.Dot(w, u.means)
}

// volatility clamps tiny negative variances from rounding to zero.
func (u *universe) volatility(w []float64) float64 {
	return math.Sqrt(math.Max(0, u.variance(w)))
}

func (u *universe) sharpe(ret, vol float64) float64 {
	if vol <= 0 {
		return 0
	}
	return (ret - u.riskFree) / vol
}

// evaluate scores w. The weights are copied.
func (u *universe) evaluate(w []float64) Allocation {
	ret := u.expectedReturn(w)
	vol := u.volatility(w)

	divRatio := 0.0
	if vol > 0 {
		divRatio = floats.Dot(w, u.vols) / vol
	}
	return Allocation{
		Weights:              append([]float64(nil), w...),
		ExpectedReturn:       ret,
		Volatility:           vol,
		SharpeRatio:          u.sharpe(ret, vol),
		HHI:                  floats.Dot(w, w),
		DiversificationRatio: divRatio,
	}
}

func (u *universe) equalWeights() []float64 {
	n := u.size()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// frontierTargets spreads count target returns over
// [0.5*min(returns), 1.2*max(returns)].
func (u *universe) frontierTargets(count int) []float64 {
	lo := 0.5 * floats.Min(u.means)
	hi := 1.2 * floats.Max(u.means)
	if count == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, count), lo, hi)
}
