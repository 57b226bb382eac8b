package portfolio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	qpMaxIter = 1000
	qpTol     = 1e-10
	// lambdaScans is the number of risk-aversion levels tried on each side of zero.
	lambdaScans = 50
)

// projectOntoSimplex projects v onto {x : x >= 0, sum(x) = 1} in place
// using the O(n log n) algorithm of Duchi et al. (2008).
func projectOntoSimplex(v []float64) {
	n := len(v)
	if n == 0 {
		return
	}
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	cum, rho := 0.0, 0
	for j := 0; j < n; j++ {
		cum += u[j]
		if u[j]-(cum-1)/float64(j+1) > 0 {
			rho = j
		}
	}
	cum = 0
	for j := 0; j <= rho; j++ {
		cum += u[j]
	}
	theta := (cum - 1) / float64(rho+1)
	for i := range v {
		v[i] = math.Max(0, v[i]-theta)
	}
}

// solveQP minimises w'Σw - λ·μ'w over the simplex with projected gradient
// descent started from equal weights. λ = 0 gives the minimum-variance
// portfolio; negative λ walks the lower branch of the frontier.
func solveQP(u *universe, lambda float64) []float64 {
	n := u.size()
	w := u.equalWeights()

	// ∇ = 2Σw - λμ has Lipschitz constant 2·λmax(Σ) <= 2·trace(Σ).
	trace := mat.Trace(u.cov)
	if trace <= 0 {
		return w
	}
	step := 1.0 / (2 * trace)

	grad := mat.NewVecDense(n, nil)
	prev := make([]float64, n)
	for iter := 0; iter < qpMaxIter; iter++ {
		grad.MulVec(u.cov, mat.NewVecDense(n, w))
		copy(prev, w)
		for i := range w {
			w[i] -= step * (2*grad.AtVec(i) - lambda*u.means[i])
		}
		projectOntoSimplex(w)

		maxDiff := 0.0
		for i := range w {
			maxDiff = math.Max(maxDiff, math.Abs(w[i]-prev[i]))
		}
		if maxDiff < qpTol {
			break
		}
	}
	return w
}

// lambdaGrid returns 0 followed by ±0.001·100000^t for t in (0, 1].
func lambdaGrid() []float64 {
	grid := []float64{0}
	for k := 1; k <= lambdaScans; k++ {
		l := 0.001 * math.Pow(100000, float64(k)/lambdaScans)
		grid = append(grid, l, -l)
	}
	return grid
}

// exactSearch solves the quadratic program across the λ grid. The λ = 0
// solution is the minimum-variance portfolio; the best Sharpe ratio among
// all solutions and the seed is the tangency portfolio. The scanned
// solutions also back the frontier.
func exactSearch(u *universe, seed Allocation) (minVar, maxSharpe Allocation, scanned []Allocation) {
	minVar, maxSharpe = seed, seed
	for _, lambda := range lambdaGrid() {
		a := u.evaluate(solveQP(u, lambda))
		scanned = append(scanned, a)
		if a.Volatility < minVar.Volatility-improvementEps {
			minVar = a
		}
		if a.SharpeRatio > maxSharpe.SharpeRatio+improvementEps {
			maxSharpe = a
		}
	}
	return minVar, maxSharpe, scanned
}

// exactFrontier picks, per target, the lowest-volatility scanned solution
// within tol of the target return.
func exactFrontier(scanned []Allocation, targets []float64, tol float64) []FrontierPoint {
	var out []FrontierPoint
	for _, target := range targets {
		best := -1
		for i, a := range scanned {
			if math.Abs(a.ExpectedReturn-target) > tol {
				continue
			}
			if best < 0 || a.Volatility < scanned[best].Volatility {
				best = i
			}
		}
		if best >= 0 {
			out = append(out, FrontierPoint{TargetReturn: target, Allocation: scanned[best]})
		}
	}
	return out
}
