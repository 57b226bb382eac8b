package portfolio

import (
	"math"

	"risk-models/internal/randx"
)

// randomSimplex fills w with a uniform draw from the probability simplex
// by normalising independent -ln(u) draws.
func randomSimplex(src randx.Source, w []float64) {
	sum := 0.0
	for i := range w {
		w[i] = -math.Log(randx.OpenUniform(src))
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
}

// randomSearch seeds both searches with seed and returns the lowest
// volatility and highest Sharpe allocations over iterations draws.
func randomSearch(u *universe, src randx.Source, seed Allocation, iterations int) (minVar, maxSharpe Allocation) {
	minVar, maxSharpe = seed, seed
	w := make([]float64, u.size())
	for i := 0; i < iterations; i++ {
		randomSimplex(src, w)
		ret := u.expectedReturn(w)
		vol := u.volatility(w)
		sr := u.sharpe(ret, vol)
		if vol < minVar.Volatility-improvementEps {
			minVar = u.evaluate(w)
		}
		if sr > maxSharpe.SharpeRatio+improvementEps {
			maxSharpe = u.evaluate(w)
		}
	}
	return minVar, maxSharpe
}

// randomFrontier runs draws simplex samples per target and keeps the
// lowest-volatility one whose return lies within tol of the target.
// Targets with no qualifying sample are skipped.
func randomFrontier(u *universe, src randx.Source, targets []float64, draws int, tol float64) []FrontierPoint {
	var out []FrontierPoint
	w := make([]float64, u.size())
	for _, target := range targets {
		best := math.Inf(1)
		var bestW []float64
		for i := 0; i < draws; i++ {
			randomSimplex(src, w)
			if math.Abs(u.expectedReturn(w)-target) > tol {
				continue
			}
			if vol := u.volatility(w); vol < best {
				best = vol
				bestW = append(bestW[:0], w...)
			}
		}
		if bestW != nil {
			out = append(out, FrontierPoint{TargetReturn: target, Allocation: u.evaluate(bestW)})
		}
	}
	return out
}
