// Package portfolio implements long-only Markowitz optimization over a
// small asset universe: minimum variance, maximum Sharpe ratio and a
// coarse efficient frontier.
package portfolio

import (
	"risk-models/internal/observability"
	"risk-models/internal/randx"
)

// Method selects the search strategy.
type Method string

const (
	// MethodRandomSearch samples weight vectors uniformly on the simplex
	// and keeps the best seen. It approximates the quadratic optimum.
	MethodRandomSearch Method = "random_search"
	// MethodProjectedGradient solves the long-only quadratic program
	// with projected gradient descent onto the simplex.
	MethodProjectedGradient Method = "projected_gradient"
)

const (
	DefaultFrontierPoints    = 20
	DefaultFrontierDraws     = 3000
	DefaultFrontierTolerance = 0.02

	smallUniverseIterations = 10000
	largeUniverseIterations = 30000
	smallUniverseMax        = 3

	// improvementEps is how much a candidate must beat the incumbent by.
	// Ties keep the earlier candidate, so the equal-weight seed survives
	// in degenerate universes.
	improvementEps = 1e-12
)

// Asset is one investable asset with annualized moments.
type Asset struct {
	Name           string  `json:"name"`
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
}

// Problem bundles the inputs of one optimization so it can be stored
// and replayed.
type Problem struct {
	Assets       []Asset     `json:"assets"`
	Correlation  [][]float64 `json:"correlation"`
	RiskFreeRate float64     `json:"risk_free_rate"`
}

// Allocation is a weight vector with its derived risk and return.
type Allocation struct {
	Weights        []float64 `json:"weights"`
	ExpectedReturn float64   `json:"expected_return"`
	Volatility     float64   `json:"volatility"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	// HHI is the Herfindahl-Hirschman index, sum of squared weights.
	// 1/N is perfectly spread, 1 is a single asset.
	HHI float64 `json:"hhi"`
	// DiversificationRatio is weighted average asset volatility over
	// portfolio volatility; 0 when the portfolio is riskless.
	DiversificationRatio float64 `json:"diversification_ratio"`
}

// FrontierPoint is the lowest-volatility allocation found for a target return.
type FrontierPoint struct {
	TargetReturn float64 `json:"target_return"`
	Allocation
}

// Options tunes an optimization. Zero values pick the defaults.
type Options struct {
	Method            Method
	Iterations        int // 0: 10000 for up to 3 assets, else 30000
	FrontierPoints    int
	FrontierDraws     int
	FrontierTolerance float64
	Source            randx.Source // nil: clock-seeded stream
	Metrics           *observability.Metrics
}

// Result is the outcome of Optimize.
type Result struct {
	Method            Method          `json:"method"`
	MinVariance       Allocation      `json:"min_variance"`
	MaxSharpe         Allocation      `json:"max_sharpe"`
	EqualWeight       Allocation      `json:"equal_weight"`
	EfficientFrontier []FrontierPoint `json:"efficient_frontier"`
	CovarianceMatrix  [][]float64     `json:"covariance_matrix"`
	Candidates        int             `json:"candidates_evaluated"`
}
