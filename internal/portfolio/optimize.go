package portfolio

import (
	"math"
	"time"

	"risk-models/internal/apperr"
	"risk-models/internal/logger"
	"risk-models/internal/randx"
)

// Validate checks that the problem describes at least two assets with
// finite moments and a square correlation matrix of matching size.
func (p Problem) Validate() error {
	assets, corr := p.Assets, p.Correlation
	n := len(assets)
	if n < 2 {
		return apperr.Invalid("need at least 2 assets, got %d", n)
	}
	if len(corr) != n {
		return apperr.Invalid("correlation matrix has %d rows, want %d", len(corr), n)
	}
	for i, row := range corr {
		if len(row) != n {
			return apperr.Invalid("correlation row %d has %d columns, want %d", i, len(row), n)
		}
		for _, c := range row {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return apperr.Invalid("correlation row %d holds a non-finite value", i)
			}
		}
	}
	for _, a := range assets {
		if math.IsNaN(a.ExpectedReturn) || math.IsInf(a.ExpectedReturn, 0) {
			return apperr.Invalid("asset %q: expected return must be finite", a.Name)
		}
		if math.IsNaN(a.Volatility) || math.IsInf(a.Volatility, 0) || a.Volatility < 0 {
			return apperr.Invalid("asset %q: volatility must be finite and non-negative", a.Name)
		}
	}
	if math.IsNaN(p.RiskFreeRate) || math.IsInf(p.RiskFreeRate, 0) {
		return apperr.Invalid("risk-free rate must be finite")
	}
	return nil
}

func validate(p Problem, opts Options) error {
	if err := p.Validate(); err != nil {
		return err
	}
	switch opts.Method {
	case "", MethodRandomSearch, MethodProjectedGradient:
	default:
		return apperr.Invalid("unknown optimizer method %q", opts.Method)
	}
	if opts.Iterations < 0 || opts.FrontierPoints < 0 || opts.FrontierDraws < 0 {
		return apperr.Invalid("iteration and frontier counts must be non-negative")
	}
	if opts.FrontierTolerance < 0 || math.IsNaN(opts.FrontierTolerance) {
		return apperr.Invalid("frontier tolerance must be non-negative")
	}
	return nil
}

func (o Options) withDefaults(n int) Options {
	if o.Method == "" {
		o.Method = MethodRandomSearch
	}
	if o.Iterations == 0 {
		o.Iterations = largeUniverseIterations
		if n <= smallUniverseMax {
			o.Iterations = smallUniverseIterations
		}
	}
	if o.FrontierPoints == 0 {
		o.FrontierPoints = DefaultFrontierPoints
	}
	if o.FrontierDraws == 0 {
		o.FrontierDraws = DefaultFrontierDraws
	}
	if o.FrontierTolerance == 0 {
		o.FrontierTolerance = DefaultFrontierTolerance
	}
	if o.Source == nil {
		o.Source = randx.New(0)
	}
	return o
}

// Optimize builds the covariance matrix cov[i][j] = vol[i]·vol[j]·corr[i][j]
// and searches long-only weights for the minimum-variance and maximum-Sharpe
// portfolios plus an efficient frontier. The equal-weight portfolio seeds
// both searches, so neither result is worse than it.
// The correlation matrix is assumed symmetric.
func Optimize(assets []Asset, corr [][]float64, riskFree float64, opts Options) (*Result, error) {
	start := time.Now()
	if err := validate(Problem{Assets: assets, Correlation: corr, RiskFreeRate: riskFree}, opts); err != nil {
		opts.Metrics.RejectedArgument("optimize")
		return nil, err
	}
	opts = opts.withDefaults(len(assets))

	u := newUniverse(assets, corr, riskFree)
	equal := u.evaluate(u.equalWeights())
	targets := u.frontierTargets(opts.FrontierPoints)

	res := &Result{
		Method:           opts.Method,
		EqualWeight:      equal,
		CovarianceMatrix: u.covariance(),
	}

	switch opts.Method {
	case MethodProjectedGradient:
		var scanned []Allocation
		res.MinVariance, res.MaxSharpe, scanned = exactSearch(u, equal)
		res.EfficientFrontier = exactFrontier(scanned, targets, opts.FrontierTolerance)
		res.Candidates = len(scanned)
	default:
		res.MinVariance, res.MaxSharpe = randomSearch(u, opts.Source, equal, opts.Iterations)
		res.EfficientFrontier = randomFrontier(u, opts.Source, targets, opts.FrontierDraws, opts.FrontierTolerance)
		res.Candidates = opts.Iterations + len(targets)*opts.FrontierDraws
	}

	elapsed := time.Since(start)
	opts.Metrics.ObserveOptimization(string(opts.Method), res.Candidates, elapsed)
	logger.Info("OPT", "optimization complete",
		"assets", len(assets),
		"method", string(opts.Method),
		"candidates", res.Candidates,
		"frontier_points", len(res.EfficientFrontier),
		"max_sharpe", res.MaxSharpe.SharpeRatio,
		"elapsed", elapsed)
	return res, nil
}
