// Package risk estimates Value at Risk and expected shortfall from a series
// of periodic returns using historical, parametric and Monte Carlo methods.
package risk

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"risk-models/internal/apperr"
	"risk-models/internal/logger"
	"risk-models/internal/montecarlo"
	"risk-models/internal/observability"
	"risk-models/internal/randx"
)

// Method names a VaR estimation approach.
type Method string

const (
	Historical Method = "historical"
	Parametric Method = "parametric"
	MonteCarlo Method = "monte_carlo"
)

// tradingDays annualizes daily volatility.
const tradingDays = 252

// Estimate is a VaR / expected shortfall result. Percentages are losses as
// a share of portfolio value times 100; amounts are in portfolio currency.
type Estimate struct {
	Method            Method          `json:"method"`
	ConfidenceLevel   float64         `json:"confidence_level"`
	HorizonDays       int             `json:"horizon_days"`
	DataPoints        int             `json:"data_points"`
	VaRPercent        float64         `json:"var_percent"`
	VaR               decimal.Decimal `json:"var_absolute"`
	ExpectedShortfall decimal.Decimal `json:"expected_shortfall"`

	DailyVolatility      float64 `json:"daily_volatility,omitempty"`
	AnnualizedVolatility float64 `json:"annualized_volatility,omitempty"`

	Simulations   int     `json:"simulations,omitempty"`
	SimulatedP5   float64 `json:"simulated_p5_return,omitempty"`
	SimulatedP1   float64 `json:"simulated_p1_return,omitempty"`
	SimulatedMean float64 `json:"simulated_mean_return,omitempty"`
}

// Calculator estimates VaR at a fixed confidence level.
type Calculator struct {
	confidence float64
	alpha      float64
	metrics    *observability.Metrics
}

// NewCalculator returns a calculator for confidence in (0, 1), e.g. 0.95.
// metrics may be nil.
func NewCalculator(confidence float64, metrics *observability.Metrics) (*Calculator, error) {
	if !(confidence > 0 && confidence < 1) {
		metrics.RejectedArgument("var")
		return nil, apperr.Invalid("confidence level must be in (0, 1), got %v", confidence)
	}
	return &Calculator{confidence: confidence, alpha: 1 - confidence, metrics: metrics}, nil
}

func (c *Calculator) check(returns []float64, value decimal.Decimal, horizon int) error {
	var err error
	switch {
	case len(returns) == 0:
		err = apperr.Invalid("returns cannot be empty")
	case horizon < 1:
		err = apperr.Invalid("horizon must be at least one day, got %d", horizon)
	case value.IsNegative():
		err = apperr.Invalid("portfolio value must be non-negative, got %s", value)
	default:
		for i, r := range returns {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				err = apperr.Invalid("return %d is not finite", i)
				break
			}
		}
	}
	if err != nil {
		c.metrics.RejectedArgument("var")
	}
	return err
}

// amount converts a loss fraction into currency rounded to cents.
func amount(value decimal.Decimal, loss float64) decimal.Decimal {
	return value.Mul(decimal.NewFromFloat(loss)).Round(2)
}

// tail returns the VaR loss at the alpha quantile and the mean loss beyond
// it. Losses are positive; gains clamp to zero. sorted is ascending.
// An empty tail reuses the VaR.
func (c *Calculator) tail(sorted []float64, scale float64) (varLoss, esLoss float64) {
	idx := int(c.alpha * float64(len(sorted)))
	varLoss = math.Max(0, -sorted[idx]*scale)
	if idx == 0 {
		return varLoss, varLoss
	}
	return varLoss, math.Max(0, -stat.Mean(sorted[:idx], nil)*scale)
}

// Historical reads VaR off the empirical return distribution and scales it
// to the horizon with the square-root-of-time rule.
func (c *Calculator) Historical(returns []float64, value decimal.Decimal, horizon int) (*Estimate, error) {
	if err := c.check(returns, value, horizon); err != nil {
		return nil, err
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	varLoss, esLoss := c.tail(sorted, math.Sqrt(float64(horizon)))
	est := &Estimate{
		Method:            Historical,
		ConfidenceLevel:   c.confidence,
		HorizonDays:       horizon,
		DataPoints:        len(returns),
		VaRPercent:        varLoss * 100,
		VaR:               amount(value, varLoss),
		ExpectedShortfall: amount(value, esLoss),
	}
	c.log(est)
	return est, nil
}

// ewmaVolatility weights squared deviations from the plain mean by
// lambda^age, newest observation last. lambda outside (0, 1) falls back
// to the population standard deviation.
func ewmaVolatility(returns []float64, mean, lambda float64) float64 {
	if !(lambda > 0 && lambda < 1) {
		return stat.PopStdDev(returns, nil)
	}
	n := len(returns)
	var sumW, sumSq float64
	for i, r := range returns {
		w := math.Pow(lambda, float64(n-1-i))
		sumW += w
		sumSq += w * (r - mean) * (r - mean)
	}
	return math.Sqrt(sumSq / sumW)
}

// Parametric assumes normally distributed returns with EWMA volatility.
// ES is the normal tail expectation -mu*h + sigma*sqrt(h)*pdf(z)/alpha.
func (c *Calculator) Parametric(returns []float64, value decimal.Decimal, horizon int, ewmaLambda float64) (*Estimate, error) {
	if err := c.check(returns, value, horizon); err != nil {
		return nil, err
	}
	mu := stat.Mean(returns, nil)
	vol := ewmaVolatility(returns, mu, ewmaLambda)
	h := float64(horizon)
	volH := vol * math.Sqrt(h)

	z := distuv.UnitNormal.Quantile(c.alpha)
	varLoss := math.Max(0, -(mu*h + z*volH))
	esLoss := math.Max(0, -mu*h+volH*distuv.UnitNormal.Prob(z)/c.alpha)

	est := &Estimate{
		Method:               Parametric,
		ConfidenceLevel:      c.confidence,
		HorizonDays:          horizon,
		DataPoints:           len(returns),
		VaRPercent:           varLoss * 100,
		VaR:                  amount(value, varLoss),
		ExpectedShortfall:    amount(value, esLoss),
		DailyVolatility:      vol * 100,
		AnnualizedVolatility: vol * math.Sqrt(tradingDays) * 100,
	}
	c.log(est)
	return est, nil
}

// MonteCarlo fits a normal distribution to returns, simulates horizon
// returns and reads VaR and ES off the simulated tail.
func (c *Calculator) MonteCarlo(src randx.Source, returns []float64, value decimal.Decimal, horizon, simulations int) (*Estimate, error) {
	if err := c.check(returns, value, horizon); err != nil {
		return nil, err
	}
	if simulations < 1 {
		c.metrics.RejectedArgument("var")
		return nil, apperr.Invalid("simulations must be positive, got %d", simulations)
	}
	mu, sd := stat.PopMeanStdDev(returns, nil)
	scale := math.Sqrt(float64(horizon))

	sims := make([]float64, simulations)
	for i := range sims {
		sims[i] = randx.Normal(src, mu, sd) * scale
	}
	out, err := montecarlo.Summarize(sims)
	if err != nil {
		return nil, err
	}
	sorted := out.Values()
	p1, _ := out.Percentile(1)

	varLoss, esLoss := c.tail(sorted, 1)
	est := &Estimate{
		Method:            MonteCarlo,
		ConfidenceLevel:   c.confidence,
		HorizonDays:       horizon,
		DataPoints:        len(returns),
		VaRPercent:        varLoss * 100,
		VaR:               amount(value, varLoss),
		ExpectedShortfall: amount(value, esLoss),
		Simulations:       simulations,
		SimulatedP5:       out.Statistics.P5 * 100,
		SimulatedP1:       p1 * 100,
		SimulatedMean:     out.Statistics.Mean * 100,
	}
	c.log(est)
	return est, nil
}

func (c *Calculator) log(e *Estimate) {
	logger.Info("VAR", "estimate ready",
		"method", string(e.Method),
		"confidence", e.ConfidenceLevel,
		"horizon_days", e.HorizonDays,
		"var", e.VaR.String(),
		"es", e.ExpectedShortfall.String())
}
