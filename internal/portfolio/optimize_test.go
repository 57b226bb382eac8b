package portfolio

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"risk-models/internal/apperr"
	"risk-models/internal/observability"
	"risk-models/internal/randx"
)

func threeAssets() ([]Asset, [][]float64) {
	assets := []Asset{
		{Name: "bonds", ExpectedReturn: 0.10, Volatility: 0.15},
		{Name: "equity", ExpectedReturn: 0.15, Volatility: 0.25},
		{Name: "cash+", ExpectedReturn: 0.08, Volatility: 0.10},
	}
	corr := [][]float64{
		{1, 0.3, 0.3},
		{0.3, 1, 0.3},
		{0.3, 0.3, 1},
	}
	return assets, corr
}

func checkWeights(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

func TestOptimize_ThreeAssetRoundTrip(t *testing.T) {
	assets, corr := threeAssets()
	for _, method := range []Method{MethodRandomSearch, MethodProjectedGradient} {
		t.Run(string(method), func(t *testing.T) {
			res, err := Optimize(assets, corr, 0.04, Options{Method: method, Source: randx.New(42)})
			if err != nil {
				t.Fatal(err)
			}

			if res.Method != method {
				t.Errorf("Method = %q, want %q", res.Method, method)
			}
			if res.MaxSharpe.SharpeRatio < res.EqualWeight.SharpeRatio {
				t.Errorf("max Sharpe %v below equal-weight %v", res.MaxSharpe.SharpeRatio, res.EqualWeight.SharpeRatio)
			}
			if res.MinVariance.Volatility > res.EqualWeight.Volatility {
				t.Errorf("min variance vol %v above equal-weight %v", res.MinVariance.Volatility, res.EqualWeight.Volatility)
			}

			checkSimplex(t, res.MinVariance.Weights)
			checkSimplex(t, res.MaxSharpe.Weights)
			checkSimplex(t, res.EqualWeight.Weights)
			checkWeights(t, "equal weights", res.EqualWeight.Weights, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-12)

			if len(res.CovarianceMatrix) != 3 {
				t.Fatalf("covariance rows = %d, want 3", len(res.CovarianceMatrix))
			}
			if got := res.CovarianceMatrix[0][0]; math.Abs(got-0.0225) > 1e-12 {
				t.Errorf("cov[0][0] = %v, want 0.0225", got)
			}
			if got, want := res.CovarianceMatrix[0][1], 0.15*0.25*0.3; math.Abs(got-want) > 1e-12 {
				t.Errorf("cov[0][1] = %v, want %v", got, want)
			}
			if math.Abs(res.CovarianceMatrix[0][1]-res.CovarianceMatrix[1][0]) > 1e-15 {
				t.Errorf("covariance not symmetric: %v", res.CovarianceMatrix)
			}

			if n := len(res.EfficientFrontier); n == 0 || n > DefaultFrontierPoints {
				t.Errorf("frontier points = %d, want 1..%d", n, DefaultFrontierPoints)
			}
			for _, p := range res.EfficientFrontier {
				checkSimplex(t, p.Weights)
				if d := math.Abs(p.ExpectedReturn - p.TargetReturn); d > DefaultFrontierTolerance+1e-12 {
					t.Errorf("frontier return %v misses target %v", p.ExpectedReturn, p.TargetReturn)
				}
			}
		})
	}
}

func TestOptimize_RandomSearchNearExact(t *testing.T) {
	assets, corr := threeAssets()
	approx, err := Optimize(assets, corr, 0.04, Options{Source: randx.New(7)})
	if err != nil {
		t.Fatal(err)
	}
	exact, err := Optimize(assets, corr, 0.04, Options{Method: MethodProjectedGradient})
	if err != nil {
		t.Fatal(err)
	}

	if d := math.Abs(exact.MinVariance.Volatility - approx.MinVariance.Volatility); d > 0.002 {
		t.Errorf("min variance vol = %v, exact %v", approx.MinVariance.Volatility, exact.MinVariance.Volatility)
	}
	if d := math.Abs(exact.MaxSharpe.SharpeRatio - approx.MaxSharpe.SharpeRatio); d > 0.02 {
		t.Errorf("max Sharpe = %v, exact %v", approx.MaxSharpe.SharpeRatio, exact.MaxSharpe.SharpeRatio)
	}
}

func TestOptimize_DegenerateTwoAssets(t *testing.T) {
	assets := []Asset{
		{Name: "a", ExpectedReturn: 0.1, Volatility: 0.2},
		{Name: "b", ExpectedReturn: 0.1, Volatility: 0.2},
	}
	corr := [][]float64{{1, 1}, {1, 1}}
	for _, method := range []Method{MethodRandomSearch, MethodProjectedGradient} {
		t.Run(string(method), func(t *testing.T) {
			res, err := Optimize(assets, corr, 0.02, Options{Method: method, Source: randx.New(3)})
			if err != nil {
				t.Fatal(err)
			}
			checkWeights(t, "min variance", res.MinVariance.Weights, []float64{0.5, 0.5}, 0.05)
			checkWeights(t, "max Sharpe", res.MaxSharpe.Weights, []float64{0.5, 0.5}, 0.05)
			if math.Abs(res.MinVariance.Volatility-0.2) > 1e-9 {
				t.Errorf("volatility = %v, want 0.2", res.MinVariance.Volatility)
			}
		})
	}
}

func TestOptimize_FrontierTargets(t *testing.T) {
	assets, corr := threeAssets()
	res, err := Optimize(assets, corr, 0.04, Options{
		Source:         randx.New(1),
		Iterations:     100,
		FrontierPoints: 5,
		FrontierDraws:  500,
	})
	if err != nil {
		t.Fatal(err)
	}
	// targets span [0.04, 0.18]; only those reachable within ±0.02 survive
	for i, p := range res.EfficientFrontier {
		if p.TargetReturn < 0.04-1e-12 || p.TargetReturn > 0.18+1e-12 {
			t.Errorf("target %v outside [0.04, 0.18]", p.TargetReturn)
		}
		if i > 0 && p.TargetReturn <= res.EfficientFrontier[i-1].TargetReturn {
			t.Errorf("targets not increasing at %d", i)
		}
	}
	if res.Candidates != 100+5*500 {
		t.Errorf("Candidates = %d, want %d", res.Candidates, 100+5*500)
	}
}

func TestOptimize_DefaultIterations(t *testing.T) {
	if got := (Options{}).withDefaults(3).Iterations; got != smallUniverseIterations {
		t.Errorf("3 assets: iterations = %d, want %d", got, smallUniverseIterations)
	}
	if got := (Options{}).withDefaults(4).Iterations; got != largeUniverseIterations {
		t.Errorf("4 assets: iterations = %d, want %d", got, largeUniverseIterations)
	}
	if got := (Options{Iterations: 123}).withDefaults(4).Iterations; got != 123 {
		t.Errorf("explicit: iterations = %d, want 123", got)
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	assets, corr := threeAssets()
	a, err := Optimize(assets, corr, 0.04, Options{Source: randx.New(99), Iterations: 2000})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Optimize(assets, corr, 0.04, Options{Source: randx.New(99), Iterations: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.MaxSharpe, b.MaxSharpe) {
		t.Errorf("max Sharpe differs: %+v vs %+v", a.MaxSharpe, b.MaxSharpe)
	}
	if !reflect.DeepEqual(a.EfficientFrontier, b.EfficientFrontier) {
		t.Errorf("frontier differs between identical seeds")
	}
}

func TestOptimize_InvalidArguments(t *testing.T) {
	assets, corr := threeAssets()
	m := observability.NewMetrics(prometheus.NewRegistry())

	tests := []struct {
		name   string
		assets []Asset
		corr   [][]float64
		rf     float64
		opts   Options
	}{
		{"one asset", assets[:1], [][]float64{{1}}, 0, Options{}},
		{"no assets", nil, nil, 0, Options{}},
		{"row count mismatch", assets, corr[:2], 0, Options{}},
		{"ragged row", assets, [][]float64{{1, 0.3, 0.3}, {0.3, 1}, {0.3, 0.3, 1}}, 0, Options{}},
		{"negative volatility", []Asset{{Volatility: -0.1}, {Volatility: 0.1}}, [][]float64{{1, 0}, {0, 1}}, 0, Options{}},
		{"nan risk free", assets, corr, math.NaN(), Options{}},
		{"unknown method", assets, corr, 0, Options{Method: "genetic"}},
		{"negative iterations", assets, corr, 0, Options{Iterations: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Metrics = m
			if _, err := Optimize(tt.assets, tt.corr, tt.rf, tt.opts); !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("err = %v, want invalid argument", err)
			}
		})
	}
	if got := testutil.ToFloat64(m.InvalidArguments.WithLabelValues("optimize")); got != float64(len(tests)) {
		t.Errorf("rejected = %v, want %d", got, len(tests))
	}
}

func TestProblem_Validate(t *testing.T) {
	assets, corr := threeAssets()
	if err := (Problem{Assets: assets, Correlation: corr, RiskFreeRate: 0.04}).Validate(); err != nil {
		t.Fatalf("valid problem: %v", err)
	}

	tests := []struct {
		name string
		p    Problem
	}{
		{"one asset", Problem{Assets: assets[:1], Correlation: [][]float64{{1}}}},
		{"missing correlation", Problem{Assets: assets}},
		{"correlation too small", Problem{Assets: assets, Correlation: corr[:2]}},
		{"nan correlation", Problem{Assets: assets[:2], Correlation: [][]float64{{1, math.NaN()}, {0, 1}}}},
		{"infinite return", Problem{Assets: []Asset{{ExpectedReturn: math.Inf(1)}, {}}, Correlation: [][]float64{{1, 0}, {0, 1}}}},
		{"nan volatility", Problem{Assets: []Asset{{Volatility: math.NaN()}, {}}, Correlation: [][]float64{{1, 0}, {0, 1}}}},
		{"infinite risk free", Problem{Assets: assets, Correlation: corr, RiskFreeRate: math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("Validate() = %v, want invalid argument", err)
			}
		})
	}
}

func TestOptimize_RecordsMetrics(t *testing.T) {
	assets, corr := threeAssets()
	m := observability.NewMetrics(prometheus.NewRegistry())
	_, err := Optimize(assets, corr, 0.04, Options{Source: randx.New(1), Iterations: 10, FrontierPoints: 2, FrontierDraws: 10, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.OptimizationsTotal.WithLabelValues("random_search")); got != 1 {
		t.Errorf("optimizations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CandidatesEvaluated.WithLabelValues("random_search")); got != 30 {
		t.Errorf("candidates = %v, want 30", got)
	}
}

func TestRandomSimplex_ValidPoints(t *testing.T) {
	src := randx.New(5)
	w := make([]float64, 6)
	for i := 0; i < 1000; i++ {
		randomSimplex(src, w)
		checkSimplex(t, w)
	}
}
