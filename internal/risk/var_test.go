package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"risk-models/internal/apperr"
	"risk-models/internal/observability"
	"risk-models/internal/randx"
)

func sampleReturns(n int) []float64 {
	src := randx.New(2024)
	out := make([]float64, n)
	for i := range out {
		out[i] = randx.Normal(src, 0.001, 0.02)
	}
	return out
}

var million = decimal.NewFromInt(1_000_000)

func mustCalculator(t *testing.T, confidence float64) *Calculator {
	t.Helper()
	calc, err := NewCalculator(confidence, nil)
	if err != nil {
		t.Fatalf("NewCalculator(%v): %v", confidence, err)
	}
	return calc
}

func TestHistorical_KnownSeries(t *testing.T) {
	calc := mustCalculator(t, 0.95)

	// 100 returns -0.05, -0.049, ..., 0.049; index int(0.05*100)=5 -> -0.045
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = -0.05 + float64(i)*0.001
	}
	est, err := calc.Historical(returns, million, 1)
	if err != nil {
		t.Fatal(err)
	}

	if est.Method != Historical {
		t.Errorf("Method = %q, want %q", est.Method, Historical)
	}
	if math.Abs(est.VaRPercent-4.5) > 1e-9 {
		t.Errorf("VaRPercent = %v, want 4.5", est.VaRPercent)
	}
	if !est.VaR.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("VaR = %s, want 45000", est.VaR)
	}
	// tail is the five worst: mean -0.048
	if !est.ExpectedShortfall.Equal(decimal.NewFromInt(48000)) {
		t.Errorf("ES = %s, want 48000", est.ExpectedShortfall)
	}
	if est.DataPoints != 100 {
		t.Errorf("DataPoints = %d, want 100", est.DataPoints)
	}
}

func TestHistorical_HorizonScaling(t *testing.T) {
	calc := mustCalculator(t, 0.95)
	returns := sampleReturns(250)

	one, err := calc.Historical(returns, million, 1)
	if err != nil {
		t.Fatal(err)
	}
	ten, err := calc.Historical(returns, million, 10)
	if err != nil {
		t.Fatal(err)
	}
	if want := one.VaRPercent * math.Sqrt(10); math.Abs(ten.VaRPercent-want) > 1e-9 {
		t.Errorf("10-day VaRPercent = %v, want %v", ten.VaRPercent, want)
	}
}

func TestHistorical_EmptyTailUsesVaR(t *testing.T) {
	calc := mustCalculator(t, 0.95)
	est, err := calc.Historical([]float64{-0.02, 0.01, 0.03}, million, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !est.VaR.Equal(decimal.NewFromInt(20000)) || !est.ExpectedShortfall.Equal(est.VaR) {
		t.Errorf("VaR = %s ES = %s, want 20000 for both", est.VaR, est.ExpectedShortfall)
	}
}

func TestHistorical_AllGainsIsZeroLoss(t *testing.T) {
	calc := mustCalculator(t, 0.95)
	est, err := calc.Historical([]float64{0.01, 0.02, 0.03}, million, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !est.VaR.IsZero() || !est.ExpectedShortfall.IsZero() {
		t.Errorf("VaR = %s ES = %s, want 0 0", est.VaR, est.ExpectedShortfall)
	}
}

func TestParametric_ConstantVolatility(t *testing.T) {
	calc := mustCalculator(t, 0.95)
	// alternating ±0.01: mean 0, population std 0.01
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.01
		if i%2 == 1 {
			returns[i] = -0.01
		}
	}
	est, err := calc.Parametric(returns, million, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(est.DailyVolatility-1) > 1e-9 {
		t.Errorf("DailyVolatility = %v, want 1", est.DailyVolatility)
	}
	if math.Abs(est.AnnualizedVolatility-math.Sqrt(252)) > 1e-9 {
		t.Errorf("AnnualizedVolatility = %v, want %v", est.AnnualizedVolatility, math.Sqrt(252))
	}
	if math.Abs(est.VaRPercent-1.6449) > 1e-3 {
		t.Errorf("VaRPercent = %v, want 1.6449", est.VaRPercent)
	}
	// ES = sigma * pdf(1.6449) / 0.05 = 0.020627
	if es := est.ExpectedShortfall.InexactFloat64() / 1e4; math.Abs(es-2.0627) > 1e-3 {
		t.Errorf("ES percent = %v, want 2.0627", es)
	}
	if !est.ExpectedShortfall.GreaterThan(est.VaR) {
		t.Errorf("ES %s not above VaR %s", est.ExpectedShortfall, est.VaR)
	}
}

func TestParametric_EWMAWeightsRecentObservations(t *testing.T) {
	calc := mustCalculator(t, 0.99)
	calm := make([]float64, 50)
	for i := range calm {
		calm[i] = 0.001 * float64(i%3-1)
	}
	turbulentLast := append(append([]float64(nil), calm...), 0.08, -0.09, 0.07)
	turbulentFirst := append([]float64{0.08, -0.09, 0.07}, calm...)

	recent, err := calc.Parametric(turbulentLast, million, 1, 0.94)
	if err != nil {
		t.Fatal(err)
	}
	old, err := calc.Parametric(turbulentFirst, million, 1, 0.94)
	if err != nil {
		t.Fatal(err)
	}

	if recent.DailyVolatility <= old.DailyVolatility {
		t.Errorf("recent vol %v not above old vol %v", recent.DailyVolatility, old.DailyVolatility)
	}
	if !recent.VaR.GreaterThan(old.VaR) {
		t.Errorf("recent VaR %s not above old VaR %s", recent.VaR, old.VaR)
	}
}

func TestMonteCarlo_CloseToParametric(t *testing.T) {
	calc := mustCalculator(t, 0.95)
	returns := sampleReturns(500)

	mc, err := calc.MonteCarlo(randx.New(9), returns, million, 1, 50000)
	if err != nil {
		t.Fatal(err)
	}
	pm, err := calc.Parametric(returns, million, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	if mc.Simulations != 50000 {
		t.Errorf("Simulations = %d, want 50000", mc.Simulations)
	}
	if math.Abs(mc.VaRPercent-pm.VaRPercent) > 0.15 {
		t.Errorf("MC VaRPercent = %v, parametric %v", mc.VaRPercent, pm.VaRPercent)
	}
	if d := math.Abs(mc.ExpectedShortfall.InexactFloat64() - pm.ExpectedShortfall.InexactFloat64()); d > 2000 {
		t.Errorf("MC ES = %s, parametric %s", mc.ExpectedShortfall, pm.ExpectedShortfall)
	}
	if mc.SimulatedP1 >= mc.SimulatedP5 {
		t.Errorf("P1 %v not below P5 %v", mc.SimulatedP1, mc.SimulatedP5)
	}
	if !mc.VaR.IsPositive() {
		t.Errorf("VaR = %s, want positive", mc.VaR)
	}
}

func TestCalculator_InvalidArguments(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	for _, cl := range []float64{0, 1, -0.5, math.NaN()} {
		if _, err := NewCalculator(cl, m); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("NewCalculator(%v) err = %v, want invalid argument", cl, err)
		}
	}

	calc, err := NewCalculator(0.95, m)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"no returns", func() error { _, err := calc.Historical(nil, million, 1); return err }},
		{"zero horizon", func() error { _, err := calc.Parametric([]float64{0.01}, million, 0, 0.94); return err }},
		{"negative value", func() error { _, err := calc.Historical([]float64{0.01}, decimal.NewFromInt(-1), 1); return err }},
		{"nan return", func() error { _, err := calc.Historical([]float64{math.NaN()}, million, 1); return err }},
		{"zero simulations", func() error {
			_, err := calc.MonteCarlo(randx.New(1), []float64{0.01}, million, 1, 0)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("err = %v, want invalid argument", err)
			}
		})
	}

	if got := testutil.ToFloat64(m.InvalidArguments.WithLabelValues("var")); got != 9 {
		t.Errorf("rejected = %v, want 9", got)
	}
}
