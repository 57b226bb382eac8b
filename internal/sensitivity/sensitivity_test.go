package sensitivity

import (
	"errors"
	"math"
	"testing"

	"risk-models/internal/apperr"
)

// profit = price*volume - cost
func profit(in map[string]float64) float64 {
	return in["price"]*in["volume"] - in["cost"]
}

var base = map[string]float64{"price": 10, "volume": 100, "cost": 500}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func checkSlice(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if !near(got[i], want[i], tol) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func TestOneWay(t *testing.T) {
	s, err := OneWay(base, "price", []float64{10, 12, 8}, profit)
	if err != nil {
		t.Fatalf("OneWay: %v", err)
	}

	if s.Parameter != "price" {
		t.Errorf("Parameter = %q, want price", s.Parameter)
	}
	checkSlice(t, "Outputs", s.Outputs, []float64{500, 700, 300}, 1e-9)
	checkSlice(t, "PercentageChange", s.PercentageChange, []float64{0, 40, -40}, 1e-9)
	if base["price"] != 10 {
		t.Error("base inputs were modified")
	}
}

func TestOneWay_ZeroFirstOutput(t *testing.T) {
	s, err := OneWay(base, "cost", []float64{1000, 900}, profit)
	if err != nil {
		t.Fatal(err)
	}
	checkSlice(t, "PercentageChange", s.PercentageChange, []float64{0, 0}, 0)
}

func TestElasticity(t *testing.T) {
	// d(profit)/profit = 0.01*1000/500 = 2% for a 1% price move
	e, err := Elasticity(base, "price", 0.01, profit)
	if err != nil {
		t.Fatal(err)
	}
	if !near(e, 2, 1e-9) {
		t.Errorf("price elasticity = %v, want 2", e)
	}

	e, err = Elasticity(base, "cost", 0.10, profit)
	if err != nil {
		t.Fatal(err)
	}
	if !near(e, -1, 1e-9) {
		t.Errorf("cost elasticity = %v, want -1", e)
	}
}

func TestElasticity_PowerModel(t *testing.T) {
	square := func(in map[string]float64) float64 { return in["x"] * in["x"] }
	e, err := Elasticity(map[string]float64{"x": 3}, "x", 1e-6, square)
	if err != nil {
		t.Fatal(err)
	}
	if !near(e, 2, 1e-4) {
		t.Errorf("elasticity of x^2 = %v, want 2", e)
	}
}

func TestTornado_RanksBySwing(t *testing.T) {
	linear := func(in map[string]float64) float64 { return 3*in["a"] + in["b"] - in["c"] }
	in := map[string]float64{"a": 10, "b": 10, "c": 5}

	bars, err := Tornado(in, []string{"c", "a", "b"}, 0.1, linear)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("len(bars) = %d, want 3", len(bars))
	}

	if bars[0].Parameter != "a" || bars[1].Parameter != "b" || bars[2].Parameter != "c" {
		t.Errorf("order = %s %s %s, want a b c", bars[0].Parameter, bars[1].Parameter, bars[2].Parameter)
	}
	if !near(bars[0].Swing, 6, 1e-9) || !near(bars[2].Swing, 1, 1e-9) {
		t.Errorf("swings = %v, %v, want 6, 1", bars[0].Swing, bars[2].Swing)
	}
	if !near(bars[0].LowInput, 9, 1e-12) || !near(bars[0].HighInput, 11, 1e-12) {
		t.Errorf("inputs = [%v, %v], want [9, 11]", bars[0].LowInput, bars[0].HighInput)
	}
	if !near(bars[0].LowOutput, 27+10-5, 1e-9) {
		t.Errorf("LowOutput = %v, want 32", bars[0].LowOutput)
	}
}

func TestTornado_TiesKeepInputOrder(t *testing.T) {
	sum := func(in map[string]float64) float64 { return in["x"] + in["y"] }
	bars, err := Tornado(map[string]float64{"x": 4, "y": 4}, []string{"y", "x"}, 0.5, sum)
	if err != nil {
		t.Fatal(err)
	}
	if bars[0].Parameter != "y" || bars[1].Parameter != "x" {
		t.Errorf("order = %s %s, want y x", bars[0].Parameter, bars[1].Parameter)
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"one way nil model", func() error { _, err := OneWay(base, "price", []float64{1}, nil); return err }},
		{"one way unknown target", func() error { _, err := OneWay(base, "tax", []float64{1}, profit); return err }},
		{"one way empty range", func() error { _, err := OneWay(base, "price", nil, profit); return err }},
		{"elasticity zero delta", func() error { _, err := Elasticity(base, "price", 0, profit); return err }},
		{"elasticity nan delta", func() error { _, err := Elasticity(base, "price", math.NaN(), profit); return err }},
		{"elasticity zero base output", func() error {
			_, err := Elasticity(map[string]float64{"price": 0, "volume": 1, "cost": 0}, "price", 0.1, profit)
			return err
		}},
		{"tornado no params", func() error { _, err := Tornado(base, nil, 0.1, profit); return err }},
		{"tornado zero swing", func() error { _, err := Tornado(base, []string{"price"}, 0, profit); return err }},
		{"tornado unknown param", func() error { _, err := Tornado(base, []string{"tax"}, 0.1, profit); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("err = %v, want invalid argument", err)
			}
		})
	}
}
