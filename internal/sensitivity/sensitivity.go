// Package sensitivity sweeps the inputs of an external pricing model and
// reports how its output responds.
package sensitivity

import (
	"math"
	"sort"

	"risk-models/internal/apperr"
)

// ModelFunc evaluates a model on named numeric inputs. Implementations
// must not retain or modify the map.
type ModelFunc func(inputs map[string]float64) float64

// Sweep is the result of a one-way sensitivity run.
type Sweep struct {
	Parameter        string    `json:"parameter"`
	Values           []float64 `json:"values"`
	Outputs          []float64 `json:"outputs"`
	PercentageChange []float64 `json:"percentage_change"`
}

// Bar is one row of a tornado chart.
type Bar struct {
	Parameter  string  `json:"parameter"`
	LowInput   float64 `json:"low_input"`
	HighInput  float64 `json:"high_input"`
	LowOutput  float64 `json:"low_output"`
	HighOutput float64 `json:"high_output"`
	Swing      float64 `json:"swing"`
}

func withValue(base map[string]float64, name string, v float64) map[string]float64 {
	in := make(map[string]float64, len(base))
	for k, x := range base {
		in[k] = x
	}
	in[name] = v
	return in
}

func checkTarget(base map[string]float64, target string, model ModelFunc) error {
	if model == nil {
		return apperr.Invalid("model function is nil")
	}
	if _, ok := base[target]; !ok {
		return apperr.Invalid("parameter %q not in base inputs", target)
	}
	return nil
}

// OneWay evaluates model with target set to each of values, holding the
// other inputs at base. Percentage changes are relative to the first
// output and are 0 when that output is 0.
func OneWay(base map[string]float64, target string, values []float64, model ModelFunc) (*Sweep, error) {
	if err := checkTarget(base, target, model); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, apperr.Invalid("parameter range for %q is empty", target)
	}

	s := &Sweep{
		Parameter:        target,
		Values:           append([]float64(nil), values...),
		Outputs:          make([]float64, len(values)),
		PercentageChange: make([]float64, len(values)),
	}
	for i, v := range values {
		s.Outputs[i] = model(withValue(base, target, v))
	}
	if first := s.Outputs[0]; first != 0 {
		for i, out := range s.Outputs {
			s.PercentageChange[i] = (out - first) / first * 100
		}
	}
	return s, nil
}

// Elasticity is the relative output change over the relative input change
// when target is scaled by (1 + deltaPct). deltaPct is a fraction.
func Elasticity(base map[string]float64, target string, deltaPct float64, model ModelFunc) (float64, error) {
	if err := checkTarget(base, target, model); err != nil {
		return 0, err
	}
	if deltaPct == 0 || math.IsNaN(deltaPct) || math.IsInf(deltaPct, 0) {
		return 0, apperr.Invalid("delta must be finite and non-zero, got %v", deltaPct)
	}
	baseOut := model(base)
	if baseOut == 0 {
		return 0, apperr.Invalid("base output is zero; elasticity undefined")
	}
	bumped := model(withValue(base, target, base[target]*(1+deltaPct)))
	return (bumped - baseOut) / baseOut / deltaPct, nil
}

// Tornado moves each of params by ±swingPct of its base value and ranks
// them by the absolute output swing, largest first. Ties keep input order.
func Tornado(base map[string]float64, params []string, swingPct float64, model ModelFunc) ([]Bar, error) {
	if len(params) == 0 {
		return nil, apperr.Invalid("no parameters to sweep")
	}
	if !(swingPct > 0) || math.IsInf(swingPct, 0) {
		return nil, apperr.Invalid("swing must be positive, got %v", swingPct)
	}

	bars := make([]Bar, 0, len(params))
	for _, name := range params {
		if err := checkTarget(base, name, model); err != nil {
			return nil, err
		}
		lo := base[name] * (1 - swingPct)
		hi := base[name] * (1 + swingPct)
		b := Bar{
			Parameter:  name,
			LowInput:   lo,
			HighInput:  hi,
			LowOutput:  model(withValue(base, name, lo)),
			HighOutput: model(withValue(base, name, hi)),
		}
		b.Swing = math.Abs(b.HighOutput - b.LowOutput)
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Swing > bars[j].Swing })
	return bars, nil
}
