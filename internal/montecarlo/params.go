// Package montecarlo runs Monte Carlo simulation batches: it samples every
// declared parameter, combines the samples per trial and summarizes the
// combined output.
package montecarlo

import (
	"math"

	"risk-models/internal/apperr"
)

// Distribution names a supported sampling family.
type Distribution string

const (
	Normal     Distribution = "normal"
	LogNormal  Distribution = "lognormal"
	Uniform    Distribution = "uniform"
	Triangular Distribution = "triangular"
	PERT       Distribution = "pert"
)

// Rule names how per-parameter samples combine into one value per trial.
type Rule string

const (
	RuleSum     Rule = "sum"
	RuleProduct Rule = "product"
	RuleNPV     Rule = "npv"
)

// pertLambda weights the mode in the PERT beta shape parameters.
const pertLambda = 4.0

// Parameter is one named uncertain input. Mean and StdDev apply to normal
// and lognormal (lognormal moments are on the output scale). Min and Max
// apply to uniform; Min, Mode and Max to triangular and PERT.
// Period is the NPV time index; when nil the declaration index is used.
type Parameter struct {
	Name         string       `json:"name"`
	Distribution Distribution `json:"distribution"`
	Mean         float64      `json:"mean,omitempty"`
	StdDev       float64      `json:"std_dev,omitempty"`
	Min          float64      `json:"min,omitempty"`
	Mode         float64      `json:"mode,omitempty"`
	Max          float64      `json:"max,omitempty"`
	Period       *int         `json:"period,omitempty"`
}

// Batch is a complete simulation request.
type Batch struct {
	Trials       int         `json:"trials"`
	Parameters   []Parameter `json:"parameters"`
	Rule         Rule        `json:"rule,omitempty"`
	DiscountRate *float64    `json:"discount_rate,omitempty"`
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Validate checks the shape arguments for the parameter's distribution.
func (p Parameter) Validate() error {
	switch p.Distribution {
	case Normal:
		if !finite(p.Mean, p.StdDev) {
			return apperr.Invalid("parameter %q: mean and std_dev must be finite", p.Name)
		}
		if p.StdDev < 0 {
			return apperr.Invalid("parameter %q: std_dev must be non-negative, got %v", p.Name, p.StdDev)
		}
	case LogNormal:
		if !finite(p.Mean, p.StdDev) {
			return apperr.Invalid("parameter %q: mean and std_dev must be finite", p.Name)
		}
		if p.Mean <= 0 {
			return apperr.Invalid("parameter %q: lognormal mean must be positive, got %v", p.Name, p.Mean)
		}
		if p.StdDev < 0 {
			return apperr.Invalid("parameter %q: std_dev must be non-negative, got %v", p.Name, p.StdDev)
		}
		if cv := p.StdDev / p.Mean; math.IsInf(math.Log(1+cv*cv), 0) {
			return apperr.Invalid("parameter %q: std_dev/mean ratio %v overflows the lognormal fit", p.Name, cv)
		}
	case Uniform:
		if !finite(p.Min, p.Max) {
			return apperr.Invalid("parameter %q: min and max must be finite", p.Name)
		}
		if p.Min > p.Max {
			return apperr.Invalid("parameter %q: min %v exceeds max %v", p.Name, p.Min, p.Max)
		}
	case Triangular, PERT:
		if !finite(p.Min, p.Mode, p.Max) {
			return apperr.Invalid("parameter %q: min, mode and max must be finite", p.Name)
		}
		if p.Min >= p.Max {
			return apperr.Invalid("parameter %q: %s needs min < max, got [%v, %v]", p.Name, p.Distribution, p.Min, p.Max)
		}
		if p.Mode < p.Min || p.Mode > p.Max {
			return apperr.Invalid("parameter %q: mode %v outside [%v, %v]", p.Name, p.Mode, p.Min, p.Max)
		}
	default:
		return apperr.Invalid("parameter %q: unknown distribution %q", p.Name, p.Distribution)
	}
	if p.Period != nil && *p.Period < 0 {
		return apperr.Invalid("parameter %q: period must be non-negative, got %d", p.Name, *p.Period)
	}
	return nil
}

// Validate checks the batch and every parameter in it.
func (b Batch) Validate() error {
	if b.Trials <= 0 {
		return apperr.Invalid("trials must be positive, got %d", b.Trials)
	}
	if len(b.Parameters) == 0 {
		return apperr.Invalid("batch needs at least one parameter")
	}
	for _, p := range b.Parameters {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if b.Rule == RuleNPV {
		if b.DiscountRate == nil {
			return apperr.Invalid("npv rule requires a discount rate")
		}
		if err := checkDiscountRate(*b.DiscountRate); err != nil {
			return err
		}
	}
	return nil
}

func checkDiscountRate(r float64) error {
	if !finite(r) || r <= -1 {
		return apperr.Invalid("discount rate must be finite and above -1, got %v", r)
	}
	return nil
}

// EffectiveRule maps an empty or unknown rule to sum.
func (b Batch) EffectiveRule() Rule {
	switch b.Rule {
	case RuleProduct, RuleNPV:
		return b.Rule
	default:
		return RuleSum
	}
}
