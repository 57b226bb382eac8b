package montecarlo

import (
	"math"

	"risk-models/internal/randx"
)

// GenerateSamples draws trials independent values for p.
// Parameters are sampled independently of each other; no cross-parameter
// correlation is modelled.
func GenerateSamples(src randx.Source, p Parameter, trials int) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if trials <= 0 {
		return nil, invalidTrials(trials)
	}

	out := make([]float64, trials)
	switch p.Distribution {
	case Normal:
		for i := range out {
			out[i] = randx.Normal(src, p.Mean, p.StdDev)
		}

	case LogNormal:
		cv := p.StdDev / p.Mean
		sigma2 := math.Log(1 + cv*cv)
		mu := math.Log(p.Mean) - sigma2/2
		sigma := math.Sqrt(sigma2)
		for i := range out {
			out[i] = math.Exp(randx.Normal(src, mu, sigma))
		}

	case Uniform:
		span := p.Max - p.Min
		for i := range out {
			out[i] = p.Min + src.Float64()*span
		}

	case Triangular:
		span := p.Max - p.Min
		fc := (p.Mode - p.Min) / span
		for i := range out {
			u := src.Float64()
			if u < fc {
				out[i] = p.Min + math.Sqrt(u*span*(p.Mode-p.Min))
			} else {
				out[i] = p.Max - math.Sqrt((1-u)*span*(p.Max-p.Mode))
			}
		}

	case PERT:
		span := p.Max - p.Min
		alpha := 1 + pertLambda*(p.Mode-p.Min)/span
		beta := 1 + pertLambda*(p.Max-p.Mode)/span
		for i := range out {
			b, err := randx.Beta(src, alpha, beta)
			if err != nil {
				return nil, err
			}
			out[i] = p.Min + b*span
		}
	}
	return out, nil
}
