// Package randx provides the pseudo-random streams and variate generators
// used by the simulation engine and the portfolio search.
package randx

import (
	"math"
	"math/rand/v2"
	"time"

	"risk-models/internal/apperr"
)

// Source is the uniform stream every generator draws from.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Uint64() uint64
}

const streamSalt = 0x9e3779b97f4a7c15

// New returns a PCG-backed stream. A zero seed draws one from the clock.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^streamSalt))
}

// Split derives an independent stream from src. The parent is advanced,
// so splitting the same parent in the same order is reproducible.
// Split is not safe for concurrent use of src.
func Split(src Source) *rand.Rand {
	return rand.New(rand.NewPCG(src.Uint64(), src.Uint64()))
}

// OpenUniform draws from (0, 1), redrawing exact zeros.
func OpenUniform(src Source) float64 {
	u := src.Float64()
	for u == 0 {
		u = src.Float64()
	}
	return u
}

// Normal draws one Box-Muller variate with the given mean and standard
// deviation. Only the cosine branch of the transform is used.
func Normal(src Source, mean, stdDev float64) float64 {
	u1 := OpenUniform(src)
	u2 := src.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + stdDev*z
}

// Gamma draws a Gamma(shape, 1) variate using Marsaglia and Tsang.
// Shapes below one are boosted by one and scaled back with u^(1/shape).
func Gamma(src Source, shape float64) (float64, error) {
	if !(shape > 0) || math.IsInf(shape, 0) {
		return 0, apperr.Invalid("gamma shape must be positive and finite, got %v", shape)
	}
	if shape < 1 {
		g := marsagliaTsang(src, shape+1)
		return g * math.Pow(src.Float64(), 1/shape), nil
	}
	return marsagliaTsang(src, shape), nil
}

func marsagliaTsang(src Source, shape float64) float64 {
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = Normal(src, 0, 1)
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := src.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta draws a Beta(alpha, beta) variate as x/(x+y) of two gamma draws.
func Beta(src Source, alpha, beta float64) (float64, error) {
	x, err := Gamma(src, alpha)
	if err != nil {
		return 0, err
	}
	y, err := Gamma(src, beta)
	if err != nil {
		return 0, err
	}
	// Both draws can underflow to zero for very small shapes.
	if x+y == 0 {
		return alpha / (alpha + beta), nil
	}
	return x / (x + y), nil
}
