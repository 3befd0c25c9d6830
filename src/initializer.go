package lyricflow

import (
	"math"
	"math/rand/v2"
)

// Initializer sets up initial weights for layers
type Initializer interface {
	initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand)
	name() string
}

// FanUniformInit - U(-1/sqrt(n), 1/sqrt(n)) where n is the unit count.
// Matches the usual recurrent and linear layer defaults.
type FanUniformInit struct {
	UseFanOut bool // scale by fanOut (recurrent units) instead of fanIn
}

func FanUniform(useFanOut bool) Initializer {
	return &FanUniformInit{UseFanOut: useFanOut}
}

func (f *FanUniformInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	n := fanIn
	if f.UseFanOut {
		n = fanOut
	}
	limit := 1.0 / math.Sqrt(float64(n))
	t.fillRandUniform(-limit, limit, rng)
}

func (f *FanUniformInit) name() string { return "fan_uniform" }

// RandomNormalInit - simple random normal
type RandomNormalInit struct {
	Mean   float64
	StdDev float64
}

func RandomNormal(mean, stddev float64) Initializer {
	return &RandomNormalInit{Mean: mean, StdDev: stddev}
}

func (r *RandomNormalInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	t.fillRandNorm(r.Mean, r.StdDev, rng)
}

func (r *RandomNormalInit) name() string { return "random_normal" }
