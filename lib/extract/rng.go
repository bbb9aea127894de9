package extract

import (
	"math"
)

var xorshiftMaxUint = float64(math.MaxUint32)

// RNG is an xorshift random number generator used to dither dequantized
// values. It is not thread safe.
type RNG struct {
	w, x, y, z uint32
}

// NewRNG creates an RNG with a given seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{uint32(seed), 123456789, 362436069, 521288629}
}

func (gen *RNG) next() float64 {
	t := gen.x ^ (gen.x << 11)
	gen.x, gen.y, gen.z = gen.y, gen.z, gen.w
	gen.w = gen.w ^ (gen.w >> 19) ^ (t ^ (t >> 8))
	return float64(math.MaxUint32-gen.w) / xorshiftMaxUint
}

// Uniform generates a single random number in the range [0, 1).
func (gen *RNG) Uniform() float64 {
	for {
		if res := gen.next(); res < 1 {
			return res
		}
	}
}

// UniformSequence writes one random number in the range [0, 1) to each
// element of target.
func (gen *RNG) UniformSequence(target []float64) {
	for i := range target {
		target[i] = gen.Uniform()
	}
}
