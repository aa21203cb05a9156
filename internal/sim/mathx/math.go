package mathx

import "math"

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash3 mixes a seed with three counters. Used instead of a stateful PRNG so
// that every roll is reproducible from (seed, tick, entity, salt) alone.
func Hash3(seed int64, a, b, c uint64) uint64 {
	v := uint64(seed) ^ (a * 0x9e3779b97f4a7c15) ^ (b * 0xc2b2ae3d27d4eb4f) ^ (c * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps a hash to [0,1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(uint64(1)<<53)
}

// Roll returns a reproducible value in [0,1).
func Roll(seed int64, tick, entity, salt uint64) float64 {
	return Unit(Hash3(seed, tick, entity, salt))
}

// Lerp maps u in [0,1) onto [lo,hi).
func Lerp(lo, hi, u float64) float64 {
	return lo + (hi-lo)*u
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
