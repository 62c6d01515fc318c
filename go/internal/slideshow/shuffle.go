package slideshow

// LCG parameters shared with the browser displays (Numerical Recipes)
const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
	lcgModulus    = 1 << 32
)

// Rand is the seeded generator every display uses so equal seeds give equal orders
type Rand struct {
	z uint32
}

// NewRand seeds a generator. Seeds are reduced modulo 2^32.
func NewRand(seed int64) *Rand {
	return &Rand{z: uint32(seed)}
}

// Float64 returns the next value in [0, 1)
func (r *Rand) Float64() float64 {
	r.z = lcgMultiplier*r.z + lcgIncrement
	return float64(r.z) / lcgModulus
}

// Shuffle returns a seeded Fisher-Yates permutation of items. items is not modified.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)

	r := NewRand(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(r.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
