// Package hashing implements the default hash functions, the prime bucket
// sequence and the rehash threshold policy used by the hash containers.
package hashing

import "math"

// FNV1 computes the 32-bit FNV-1 hash of s, the default string hash.
func FNV1(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h = h*16777619 ^ uint32(s[i])
	}
	return h
}

// FNV1Bytes computes the 32-bit FNV-1 hash of b.
func FNV1Bytes(b []byte) uint32 {
	h := uint32(2166136261)
	for _, c := range b {
		h = h*16777619 ^ uint32(c)
	}
	return h
}

// Identity returns the value itself, the default hash for integral keys.
// Float keys truncate toward zero.
func Identity(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), true
	case int8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case int16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case int32:
		return uint64(x), true
	case uint64:
		return x, true
	case int64:
		return uint64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case float32:
		return uint64(int64(x)), true
	case float64:
		return uint64(int64(x)), true
	default:
		return 0, false
	}
}

// Func is a key hash function.
type Func func(v any) (uint64, bool)

// Default hashes a value with the default policy: strings through FNV1,
// everything integral through Identity.
func Default(v any) (uint64, bool) {
	if s, ok := v.(string); ok {
		return uint64(FNV1(s)), true
	}
	return Identity(v)
}

// PrimeRehashPolicy keeps the bucket count prime and decides when a hash
// table must redistribute. NextResize caches the element count that forces
// the next rehash; its value is part of the control-block image.
type PrimeRehashPolicy struct {
	MaxLoadFactor float32
	GrowthFactor  float32
	NextResize    uint32
}

// NewPrimeRehashPolicy returns the policy with the native defaults.
func NewPrimeRehashPolicy() PrimeRehashPolicy {
	return PrimeRehashPolicy{
		MaxLoadFactor: 1.0,
		GrowthFactor:  2.0,
	}
}

// RehashRequired reports the bucket count the table must rehash to before
// elementAdd more elements can be inserted, or ok=false when the current
// bucket array still satisfies the load factor. It updates NextResize
// either way once the threshold is crossed.
func (p *PrimeRehashPolicy) RehashRequired(bucketCount, elementCount, elementAdd uint32) (uint32, bool) {
	if elementCount+elementAdd <= p.NextResize {
		return 0, false
	}

	// an empty table reports one bucket (the shared sentinel array); it
	// holds nothing, so treat it as zero
	if bucketCount == 1 {
		bucketCount = 0
	}

	minBuckets := float32(elementCount+elementAdd) / p.MaxLoadFactor
	if minBuckets > float32(bucketCount) {
		if g := p.GrowthFactor * float32(bucketCount); minBuckets < g {
			minBuckets = g
		}
		next := NextBucketCount(uint32(minBuckets))
		p.NextResize = uint32(math.Ceil(float64(next) * float64(p.MaxLoadFactor)))
		return next, true
	}

	p.NextResize = uint32(math.Ceil(float64(bucketCount) * float64(p.MaxLoadFactor)))
	return 0, false
}

// NextBucketCount returns the smallest entry in the prime table that is at
// least min. Requests beyond the table saturate at the final prime.
func NextBucketCount(min uint32) uint32 {
	lo, hi := 0, len(primes)
	for lo < hi {
		mid := (lo + hi) / 2
		if primes[mid] < min {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(primes) {
		return primes[len(primes)-1]
	}
	return primes[lo]
}

// The bucket count sequence. The table is clamped so growth never exceeds
// what a native build would pick; the last prime repeats as a saturation
// guard.
var primes = [257]uint32{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71, 73, 79, 83, 89, 97,
	103, 109, 113, 127, 137, 139, 149, 157, 167, 179, 193, 199, 211, 227, 241, 257, 277, 293, 313,
	337, 359, 383, 409, 439, 467, 503, 541, 577, 619, 661, 709, 761, 823, 887, 953, 1031, 1109,
	1193, 1289, 1381, 1493, 1613, 1741, 1879, 2029, 2179, 2357, 2549, 2753, 2971, 3209, 3469, 3739,
	4027, 4349, 4703, 5087, 5503, 5953, 6427, 6949, 7517, 8123, 8783, 9497, 10273, 11113, 12011,
	12983, 14033, 15173, 16411, 17749, 19183, 20753, 22447, 24281, 26267, 28411, 30727, 33223,
	35933, 38873, 42043, 45481, 49201, 53201, 57557, 62233, 67307, 72817, 78779, 85229, 92203,
	99733, 107897, 116731, 126271, 136607, 147793, 159871, 172933, 187091, 202409, 218971, 236897,
	256279, 277261, 299951, 324503, 351061, 379787, 410857, 444487, 480881, 520241, 562841, 608903,
	658753, 712697, 771049, 834181, 902483, 976369, 1056323, 1142821, 1236397, 1337629, 1447153,
	1565659, 1693859, 1832561, 1982627, 2144977, 2320627, 2510653, 2716249, 2938679, 3179303,
	3439651, 3721303, 4026031, 4355707, 4712381, 5098259, 5515729, 5967347, 6456007, 6984629,
	7556579, 8175383, 8844859, 9569143, 10352717, 11200489, 12117689, 13109983, 14183539, 15345007,
	16601593, 17961079, 19431899, 21023161, 22744717, 24607243, 26622317, 28802401, 31160981,
	33712729, 36473443, 39460231, 42691603, 46187573, 49969847, 54061849, 58488943, 63278561,
	68460391, 74066549, 80131819, 86693767, 93793069, 101473717, 109783337, 118773397, 128499677,
	139022417, 150406843, 162723577, 176048909, 190465427, 206062531, 222936881, 241193053,
	260944219, 282312799, 305431229, 330442829, 357502601, 386778277, 418451333, 452718089,
	489790921, 529899637, 573292817, 620239453, 671030513, 725980837, 785430967, 849749479,
	919334987, 994618837, 1076067617, 1164186217, 1259520799, 1362662261, 1474249943, 1594975441,
	1725587117, 1866894511, 2019773507, 2185171673, 2364114217, 2557710269, 2767159799, 2993761039,
	3238918481, 3504151727, 3791104843, 4101556399, 4294967291, 4294967291,
}
