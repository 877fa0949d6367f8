package bloomers

import (
	"github.com/zeebo/xxh3"
)

// Seeds for the two base hashes. They are part of format version 1: a
// filter built with one pair of seeds cannot be queried with another.
const (
	seedPrimary   = uint64(0x9E3779B97F4A7C15)
	seedSecondary = uint64(0xC2B2AE3D27D4EB4F)
)

// HashFamily derives k bit indices in [0, m) from an arbitrary byte
// sequence.
//
// Two base hashes h1, h2 are computed with seeded XXH3-64 and combined as
//
//	index_i = (h1 + i*h2 + i*i) mod m,  i in [0, k)
//
// The quadratic term keeps the k indices apart when h2 happens to be
// small (or zero). All arithmetic wraps in uint64, so the result is the
// same on every platform and in every process.
type HashFamily struct {
	m uint64
	k uint32
}

// NewHashFamily returns a family producing k indices in [0, m).
// m and k must be non-zero.
func NewHashFamily(m uint64, k uint32) HashFamily {
	return HashFamily{m: m, k: k}
}

// NumBits returns m.
func (h HashFamily) NumBits() uint64 { return h.m }

// NumHashes returns k.
func (h HashFamily) NumHashes() uint32 { return h.k }

// BaseHashes returns the two independent base hashes of data.
func BaseHashes(data []byte) (h1, h2 uint64) {
	return xxh3.HashSeed(data, seedPrimary), xxh3.HashSeed(data, seedSecondary)
}

// index returns the i-th index for the base hashes h1, h2.
func (h HashFamily) index(h1, h2 uint64, i uint64) uint64 {
	return (h1 + i*h2 + i*i) % h.m
}

// each calls yield with the k indices for data in order, stopping early
// if yield returns false. Add, Contains and Indices all go through it.
func (h HashFamily) each(data []byte, yield func(idx uint64) bool) {
	h1, h2 := BaseHashes(data)
	for i := uint64(0); i < uint64(h.k); i++ {
		if !yield(h.index(h1, h2, i)) {
			return
		}
	}
}

// Indices appends the k indices for data to dst and returns the extended
// slice. Passing a dst with capacity >= k avoids allocation.
func (h HashFamily) Indices(data []byte, dst []uint64) []uint64 {
	h.each(data, func(idx uint64) bool {
		dst = append(dst, idx)
		return true
	})
	return dst
}
