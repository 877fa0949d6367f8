package bloomers

import (
	"math"

	bloomerrors "github.com/tamirms/bloomers/errors"
	"github.com/tamirms/bloomers/internal/bitarray"
)

const (
	// DefaultErrorRate is the false-positive target used when none is given.
	DefaultErrorRate = 0.0001

	// maxBits caps the bit array at 2^40 bits (128 GiB), or less where int
	// is 32 bits wide. Bit indices are stored as int, and anything larger
	// is a sizing mistake rather than a real dataset.
	maxBits = uint64(min(1<<40, math.MaxInt-7))

	// maxHashes bounds k in decoded headers. OptimalParams yields at most
	// 1075, for the smallest positive float64 error rate.
	maxHashes = 2048
)

// Filter is a fixed-capacity bloom filter.
//
// Capacity and error rate are fixed at construction, and so are the
// derived bit count m and hash count k. Adding more than Capacity items is
// allowed; the false-positive rate then rises above the target (see
// OverCapacity and EstimatedFalsePositiveRate). The filter never grows.
//
// Thread Safety:
//   - Contains and the read accessors are safe for concurrent use as long
//     as no Add runs at the same time
//   - Add is NOT safe for concurrent use
type Filter struct {
	capacity  uint64
	errorRate float64
	hashes    HashFamily
	bits      *bitarray.BitArray
	count     uint64
}

// Stats holds filter statistics.
type Stats struct {
	Capacity       uint64
	ErrorRate      float64
	NumBits        uint64
	NumHashes      uint32
	Items          uint64
	BitsSet        uint64
	FillRatio      float64
	EstimatedFPR   float64
	BitsPerItem    float64
	SerializedSize int64
	OverCapacity   bool
}

// OptimalParams returns the bit count m and hash count k for capacity n
// and false-positive rate p:
//
//	m = ceil(-n * ln(p) / (ln 2)^2)
//	k = max(1, round((m / n) * ln 2))
//
// The caller is responsible for n > 0 and 0 < p < 1.
func OptimalParams(n uint64, p float64) (m uint64, k uint32) {
	m = uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	k = uint32(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return m, k
}

// validateParams checks capacity and error rate and returns the derived
// sizing.
func validateParams(capacity uint64, errorRate float64) (m uint64, k uint32, err error) {
	if capacity == 0 {
		return 0, 0, bloomerrors.ErrInvalidCapacity
	}
	// Written so that NaN fails too.
	if !(errorRate > 0 && errorRate < 1) {
		return 0, 0, bloomerrors.ErrInvalidErrorRate
	}
	m, k = OptimalParams(capacity, errorRate)
	if m == 0 || m > maxBits {
		return 0, 0, bloomerrors.ErrFilterTooLarge
	}
	return m, k, nil
}

// New creates an empty filter sized for capacity items at errorRate.
func New(capacity uint64, errorRate float64) (*Filter, error) {
	m, k, err := validateParams(capacity, errorRate)
	if err != nil {
		return nil, err
	}
	bits, err := bitarray.New(int(m))
	if err != nil {
		return nil, err
	}
	return &Filter{
		capacity:  capacity,
		errorRate: errorRate,
		hashes:    NewHashFamily(m, k),
		bits:      bits,
	}, nil
}

// Add inserts item. It always succeeds, including past capacity.
func (f *Filter) Add(item []byte) {
	f.hashes.each(item, func(idx uint64) bool {
		f.bits.Set(int(idx))
		return true
	})
	f.count++
}

// AddString inserts the bytes of s.
func (f *Filter) AddString(s string) {
	f.Add([]byte(s))
}

// Contains reports whether item is possibly a member. A false result is
// definitive; a true result is wrong with probability about
// EstimatedFalsePositiveRate.
func (f *Filter) Contains(item []byte) bool {
	found := true
	f.hashes.each(item, func(idx uint64) bool {
		found = f.bits.Get(int(idx))
		return found
	})
	return found
}

// ContainsString reports whether the bytes of s are possibly a member.
func (f *Filter) ContainsString(s string) bool {
	return f.Contains([]byte(s))
}

// Len returns the exact number of Add calls.
func (f *Filter) Len() uint64 { return f.count }

// Capacity returns the item count the filter was sized for.
func (f *Filter) Capacity() uint64 { return f.capacity }

// ErrorRate returns the target false-positive rate.
func (f *Filter) ErrorRate() float64 { return f.errorRate }

// NumBits returns m.
func (f *Filter) NumBits() uint64 { return f.hashes.m }

// NumHashes returns k.
func (f *Filter) NumHashes() uint32 { return f.hashes.k }

// OverCapacity reports whether more items were added than the filter was
// sized for. The filter keeps working but its false-positive rate is
// above ErrorRate.
func (f *Filter) OverCapacity() bool { return f.count > f.capacity }

// EstimatedFalsePositiveRate returns (1 - e^(-k*n/m))^k for the current
// item count n. It equals roughly ErrorRate when Len() == Capacity().
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	k := float64(f.hashes.k)
	return math.Pow(1-math.Exp(-k*float64(f.count)/float64(f.hashes.m)), k)
}

// Stats returns statistics for the filter.
func (f *Filter) Stats() *Stats {
	set := uint64(f.bits.Count())
	bitsPerItem := float64(0)
	if f.count > 0 {
		bitsPerItem = float64(f.hashes.m) / float64(f.count)
	}
	return &Stats{
		Capacity:       f.capacity,
		ErrorRate:      f.errorRate,
		NumBits:        f.hashes.m,
		NumHashes:      f.hashes.k,
		Items:          f.count,
		BitsSet:        set,
		FillRatio:      float64(set) / float64(f.hashes.m),
		EstimatedFPR:   f.EstimatedFalsePositiveRate(),
		BitsPerItem:    bitsPerItem,
		SerializedSize: int64(f.encodedSize()),
		OverCapacity:   f.OverCapacity(),
	}
}
