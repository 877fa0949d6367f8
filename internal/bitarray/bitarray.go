// Package bitarray provides a fixed-length packed bit array with a
// byte-exact serialized form.
//
// Serialized layout is least-significant-bit first: bit i lives in byte
// i/8 at bit offset i%8. Trailing bits of the final byte are zero on
// write and ignored on read.
package bitarray

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	bloomerrors "github.com/tamirms/bloomers/errors"
)

// BitArray is a fixed-length sequence of bits.
//
// BitArray is NOT safe for concurrent writers. Concurrent Get calls are
// safe as long as no Set runs at the same time.
type BitArray struct {
	bits   *bitset.BitSet
	length int
}

// New returns an all-zero BitArray of length bits.
func New(length int) (*BitArray, error) {
	if length <= 0 {
		return nil, bloomerrors.ErrInvalidLength
	}
	return &BitArray{
		bits:   bitset.New(uint(length)),
		length: length,
	}, nil
}

// ByteLen returns ceil(length/8), the serialized size of a BitArray of
// length bits.
func ByteLen(length int) int {
	return (length + 7) / 8
}

// Len returns the number of bits.
func (b *BitArray) Len() int {
	return b.length
}

// Count returns the number of set bits.
func (b *BitArray) Count() int {
	return int(b.bits.Count())
}

// Get reports whether bit i is set. Panics if i is out of range.
func (b *BitArray) Get(i int) bool {
	b.checkIndex(i)
	return b.bits.Test(uint(i))
}

// Set marks bit i. Panics if i is out of range.
func (b *BitArray) Set(i int) {
	b.checkIndex(i)
	b.bits.Set(uint(i))
}

// checkIndex panics on out-of-range access. bitset grows silently on Set,
// so the range contract has to be enforced here.
func (b *BitArray) checkIndex(i int) {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("bitarray: index %d out of range [0, %d)", i, b.length))
	}
}

// Bytes returns the packed representation (ByteLen(Len()) bytes).
func (b *BitArray) Bytes() []byte {
	return b.AppendBytes(make([]byte, 0, ByteLen(b.length)))
}

// AppendBytes appends the packed representation to dst.
func (b *BitArray) AppendBytes(dst []byte) []byte {
	n := ByteLen(b.length)
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	b.PutBytes(dst[start:])
	return dst
}

// PutBytes writes the packed representation into dst, which must be at
// least ByteLen(Len()) bytes. Used by writers that encode straight into a
// mapped file region.
func (b *BitArray) PutBytes(dst []byte) {
	n := ByteLen(b.length)
	_ = dst[n-1]
	var word [8]byte
	for i, w := range b.bits.Words() {
		off := i * 8
		if off >= n {
			break
		}
		if off+8 <= n {
			binary.LittleEndian.PutUint64(dst[off:], w)
			continue
		}
		// Final partial word.
		binary.LittleEndian.PutUint64(word[:], w)
		copy(dst[off:n], word[:])
	}
}

// FromBytes rebuilds a BitArray of length bits from its packed form.
// len(data) must equal ByteLen(length) exactly. Bits beyond length in the
// final byte are ignored.
func FromBytes(data []byte, length int) (*BitArray, error) {
	if length <= 0 {
		return nil, bloomerrors.ErrInvalidLength
	}
	if len(data) != ByteLen(length) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", bloomerrors.ErrPayloadSize, len(data), ByteLen(length))
	}

	words := make([]uint64, (length+63)/64)
	var word [8]byte
	for i := range words {
		off := i * 8
		if off+8 <= len(data) {
			words[i] = binary.LittleEndian.Uint64(data[off:])
			continue
		}
		clear(word[:])
		copy(word[:], data[off:])
		words[i] = binary.LittleEndian.Uint64(word[:])
	}
	if tail := length % 64; tail != 0 {
		words[len(words)-1] &= (uint64(1) << tail) - 1
	}

	return &BitArray{
		bits:   bitset.FromWithLength(uint(length), words),
		length: length,
	}, nil
}
