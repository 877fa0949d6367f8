package bitarray

import (
	"testing"

	"github.com/stretchr/testify/require"
	bloomerrors "github.com/tamirms/bloomers/errors"
)

func TestNewRejectsNonPositiveLength(t *testing.T) {
	for _, n := range []int{0, -1, -64} {
		_, err := New(n)
		require.ErrorIs(t, err, bloomerrors.ErrInvalidLength, "length %d", n)
	}
}

func TestGetSet(t *testing.T) {
	b, err := New(100)
	require.NoError(t, err)
	require.Equal(t, 100, b.Len())
	require.Zero(t, b.Count())

	for i := 0; i < 100; i++ {
		require.False(t, b.Get(i), "bit %d set on a fresh array", i)
	}

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(99)
	b.Set(99) // idempotent
	require.Equal(t, 4, b.Count())
	require.True(t, b.Get(0))
	require.True(t, b.Get(63))
	require.True(t, b.Get(64))
	require.True(t, b.Get(99))
	require.False(t, b.Get(1))
	require.False(t, b.Get(98))
}

func TestOutOfRangePanics(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)

	require.Panics(t, func() { b.Get(10) })
	require.Panics(t, func() { b.Get(-1) })
	require.Panics(t, func() { b.Set(10) })
	require.Panics(t, func() { b.Set(1 << 20) })
	require.Equal(t, 10, b.Len(), "failed Set must not grow the array")
}

func TestByteLayoutLSBFirst(t *testing.T) {
	b, err := New(20)
	require.NoError(t, err)
	b.Set(0)  // byte 0, bit 0
	b.Set(9)  // byte 1, bit 1
	b.Set(19) // byte 2, bit 3

	require.Equal(t, []byte{0x01, 0x02, 0x08}, b.Bytes())
}

func TestBytesRoundTrip(t *testing.T) {
	for _, length := range []int{1, 7, 8, 9, 63, 64, 65, 127, 128, 1000, 4099} {
		b, err := New(length)
		require.NoError(t, err)
		for i := 0; i < length; i += 3 {
			b.Set(i)
		}
		b.Set(length - 1)

		data := b.Bytes()
		require.Len(t, data, ByteLen(length))

		got, err := FromBytes(data, length)
		require.NoError(t, err, "length %d", length)
		require.Equal(t, length, got.Len())
		require.Equal(t, b.Count(), got.Count())
		for i := 0; i < length; i++ {
			require.Equal(t, b.Get(i), got.Get(i), "length %d bit %d", length, i)
		}
		require.Equal(t, data, got.Bytes())
	}
}

func TestFromBytesIgnoresTrailingBits(t *testing.T) {
	// 10 bits -> 2 bytes; the top 6 bits of byte 1 are padding.
	got, err := FromBytes([]byte{0xFF, 0xFF}, 10)
	require.NoError(t, err)
	require.Equal(t, 10, got.Count())
	require.Equal(t, []byte{0xFF, 0x03}, got.Bytes())
}

func TestFromBytesSizeMismatch(t *testing.T) {
	_, err := FromBytes(make([]byte, 3), 10)
	require.ErrorIs(t, err, bloomerrors.ErrPayloadSize)

	_, err = FromBytes(make([]byte, 1), 10)
	require.ErrorIs(t, err, bloomerrors.ErrPayloadSize)

	_, err = FromBytes(nil, 0)
	require.ErrorIs(t, err, bloomerrors.ErrInvalidLength)
}

func TestAppendBytes(t *testing.T) {
	b, err := New(16)
	require.NoError(t, err)
	b.Set(15)

	out := b.AppendBytes([]byte("hdr"))
	require.Equal(t, []byte{'h', 'd', 'r', 0x00, 0x80}, out)
}
