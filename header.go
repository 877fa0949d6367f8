package bloomers

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	bloomerrors "github.com/tamirms/bloomers/errors"
	"github.com/tamirms/bloomers/internal/bitarray"
)

const (
	// magic identifies bloomers filter files: "BLMR".
	magic = "BLMR"

	// version is the current format version.
	version = uint8(1)

	// headerSize is the exact size of the serialized header (41 bytes).
	headerSize = 41
)

// header is the fixed-size filter file header.
//
// Layout (integers little-endian):
//
//	Offset  Size  Field       Type
//	0       4     Magic       "BLMR"
//	4       1     Version     uint8 (1)
//	5       8     Capacity    uint64
//	13      8     ErrorRate   float64 (IEEE-754 bits)
//	21      8     NumBits     uint64 (m)
//	29      4     NumHashes   uint32 (k)
//	33      8     ItemCount   uint64
//
// The bit payload follows immediately: exactly ceil(NumBits/8) bytes,
// packed least-significant-bit first.
type header struct {
	Version   uint8
	Capacity  uint64
	ErrorRate float64
	NumBits   uint64
	NumHashes uint32
	ItemCount uint64
}

// payloadSize returns the exact bit payload length the header implies.
func (h *header) payloadSize() uint64 {
	return (h.NumBits + 7) / 8
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	_ = buf[headerSize-1]
	copy(buf[0:4], magic)
	buf[4] = h.Version
	binary.LittleEndian.PutUint64(buf[5:13], h.Capacity)
	binary.LittleEndian.PutUint64(buf[13:21], math.Float64bits(h.ErrorRate))
	binary.LittleEndian.PutUint64(buf[21:29], h.NumBits)
	binary.LittleEndian.PutUint32(buf[29:33], h.NumHashes)
	binary.LittleEndian.PutUint64(buf[33:41], h.ItemCount)
}

// corrupt wraps a detail sentinel so that both it and ErrCorruptFile
// match with errors.Is.
func corrupt(detail error) error {
	return fmt.Errorf("%w: %w", bloomerrors.ErrCorruptFile, detail)
}

// decodeHeader parses and validates a 41-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, corrupt(bloomerrors.ErrTruncatedFile)
	}
	if string(buf[0:4]) != magic {
		return nil, corrupt(bloomerrors.ErrInvalidMagic)
	}

	h := &header{
		Version:   buf[4],
		Capacity:  binary.LittleEndian.Uint64(buf[5:13]),
		ErrorRate: math.Float64frombits(binary.LittleEndian.Uint64(buf[13:21])),
		NumBits:   binary.LittleEndian.Uint64(buf[21:29]),
		NumHashes: binary.LittleEndian.Uint32(buf[29:33]),
		ItemCount: binary.LittleEndian.Uint64(buf[33:41]),
	}

	if h.Version != version {
		return nil, corrupt(bloomerrors.ErrInvalidVersion)
	}
	if h.Capacity == 0 || !(h.ErrorRate > 0 && h.ErrorRate < 1) {
		return nil, corrupt(bloomerrors.ErrInvalidHeader)
	}
	if h.NumBits == 0 || h.NumBits > maxBits || h.NumHashes == 0 || h.NumHashes > maxHashes {
		return nil, corrupt(bloomerrors.ErrInvalidHeader)
	}

	return h, nil
}

// encodedSize returns the serialized size of the filter.
func (f *Filter) encodedSize() int {
	return headerSize + bitarray.ByteLen(f.bits.Len())
}

func (f *Filter) header() header {
	return header{
		Version:   version,
		Capacity:  f.capacity,
		ErrorRate: f.errorRate,
		NumBits:   f.hashes.m,
		NumHashes: f.hashes.k,
		ItemCount: f.count,
	}
}

// encodeTo serializes the filter into buf, which must be at least
// encodedSize() bytes.
func (f *Filter) encodeTo(buf []byte) {
	h := f.header()
	h.encodeTo(buf[:headerSize])
	f.bits.PutBytes(buf[headerSize:f.encodedSize()])
}

// MarshalBinary returns the serialized filter (header + bit payload).
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, f.encodedSize())
	f.encodeTo(buf)
	return buf, nil
}

// WriteTo writes the serialized filter to w.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	buf, _ := f.MarshalBinary()
	n, err := w.Write(buf)
	return int64(n), err
}

// decodeFilter builds a filter from a complete serialized image. The
// payload must be exactly the size the header declares.
func decodeFilter(data []byte) (*Filter, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	payload := data[headerSize:]
	if uint64(len(payload)) != h.payloadSize() {
		return nil, corrupt(fmt.Errorf("%w: got %d bytes, want %d",
			bloomerrors.ErrPayloadSize, len(payload), h.payloadSize()))
	}
	return filterFromHeader(h, payload)
}

func filterFromHeader(h *header, payload []byte) (*Filter, error) {
	bits, err := bitarray.FromBytes(payload, int(h.NumBits))
	if err != nil {
		return nil, corrupt(err)
	}
	return &Filter{
		capacity:  h.Capacity,
		errorRate: h.ErrorRate,
		hashes:    NewHashFamily(h.NumBits, h.NumHashes),
		bits:      bits,
		count:     h.ItemCount,
	}, nil
}

// UnmarshalBinary replaces f with the filter serialized in data.
// On error f is left unchanged.
func (f *Filter) UnmarshalBinary(data []byte) error {
	decoded, err := decodeFilter(data)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

// ReadFilter reads one serialized filter from r, which must contain
// nothing after the bit payload.
func ReadFilter(r io.Reader) (*Filter, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, corrupt(bloomerrors.ErrTruncatedFile)
		}
		return nil, fmt.Errorf("read filter header: %w", err)
	}
	h, err := decodeHeader(buf[:])
	if err != nil {
		return nil, err
	}

	// Read one byte past the declared size to detect trailing data. ReadAll
	// grows its buffer as data arrives, so a corrupt NumBits cannot force a
	// huge allocation for a short stream.
	want := h.payloadSize()
	payload, err := io.ReadAll(io.LimitReader(r, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("read filter payload: %w", err)
	}
	if uint64(len(payload)) != want {
		return nil, corrupt(fmt.Errorf("%w: got %d bytes, want %d",
			bloomerrors.ErrPayloadSize, len(payload), want))
	}

	return filterFromHeader(h, payload)
}
