package bloomers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	bloomerrors "github.com/tamirms/bloomers/errors"
)

// Searcher answers membership queries against a loaded filter.
//
// Thread Safety:
//   - Contains, Search, and Stats are safe for concurrent use
//   - After Close, they return ErrSearcherClosed
type Searcher struct {
	filter atomic.Pointer[Filter]
}

// QueryOption configures a Search call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	hex bool
}

// WithHexQuery decodes each query value from a hex string before lookup.
// Values that fail to decode are reported in QueryResult.Skipped.
func WithHexQuery() QueryOption {
	return func(c *queryConfig) {
		c.hex = true
	}
}

// Result is the answer for one query value.
type Result struct {
	Value string
	Found bool
}

// QuerySkip records a query value that could not be looked up.
type QuerySkip struct {
	Index int // position in the input
	Value string
	Err   error // wraps ErrInvalidHex
}

// QueryResult holds the answers of a Search call. Results are in input
// order, minus skipped values.
type QueryResult struct {
	Results []Result
	Skipped []QuerySkip
}

// Open loads the filter file at path.
// The file is memory-mapped only while it is decoded; the returned
// Searcher holds its own copy of the bits and no file handle.
func Open(path string) (*Searcher, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filter file: %w", err)
	}
	defer file.Close()
	return OpenFile(file)
}

// OpenFile loads a filter from f. The caller is responsible for closing f.
func OpenFile(f *os.File) (*Searcher, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat filter file: %w", err)
	}
	if stat.Size() < headerSize {
		return nil, corrupt(bloomerrors.ErrTruncatedFile)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap filter file: %w", err)
	}
	adviseSequentialMapping(mm)

	filter, err := decodeFilter(mm)
	if err != nil {
		return nil, errors.Join(err, mm.Unmap())
	}
	if err := mm.Unmap(); err != nil {
		return nil, fmt.Errorf("mmap unmap failed: %w", err)
	}
	return NewSearcher(filter), nil
}

// OpenBytes loads a filter from its serialized form. data is not retained.
func OpenBytes(data []byte) (*Searcher, error) {
	filter, err := decodeFilter(data)
	if err != nil {
		return nil, err
	}
	return NewSearcher(filter), nil
}

// NewSearcher wraps an in-memory filter. The filter must not be modified
// while the Searcher is in use.
func NewSearcher(f *Filter) *Searcher {
	s := &Searcher{}
	s.filter.Store(f)
	return s
}

// Close releases the filter. Calling Close more than once is a no-op.
func (s *Searcher) Close() error {
	s.filter.Store(nil)
	return nil
}

// Filter returns the underlying filter, or nil after Close.
func (s *Searcher) Filter() *Filter {
	return s.filter.Load()
}

// Contains reports whether value is possibly in the filter.
func (s *Searcher) Contains(value []byte) (bool, error) {
	f := s.filter.Load()
	if f == nil {
		return false, bloomerrors.ErrSearcherClosed
	}
	return f.Contains(value), nil
}

// Search looks up each value in order. With WithHexQuery, values are
// decoded from hex first; a value that fails to decode is skipped and the
// remaining values are still answered.
func (s *Searcher) Search(values []string, opts ...QueryOption) (*QueryResult, error) {
	f := s.filter.Load()
	if f == nil {
		return nil, bloomerrors.ErrSearcherClosed
	}
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	res := &QueryResult{Results: make([]Result, 0, len(values))}
	var buf []byte
	for i, v := range values {
		key := []byte(v)
		if cfg.hex {
			if cap(buf) < hex.DecodedLen(len(v)) {
				buf = make([]byte, hex.DecodedLen(len(v)))
			}
			n, err := hex.Decode(buf[:hex.DecodedLen(len(v))], key)
			if err != nil {
				res.Skipped = append(res.Skipped, QuerySkip{
					Index: i,
					Value: v,
					Err:   fmt.Errorf("%w: %v", bloomerrors.ErrInvalidHex, err),
				})
				continue
			}
			key = buf[:n]
		}
		res.Results = append(res.Results, Result{Value: v, Found: f.Contains(key)})
	}
	return res, nil
}

// Stats returns statistics for the loaded filter.
func (s *Searcher) Stats() (*Stats, error) {
	f := s.filter.Load()
	if f == nil {
		return nil, bloomerrors.ErrSearcherClosed
	}
	return f.Stats(), nil
}

// GetStats returns statistics for a filter file.
func GetStats(path string) (*Stats, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	stats, _ := s.Stats()
	return stats, s.Close()
}
