package bloomers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	bloomerrors "github.com/tamirms/bloomers/errors"
)

const (
	// contextCheckInterval is how often to check for context cancellation
	// while extracting lines.
	contextCheckInterval = 10000

	// maxRecordedSkips bounds the Skip values kept in a report. Every skip
	// is still counted and logged.
	maxRecordedSkips = 1024
)

// Skip records a line whose value could not be extracted.
type Skip struct {
	Line  uint64 // 1-based line number in the source
	Value string // the column text before hex decoding, or the whole line if the column is missing
	Err   error  // wraps ErrMissingColumn or ErrInvalidHex
}

// ExtractResult is the outcome of the extraction pass.
type ExtractResult struct {
	Lines         uint64 // lines read, including header and comments
	Values        uint64 // values passed to the callback
	Comments      uint64
	HeaderSkipped bool
	Empty         uint64 // lines whose value was empty after trimming
	SkippedCount  uint64 // all skipped lines; Skipped holds at most the first 1024
	Skipped       []Skip
}

// Extractor turns one source line into the value that goes into the filter.
//
// Rules, in order: trailing "\r" and "\n" are trimmed; with a delimiter the
// line is split and the configured column is taken, then surrounding '"'
// characters are trimmed; in hex mode the value is decoded to raw bytes.
//
// An Extractor reuses an internal buffer and is not safe for concurrent
// use.
type Extractor struct {
	delim   []byte
	column  int
	hex     bool
	scratch []byte
}

// NewExtractor returns an Extractor for the delimiter, column and hex
// options. Other options are validated but ignored.
func NewExtractor(opts ...BuildOption) (*Extractor, error) {
	cfg := newBuildConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newExtractor(cfg), nil
}

func newExtractor(cfg *buildConfig) *Extractor {
	return &Extractor{
		delim:  []byte(cfg.delimiter),
		column: cfg.column,
		hex:    cfg.hex,
	}
}

// field returns the trimmed text of the configured column.
func (e *Extractor) field(line []byte) ([]byte, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(e.delim) == 0 || len(line) == 0 {
		return line, nil
	}
	for i := 1; i < e.column; i++ {
		j := bytes.Index(line, e.delim)
		if j < 0 {
			return nil, fmt.Errorf("%w: want column %d, line has %d",
				bloomerrors.ErrMissingColumn, e.column, i)
		}
		line = line[j+len(e.delim):]
	}
	if j := bytes.Index(line, e.delim); j >= 0 {
		line = line[:j]
	}
	return bytes.Trim(line, `"`), nil
}

// Extract returns the value for line. A nil value with a nil error means
// the value is empty and the line should be skipped silently.
//
// The returned slice aliases either line or the Extractor's buffer; it is
// only valid until the next call.
func (e *Extractor) Extract(line []byte) ([]byte, error) {
	val, err := e.field(line)
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	if !e.hex {
		return val, nil
	}
	if cap(e.scratch) < hex.DecodedLen(len(val)) {
		e.scratch = make([]byte, hex.DecodedLen(len(val)))
	}
	n, err := hex.Decode(e.scratch[:hex.DecodedLen(len(val))], val)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bloomerrors.ErrInvalidHex, err)
	}
	return e.scratch[:n], nil
}

// ExtractItems streams r line by line and calls fn with every extracted
// value. Header and comment lines are dropped, empty values are counted,
// and lines that fail extraction are recorded as skips and logged. None of
// these abort the pass; only read errors and context cancellation do.
//
// The slice passed to fn is only valid during the call.
func ExtractItems(ctx context.Context, r io.Reader, fn func(value []byte), opts ...BuildOption) (*ExtractResult, error) {
	cfg := newBuildConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return extract(ctx, r, cfg, fn)
}

func extract(ctx context.Context, r io.Reader, cfg *buildConfig, fn func([]byte)) (*ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ex := newExtractor(cfg)
	prefix := []byte(cfg.commentPrefix)
	br := bufio.NewReaderSize(r, cfg.blockSize)
	res := &ExtractResult{}

	var long []byte // accumulates lines longer than the reader's buffer
	sinceCheck := 0
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			long = append(long, line...)
			continue
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read source: %w", err)
		}
		if long != nil {
			long = append(long, line...)
			line = long
		}
		if len(line) == 0 {
			// EOF right after a newline: no final line.
			return res, nil
		}

		res.Lines++
		lineNo := res.Lines
		processLine(ex, line, lineNo, prefix, cfg, res, fn)
		long = nil

		if err == io.EOF {
			return res, nil
		}

		sinceCheck++
		if sinceCheck >= contextCheckInterval {
			sinceCheck = 0
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
	}
}

func processLine(ex *Extractor, line []byte, lineNo uint64, prefix []byte, cfg *buildConfig, res *ExtractResult, fn func([]byte)) {
	if lineNo == 1 && cfg.skipHeader {
		res.HeaderSkipped = true
		return
	}
	if len(prefix) > 0 && bytes.HasPrefix(line, prefix) {
		res.Comments++
		return
	}

	val, err := ex.Extract(line)
	if err != nil {
		res.SkippedCount++
		raw, ferr := ex.field(line)
		if ferr != nil {
			raw = bytes.TrimRight(line, "\r\n")
		}
		if len(res.Skipped) < maxRecordedSkips {
			res.Skipped = append(res.Skipped, Skip{Line: lineNo, Value: string(raw), Err: err})
		}
		cfg.logger.Warn("skipping line",
			slog.Uint64("line", lineNo),
			slog.String("value", string(raw)),
			slog.Any("error", err))
		return
	}
	if val == nil {
		res.Empty++
		return
	}
	res.Values++
	fn(val)
}
