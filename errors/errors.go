// Package errors defines all exported error sentinels for the bloomers library.
//
// This is the single source of truth for error values. The top-level
// bloomers package and its internal packages import from here, so
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Configuration errors. These are reported before any I/O happens.
var (
	ErrInvalidCapacity        = errors.New("bloomers: capacity must be greater than zero")
	ErrInvalidErrorRate       = errors.New("bloomers: error rate must be in (0, 1)")
	ErrInvalidLength          = errors.New("bloomers: bit array length must be greater than zero")
	ErrFilterTooLarge         = errors.New("bloomers: filter size exceeds maximum (2^40 bits)")
	ErrColumnWithoutDelimiter = errors.New("bloomers: column requires a delimiter")
	ErrInvalidColumn          = errors.New("bloomers: column must be 1 or greater")
	ErrInvalidCommentPrefix   = errors.New("bloomers: comment prefix must not contain a newline")
)

// Source errors
var (
	ErrSourceNotFound = errors.New("bloomers: source file not found")
	ErrSourceNotFile  = errors.New("bloomers: source is not a regular file")
)

// Per-item errors. Items failing with these are skipped; the pass continues.
var (
	ErrInvalidHex    = errors.New("bloomers: value is not a valid hex string")
	ErrMissingColumn = errors.New("bloomers: line has fewer columns than requested")
)

// Filter file errors. Every decode failure wraps ErrCorruptFile, so callers
// only need a single errors.Is check to tell corruption from I/O failure.
var (
	ErrCorruptFile    = errors.New("bloomers: corrupt filter file")
	ErrInvalidMagic   = errors.New("bloomers: invalid magic number")
	ErrInvalidVersion = errors.New("bloomers: unsupported version")
	ErrTruncatedFile  = errors.New("bloomers: filter file is truncated")
	ErrPayloadSize    = errors.New("bloomers: bit payload size does not match header")
	ErrInvalidHeader  = errors.New("bloomers: header fields are out of range")
)

// Query errors
var (
	ErrSearcherClosed = errors.New("bloomers: searcher is closed")
)
