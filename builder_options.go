package bloomers

import (
	"log/slog"
	"strings"

	bloomerrors "github.com/tamirms/bloomers/errors"
)

const (
	// DefaultColumn is the 1-based column used when none is given.
	DefaultColumn = 1

	// DefaultCommentPrefix marks lines skipped by both ingestion passes.
	DefaultCommentPrefix = "#"

	// defaultBlockSize is the read size for both streaming passes.
	defaultBlockSize = 64 << 10

	// minBlockSize keeps tiny block sizes (used by tests to force block
	// boundaries) from turning into one syscall per byte.
	minBlockSize = 16
)

// BuildOption is a functional option for configuring builds and counts.
type BuildOption func(*buildConfig)

type buildConfig struct {
	errorRate     float64
	delimiter     string // "" means the whole line is the value
	column        int    // 1-based
	hex           bool
	skipHeader    bool
	commentPrefix string // "" disables comment skipping
	capacity      uint64 // 0 means count the source first
	workers       int
	blockSize     int
	logger        *slog.Logger
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		errorRate:     DefaultErrorRate,
		column:        DefaultColumn,
		commentPrefix: DefaultCommentPrefix,
		workers:       1,
		blockSize:     defaultBlockSize,
		logger:        slog.New(slog.DiscardHandler),
	}
}

func newBuildConfig(opts []BuildOption) *buildConfig {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if cfg.blockSize < minBlockSize {
		cfg.blockSize = minBlockSize
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// validate reports configuration errors. It runs before any I/O.
func (c *buildConfig) validate() error {
	if !(c.errorRate > 0 && c.errorRate < 1) {
		return bloomerrors.ErrInvalidErrorRate
	}
	if c.column < 1 {
		return bloomerrors.ErrInvalidColumn
	}
	if c.column != 1 && c.delimiter == "" {
		return bloomerrors.ErrColumnWithoutDelimiter
	}
	if strings.ContainsAny(c.commentPrefix, "\r\n") {
		return bloomerrors.ErrInvalidCommentPrefix
	}
	return nil
}

// WithErrorRate sets the target false-positive rate. Default 0.0001.
func WithErrorRate(p float64) BuildOption {
	return func(c *buildConfig) {
		c.errorRate = p
	}
}

// WithDelimiter splits each line on delim and uses one column as the
// value. Without a delimiter the whole line is the value.
func WithDelimiter(delim string) BuildOption {
	return func(c *buildConfig) {
		c.delimiter = delim
	}
}

// WithColumn selects the 1-based column used with WithDelimiter.
// Default 1.
func WithColumn(column int) BuildOption {
	return func(c *buildConfig) {
		c.column = column
	}
}

// WithHex decodes each extracted value from a hex string to raw bytes
// before it is added. Lines that fail to decode are skipped.
func WithHex() BuildOption {
	return func(c *buildConfig) {
		c.hex = true
	}
}

// WithSkipHeader skips the first line of the source.
func WithSkipHeader() BuildOption {
	return func(c *buildConfig) {
		c.skipHeader = true
	}
}

// WithCommentPrefix skips lines whose raw bytes start with prefix.
// Default "#"; an empty prefix disables comment skipping.
func WithCommentPrefix(prefix string) BuildOption {
	return func(c *buildConfig) {
		c.commentPrefix = prefix
	}
}

// WithCapacity sizes the filter for n items instead of counting the
// source first. This opts into a single read of the source; if the source
// holds more than n items the false-positive rate ends up above target.
func WithCapacity(n uint64) BuildOption {
	return func(c *buildConfig) {
		c.capacity = n
	}
}

// WithWorkers counts the source with n concurrent workers, each over its
// own byte range. Extraction is always sequential.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		c.workers = n
	}
}

// WithBlockSize sets the read size for both streaming passes.
// Default 64 KiB.
func WithBlockSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.blockSize = n
	}
}

// WithLogger sets the structured logger for build progress and skipped
// items. By default nothing is logged.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = l
	}
}
