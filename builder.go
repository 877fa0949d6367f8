package bloomers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	bloomerrors "github.com/tamirms/bloomers/errors"
)

// BuildReport describes a completed build.
type BuildReport struct {
	Source string
	Output string // empty for BuildFilter

	Capacity        uint64 // items the filter was sized for
	CapacityCounted bool   // false when WithCapacity set it
	ErrorRate       float64
	NumBits         uint64
	NumHashes       uint32

	Lines         uint64 // lines read in the extraction pass
	ItemsAdded    uint64
	Comments      uint64
	HeaderSkipped bool
	EmptySkipped  uint64
	SkippedCount  uint64
	Skipped       []Skip // the first 1024 skipped lines

	// OverCapacity is set when more items were added than the filter was
	// sized for. Only possible with WithCapacity; the false-positive rate
	// is then above ErrorRate.
	OverCapacity bool

	// SourceDigest is the xxHash64 of the source, set when the counting
	// pass ran sequentially.
	SourceDigest    uint64
	HasSourceDigest bool

	CountDuration   time.Duration
	ExtractDuration time.Duration
	SaveDuration    time.Duration
}

// Build reads the source file, builds a filter sized for its items and
// saves it to output.
//
// Usage:
//
//	report, err := bloomers.Build(ctx, "hashes.csv", "hashes.blm",
//	    bloomers.WithDelimiter(","), bloomers.WithColumn(2),
//	    bloomers.WithSkipHeader(), bloomers.WithHex())
//	if err != nil { return err }
//	log.Printf("added %d items, skipped %d", report.ItemsAdded, report.SkippedCount)
//
// By default the source is read twice: once to count qualifying lines,
// which sizes the filter, and once to add them. WithCapacity skips the
// count. Configuration errors are returned before any file is touched. On
// any failure, including context cancellation, no output file is left
// behind.
func Build(ctx context.Context, source, output string, opts ...BuildOption) (*BuildReport, error) {
	cfg := newBuildConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	f, report, err := buildFilter(ctx, source, cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := f.Save(output); err != nil {
		return nil, err
	}
	report.Output = output
	report.SaveDuration = time.Since(start)

	cfg.logger.Info("filter saved",
		slog.String("output", output),
		slog.Int64("bytes", int64(f.encodedSize())),
		slog.Duration("elapsed", report.SaveDuration))
	return report, nil
}

// BuildFilter is Build without saving: it returns the filter in memory.
func BuildFilter(ctx context.Context, source string, opts ...BuildOption) (*Filter, *BuildReport, error) {
	cfg := newBuildConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return buildFilter(ctx, source, cfg)
}

func buildFilter(ctx context.Context, source string, cfg *buildConfig) (*Filter, *BuildReport, error) {
	file, size, err := openSource(source)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	report := &BuildReport{Source: source, ErrorRate: cfg.errorRate}
	log := cfg.logger.With(slog.String("source", source))

	capacity := cfg.capacity
	if capacity == 0 {
		start := time.Now()
		counted, err := countFile(ctx, file, size, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("count items: %w", err)
		}
		report.CountDuration = time.Since(start)
		report.CapacityCounted = true
		report.SourceDigest = counted.Digest
		report.HasSourceDigest = counted.HasDigest
		capacity = counted.Items

		log.Info("counted items",
			slog.Uint64("items", counted.Items),
			slog.Uint64("lines", counted.Lines),
			slog.Uint64("comments", counted.Comments),
			slog.Int("workers", cfg.workers),
			slog.Duration("elapsed", report.CountDuration))

		if capacity == 0 {
			return nil, nil, fmt.Errorf("%w: source has no items", bloomerrors.ErrInvalidCapacity)
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("rewind source: %w", err)
		}
	}

	f, err := New(capacity, cfg.errorRate)
	if err != nil {
		return nil, nil, err
	}
	report.Capacity = capacity
	report.NumBits = f.NumBits()
	report.NumHashes = f.NumHashes()
	log.Info("filter sized",
		slog.Uint64("capacity", capacity),
		slog.Float64("error_rate", cfg.errorRate),
		slog.Uint64("bits", f.NumBits()),
		slog.Uint64("hashes", uint64(f.NumHashes())))

	start := time.Now()
	extracted, err := extract(ctx, file, cfg, f.Add)
	if err != nil {
		return nil, nil, fmt.Errorf("extract items: %w", err)
	}
	report.ExtractDuration = time.Since(start)
	report.Lines = extracted.Lines
	report.ItemsAdded = f.Len()
	report.Comments = extracted.Comments
	report.HeaderSkipped = extracted.HeaderSkipped
	report.EmptySkipped = extracted.Empty
	report.SkippedCount = extracted.SkippedCount
	report.Skipped = extracted.Skipped
	report.OverCapacity = f.OverCapacity()

	log.Info("items added",
		slog.Uint64("added", report.ItemsAdded),
		slog.Uint64("empty", report.EmptySkipped),
		slog.Uint64("skipped", report.SkippedCount),
		slog.Duration("elapsed", report.ExtractDuration))
	if report.OverCapacity {
		log.Warn("filter is over capacity",
			slog.Uint64("capacity", capacity),
			slog.Uint64("added", report.ItemsAdded),
			slog.Float64("estimated_fpr", f.EstimatedFalsePositiveRate()))
	}

	return f, report, nil
}
