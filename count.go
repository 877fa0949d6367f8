package bloomers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	bloomerrors "github.com/tamirms/bloomers/errors"
	"golang.org/x/sync/errgroup"
)

// CountResult is the outcome of the counting pass.
type CountResult struct {
	// Items is the number of qualifying lines: every line, minus the
	// header when skipped, minus comment lines. It is the capacity a
	// build sizes its filter for.
	Items uint64

	// Lines is the total number of lines. A final line without a
	// trailing newline counts.
	Lines uint64

	// Comments is the number of comment lines excluded from Items.
	Comments uint64

	// HeaderSkipped reports whether a header line was excluded.
	HeaderSkipped bool

	// Bytes is the size of the source.
	Bytes int64

	// Digest is the xxHash64 of the source bytes. Only computed by a
	// sequential count; HasDigest is false when workers > 1.
	Digest    uint64
	HasDigest bool
}

// rangeCount is the partial result for one byte range.
type rangeCount struct {
	lines          uint64
	comments       uint64
	firstIsComment bool // line 0 starts a comment (only set for the range holding offset 0)
}

// CountItems runs the counting pass over the file at path. It honours the
// header, comment, block size, and worker options; the remaining options
// are validated but otherwise ignored.
func CountItems(ctx context.Context, path string, opts ...BuildOption) (*CountResult, error) {
	cfg := newBuildConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	file, size, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return countFile(ctx, file, size, cfg)
}

// openSource opens a build source and returns its size.
func openSource(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %w", bloomerrors.ErrSourceNotFound, err)
		}
		return nil, 0, fmt.Errorf("open source: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		return nil, 0, errors.Join(fmt.Errorf("stat source: %w", err), file.Close())
	}
	if !stat.Mode().IsRegular() {
		return nil, 0, errors.Join(fmt.Errorf("%w: %s", bloomerrors.ErrSourceNotFile, path), file.Close())
	}
	return file, stat.Size(), nil
}

// countFile counts lines in file, splitting the work across cfg.workers
// byte ranges.
func countFile(ctx context.Context, file *os.File, size int64, cfg *buildConfig) (*CountResult, error) {
	adviseSequentialFile(int(file.Fd()), 0, 0)
	return countReaderAt(ctx, file, size, cfg)
}

func countReaderAt(ctx context.Context, r io.ReaderAt, size int64, cfg *buildConfig) (*CountResult, error) {
	prefix := []byte(cfg.commentPrefix)
	res := &CountResult{Bytes: size}

	workers := cfg.workers
	// Ranges smaller than a block are not worth a goroutine.
	if maxWorkers := size / int64(cfg.blockSize); int64(workers) > maxWorkers {
		workers = int(max(maxWorkers, 1))
	}

	var total rangeCount
	if workers <= 1 {
		digest := xxhash.New()
		rc, err := countRange(ctx, r, size, 0, size, prefix, cfg.blockSize, digest)
		if err != nil {
			return nil, err
		}
		total = rc
		res.Digest = digest.Sum64()
		res.HasDigest = true
	} else {
		parts := make([]rangeCount, workers)
		g, gctx := errgroup.WithContext(ctx)
		chunk := size / int64(workers)
		for w := range workers {
			start := int64(w) * chunk
			end := start + chunk
			if w == workers-1 {
				end = size
			}
			g.Go(func() error {
				rc, err := countRange(gctx, r, size, start, end, prefix, cfg.blockSize, nil)
				if err != nil {
					return err
				}
				parts[w] = rc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, p := range parts {
			total.lines += p.lines
			total.comments += p.comments
			total.firstIsComment = total.firstIsComment || p.firstIsComment
		}
	}

	res.Lines = total.lines
	res.Comments = total.comments
	items := total.lines - total.comments
	if cfg.skipHeader && total.lines > 0 {
		// The header is dropped before the comment rule applies, so a
		// header that looks like a comment is only subtracted once.
		res.HeaderSkipped = true
		if total.firstIsComment {
			res.Comments--
		} else {
			items--
		}
	}
	res.Items = items
	return res, nil
}

// countRange counts the lines that start in [start, end) of a source of
// size bytes. A line starts at offset 0 and after every '\n' that is not
// the last byte of the source. A line is a comment when the bytes at its
// start equal prefix.
//
// The range is read in blocks of blockSize plus len(prefix) bytes of
// lookahead, so a prefix straddling a block (or range) boundary is still
// matched. If digest is non-nil every byte of [start, end) is fed to it;
// callers only pass one when the range covers the whole source.
func countRange(ctx context.Context, r io.ReaderAt, size, start, end int64, prefix []byte, blockSize int, digest *xxhash.Digest) (rangeCount, error) {
	var rc rangeCount
	if start >= end {
		return rc, nil
	}

	// A newline at q starts a line at q+1, so scanning begins one byte
	// early to catch a line starting exactly at start.
	lo := start
	if start > 0 {
		lo = start - 1
	}

	buf := make([]byte, blockSize+len(prefix))
	for off := lo; off < end; off += int64(blockSize) {
		if err := ctx.Err(); err != nil {
			return rc, err
		}

		scanLen := min(int64(blockSize), end-off)
		readLen := min(int64(len(buf)), size-off)
		n, err := r.ReadAt(buf[:readLen], off)
		if int64(n) < readLen {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return rc, fmt.Errorf("read source at offset %d: %w", off, err)
		}
		view := buf[:readLen]
		block := view[:scanLen]

		if digest != nil {
			// The scan window starts one byte early for ranges past
			// offset 0; digests are only taken for the full source.
			_, _ = digest.Write(block)
		}

		if off == 0 && start == 0 {
			rc.lines++
			if hasPrefixAt(view, 0, prefix) {
				rc.comments++
				rc.firstIsComment = true
			}
		}

		for i := 0; i < len(block); {
			j := bytes.IndexByte(block[i:], '\n')
			if j < 0 {
				break
			}
			lineStart := off + int64(i+j) + 1
			i += j + 1
			if lineStart < start || lineStart >= end {
				continue
			}
			rc.lines++
			if hasPrefixAt(view, int(lineStart-off), prefix) {
				rc.comments++
			}
		}
	}
	return rc, nil
}

// hasPrefixAt reports whether view[pos:] starts with a non-empty prefix.
func hasPrefixAt(view []byte, pos int, prefix []byte) bool {
	if len(prefix) == 0 || pos+len(prefix) > len(view) {
		return false
	}
	return bytes.Equal(view[pos:pos+len(prefix)], prefix)
}
