package bloomers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	bloomerrors "github.com/tamirms/bloomers/errors"
)

func TestCountItemsHeaderAndComments(t *testing.T) {
	path := writeSource(t, "id\n# exported 2024-01-01\nalice\nbob\ncarol\n")

	res, err := CountItems(context.Background(), path, WithSkipHeader())
	if err != nil {
		t.Fatal(err)
	}
	if res.Items != 3 {
		t.Errorf("Items = %d, want 3", res.Items)
	}
	if res.Lines != 5 || res.Comments != 1 || !res.HeaderSkipped {
		t.Errorf("Lines/Comments/HeaderSkipped = %d/%d/%v, want 5/1/true",
			res.Lines, res.Comments, res.HeaderSkipped)
	}
}

func TestCountItemsLineEndings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    []BuildOption
		items   uint64
		lines   uint64
	}{
		{"empty", "", nil, 0, 0},
		{"single newline", "\n", nil, 1, 1},
		{"unterminated last line", "a\nb\nc", nil, 3, 3},
		{"terminated last line", "a\nb\nc\n", nil, 3, 3},
		{"crlf", "a\r\nb\r\n", nil, 2, 2},
		{"blank lines count", "a\n\n\nb\n", nil, 4, 4},
		{"header only", "id\n", []BuildOption{WithSkipHeader()}, 0, 1},
		{"comment header skipped once", "#id\na\n", []BuildOption{WithSkipHeader()}, 1, 2},
		{"comments disabled", "#a\n#b\n", []BuildOption{WithCommentPrefix("")}, 2, 2},
		{"multi-byte prefix", "--a\n-b\n--c\nd\n", []BuildOption{WithCommentPrefix("--")}, 2, 4},
		{"prefix at end of file", "a\n#", nil, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.content)
			res, err := CountItems(context.Background(), path, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if res.Items != tt.items || res.Lines != tt.lines {
				t.Errorf("Items/Lines = %d/%d, want %d/%d", res.Items, res.Lines, tt.items, tt.lines)
			}
		})
	}
}

// expectedCount counts lines and comments the slow way.
func expectedCount(content, prefix string) (lines, comments uint64) {
	if content == "" {
		return 0, 0
	}
	parts := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		parts = parts[:len(parts)-1]
	}
	for _, p := range parts {
		lines++
		if prefix != "" && strings.HasPrefix(p, prefix) {
			comments++
		}
	}
	return lines, comments
}

// randomSource generates lines of random length, some of them comments,
// some CRLF-terminated, optionally without a final newline.
func randomSource(rng *rand.Rand, n int, prefix string) string {
	var sb strings.Builder
	for i := range n {
		if rng.IntN(5) == 0 {
			sb.WriteString(prefix)
		}
		for range rng.IntN(40) {
			sb.WriteByte(byte('a' + rng.IntN(26)))
		}
		if i == n-1 && rng.IntN(2) == 0 {
			break
		}
		if rng.IntN(4) == 0 {
			sb.WriteByte('\r')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TestCountParallelMatchesSequential splits sources at many worker counts
// and block sizes, including ones that put comment prefixes and newlines
// right on range and block boundaries.
func TestCountParallelMatchesSequential(t *testing.T) {
	rng := newTestRNG(t)
	for _, prefix := range []string{"#", "##", "//!"} {
		content := randomSource(rng, 2000, prefix)
		wantLines, wantComments := expectedCount(content, prefix)

		for _, blockSize := range []int{16, 17, 31, 64, 4096} {
			for _, workers := range []int{1, 2, 3, 7, 16, 64} {
				name := fmt.Sprintf("prefix=%q/block=%d/workers=%d", prefix, blockSize, workers)
				t.Run(name, func(t *testing.T) {
					cfg := newBuildConfig([]BuildOption{
						WithCommentPrefix(prefix), WithBlockSize(blockSize), WithWorkers(workers),
					})
					res, err := countReaderAt(context.Background(), strings.NewReader(content), int64(len(content)), cfg)
					if err != nil {
						t.Fatal(err)
					}
					if res.Lines != wantLines || res.Comments != wantComments {
						t.Errorf("Lines/Comments = %d/%d, want %d/%d",
							res.Lines, res.Comments, wantLines, wantComments)
					}
					if res.Items != wantLines-wantComments {
						t.Errorf("Items = %d, want %d", res.Items, wantLines-wantComments)
					}
				})
			}
		}
	}
}

func TestCountDigest(t *testing.T) {
	rng := newTestRNG(t)
	content := randomSource(rng, 500, "#")
	path := writeSource(t, content)

	res, err := CountItems(context.Background(), path, WithBlockSize(100))
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasDigest {
		t.Fatal("sequential count has no digest")
	}
	if want := xxhash.Sum64String(content); res.Digest != want {
		t.Errorf("Digest = %#x, want %#x", res.Digest, want)
	}

	res, err = CountItems(context.Background(), path, WithBlockSize(100), WithWorkers(4))
	if err != nil {
		t.Fatal(err)
	}
	if res.HasDigest {
		t.Error("parallel count reported a digest")
	}
}

func TestCountCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	content := strings.Repeat("line\n", 1000)

	for _, workers := range []int{1, 4} {
		cfg := newBuildConfig([]BuildOption{WithBlockSize(64), WithWorkers(workers)})
		_, err := countReaderAt(ctx, bytes.NewReader([]byte(content)), int64(len(content)), cfg)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestCountSourceErrors(t *testing.T) {
	ctx := context.Background()

	_, err := CountItems(ctx, "/nonexistent/source.txt")
	if !errors.Is(err, bloomerrors.ErrSourceNotFound) {
		t.Errorf("missing source: error = %v, want ErrSourceNotFound", err)
	}

	_, err = CountItems(ctx, t.TempDir())
	if !errors.Is(err, bloomerrors.ErrSourceNotFile) {
		t.Errorf("directory source: error = %v, want ErrSourceNotFile", err)
	}

	// Configuration errors win over source errors.
	_, err = CountItems(ctx, "/nonexistent/source.txt", WithColumn(0))
	if !errors.Is(err, bloomerrors.ErrInvalidColumn) {
		t.Errorf("invalid column: error = %v, want ErrInvalidColumn", err)
	}
}
