//go:build linux

// bench_ingest measures the two ingestion passes on a generated source file:
//
//  1. "count": the counting pass, sequential and with parallel workers
//  2. "build": a full build (count + extract + save), with and without a
//     capacity override that skips the count
//
// The source is a CSV of random hex hashes with a header and periodic
// comment lines. Between runs the page cache for the source is dropped
// with FADV_DONTNEED, so timings approximate cold reads.
//
// Usage:
//
//	go run ./cmd/bench_ingest -size 1
//	go run ./cmd/bench_ingest -size 10 -workers 1,4,16 -mode count
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tamirms/bloomers"
)

func main() {
	sizeGB := flag.Float64("size", 1.0, "source size in GB")
	workersList := flag.String("workers", "1,2,4,8", "comma-separated worker counts for the count pass")
	mode := flag.String("mode", "both", "mode: count, build, or both")
	tmpDir := flag.String("dir", "", "temp directory (default: os.TempDir())")
	flag.Parse()

	if *tmpDir == "" {
		*tmpDir = os.TempDir()
	}
	workers, err := parseWorkers(*workersList)
	if err != nil {
		fmt.Printf("bad -workers: %v\n", err)
		return
	}

	dir, err := os.MkdirTemp(*tmpDir, "bench-ingest-")
	if err != nil {
		fmt.Printf("ERROR: create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()
	source := filepath.Join(dir, "source.csv")

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Source size:  %.1f GB\n", *sizeGB)
	fmt.Printf("  Temp dir:     %s\n", dir)
	fmt.Printf("  GOMAXPROCS:   %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	genStart := time.Now()
	lines, err := generateSource(source, int64(*sizeGB*1024*1024*1024))
	if err != nil {
		fmt.Printf("ERROR: generate source: %v\n", err)
		return
	}
	fmt.Printf("Generated %d lines in %.2fs\n\n", lines, time.Since(genStart).Seconds())

	ctx := context.Background()
	opts := []bloomers.BuildOption{
		bloomers.WithDelimiter(","),
		bloomers.WithColumn(2),
		bloomers.WithHex(),
		bloomers.WithSkipHeader(),
	}

	if *mode == "count" || *mode == "both" {
		fmt.Println("=== count pass ===")
		for _, w := range workers {
			dropCache(source)
			start := time.Now()
			res, err := bloomers.CountItems(ctx, source, append(opts, bloomers.WithWorkers(w))...)
			if err != nil {
				fmt.Printf("  ERROR: %v\n", err)
				return
			}
			d := time.Since(start)
			fmt.Printf("  workers=%-3d %6.2fs  %8.1f MB/sec  items=%d\n",
				w, d.Seconds(), float64(res.Bytes)/d.Seconds()/1e6, res.Items)
		}
		fmt.Println()
	}

	if *mode == "build" || *mode == "both" {
		fmt.Println("=== full build ===")
		output := filepath.Join(dir, "out.blm")
		runs := []struct {
			name string
			opts []bloomers.BuildOption
		}{
			{"two-pass", opts},
			{"two-pass, 8 workers", append(opts, bloomers.WithWorkers(8))},
			{"single-pass", append(opts, bloomers.WithCapacity(lines))},
		}
		for _, r := range runs {
			dropCache(source)
			start := time.Now()
			report, err := bloomers.Build(ctx, source, output, r.opts...)
			if err != nil {
				fmt.Printf("  ERROR: %v\n", err)
				return
			}
			fmt.Printf("  %-20s %6.2fs  (count %.2fs, extract %.2fs, save %.2fs)  items=%d\n",
				r.name, time.Since(start).Seconds(), report.CountDuration.Seconds(),
				report.ExtractDuration.Seconds(), report.SaveDuration.Seconds(), report.ItemsAdded)
		}
	}
}

func parseWorkers(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid worker count %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}

// generateSource writes "id,hash" lines of 32-byte random hex hashes until
// the file reaches size bytes, with a comment every 1000 lines.
// It returns the number of data lines.
func generateSource(path string, size int64) (uint64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(f, 1<<20)
	var written int64
	n, _ := w.WriteString("id,hash\n")
	written += int64(n)

	rng := rand.New(rand.NewPCG(1, 2))
	var raw [32]byte
	var enc [64]byte
	var lines uint64
	for written < size {
		if lines%1000 == 999 {
			n, _ = w.WriteString("# checkpoint\n")
			written += int64(n)
		}
		for i := 0; i < len(raw); i += 8 {
			v := rng.Uint64()
			for j := range 8 {
				raw[i+j] = byte(v >> (8 * j))
			}
		}
		hex.Encode(enc[:], raw[:])
		n, _ = w.WriteString(strconv.FormatUint(lines, 10))
		written += int64(n)
		_ = w.WriteByte(',')
		n, _ = w.Write(enc[:])
		_ = w.WriteByte('\n')
		written += int64(n) + 2
		lines++
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, err
	}
	return lines, f.Close()
}

// dropCache evicts the source from the page cache. Best-effort.
func dropCache(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return
	}
	_ = unix.Fadvise(int(f.Fd()), 0, info.Size(), unix.FADV_DONTNEED)
}
