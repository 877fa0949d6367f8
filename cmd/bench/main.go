// Bench is a benchmarking tool for measuring bloomers filter build and
// query throughput, false-positive rate, and memory usage.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -p 0.0001
//	go run ./cmd/bench -keys 1000000 -hashes
//
// Flags:
//
//	-keys      Number of keys to add (default: 10,000,000)
//	-p         Target false-positive rate (default: 0.0001)
//	-keysize   Key size in bytes (default: 32)
//	-probes    Number of absent keys used to measure the false-positive rate (default: 1,000,000)
//	-hashes    Also compare base-hash throughput of xxh3, xxhash64 and murmur3
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	"github.com/tamirms/bloomers"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

// peakSampler tracks peak heap and RSS in the background.
type peakSampler struct {
	peakAlloc atomic.Uint64
	peakRSS   atomic.Uint64
	done      chan struct{}
}

// startSampler samples every 10ms. It uses runtime/metrics instead of
// ReadMemStats to avoid stop-the-world pauses that distort timings.
func startSampler(baseAlloc, baseRSS uint64) *peakSampler {
	s := &peakSampler{done: make(chan struct{})}
	s.peakAlloc.Store(baseAlloc)
	s.peakRSS.Store(baseRSS)
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&s.peakAlloc, samples[0].Value.Uint64())
				storeMax(&s.peakRSS, getMaxRSS())
			}
		}
	}()
	return s
}

func storeMax(v *atomic.Uint64, n uint64) {
	for {
		old := v.Load()
		if n <= old || v.CompareAndSwap(old, n) {
			return
		}
	}
}

func (s *peakSampler) stop() (alloc, rss uint64) {
	close(s.done)
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	storeMax(&s.peakAlloc, final.Alloc)
	storeMax(&s.peakRSS, getMaxRSS())
	return s.peakAlloc.Load(), s.peakRSS.Load()
}

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of keys")
	pFlag := flag.Float64("p", bloomers.DefaultErrorRate, "target false-positive rate")
	keySizeFlag := flag.Int("keysize", 32, "key size in bytes")
	probesFlag := flag.Int("probes", 1_000_000, "absent keys probed to measure the false-positive rate")
	hashesFlag := flag.Bool("hashes", false, "compare base-hash throughput of xxh3, xxhash64 and murmur3")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	flag.Parse()

	numKeys := *keysFlag
	keySize := *keySizeFlag

	fmt.Println("Generating keys...")
	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = make([]byte, keySize)
		_, _ = rand.Read(keys[i]) // crypto/rand.Read error is fatal system issue; ignore for benchmark
	}

	if *hashesFlag {
		compareHashes(keys)
	}

	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	filterPath := filepath.Join(tmpDir, "bench.blm")

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()
	sampler := startSampler(baseline.Alloc, baselineRSS)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Building filter...")
	buildStart := time.Now()
	filter, err := bloomers.New(uint64(numKeys), *pFlag)
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		return
	}
	for _, k := range keys {
		filter.Add(k)
	}
	buildDuration := time.Since(buildStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	saveStart := time.Now()
	if err := filter.Save(filterPath); err != nil {
		fmt.Printf("Save failed: %v\n", err)
		return
	}
	saveDuration := time.Since(saveStart)

	peakAlloc, peakRSS := sampler.stop()
	peakHeapMem := peakAlloc - baseline.Alloc
	peakRSSMem := peakRSS - baselineRSS

	openStart := time.Now()
	s, err := bloomers.Open(filterPath)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer func() { _ = s.Close() }()
	openDuration := time.Since(openStart)
	loaded := s.Filter()

	queryOrder := mrand.Perm(numKeys)

	fmt.Println("Warming up queries...")
	for i := 0; i < 10000; i++ {
		_ = loaded.Contains(keys[queryOrder[i%numKeys]])
	}

	fmt.Println("Benchmarking queries...")
	numQueries := 100000
	misses := 0
	queryStart := time.Now()
	for i := 0; i < numQueries; i++ {
		if !loaded.Contains(keys[queryOrder[i%numKeys]]) {
			misses++
		}
	}
	queryDuration := time.Since(queryStart)
	avgLatency := float64(queryDuration.Nanoseconds()) / float64(numQueries)
	if misses > 0 {
		fmt.Printf("FALSE NEGATIVES: %d of %d queries\n", misses, numQueries)
	}

	fmt.Println("Measuring false-positive rate...")
	// Probes are one byte longer than any key, so none of them was added.
	probe := make([]byte, keySize+1)
	falsePositives := 0
	for range *probesFlag {
		_, _ = rand.Read(probe)
		if loaded.Contains(probe) {
			falsePositives++
		}
	}
	measuredFPR := float64(falsePositives) / float64(*probesFlag)

	stats := loaded.Stats()

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════╦══════════════════╗\n")
	fmt.Printf("║ Keys: %-14d║ m: %-13d ║ k: %-13d ║\n", numKeys, stats.NumBits, stats.NumHashes)
	fmt.Printf("╠═════════════════════╬══════════════════╬══════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value            ║ Target           ║\n")
	fmt.Printf("╠═════════════════════╬══════════════════╬══════════════════╣\n")
	fmt.Printf("║ Bits per key        ║ %8.3f bits/key║ -                ║\n", stats.BitsPerItem)
	fmt.Printf("║ Fill ratio          ║ %8.4f         ║ 0.5              ║\n", stats.FillRatio)
	fmt.Printf("║ False-positive rate ║ %8.6f         ║ %-16g ║\n", measuredFPR, *pFlag)
	fmt.Printf("║ Estimated FPR       ║ %8.6f         ║ %-16g ║\n", stats.EstimatedFPR, *pFlag)
	fmt.Printf("║ Query latency       ║ %8.1f ns      ║ -                ║\n", avgLatency)
	fmt.Printf("║ Build time          ║ %8.2f sec     ║ -                ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %8.2f M/sec   ║ -                ║\n", float64(numKeys)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Save time           ║ %8.3f sec     ║ -                ║\n", saveDuration.Seconds())
	fmt.Printf("║ Open time           ║ %8.3f sec     ║ -                ║\n", openDuration.Seconds())
	fmt.Printf("║ File size           ║ %8.1f MB      ║ -                ║\n", float64(stats.SerializedSize)/1_000_000)
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB      ║ -                ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB      ║ -                ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩══════════════════╩══════════════════╝\n")
}

// compareHashes times one pass over keys for each candidate base hash.
// Filters always use seeded XXH3; the others are here for comparison.
func compareHashes(keys [][]byte) {
	fmt.Println("Comparing base hashes...")
	var sink uint64
	candidates := []struct {
		name string
		fn   func([]byte) uint64
	}{
		{"xxh3 (2 seeds)", func(b []byte) uint64 {
			h1, h2 := bloomers.BaseHashes(b)
			return h1 ^ h2
		}},
		{"xxh3 (1 seed)", func(b []byte) uint64 { return xxh3.HashSeed(b, 0x1234) }},
		{"xxhash64", xxhash.Sum64},
		{"murmur3 128", func(b []byte) uint64 {
			h1, h2 := murmur3.Sum128WithSeed(b, 0x1234)
			return h1 ^ h2
		}},
	}
	for _, c := range candidates {
		start := time.Now()
		for _, k := range keys {
			sink += c.fn(k)
		}
		d := time.Since(start)
		fmt.Printf("  %-16s %8.2f ns/key  %8.2f M/sec\n", c.name,
			float64(d.Nanoseconds())/float64(len(keys)), float64(len(keys))/d.Seconds()/1_000_000)
	}
	if sink == 1 {
		fmt.Println() // keeps sink live
	}
}
