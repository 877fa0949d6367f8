package bloomers

import (
	"context"
	"path/filepath"
	"testing"
)

func benchmarkAddN(b *testing.B, n int) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		f, err := New(uint64(n), DefaultErrorRate)
		if err != nil {
			b.Fatal(err)
		}
		for _, k := range keys {
			f.Add(k)
		}
	}
}

func BenchmarkAdd1K(b *testing.B)   { benchmarkAddN(b, 1000) }
func BenchmarkAdd10K(b *testing.B)  { benchmarkAddN(b, 10000) }
func BenchmarkAdd100K(b *testing.B) { benchmarkAddN(b, 100000) }

func benchmarkContainsN(b *testing.B, n int) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)
	f := buildTestFilter(b, keys, DefaultErrorRate)

	b.ResetTimer()
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		_ = f.Contains(keys[i%n])
		i++
	}
}

func BenchmarkContains1K(b *testing.B)   { benchmarkContainsN(b, 1000) }
func BenchmarkContains10K(b *testing.B)  { benchmarkContainsN(b, 10000) }
func BenchmarkContains100K(b *testing.B) { benchmarkContainsN(b, 100000) }

func BenchmarkContainsParallel(b *testing.B) {
	n := 10000
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)
	f := buildTestFilter(b, keys, DefaultErrorRate)

	path := filepath.Join(b.TempDir(), "bench.blm")
	if err := f.Save(path); err != nil {
		b.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = s.Contains(keys[i%n])
			i++
		}
	})
}

func BenchmarkHeaderEncode(b *testing.B) {
	h := &header{
		Version:   version,
		Capacity:  1000000,
		ErrorRate: 0.0001,
		NumBits:   19170117,
		NumHashes: 13,
		ItemCount: 1000000,
	}
	buf := make([]byte, headerSize)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		h.encodeTo(buf)
	}
}

func BenchmarkHeaderDecode(b *testing.B) {
	h := &header{
		Version:   version,
		Capacity:  1000000,
		ErrorRate: 0.0001,
		NumBits:   19170117,
		NumHashes: 13,
		ItemCount: 1000000,
	}
	encoded := make([]byte, headerSize)
	h.encodeTo(encoded)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		_, _ = decodeHeader(encoded)
	}
}

func benchmarkCountWorkers(b *testing.B, workers int) {
	rng := newTestRNG(b)
	source := writeSource(b, hexLines(generateRandomKeys(rng, 200000, 32)))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		if _, err := CountItems(ctx, source, WithWorkers(workers)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCountItems(b *testing.B)         { benchmarkCountWorkers(b, 1) }
func BenchmarkCountItemsParallel4(b *testing.B) { benchmarkCountWorkers(b, 4) }

func BenchmarkBuildFilter(b *testing.B) {
	rng := newTestRNG(b)
	source := writeSource(b, hexLines(generateRandomKeys(rng, 100000, 32)))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		if _, _, err := BuildFilter(ctx, source, WithHex()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtractor(b *testing.B) {
	ex, err := NewExtractor(WithDelimiter(","), WithColumn(2), WithHex())
	if err != nil {
		b.Fatal(err)
	}
	line := []byte(`42,"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",1` + "\r\n")

	b.ReportAllocs()
	for b.Loop() {
		if _, err := ex.Extract(line); err != nil {
			b.Fatal(err)
		}
	}
}
