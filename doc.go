// Package bloomers builds persistent bloom filters from large line-oriented
// text files and answers membership queries against them.
//
// A filter is sized from an exact count of the items in the source, so its
// false-positive rate matches the target. Building streams the source
// twice in fixed-size blocks and never holds more than the bit array in
// memory.
//
// # Basic Usage
//
// Building a filter file:
//
//	report, err := bloomers.Build(ctx, "items.csv", "items.blm",
//	    bloomers.WithDelimiter(","),
//	    bloomers.WithColumn(2),
//	    bloomers.WithSkipHeader(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("added %d items\n", report.ItemsAdded)
//
// Querying it:
//
//	s, err := bloomers.Open("items.blm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	res, err := s.Search([]string{"alice", "bob"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range res.Results {
//	    fmt.Println(r.Value, r.Found)
//	}
//
// Filters can also be used directly in memory with New, Add and Contains.
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Filter: filter.go (New, Add, Contains, Stats), hashing.go (HashFamily)
//   - Serialization: header.go (file header, MarshalBinary, ReadFilter), filter_writer.go (Save)
//   - Ingestion: count.go (CountItems), extract.go (Extractor, ExtractItems), builder.go (Build)
//   - Configuration: builder_options.go (BuildOption, With* functions)
//   - Query: query.go (Open, Searcher)
//   - Bits: internal/bitarray/ (fixed-length bit array, LSB-first byte layout)
//   - Platform: preallocate_*.go, advise_*.go (OS-specific optimizations)
package bloomers
