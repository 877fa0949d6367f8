// Bloomers builds bloom filter files from line-oriented text files and
// searches them.
//
// Usage:
//
//	bloomers build -i hashes.csv -o hashes.blm -d , -c 2 -hex -skip-first
//	bloomers search -i hashes.blm -v VALUE...
//	bloomers stats -i hashes.blm
//
// Build flags:
//
//	-i, -infile         Source file (required)
//	-o, -outfile        Output filter file (required)
//	-e, -error          Target false-positive rate (default: 0.0001)
//	-d, -delim          Column delimiter; without it the whole line is the item
//	-c, -column         1-based column number, requires -d (default: 1)
//	-hex                Decode items from hex before inserting
//	-sf, -skip-first    Skip the first line
//	-sc, -skip-comments Skip lines starting with this prefix (default: #, "" disables)
//	-n, -capacity       Size for this many items instead of counting the source
//	-workers            Parallel workers for counting (default: 1)
//	-v, -verbose        Log build progress
//
// Search flags:
//
//	-i, -infile         Filter file (required)
//	-v, -verbose        Print "Value X found in Database." style lines
//	-csv                Print "X,true" lines
//	-hex                Decode values from hex before searching
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/tamirms/bloomers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

const usage = `usage: bloomers <command> [flags]

commands:
  build   create a bloom filter file from a text file
  search  check whether values were added to a bloom filter file
  stats   print the parameters and fill of a bloom filter file
`

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "build":
		err = runBuild(ctx, args[1:], stdout, stderr)
	case "search":
		err = runSearch(args[1:], stdout, stderr)
	case "stats":
		err = runStats(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

// errUsage reports bad flags; the flag set has already printed why.
var errUsage = errors.New("usage error")

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// newLogger returns a text logger on stderr. Warnings (skipped lines) are
// always shown; -v adds progress.
func newLogger(stderr io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("build", stderr)
	var (
		infile, outfile, delim, comments string
		errorRate                        float64
		column, workers                  int
		capacity                         uint64
		hex, skipFirst, verbose          bool
	)
	fs.StringVar(&infile, "i", "", "source file")
	fs.StringVar(&infile, "infile", "", "source file")
	fs.StringVar(&outfile, "o", "", "output filter file")
	fs.StringVar(&outfile, "outfile", "", "output filter file")
	fs.Float64Var(&errorRate, "e", bloomers.DefaultErrorRate, "target false-positive rate")
	fs.Float64Var(&errorRate, "error", bloomers.DefaultErrorRate, "target false-positive rate")
	fs.StringVar(&delim, "d", "", "column delimiter (default: whole line is the item)")
	fs.StringVar(&delim, "delim", "", "column delimiter (default: whole line is the item)")
	fs.IntVar(&column, "c", bloomers.DefaultColumn, "1-based column number, requires -d")
	fs.IntVar(&column, "column", bloomers.DefaultColumn, "1-based column number, requires -d")
	fs.BoolVar(&hex, "hex", false, "decode items from hex before inserting")
	fs.BoolVar(&skipFirst, "sf", false, "skip the first line")
	fs.BoolVar(&skipFirst, "skip-first", false, "skip the first line")
	fs.StringVar(&comments, "sc", bloomers.DefaultCommentPrefix, `skip lines starting with this prefix ("" disables)`)
	fs.StringVar(&comments, "skip-comments", bloomers.DefaultCommentPrefix, `skip lines starting with this prefix ("" disables)`)
	fs.Uint64Var(&capacity, "n", 0, "size for this many items instead of counting the source")
	fs.Uint64Var(&capacity, "capacity", 0, "size for this many items instead of counting the source")
	fs.IntVar(&workers, "workers", 1, "parallel workers for counting")
	fs.BoolVar(&verbose, "v", false, "log build progress")
	fs.BoolVar(&verbose, "verbose", false, "log build progress")
	if err := parse(fs, args); err != nil {
		return err
	}
	if infile == "" || outfile == "" {
		fmt.Fprintln(stderr, "build: -i and -o are required")
		fs.Usage()
		return errUsage
	}

	opts := []bloomers.BuildOption{
		bloomers.WithErrorRate(errorRate),
		bloomers.WithDelimiter(delim),
		bloomers.WithColumn(column),
		bloomers.WithCommentPrefix(comments),
		bloomers.WithCapacity(capacity),
		bloomers.WithWorkers(workers),
		bloomers.WithLogger(newLogger(stderr, verbose)),
	}
	if hex {
		opts = append(opts, bloomers.WithHex())
	}
	if skipFirst {
		opts = append(opts, bloomers.WithSkipHeader())
	}

	report, err := bloomers.Build(ctx, infile, outfile, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "built %s: %d items added (capacity %d, %d bits, %d hashes), %d empty, %d skipped\n",
		report.Output, report.ItemsAdded, report.Capacity, report.NumBits, report.NumHashes,
		report.EmptySkipped, report.SkippedCount)
	if report.OverCapacity {
		fmt.Fprintf(stderr, "warning: %d items exceed capacity %d; false-positive rate is above %g\n",
			report.ItemsAdded, report.Capacity, report.ErrorRate)
	}
	return nil
}

func runSearch(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("search", stderr)
	var (
		infile            string
		verbose, csv, hex bool
	)
	fs.StringVar(&infile, "i", "", "filter file")
	fs.StringVar(&infile, "infile", "", "filter file")
	fs.BoolVar(&verbose, "v", false, "print a sentence per value")
	fs.BoolVar(&verbose, "verbose", false, "print a sentence per value")
	fs.BoolVar(&csv, "csv", false, "print value,result lines")
	fs.BoolVar(&hex, "hex", false, "decode values from hex before searching")
	if err := parse(fs, args); err != nil {
		return err
	}
	values := fs.Args()
	if infile == "" || len(values) == 0 {
		fmt.Fprintln(stderr, "search: -i and at least one VALUE are required")
		fs.Usage()
		return errUsage
	}

	s, err := bloomers.Open(infile)
	if err != nil {
		return err
	}
	defer s.Close()

	var opts []bloomers.QueryOption
	if hex {
		opts = append(opts, bloomers.WithHexQuery())
	}
	res, err := s.Search(values, opts...)
	if err != nil {
		return err
	}

	for _, r := range res.Results {
		switch {
		case csv:
			fmt.Fprintf(stdout, "%s,%t\n", r.Value, r.Found)
		case verbose && r.Found:
			fmt.Fprintf(stdout, "Value %s found in Database.\n", r.Value)
		case verbose:
			fmt.Fprintf(stdout, "Value %s was NOT found in Database.\n", r.Value)
		default:
			fmt.Fprintf(stdout, "%t\n", r.Found)
		}
	}
	for _, sk := range res.Skipped {
		fmt.Fprintf(stderr, "skipped %q: %v\n", sk.Value, sk.Err)
	}
	if len(res.Skipped) > 0 {
		return fmt.Errorf("%d of %d values could not be searched", len(res.Skipped), len(values))
	}
	return nil
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", stderr)
	var infile string
	fs.StringVar(&infile, "i", "", "filter file")
	fs.StringVar(&infile, "infile", "", "filter file")
	if err := parse(fs, args); err != nil {
		return err
	}
	if infile == "" {
		fmt.Fprintln(stderr, "stats: -i is required")
		fs.Usage()
		return errUsage
	}

	st, err := bloomers.GetStats(infile)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "capacity:       %d\n", st.Capacity)
	fmt.Fprintf(stdout, "error rate:     %g\n", st.ErrorRate)
	fmt.Fprintf(stdout, "bits (m):       %d\n", st.NumBits)
	fmt.Fprintf(stdout, "hashes (k):     %d\n", st.NumHashes)
	fmt.Fprintf(stdout, "items:          %d\n", st.Items)
	fmt.Fprintf(stdout, "bits set:       %d (%.2f%%)\n", st.BitsSet, st.FillRatio*100)
	fmt.Fprintf(stdout, "bits per item:  %.2f\n", st.BitsPerItem)
	fmt.Fprintf(stdout, "estimated fpr:  %.3g\n", st.EstimatedFPR)
	fmt.Fprintf(stdout, "file size:      %d bytes\n", st.SerializedSize)
	if st.OverCapacity {
		fmt.Fprintf(stdout, "over capacity:  true\n")
	}
	return nil
}
