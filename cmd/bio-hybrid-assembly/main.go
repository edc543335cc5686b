package main

// bio-hybrid-assembly builds contig sequences from an optical map and long
// reads.
//
// Both inputs are reduced to recognition sites of the enzyme motif: the sites
// measured on each map molecule (CMAP), and the motif occurrences in each read
// (FASTA). Windows of consecutive inter-site distances are matched between the
// two, in rounds of increasing tolerance, and the read bases between matched
// sites are copied into the map contigs. See package hybrid for details.
//
// Example:
//
//    bio-hybrid-assembly -fasta=reads.fa.gz -cmap=map.cmap -motif=GCTCTTC \
//      -deviations=500,1000,2000 -overlap-lengths=6,8,10 -output=assembly.fa \
//      -index-output=assembly.fa.fai -report=rounds.tsv

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hybrid/hybrid"
	"golang.org/x/sync/errgroup"
)

type memStats struct {
	mu sync.Mutex
	// Below are copies of runtime.MemStats
	alloc      uint64
	totalAlloc uint64
	sys        uint64
	heapSys    uint64
}

func (m *memStats) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("Alloc: %v TotalAlloc: %v, Sys: %v, HeapSys: %v",
		m.alloc, m.totalAlloc, m.sys, m.heapSys)
}

func (m *memStats) update() {
	var s runtime.MemStats
	runtime.ReadMemStats(&s)
	m.mu.Lock()
	if m.alloc < s.Alloc {
		m.alloc = s.Alloc
	}
	if m.totalAlloc < s.TotalAlloc {
		m.totalAlloc = s.TotalAlloc
	}
	if m.sys < s.Sys {
		m.sys = s.Sys
	}
	if m.heapSys < s.HeapSys {
		m.heapSys = s.HeapSys
	}
	m.mu.Unlock()
}

// Collection of options set via cmdline flags
type assemblyFlags struct {
	fastaPath         string
	cmapPath          string
	configPath        string
	outputPath        string
	indexOutputPath   string
	reportPath        string
	contigReportPath  string
	rioOutputPath     string
	rioInputPath      string
	motif             string
	k                 int
	deviations        string
	overlapLengths    string
	parallelism       int
	maximalChainsOnly bool
	padFlanks         bool
}

// resolveOpts builds the assembly options. Values from the -config file
// override the defaults, and flags in set override the config file.
func resolveOpts(ctx context.Context, flags assemblyFlags, set map[string]bool) (hybrid.Opts, error) {
	opts := hybrid.DefaultOpts
	if flags.configPath != "" {
		in, err := file.Open(ctx, flags.configPath)
		if err != nil {
			return opts, err
		}
		opts, err = hybrid.LoadOpts(in.Reader(ctx), opts)
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return opts, errors.E(err, flags.configPath)
		}
	}
	if set["motif"] {
		opts.Motif = flags.motif
	}
	if set["k"] {
		opts.K = flags.k
	}
	if set["parallelism"] {
		opts.Parallelism = flags.parallelism
	}
	if set["maximal-chains-only"] {
		opts.MaximalChainsOnly = flags.maximalChainsOnly
	}
	if set["pad-flanks"] {
		opts.PadFlanks = flags.padFlanks
	}
	if set["deviations"] || set["overlap-lengths"] {
		rounds, err := hybrid.ParseRounds(flags.deviations, flags.overlapLengths)
		if err != nil {
			return opts, err
		}
		opts.Rounds = rounds
	}
	return opts, opts.Validate()
}

// Assemble reads the inputs, runs all the rounds, and writes the outputs.
func Assemble(ctx context.Context, flags assemblyFlags, opts hybrid.Opts) error {
	if flags.fastaPath == "" || flags.cmapPath == "" || flags.outputPath == "" {
		return errors.E(errors.Precondition, "-fasta, -cmap and -output are required")
	}
	if flags.indexOutputPath != "" && strings.HasSuffix(flags.outputPath, ".gz") {
		return errors.E(errors.Precondition, "-index-output requires an uncompressed -output")
	}
	var (
		reads, maps []hybrid.Contig
		start       = time.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reads, err = readReads(gctx, flags.fastaPath, opts.Motif)
		return
	})
	g.Go(func() (err error) {
		maps, err = readMaps(gctx, flags.cmapPath)
		return
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("Read %d read contigs and %d map contigs in %v", len(reads), len(maps), time.Since(start))

	a, err := hybrid.NewAssembler(opts, reads, maps, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error.Printf("close index: %v", err)
		}
	}()
	results, err := a.Run(ctx)
	if err != nil {
		return err
	}
	var total hybrid.RoundStats
	for _, r := range results {
		total = total.Merge(r.Stats)
	}
	log.Printf("Stats: %d rounds: %d chains, %d intervals spliced, %d read windows mapped",
		len(results), total.Chains, total.SplicedIntervals, total.ConsumedReadWindows)

	if err := writeAssembly(ctx, flags.outputPath, flags.indexOutputPath, a.Sequences()); err != nil {
		return err
	}
	if flags.reportPath != "" {
		if err := writeRoundReport(ctx, flags.reportPath, results); err != nil {
			return err
		}
	}
	if flags.contigReportPath != "" {
		if err := writeContigReport(ctx, flags.contigReportPath, a.Merged()); err != nil {
			return err
		}
	}
	if flags.rioOutputPath != "" {
		if err := writeRounds(ctx, flags.rioOutputPath, a.Index(), opts, results); err != nil {
			return err
		}
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `
bio-hybrid-assembly assembles the contigs of an optical map (CMAP) with the
sequence of long reads (FASTA). It writes one FASTA record per map contig.
Intervals that no read covered are filled with the motif followed by Ns.

Usage:
  bio-hybrid-assembly -fasta=reads.fa -cmap=map.cmap -motif=GCTCTTC -output=out.fa [flags]

Flags:`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flags := assemblyFlags{}
	defaults := hybrid.DefaultOpts
	flag.StringVar(&flags.fastaPath, "fasta", "", "FASTA file with the long reads. May be compressed.")
	flag.StringVar(&flags.cmapPath, "cmap", "", "CMAP file with the optical map. May be compressed.")
	flag.StringVar(&flags.configPath, "config", "", `YAML file with assembly options (k, motif, parallelism, placeholder,
maximal_chains_only, pad_flanks, rounds). Flags set on the command line override it.`)
	flag.StringVar(&flags.outputPath, "output", "", "FASTA file to store the assembled contigs. Gzipped if the name ends in .gz.")
	flag.StringVar(&flags.indexOutputPath, "index-output", "", "If set, write the FASTA index (.fai) of -output here.")
	flag.StringVar(&flags.reportPath, "report", "", "If set, write per-round stats as TSV here.")
	flag.StringVar(&flags.contigReportPath, "contig-report", "", "If set, write per-contig stats and checksums as TSV here.")
	flag.StringVar(&flags.rioOutputPath, "rio-output", "", "If set, dump the accepted chains of every round to this recordio file.")
	flag.StringVar(&flags.rioInputPath, "rio-input", "", `If set, print the rounds stored in this file, written by -rio-output, and exit.
No assembly is run.`)
	flag.StringVar(&flags.motif, "motif", defaults.Motif, "Enzyme recognition site, e.g. GCTCTTC.")
	flag.IntVar(&flags.k, "k", defaults.K, "Number of consecutive site distances in a window.")
	flag.StringVar(&flags.deviations, "deviations", "500,1000,2000", "Comma-separated distance tolerance of each round.")
	flag.StringVar(&flags.overlapLengths, "overlap-lengths", "6,8,10",
		"Comma-separated min chain length of each round. A chain is kept if it has more windows than this.")
	flag.IntVar(&flags.parallelism, "parallelism", defaults.Parallelism, "Number of worker goroutines.")
	flag.BoolVar(&flags.maximalChainsOnly, "maximal-chains-only", defaults.MaximalChainsOnly,
		"If true, chains are seeded only at matches that do not extend an earlier match.")
	flag.BoolVar(&flags.padFlanks, "pad-flanks", defaults.PadFlanks,
		"If true, the regions before the first and after the last map site are filled with Ns.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()
	var memStats memStats
	go func() {
		for {
			time.Sleep(500 * time.Millisecond)
			memStats.update()
		}
	}()

	if flags.rioInputPath != "" {
		if err := printRounds(ctx, flags.rioInputPath, os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts, err := resolveOpts(ctx, flags, set)
	if err != nil {
		log.Fatalf("options: %v", err)
	}
	log.Printf("Options: k=%d motif=%s rounds=%v parallelism=%d", opts.K, opts.Motif, opts.Rounds, opts.Parallelism)
	if err := Assemble(ctx, flags, opts); err != nil {
		log.Fatalf("%v", err)
	}
	memStats.update()
	log.Printf("MemStats: %s", memStats.String())
	log.Printf("All done")
}
