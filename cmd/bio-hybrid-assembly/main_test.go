package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hybrid/encoding/fasta"
	"github.com/grailbio/hybrid/hybrid"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMotif = "GCTCTTC"

// testRead returns a poly-A sequence with testMotif at the given offsets.
func testRead(length int, offsets ...int) string {
	buf := []byte(strings.Repeat("A", length))
	for _, off := range offsets {
		copy(buf[off:], testMotif)
	}
	return string(buf)
}

func writeFile(t *testing.T, path, data string) {
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func cmapRows(id string, length int, positions ...int) string {
	var b strings.Builder
	for i, p := range positions {
		channel := 1
		if i == len(positions)-1 {
			channel = 0
		}
		fmt.Fprintf(&b, "%s\t%d.0\t%d\t%d\t%d\t%d.0\t1.0\t1\t1\n", id, length, len(positions)-1, i+1, channel, p)
	}
	return b.String()
}

type testInputs struct {
	dir   string
	flags assemblyFlags
	read  string
}

func newTestInputs(t *testing.T, dir string) testInputs {
	read := testRead(1000, 100, 250, 400, 700)
	fastaPath := filepath.Join(dir, "reads.fa")
	writeFile(t, fastaPath, ">r0 some description\n"+read[:500]+"\n"+read[500:]+"\n>r1\n"+strings.Repeat("C", 300)+"\n")
	cmapPath := filepath.Join(dir, "map.cmap")
	writeFile(t, cmapPath, "# CMAP File Version:\t0.1\n"+
		"#h CMapId\tContigLength\tNumSites\tSiteID\tLabelChannel\tPosition\tStdDev\tCoverage\tOccurrence\n"+
		cmapRows("1", 3000, 1100, 1250, 1400, 1700, 3000)+
		cmapRows("2", 500, 10, 30, 500))
	return testInputs{
		dir:  dir,
		read: read,
		flags: assemblyFlags{
			fastaPath:        fastaPath,
			cmapPath:         cmapPath,
			outputPath:       filepath.Join(dir, "out.fa"),
			indexOutputPath:  filepath.Join(dir, "out.fa.fai"),
			reportPath:       filepath.Join(dir, "rounds.tsv"),
			contigReportPath: filepath.Join(dir, "contigs.tsv"),
			rioOutputPath:    filepath.Join(dir, "rounds.rio"),
		},
	}
}

func testAssemblyOpts() hybrid.Opts {
	opts := hybrid.DefaultOpts
	opts.K = 2
	opts.Motif = testMotif
	opts.Parallelism = 2
	opts.Rounds = []hybrid.Round{{Tolerance: 0, MinChainLength: 0}, {Tolerance: 100, MinChainLength: 0}}
	return opts
}

func readAssembly(t *testing.T, path string) []fasta.Record {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	recs, err := fasta.ReadAll(bytes.NewReader(data))
	require.NoError(t, err)
	return recs
}

func TestAssemble(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	in := newTestInputs(t, dir)

	require.NoError(t, Assemble(ctx, in.flags, testAssemblyOpts()))

	filler := func(n int) string { return testMotif + strings.Repeat("N", n-len(testMotif)) }
	assert.Equal(t, []fasta.Record{
		{Name: "1", Seq: in.read[100:700] + filler(1300)},
		{Name: "2", Seq: filler(20) + filler(470)},
	}, readAssembly(t, in.flags.outputPath))

	fai, err := ioutil.ReadFile(in.flags.indexOutputPath)
	require.NoError(t, err)
	assert.Equal(t, "1\t1900\t3\t80\t81\n2\t490\t1890\t80\t81\n", string(fai))

	report, err := ioutil.ReadFile(in.flags.reportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "round\ttolerance\tmin_chain_length\tcandidates"))
	assert.Equal(t, "1\t0\t0\t3\t3\t2\t3\t1\t3\t2\t1\t2", lines[1])

	contigs, err := ioutil.ReadFile(in.flags.contigReportPath)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(contigs)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1\t4\t3\t1900\t"))
	assert.True(t, strings.HasPrefix(lines[2], "2\t2\t0\t490\t"))

	r, err := newRoundReader(ctx, in.flags.rioOutputPath)
	require.NoError(t, err)
	assert.Equal(t, testMotif, r.Opts().Motif)
	var rounds []hybrid.RoundStats
	for r.Scan() {
		stats, chains := r.Get()
		rounds = append(rounds, stats)
		if stats.Round == 1 {
			require.Len(t, chains, 3)
			assert.Equal(t, "r0", r.ReadContigName(chains[0].ReadContig))
			assert.Equal(t, "1", r.MapContigName(chains[0].MapContig))
			assert.Equal(t, []int{1, 2}, chains[0].MapWindows)
		}
	}
	require.NoError(t, r.Close(ctx))
	require.Len(t, rounds, 2)
	assert.Equal(t, 2, rounds[1].Round)
	assert.Equal(t, 100, rounds[1].Tolerance)

	var out bytes.Buffer
	require.NoError(t, printRounds(ctx, in.flags.rioOutputPath, &out))
	assert.Contains(t, out.String(), "round 1 (tol 0, min chain 0)")
	assert.Contains(t, out.String(), "\tr0:1-2\t1:1-2\n")
}

func TestAssembleGzip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	in := newTestInputs(t, dir)
	in.flags.outputPath = filepath.Join(dir, "out.fa.gz")
	in.flags.indexOutputPath = ""
	in.flags.reportPath, in.flags.contigReportPath, in.flags.rioOutputPath = "", "", ""

	require.NoError(t, Assemble(ctx, in.flags, testAssemblyOpts()))
	f, err := os.Open(in.flags.outputPath)
	require.NoError(t, err)
	defer f.Close() // nolint: errcheck
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	recs, err := fasta.ReadAll(gz)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, in.read[100:700], recs[0].Seq[:600])

	in.flags.indexOutputPath = filepath.Join(dir, "out.fai")
	err = Assemble(ctx, in.flags, testAssemblyOpts())
	require.Error(t, err)
	assert.True(t, hybrid.IsConfiguration(err))
}

func TestAssembleErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	in := newTestInputs(t, dir)

	flags := in.flags
	flags.cmapPath = filepath.Join(dir, "bad.cmap")
	writeFile(t, flags.cmapPath, cmapRows("1", 3000, 1100, 1000, 3000))
	err := Assemble(ctx, flags, testAssemblyOpts())
	require.Error(t, err)
	assert.True(t, hybrid.IsMalformedInput(err), "%v", err)

	flags = in.flags
	flags.fastaPath = filepath.Join(dir, "bad.fa")
	writeFile(t, flags.fastaPath, "ACGT\n>r0\nACGT\n")
	err = Assemble(ctx, flags, testAssemblyOpts())
	require.Error(t, err)
	assert.True(t, hybrid.IsMalformedInput(err), "%v", err)

	flags = in.flags
	flags.fastaPath = filepath.Join(dir, "missing.fa")
	require.Error(t, Assemble(ctx, flags, testAssemblyOpts()))

	flags = in.flags
	flags.outputPath = ""
	err = Assemble(ctx, flags, testAssemblyOpts())
	require.Error(t, err)
	assert.True(t, hybrid.IsConfiguration(err))
}

func TestResolveOpts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	configPath := filepath.Join(dir, "config.yaml")
	writeFile(t, configPath, `
k: 3
motif: GCTCTTC
pad_flanks: true
rounds:
  - {tolerance: 10, min_chain_length: 1}
`)
	flags := assemblyFlags{configPath: configPath, k: 4, deviations: "0,5", overlapLengths: "2,3"}

	opts, err := resolveOpts(ctx, flags, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.K)
	assert.Equal(t, "GCTCTTC", opts.Motif)
	assert.True(t, opts.PadFlanks)
	assert.Equal(t, []hybrid.Round{{Tolerance: 10, MinChainLength: 1}}, opts.Rounds)

	// Flags set on the command line override the config file.
	opts, err = resolveOpts(ctx, flags, map[string]bool{"k": true, "deviations": true})
	require.NoError(t, err)
	assert.Equal(t, 4, opts.K)
	assert.Equal(t, []hybrid.Round{{Tolerance: 0, MinChainLength: 2}, {Tolerance: 5, MinChainLength: 3}}, opts.Rounds)

	flags.overlapLengths = "2"
	_, err = resolveOpts(ctx, flags, map[string]bool{"deviations": true})
	assert.True(t, hybrid.IsConfiguration(err), "%v", err)

	_, err = resolveOpts(ctx, assemblyFlags{}, map[string]bool{})
	assert.True(t, hybrid.IsMalformedInput(err), "missing motif: %v", err)

	writeFile(t, configPath, "bogus: 1\n")
	_, err = resolveOpts(ctx, flags, map[string]bool{})
	assert.True(t, hybrid.IsConfiguration(err), "%v", err)
}
