package main

// This file defines roundWriter and roundReader. Type roundWriter dumps the
// accepted chains and stats of every round into a recordio file, and
// roundReader reads them back.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/hybrid/hybrid"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "hybridversion"
	fileVersion       = "HYBRID_V1"
)

// roundRecord is one recordio item.
type roundRecord struct {
	Stats  hybrid.RoundStats
	Chains []hybrid.Chain
}

// roundFileTrailer is stored in the trailer section of the recordio file.
type roundFileTrailer struct {
	// Opts is the list of options used for the assembly.
	Opts hybrid.Opts
	// ReadContigs and MapContigs map the contig IDs in the chains to names.
	ReadContigs []string
	MapContigs  []string
}

func contigNames(idx *hybrid.Index, src hybrid.Source) []string {
	names := make([]string, idx.NumContigs(src))
	for i := range names {
		names[i] = idx.ContigName(src, hybrid.ContigID(i))
	}
	return names
}

// writeRounds writes the results of all rounds to a recordio file at path.
func writeRounds(ctx context.Context, path string, idx *hybrid.Index, opts hybrid.Opts, results []hybrid.RoundResult) error {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "rio create", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	once := errors.Once{}
	for _, r := range results {
		b := bytes.NewBuffer(nil)
		once.Set(gob.NewEncoder(b).Encode(roundRecord{Stats: r.Stats, Chains: r.Chains}))
		w.Append(b.Bytes())
	}
	b := bytes.NewBuffer(nil)
	once.Set(gob.NewEncoder(b).Encode(roundFileTrailer{
		Opts:        opts,
		ReadContigs: contigNames(idx, hybrid.ReadSource),
		MapContigs:  contigNames(idx, hybrid.MapSource),
	}))
	w.SetTrailer(b.Bytes())
	once.Set(w.Finish())
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(err, "rio write", path)
	}
	return nil
}

// roundReader reads a recordio file created by writeRounds.
type roundReader struct {
	in      file.File
	r       recordio.Scanner
	trailer roundFileTrailer
	rec     roundRecord // last record read by Scan.
	err     error
}

func newRoundReader(ctx context.Context, path string) (*roundReader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, ok := kv.Value.(string); !ok || v != fileVersion {
				in.Close(ctx) // nolint: errcheck
				return nil, errors.E(errors.Invalid, path,
					fmt.Sprintf("round file version mismatch, got %v, expect %v", kv.Value, fileVersion))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		in.Close(ctx) // nolint: errcheck
		return nil, errors.E(errors.Invalid, path, fileVersionHeader+" not found")
	}
	rr := &roundReader{in: in, r: r}
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&rr.trailer); err != nil {
		in.Close(ctx) // nolint: errcheck
		return nil, errors.E(errors.Invalid, path, "trailer", err)
	}
	return rr, nil
}

// Opts returns the assembly options written in the file.
func (r *roundReader) Opts() hybrid.Opts { return r.trailer.Opts }

// ReadContigName and MapContigName return the name of a contig referenced by
// a chain.
func (r *roundReader) ReadContigName(id hybrid.ContigID) string { return r.trailer.ReadContigs[id] }
func (r *roundReader) MapContigName(id hybrid.ContigID) string  { return r.trailer.MapContigs[id] }

// Scan reads the next round.
func (r *roundReader) Scan() bool {
	if r.err != nil || !r.r.Scan() {
		return false
	}
	r.rec = roundRecord{}
	if err := gob.NewDecoder(bytes.NewReader(r.r.Get().([]byte))).Decode(&r.rec); err != nil {
		r.err = err
		return false
	}
	return true
}

// Get yields the current round.
//
// REQUIRES: Last Scan call returned true.
func (r *roundReader) Get() (hybrid.RoundStats, []hybrid.Chain) { return r.rec.Stats, r.rec.Chains }

// Close closes the reader and returns any error encountered while reading.
func (r *roundReader) Close(ctx context.Context) error {
	once := errors.Once{}
	once.Set(r.err)
	once.Set(r.r.Err())
	once.Set(r.in.Close(ctx))
	return once.Err()
}

// printRounds writes a human-readable summary of a file created by
// writeRounds.
func printRounds(ctx context.Context, path string, out io.Writer) error {
	r, err := newRoundReader(ctx, path)
	if err != nil {
		return err
	}
	once := errors.Once{}
	_, err = fmt.Fprintf(out, "options: k=%d motif=%s rounds=%v\n", r.Opts().K, r.Opts().Motif, r.Opts().Rounds)
	once.Set(err)
	for r.Scan() {
		stats, chains := r.Get()
		_, err = fmt.Fprintf(out, "%v\n", stats)
		once.Set(err)
		for _, c := range chains {
			_, err = fmt.Fprintf(out, "\t%s:%d-%d\t%s:%d-%d\n",
				r.ReadContigName(c.ReadContig), c.ReadWindows[0], c.ReadWindows[c.Len()-1],
				r.MapContigName(c.MapContig), c.MapWindows[0], c.MapWindows[c.Len()-1])
			once.Set(err)
		}
	}
	once.Set(r.Close(ctx))
	return once.Err()
}
