package main

// This file reads the assembly inputs and writes the FASTA output and the TSV
// reports.

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hybrid/encoding/cmap"
	"github.com/grailbio/hybrid/encoding/fasta"
	"github.com/grailbio/hybrid/hybrid"
	"github.com/klauspost/compress/gzip"
)

// openInput opens a local or remote file, uncompressing it if its name says
// so. The caller must close the file.
func openInput(ctx context.Context, path string) (file.File, io.Reader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return in, r, nil
}

// readReads reads the FASTA file and creates the read contigs: each record and
// its reverse complement.
func readReads(ctx context.Context, path, motif string) ([]hybrid.Contig, error) {
	in, r, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	recs, err := fasta.ReadAll(r)
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(errors.Invalid, path, err)
	}
	contigs := make([]hybrid.Contig, 0, 2*len(recs))
	nSites := 0
	for _, rec := range recs {
		cs, err := hybrid.NewReadContigs(rec.Name, rec.Seq, motif)
		if err != nil {
			return nil, errors.E(errors.Invalid, path, err)
		}
		for _, c := range cs {
			nSites += len(c.Positions)
			log.Debug.Printf("%s: read contig %s: %d sites", path, c.Name, len(c.Positions))
		}
		contigs = append(contigs, cs...)
	}
	log.Printf("%s: %d reads, %d sites (both strands)", path, len(recs), nSites)
	return contigs, nil
}

// readMaps reads the CMAP file and creates the map contigs.
func readMaps(ctx context.Context, path string) ([]hybrid.Contig, error) {
	in, r, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	maps, err := cmap.ReadAll(r)
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(errors.Invalid, path, err)
	}
	contigs := make([]hybrid.Contig, len(maps))
	nSites := 0
	for i, m := range maps {
		if contigs[i], err = hybrid.NewMapContig(m.ID, m.Length, m.Positions); err != nil {
			return nil, errors.E(errors.Invalid, path, err)
		}
		nSites += len(m.Positions)
	}
	log.Printf("%s: %d maps, %d sites", path, len(maps), nSites)
	return contigs, nil
}

// writeAssembly writes one FASTA record per sequence, gzipped if path ends in
// ".gz". If indexPath is nonempty, the FASTA index is written there.
func writeAssembly(ctx context.Context, path, indexPath string, seqs []hybrid.Sequence) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	var (
		w    io.Writer = out.Writer(ctx)
		gz   *gzip.Writer
		once = errors.Once{}
	)
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(w)
		w = gz
	}
	fw := fasta.NewWriter(w, fasta.DefaultLineWidth)
	for _, s := range seqs {
		once.Set(fw.Write(fasta.Record{Name: s.Name, Seq: s.Seq}))
	}
	once.Set(fw.Flush())
	if gz != nil {
		once.Set(gz.Close())
	}
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(path, err)
	}
	log.Printf("Wrote %d contigs to %s", len(seqs), path)
	if indexPath == "" {
		return nil
	}
	idx, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	once.Set(fw.WriteIndex(idx.Writer(ctx)))
	once.Set(idx.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(indexPath, err)
	}
	return nil
}

// writeRoundReport writes one TSV row of stats per round.
func writeRoundReport(ctx context.Context, path string, results []hybrid.RoundResult) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out.Writer(ctx))
	for _, col := range []string{"round", "tolerance", "min_chain_length", "candidates", "chains",
		"assigned_map_windows", "spliced_intervals", "changed_contigs",
		"consumed_read_windows", "consumed_map_windows", "live_read_windows", "live_map_windows"} {
		w.WriteString(col)
	}
	once := errors.Once{}
	once.Set(w.EndLine())
	for _, r := range results {
		s := r.Stats
		for _, v := range []int{s.Round, s.Tolerance, s.MinChainLength, s.Candidates, s.Chains,
			s.AssignedMapWindows, s.SplicedIntervals, s.ChangedContigs,
			s.ConsumedReadWindows, s.ConsumedMapWindows, s.LiveReadWindows, s.LiveMapWindows} {
			w.WriteInt64(int64(v))
		}
		once.Set(w.EndLine())
	}
	once.Set(w.Flush())
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(path, err)
	}
	return nil
}

// writeContigReport writes one TSV row per map contig: segment counts, the
// assembled length and its checksum.
func writeContigReport(ctx context.Context, path string, merged []*hybrid.MergedSequence) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out.Writer(ctx))
	for _, col := range []string{"contig", "segments", "resolved_segments", "length", "checksum"} {
		w.WriteString(col)
	}
	once := errors.Once{}
	once.Set(w.EndLine())
	for _, m := range merged {
		w.WriteString(m.Name)
		w.WriteInt64(int64(len(m.Segments())))
		w.WriteInt64(int64(m.NumResolved()))
		w.WriteInt64(int64(m.Len()))
		w.WriteString(fmt.Sprintf("%016x", m.Checksum()))
		once.Set(w.EndLine())
	}
	once.Set(w.Flush())
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(path, err)
	}
	return nil
}
