// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"context"
	"time"

	"github.com/grailbio/base/log"
)

// Sequence is one assembled map contig.
type Sequence struct {
	Name string
	Seq  string
}

// RoundResult is the outcome of one successful round.
type RoundResult struct {
	Stats RoundStats
	// Chains lists the accepted chains, in resolve order.
	Chains []Chain
}

// Assembler runs the assembly rounds over one set of read and map contigs.
// Its methods must not be called concurrently.
type Assembler struct {
	opts    Opts
	matcher Matcher
	reads   []Contig
	maps    []Contig
	idx     *Index
	merged  []*MergedSequence
	nRounds int // # of rounds completed
}

// NewAssembler validates opts, builds the index, and creates an all-filler
// merged sequence for every map contig. Read contigs are typically created by
// NewReadContigs, map contigs by NewMapContig. If matcher is nil,
// SignatureMatcher is used.
func NewAssembler(opts Opts, reads, maps []Contig, matcher Matcher) (*Assembler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if matcher == nil {
		matcher = SignatureMatcher{}
	}
	idx, err := BuildIndex(opts.K, reads, maps)
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		opts:    opts,
		matcher: matcher,
		reads:   reads,
		maps:    maps,
		idx:     idx,
		merged:  make([]*MergedSequence, len(maps)),
	}
	for i := range maps {
		a.merged[i] = newMergedSequence(&maps[i], opts)
	}
	return a, nil
}

// Index returns the signature index. It must not be modified.
func (a *Assembler) Index() *Index { return a.idx }

// Merged returns the merged sequences, in map contig input order.
func (a *Assembler) Merged() []*MergedSequence { return a.merged }

// Sequences returns the assembled sequence of every map contig, in input
// order. Contigs that no read matched are returned as filler.
func (a *Assembler) Sequences() []Sequence {
	seqs := make([]Sequence, len(a.merged))
	for i, m := range a.merged {
		seqs[i] = Sequence{Name: m.Name, Seq: m.String()}
	}
	return seqs
}

// Close releases the index.
func (a *Assembler) Close() error { return a.idx.Close() }

// eachContig runs fn over the contigs on the worker pool. Errors are tagged
// with the contig name.
func (a *Assembler) eachContig(contigs []Contig, fn func(i int) error) error {
	return parallelEach(a.opts.Parallelism, len(contigs), func(i int) error {
		err := callRecover(fn, i)
		if err == nil {
			return nil
		}
		if _, ok := err.(*RoundError); ok {
			return err
		}
		return workerError(contigs[i].Name, err)
	})
}

// RunRound runs one round with the given parameters:
//
//  1. match and chain every read contig, in parallel;
//
//  2. resolve the accepted chains into one binding per map window;
//
//  3. plan the splices of every map contig, in parallel;
//
//  4. commit the splices, then delete every window of every accepted chain
//     from the index.
//
// Nothing is modified until all of steps 1-3 succeed, so on error the index and
// the merged sequences are the same as before the call. Errors are
// *RoundError.
func (a *Assembler) RunRound(r Round) (RoundResult, error) {
	round := a.nRounds + 1
	roundError := func(err error) error {
		if re, ok := err.(*RoundError); ok {
			re.Round = round
			return re
		}
		return &RoundError{Round: round, Err: err}
	}
	if r.Tolerance < 0 || r.MinChainLength < 0 {
		return RoundResult{}, roundError(configErrorf("invalid round parameters %v", r))
	}
	stats := RoundStats{Round: round, Tolerance: r.Tolerance, MinChainLength: r.MinChainLength}

	var (
		chainsByRead = make([][]Chain, len(a.reads))
		nCands       = make([]int, len(a.reads))
	)
	err := a.eachContig(a.reads, func(i int) error {
		id := ContigID(i)
		cands, err := a.matcher.Match(a.idx, id, r.Tolerance)
		if err != nil {
			return err
		}
		nCands[i] = len(cands)
		chainsByRead[i] = BuildChains(id, cands, r.MinChainLength, a.opts.MaximalChainsOnly)
		return nil
	})
	if err != nil {
		return RoundResult{}, roundError(err)
	}
	var chains []Chain
	for i, cs := range chainsByRead {
		stats.Candidates += nCands[i]
		chains = append(chains, cs...)
	}
	stats.Chains = len(chains)

	table, err := Resolve(a.idx, chains)
	if err != nil {
		return RoundResult{}, roundError(err)
	}
	stats.AssignedMapWindows = table.NumAssigned()

	plans := make([][]splice, len(a.maps))
	err = a.eachContig(a.maps, func(i int) error {
		plan, err := planMerge(a.idx, table, ContigID(i), a.reads, a.merged[i])
		plans[i] = plan
		return err
	})
	if err != nil {
		return RoundResult{}, roundError(err)
	}

	for i, plan := range plans {
		if len(plan) == 0 {
			continue
		}
		a.merged[i].apply(plan)
		stats.SplicedIntervals += len(plan)
		stats.ChangedContigs++
	}
	var readRefs, mapRefs []WindowRef
	for _, c := range chains {
		for i := range c.ReadWindows {
			readRefs = append(readRefs, WindowRef{Contig: c.ReadContig, Window: c.ReadWindows[i]})
			mapRefs = append(mapRefs, WindowRef{Contig: c.MapContig, Window: c.MapWindows[i]})
		}
	}
	stats.ConsumedReadWindows = a.idx.Delete(ReadSource, readRefs)
	stats.ConsumedMapWindows = a.idx.Delete(MapSource, mapRefs)
	stats.LiveReadWindows = a.idx.NumLive(ReadSource)
	stats.LiveMapWindows = a.idx.NumLive(MapSource)
	a.nRounds = round
	return RoundResult{Stats: stats, Chains: chains}, nil
}

// Run runs opts.Rounds in order. It stops at the first failing round, or
// between rounds if ctx is done, and returns the results of the rounds that
// completed.
func (a *Assembler) Run(ctx context.Context) ([]RoundResult, error) {
	var results []RoundResult
	for _, r := range a.opts.Rounds {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		result, err := a.RunRound(r)
		if err != nil {
			log.Error.Printf("round %d (%v) failed: %v", a.nRounds+1, r, err)
			return results, err
		}
		log.Printf("%v (%v)", result.Stats, time.Since(start))
		results = append(results, result)
	}
	return results, nil
}
