// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

// Candidate is evidence that a read window and a map window have distance
// signatures that agree within the round's tolerance.
type Candidate struct {
	ReadContig ContigID
	ReadWindow int
	MapContig  ContigID
	MapWindow  int
}

// Matcher produces candidate pairs for one read contig.
//
// Match must return every (read window, map window) pair, over the live
// windows of readContig and all live map windows, whose k distances differ by
// at most tolerance per component. The result may be in any order and may
// contain duplicates. Match must not modify the index; it is called
// concurrently for different read contigs.
type Matcher interface {
	Match(idx *Index, readContig ContigID, tolerance int) ([]Candidate, error)
}

// SignatureMatcher is the default Matcher. It uses the index's exact hash
// lookup when tolerance is zero and the ordered range lookup otherwise.
type SignatureMatcher struct{}

// Match implements Matcher.
func (SignatureMatcher) Match(idx *Index, readContig ContigID, tolerance int) ([]Candidate, error) {
	var cands []Candidate
	for _, w := range idx.LiveWindows(ReadSource, readContig) {
		sig, err := idx.Signature(ReadSource, WindowRef{Contig: readContig, Window: w})
		if err != nil {
			return nil, err
		}
		emit := func(m WindowRef) bool {
			cands = append(cands, Candidate{
				ReadContig: readContig,
				ReadWindow: w,
				MapContig:  m.Contig,
				MapWindow:  m.Window,
			})
			return true
		}
		if tolerance == 0 {
			idx.LookupExact(MapSource, sig.Distances, emit)
		} else {
			idx.LookupTolerance(MapSource, sig.Distances, tolerance, emit)
		}
	}
	return cands, nil
}
