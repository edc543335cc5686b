// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"sort"
	"strings"

	"blainsmith.com/go/seahash"
)

// Segment is the content currently assigned to the map interval [Start, End).
type Segment struct {
	Start, End int
	// Resolved is true once Seq comes from a read contig. Unresolved segments
	// hold filler.
	Resolved bool
	Seq      string
}

// MergedSequence accumulates the assembled sequence of one map contig across
// rounds. It is a list of segments sorted by map coordinate; splicing a read
// slice into one segment never moves the others, even when the slice length
// differs from the interval length.
type MergedSequence struct {
	Name string
	segs []Segment
}

// filler is the content of an unmapped interval of the given length: the
// motif, then placeholders. Intervals shorter than the motif get a prefix of
// the motif.
func filler(length int, motif string, placeholder byte) string {
	if length <= len(motif) {
		return motif[:length]
	}
	var b strings.Builder
	b.Grow(length)
	b.WriteString(motif)
	for i := len(motif); i < length; i++ {
		b.WriteByte(placeholder)
	}
	return b.String()
}

// newMergedSequence creates the all-filler sequence of a map contig. There is
// one segment per pair of consecutive sites, plus the flanks if
// opts.PadFlanks is set. Flanks don't start at a site, so they are filled with
// placeholders only.
func newMergedSequence(c *Contig, opts Opts) *MergedSequence {
	m := &MergedSequence{Name: c.Name}
	pos := c.Positions
	addFlank := func(start, end int) {
		if opts.PadFlanks && end > start {
			m.segs = append(m.segs, Segment{Start: start, End: end, Seq: strings.Repeat(string(opts.Placeholder), end-start)})
		}
	}
	if len(pos) == 0 {
		addFlank(0, c.Length)
		return m
	}
	addFlank(0, pos[0])
	for i := 0; i+1 < len(pos); i++ {
		m.segs = append(m.segs, Segment{
			Start: pos[i],
			End:   pos[i+1],
			Seq:   filler(pos[i+1]-pos[i], opts.Motif, opts.Placeholder),
		})
	}
	addFlank(pos[len(pos)-1], c.Length)
	return m
}

// find returns the index of the segment [start, end).
func (m *MergedSequence) find(start, end int) (int, bool) {
	i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].Start >= start })
	if i < len(m.segs) && m.segs[i].Start == start && m.segs[i].End == end {
		return i, true
	}
	return 0, false
}

// Segments returns a copy of the segments in ascending coordinate order.
func (m *MergedSequence) Segments() []Segment {
	return append([]Segment(nil), m.segs...)
}

// NumResolved returns the number of segments filled from read contigs.
func (m *MergedSequence) NumResolved() int {
	n := 0
	for _, s := range m.segs {
		if s.Resolved {
			n++
		}
	}
	return n
}

// Len returns the length of the assembled sequence.
func (m *MergedSequence) Len() int {
	n := 0
	for _, s := range m.segs {
		n += len(s.Seq)
	}
	return n
}

// String returns the assembled sequence.
func (m *MergedSequence) String() string {
	var b strings.Builder
	b.Grow(m.Len())
	for _, s := range m.segs {
		b.WriteString(s.Seq)
	}
	return b.String()
}

// Checksum returns the seahash of the assembled sequence.
func (m *MergedSequence) Checksum() uint64 {
	h := seahash.New()
	for _, s := range m.segs {
		h.Write([]byte(s.Seq)) // nolint: errcheck
	}
	return h.Sum64()
}

// splice replaces the content of one segment.
type splice struct {
	seg int
	seq string
}

// apply commits a merge plan.
func (m *MergedSequence) apply(plan []splice) {
	for _, sp := range plan {
		m.segs[sp.seg].Seq = sp.seq
		m.segs[sp.seg].Resolved = true
	}
}

// planMerge computes the splices of one map contig for the current round
// without modifying m. Live map windows are visited in ascending order; for
// every assigned window, each of its k site intervals gets the matching
// interval of the bound read window, unless an earlier window already
// supplied it or an earlier round resolved it.
//
// reads must be indexed by read ContigID.
func planMerge(idx *Index, table *AssignmentTable, mapContig ContigID, reads []Contig, m *MergedSequence) ([]splice, error) {
	k := idx.K()
	var (
		plan    []splice
		planned = map[int]bool{}
	)
	for _, w := range idx.LiveWindows(MapSource, mapContig) {
		a := table.Get(mapContig, w)
		if a.State != Assigned {
			continue
		}
		mc, err := idx.Coordinates(MapSource, WindowRef{Contig: mapContig, Window: w})
		if err != nil {
			return nil, err
		}
		rc, err := idx.Coordinates(ReadSource, WindowRef{Contig: a.ReadContig, Window: a.ReadWindow})
		if err != nil {
			return nil, err
		}
		seq := reads[a.ReadContig].Seq
		for j := 0; j < k; j++ {
			si, ok := m.find(int(mc.Positions[j]), int(mc.Positions[j+1]))
			if !ok {
				return nil, integrityErrorf("map contig %s: no segment for interval [%d,%d)",
					m.Name, mc.Positions[j], mc.Positions[j+1])
			}
			if m.segs[si].Resolved || planned[si] {
				continue
			}
			start, end := int(rc.Positions[j]), int(rc.Positions[j+1])
			if end > len(seq) {
				return nil, integrityErrorf("read contig %s: interval [%d,%d) is past sequence length %d",
					reads[a.ReadContig].Name, start, end, len(seq))
			}
			plan = append(plan, splice{seg: si, seq: seq[start:end]})
			planned[si] = true
		}
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].seg < plan[j].seg })
	return plan, nil
}
