// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

// AssignmentState tells whether a map window is bound to a read window.
type AssignmentState uint8

const (
	// NoWindow means the map window is not in the index: it was consumed by an
	// earlier round, or never built.
	NoWindow AssignmentState = iota
	// Unassigned means the window is in the index but no accepted chain
	// covers it.
	Unassigned
	// Assigned means the window is bound to the read window of the longest
	// chain covering it.
	Assigned
)

// Assignment is the binding of one map window. ReadContig, ReadWindow and
// ChainLen are meaningful only if State == Assigned.
type Assignment struct {
	State      AssignmentState
	ReadContig ContigID
	ReadWindow int
	ChainLen   int
}

// AssignmentTable holds the binding of every map window for one round. It is
// read-only once Resolve returns.
type AssignmentTable struct {
	byContig  [][]Assignment // [map contig][window-1]
	nAssigned int
}

// Get returns the binding of a map window. Windows outside the index yield
// State == NoWindow.
func (t *AssignmentTable) Get(contig ContigID, window int) Assignment {
	if contig < 0 || int(contig) >= len(t.byContig) {
		return Assignment{}
	}
	as := t.byContig[contig]
	if window < 1 || window > len(as) {
		return Assignment{}
	}
	return as[window-1]
}

// NumAssigned returns the number of map windows in State Assigned.
func (t *AssignmentTable) NumAssigned() int { return t.nAssigned }

// Resolve binds each map window to at most one chain. Chains are applied in
// the given order: a window is bound on first sight, and rebound only to a
// strictly longer chain, so on equal lengths the earlier chain wins.
//
// It fails with an integrity error if a chain refers to a map window that is
// not in the index.
func Resolve(idx *Index, chains []Chain) (*AssignmentTable, error) {
	t := &AssignmentTable{byContig: make([][]Assignment, idx.NumContigs(MapSource))}
	for c := range t.byContig {
		id := ContigID(c)
		as := make([]Assignment, idx.NumWindows(MapSource, id))
		for _, w := range idx.LiveWindows(MapSource, id) {
			as[w-1].State = Unassigned
		}
		t.byContig[c] = as
	}
	for _, c := range chains {
		n := c.Len()
		if c.MapContig < 0 || int(c.MapContig) >= len(t.byContig) {
			return nil, integrityErrorf("chain refers to map contig %d, which is not in the index", c.MapContig)
		}
		as := t.byContig[c.MapContig]
		for i, mw := range c.MapWindows {
			if mw < 1 || mw > len(as) || as[mw-1].State == NoWindow {
				return nil, integrityErrorf("map window %s:%d not found in index",
					idx.ContigName(MapSource, c.MapContig), mw)
			}
			a := &as[mw-1]
			switch a.State {
			case Unassigned:
				t.nAssigned++
			case Assigned:
				if n <= a.ChainLen {
					continue
				}
			}
			*a = Assignment{State: Assigned, ReadContig: c.ReadContig, ReadWindow: c.ReadWindows[i], ChainLen: n}
		}
	}
	return t, nil
}
