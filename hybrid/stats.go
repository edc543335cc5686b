// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import "fmt"

// RoundStats represents the counters of one assembly round.
type RoundStats struct {
	// Round is the 1-based round index.
	Round          int
	Tolerance      int
	MinChainLength int
	// Candidates is the # of candidate pairs returned by the matcher,
	// duplicates included.
	Candidates int
	// Chains is the # of accepted chains.
	Chains int
	// AssignedMapWindows is the # of map windows bound to a read window.
	AssignedMapWindows int
	// SplicedIntervals is the # of map intervals filled from read contigs.
	SplicedIntervals int
	// ChangedContigs is the # of map contigs with at least one spliced
	// interval.
	ChangedContigs int
	// ConsumedReadWindows and ConsumedMapWindows count the windows removed
	// from the index at the end of the round.
	ConsumedReadWindows int
	ConsumedMapWindows  int
	// LiveReadWindows and LiveMapWindows count the windows left in the index
	// after the round.
	LiveReadWindows int
	LiveMapWindows  int
}

// Merge adds the counters of o to s. Round parameters and the live window
// counts are taken from o, so merging rounds in order yields the totals of a
// run.
func (s RoundStats) Merge(o RoundStats) RoundStats {
	s.Round = o.Round
	s.Tolerance = o.Tolerance
	s.MinChainLength = o.MinChainLength
	s.Candidates += o.Candidates
	s.Chains += o.Chains
	s.AssignedMapWindows += o.AssignedMapWindows
	s.SplicedIntervals += o.SplicedIntervals
	s.ChangedContigs += o.ChangedContigs
	s.ConsumedReadWindows += o.ConsumedReadWindows
	s.ConsumedMapWindows += o.ConsumedMapWindows
	s.LiveReadWindows = o.LiveReadWindows
	s.LiveMapWindows = o.LiveMapWindows
	return s
}

func (s RoundStats) String() string {
	return fmt.Sprintf("round %d (tol %d, min chain %d): %d candidates, %d chains, %d map windows assigned, "+
		"%d intervals spliced in %d contigs, consumed %d read / %d map windows, live %d read / %d map windows",
		s.Round, s.Tolerance, s.MinChainLength, s.Candidates, s.Chains, s.AssignedMapWindows,
		s.SplicedIntervals, s.ChangedContigs, s.ConsumedReadWindows, s.ConsumedMapWindows,
		s.LiveReadWindows, s.LiveMapWindows)
}
