// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import "sort"

// Chain is a run of candidates whose read and map window indexes both advance
// by one per step, on one map contig.
type Chain struct {
	ReadContig ContigID
	// ReadWindows are consecutive, ascending window indexes.
	ReadWindows []int
	MapContig   ContigID
	// MapWindows[i] is paired with ReadWindows[i].
	MapWindows []int
}

// Len returns the number of windows in the chain.
func (c Chain) Len() int { return len(c.ReadWindows) }

type mapPos struct {
	contig ContigID
	window int
}

func lessMapPos(a, b mapPos) bool {
	if a.contig != b.contig {
		return a.contig < b.contig
	}
	return a.window < b.window
}

// BuildChains groups the candidates of one read contig into chains, and
// returns those with Len() > minChainLength. Candidates for other read
// contigs are ignored.
//
// Each (read window, map window) pair seeds a chain that is extended forward
// while (r+1, m+1) on the same map contig is also a candidate. Unless
// maximalOnly is set, a pair in the middle of a run also seeds its own
// (shorter) chain, so chains that nest inside each other are all returned.
// With maximalOnly, only pairs without a (r-1, m-1) predecessor seed chains.
//
// Chains are returned in ascending order of (seed read window, map contig,
// seed map window).
func BuildChains(readContig ContigID, cands []Candidate, minChainLength int, maximalOnly bool) []Chain {
	pairs := map[int]map[mapPos]struct{}{}
	for _, c := range cands {
		if c.ReadContig != readContig {
			continue
		}
		m, ok := pairs[c.ReadWindow]
		if !ok {
			m = map[mapPos]struct{}{}
			pairs[c.ReadWindow] = m
		}
		m[mapPos{c.MapContig, c.MapWindow}] = struct{}{}
	}
	has := func(r int, p mapPos) bool {
		_, ok := pairs[r][p]
		return ok
	}

	readWindows := make([]int, 0, len(pairs))
	for r := range pairs {
		readWindows = append(readWindows, r)
	}
	sort.Ints(readWindows)

	var chains []Chain
	for _, r := range readWindows {
		seeds := make([]mapPos, 0, len(pairs[r]))
		for p := range pairs[r] {
			seeds = append(seeds, p)
		}
		sort.Slice(seeds, func(i, j int) bool { return lessMapPos(seeds[i], seeds[j]) })
		for _, seed := range seeds {
			if maximalOnly && has(r-1, mapPos{seed.contig, seed.window - 1}) {
				continue
			}
			n := 1
			for has(r+n, mapPos{seed.contig, seed.window + n}) {
				n++
			}
			if n <= minChainLength {
				continue
			}
			c := Chain{
				ReadContig:  readContig,
				ReadWindows: make([]int, n),
				MapContig:   seed.contig,
				MapWindows:  make([]int, n),
			}
			for i := 0; i < n; i++ {
				c.ReadWindows[i] = r + i
				c.MapWindows[i] = seed.window + i
			}
			chains = append(chains, c)
		}
	}
	return chains
}
