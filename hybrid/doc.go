// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
Package hybrid assembles optical maps and long reads.

Both inputs are reduced to lists of recognition-site positions: the sites of
an enzyme motif found in each read (and its reverse complement), and the sites
measured on each optical-map molecule. A window is k consecutive inter-site
distances. The assembler indexes the windows of both sources, and then runs
rounds of increasing tolerance:

  - Matcher finds (read window, map window) pairs whose distances agree
    within the round's tolerance.

  - BuildChains links pairs that advance together on both sides into chains,
    and keeps the chains longer than the round's minimum.

  - Resolve binds every map window to the read window of the longest chain
    covering it.

  - The merger copies, for every bound map window, the read bases between
    consecutive sites into the corresponding interval of the map contig's
    merged sequence.

Windows of accepted chains are then removed from the index, so later, looser
rounds only see what is left. Map intervals that no read covered are filled
with the motif followed by placeholder bases.

Typical usage:

  reads, _ := hybrid.NewReadContigs("r0", seq, opts.Motif)
  m, _ := hybrid.NewMapContig("1", 200000, sites)
  a, err := hybrid.NewAssembler(opts, reads, []hybrid.Contig{m}, nil)
  ...
  results, err := a.Run(ctx)
  ...
  for _, s := range a.Sequences() { ... }
*/
package hybrid
