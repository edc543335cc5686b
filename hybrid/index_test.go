// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/testutil/h"
)

func readContig(name string, seq string, positions ...int) Contig {
	return Contig{Name: name, Source: ReadSource, Positions: positions, Seq: seq}
}

func mapContig(name string, length int, positions ...int) Contig {
	return Contig{Name: name, Source: MapSource, Positions: positions, Length: length}
}

func lookupExact(idx *Index, src Source, dists ...int32) []WindowRef {
	var refs []WindowRef
	idx.LookupExact(src, dists, func(r WindowRef) bool {
		refs = append(refs, r)
		return true
	})
	return refs
}

func lookupTolerance(idx *Index, src Source, tol int, dists ...int32) []WindowRef {
	var refs []WindowRef
	idx.LookupTolerance(src, dists, tol, func(r WindowRef) bool {
		refs = append(refs, r)
		return true
	})
	return refs
}

func TestIndexWindows(t *testing.T) {
	idx, err := BuildIndex(2,
		[]Contig{readContig("r0", string(make([]byte, 100)), 5, 35, 65)},
		[]Contig{
			mapContig("m0", 200, 10, 40, 70, 130),
			mapContig("m1", 200, 10, 20), // too few sites for a window
			mapContig("m2", 200, 0, 30, 60),
		})
	assert.NoError(t, err)
	defer func() { assert.NoError(t, idx.Close()) }()

	expect.EQ(t, idx.K(), 2)
	expect.EQ(t, idx.NumContigs(ReadSource), 1)
	expect.EQ(t, idx.NumContigs(MapSource), 3)
	expect.EQ(t, idx.NumWindows(ReadSource, 0), 1)
	expect.EQ(t, idx.NumWindows(MapSource, 0), 2)
	expect.EQ(t, idx.NumWindows(MapSource, 1), 0)
	expect.EQ(t, idx.NumWindows(MapSource, 2), 1)
	expect.EQ(t, idx.NumLive(MapSource), 3)
	expect.EQ(t, idx.ContigName(MapSource, 2), "m2")
	id, ok := idx.ContigID(MapSource, "m1")
	expect.True(t, ok)
	expect.EQ(t, id, ContigID(1))
	_, ok = idx.ContigID(MapSource, "r0")
	expect.False(t, ok)

	// The signature and coordinates of a window span the same sites.
	for _, w := range []int{1, 2} {
		ref := WindowRef{Contig: 0, Window: w}
		sig, err := idx.Signature(MapSource, ref)
		assert.NoError(t, err)
		coord, err := idx.Coordinates(MapSource, ref)
		assert.NoError(t, err)
		assert.EQ(t, len(sig.Distances), 2)
		assert.EQ(t, len(coord.Positions), 3)
		for j := range sig.Distances {
			expect.EQ(t, sig.Distances[j], coord.Positions[j+1]-coord.Positions[j])
		}
	}
	sig, err := idx.Signature(MapSource, WindowRef{Contig: 0, Window: 2})
	assert.NoError(t, err)
	expect.EQ(t, sig.Distances, []int32{30, 60})
	coord, err := idx.Coordinates(MapSource, WindowRef{Contig: 0, Window: 2})
	assert.NoError(t, err)
	expect.EQ(t, coord.Positions, []int32{40, 70, 130})
	coord, err = idx.Coordinates(ReadSource, WindowRef{Contig: 0, Window: 1})
	assert.NoError(t, err)
	expect.EQ(t, coord.Positions, []int32{5, 35, 65})

	_, err = idx.Coordinates(MapSource, WindowRef{Contig: 0, Window: 3})
	expect.True(t, IsIndexIntegrity(err), "%v", err)
	_, err = idx.Signature(MapSource, WindowRef{Contig: 1, Window: 1})
	expect.True(t, IsIndexIntegrity(err), "%v", err)
	_, err = idx.Signature(MapSource, WindowRef{Contig: 7, Window: 1})
	expect.True(t, IsIndexIntegrity(err), "%v", err)
}

func TestIndexLookup(t *testing.T) {
	idx, err := BuildIndex(2, nil, []Contig{
		mapContig("m0", 1000, 0, 100, 200, 300, 405),
		mapContig("m1", 1000, 50, 150, 250),
	})
	assert.NoError(t, err)
	defer func() { assert.NoError(t, idx.Close()) }()

	// m0 windows: {100,100}, {100,100}, {100,105}. m1: {100,100}.
	expect.That(t, lookupExact(idx, MapSource, 100, 100), h.ElementsAre(
		WindowRef{0, 1}, WindowRef{0, 2}, WindowRef{1, 1}))
	expect.That(t, lookupExact(idx, MapSource, 100, 105), h.ElementsAre(WindowRef{0, 3}))
	expect.EQ(t, len(lookupExact(idx, MapSource, 100, 104)), 0)
	expect.EQ(t, len(lookupExact(idx, MapSource, 100)), 0)

	expect.That(t, lookupTolerance(idx, MapSource, 5, 100, 104), h.UnorderedElementsAre(
		WindowRef{0, 1}, WindowRef{0, 2}, WindowRef{0, 3}, WindowRef{1, 1}))
	expect.That(t, lookupTolerance(idx, MapSource, 1, 100, 104), h.ElementsAre(WindowRef{0, 3}))
	expect.That(t, lookupTolerance(idx, MapSource, 3, 97, 97), h.UnorderedElementsAre(
		WindowRef{0, 1}, WindowRef{0, 2}, WindowRef{1, 1}))
	expect.EQ(t, len(lookupTolerance(idx, MapSource, 2, 97, 97)), 0)
	expect.EQ(t, len(lookupTolerance(idx, MapSource, -1, 100, 100)), 0)

	// Early stop.
	n := 0
	idx.LookupExact(MapSource, []int32{100, 100}, func(WindowRef) bool {
		n++
		return false
	})
	expect.EQ(t, n, 1)
}

func TestIndexDelete(t *testing.T) {
	idx, err := BuildIndex(2, nil, []Contig{
		mapContig("m0", 1000, 0, 100, 200, 300, 405),
		mapContig("m1", 1000, 50, 150, 250),
	})
	assert.NoError(t, err)
	defer func() { assert.NoError(t, idx.Close()) }()

	expect.EQ(t, idx.Delete(MapSource, []WindowRef{{0, 2}, {0, 2}, {1, 1}, {1, 5}}), 2)
	expect.EQ(t, idx.NumLive(MapSource), 2)
	expect.False(t, idx.Live(MapSource, WindowRef{0, 2}))
	expect.True(t, idx.Live(MapSource, WindowRef{0, 3}))
	expect.EQ(t, idx.LiveWindows(MapSource, 0), []int{1, 3})
	expect.EQ(t, len(idx.LiveWindows(MapSource, 1)), 0)
	expect.That(t, lookupExact(idx, MapSource, 100, 100), h.ElementsAre(WindowRef{0, 1}))
	expect.That(t, lookupTolerance(idx, MapSource, 10, 100, 100), h.ElementsAre(
		WindowRef{0, 1}, WindowRef{0, 3}))
	_, err = idx.Coordinates(MapSource, WindowRef{0, 2})
	expect.True(t, IsIndexIntegrity(err), "%v", err)

	// Deleting again is a no-op.
	expect.EQ(t, idx.Delete(MapSource, []WindowRef{{0, 2}}), 0)
	expect.EQ(t, idx.NumLive(MapSource), 2)
}

func TestBuildIndexErrors(t *testing.T) {
	_, err := BuildIndex(0, nil, nil)
	expect.True(t, IsConfiguration(err), "%v", err)

	_, err = BuildIndex(2, nil, []Contig{mapContig("m0", 100, 0, 50), mapContig("m0", 100, 10, 20)})
	expect.True(t, IsMalformedInput(err), "duplicate name: %v", err)

	_, err = BuildIndex(2, []Contig{mapContig("m0", 100, 0, 50)}, nil)
	expect.True(t, IsMalformedInput(err), "wrong source: %v", err)

	_, err = BuildIndex(2, []Contig{readContig("r0", "ACGT", 1, 10)}, nil)
	expect.True(t, IsMalformedInput(err), "site past read: %v", err)

	_, err = BuildIndex(2, nil, []Contig{mapContig("m0", 0, 0, 50)})
	expect.True(t, IsMalformedInput(err), "missing length: %v", err)
}

func TestHashSignature(t *testing.T) {
	h1, buf := hashSignature([]int32{1, 2, 3}, nil)
	h2, _ := hashSignature([]int32{1, 2, 3}, buf)
	h3, _ := hashSignature([]int32{3, 2, 1}, buf)
	expect.EQ(t, h1, h2)
	expect.True(t, h1 != h3)
}
