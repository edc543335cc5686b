// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"encoding/binary"
	"fmt"

	"github.com/biogo/store/llrb"
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// This file implements the signature index. For every contig with n sites it
// holds n-k windows. Window w (1-based) has the distance signature
//
//   pos[w+j] - pos[w+j-1], j = 0..k-1   (pos is 0-based)
//
// and the coordinate window pos[w-1 .. w-1+k]. Both tables are stored in flat
// arrays addressed by a "slot" = contigStart[contig] + w - 1, so signature and
// coordinates of one window always describe the same span of sites.
//
// Two lookup structures are kept on top of the flat arrays:
//
//  - a 256-way sharded hash table, keyed by farmhash(distance tuple), for
//    exact lookups;
//
//  - an llrb tree ordered by (first distance, slot) for tolerance lookups.
//
// Deleting a window clears its liveness bit and removes it from both lookup
// structures; the flat arrays are never modified after Build.

const nSignatureShard = 256

// WindowRef names one window of a contig in the index.
type WindowRef struct {
	Contig ContigID
	// Window is the 1-based window index.
	Window int
}

// ContigID is a dense sequence number (0, 1, 2, ...) assigned to contigs of
// one source in the order they were passed to BuildIndex.
type ContigID int32

// SignatureWindow is a window's distance tuple. Distances aliases the index
// storage and must not be modified.
type SignatureWindow struct {
	WindowRef
	Distances []int32
}

// CoordinateWindow holds the k+1 raw site positions spanned by the matching
// SignatureWindow. Positions aliases the index storage and must not be
// modified.
type CoordinateWindow struct {
	WindowRef
	Positions []int32
}

// sigKey is the llrb key for tolerance lookups.
type sigKey struct {
	first int32
	slot  int32
}

// Compare implements llrb.Comparable.
func (k sigKey) Compare(c llrb.Comparable) int {
	k2 := c.(sigKey)
	if k.first != k2.first {
		if k.first < k2.first {
			return -1
		}
		return 1
	}
	return int(k.slot) - int(k2.slot)
}

type signatureShard struct {
	slots map[uint64][]int32 // farmhash(distances) -> slots
}

// sigTable holds the windows of all contigs of one source.
type sigTable struct {
	source      Source
	k           int
	names       []string
	ids         map[string]ContigID
	contigStart []int32 // slot of window 1 of each contig; len = #contigs+1.
	slotContig  []ContigID

	dists  *int32Arena // k values per slot
	coords *int32Arena // k+1 values per slot

	live   []uintptr // liveness bit per slot
	nLive  int
	shards [nSignatureShard]signatureShard
	tree   llrb.Tree
}

// Index is the signature/coordinate index of one assembly run. It is built
// once by BuildIndex. During a round it is only read, and it is safe to read
// from multiple goroutines; Delete must not run concurrently with anything
// else.
type Index struct {
	k      int
	tables [nSource]*sigTable
}

// BuildIndex validates the contigs and builds the index. Contigs with fewer
// than k+1 sites produce no windows, but they are still registered. Nothing is
// built if any contig is malformed.
func BuildIndex(k int, reads, maps []Contig) (*Index, error) {
	if k < 1 {
		return nil, configErrorf("k must be >= 1, got %d", k)
	}
	inputs := [nSource][]Contig{ReadSource: reads, MapSource: maps}
	for src, contigs := range inputs {
		seen := make(map[string]struct{}, len(contigs))
		for i := range contigs {
			c := &contigs[i]
			if c.Source != Source(src) {
				return nil, malformedErrorf("contig %s: expect a %s contig, found %s", c.Name, Source(src), c.Source)
			}
			if err := c.validate(); err != nil {
				return nil, err
			}
			if _, ok := seen[c.Name]; ok {
				return nil, malformedErrorf("duplicate %s contig %s", c.Source, c.Name)
			}
			seen[c.Name] = struct{}{}
		}
	}
	idx := &Index{k: k}
	for src, contigs := range inputs {
		t, err := newSigTable(Source(src), k, contigs)
		if err != nil {
			idx.Close() // nolint: errcheck
			return nil, err
		}
		idx.tables[src] = t
		log.Printf("Built %s signature index: %d contigs, %d windows", Source(src), len(contigs), t.nLive)
	}
	return idx, nil
}

func numWindows(nSites, k int) int {
	if nSites < k+1 {
		return 0
	}
	return nSites - k
}

func newSigTable(src Source, k int, contigs []Contig) (*sigTable, error) {
	t := &sigTable{
		source:      src,
		k:           k,
		names:       make([]string, len(contigs)),
		ids:         make(map[string]ContigID, len(contigs)),
		contigStart: make([]int32, len(contigs)+1),
	}
	nSlots := 0
	for i := range contigs {
		t.names[i] = contigs[i].Name
		t.ids[contigs[i].Name] = ContigID(i)
		t.contigStart[i] = int32(nSlots)
		nSlots += numWindows(len(contigs[i].Positions), k)
	}
	t.contigStart[len(contigs)] = int32(nSlots)

	var err error
	if t.dists, err = newInt32Arena(nSlots * k); err != nil {
		return nil, errors.E(err, "allocate distance table")
	}
	if t.coords, err = newInt32Arena(nSlots * (k + 1)); err != nil {
		t.dists.free() // nolint: errcheck
		return nil, errors.E(err, "allocate coordinate table")
	}
	t.slotContig = make([]ContigID, nSlots)
	t.live = make([]uintptr, (nSlots+bitset.BitsPerWord-1)/bitset.BitsPerWord)
	for i := range t.shards {
		t.shards[i].slots = map[uint64][]int32{}
	}

	var hashBuf []byte
	for ci := range contigs {
		pos := contigs[ci].Positions
		start := int(t.contigStart[ci])
		nw := numWindows(len(pos), k)
		for w := 0; w < nw; w++ {
			slot := start + w
			d := t.dists.vals[slot*k : (slot+1)*k]
			c := t.coords.vals[slot*(k+1) : (slot+1)*(k+1)]
			for j := 0; j <= k; j++ {
				c[j] = int32(pos[w+j])
			}
			for j := 0; j < k; j++ {
				d[j] = c[j+1] - c[j]
			}
			t.slotContig[slot] = ContigID(ci)
			bitset.Set(t.live, slot)
			t.nLive++
			var h uint64
			h, hashBuf = hashSignature(d, hashBuf)
			shard := &t.shards[h%nSignatureShard]
			shard.slots[h] = append(shard.slots[h], int32(slot))
			t.tree.Insert(sigKey{first: d[0], slot: int32(slot)})
		}
	}
	return t, nil
}

// hashSignature computes farmhash of the distance tuple. buf is scratch space;
// the (possibly grown) buffer is returned for reuse.
func hashSignature(dists []int32, buf []byte) (uint64, []byte) {
	n := 4 * len(dists)
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	for i, d := range dists {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(d))
	}
	return farm.Hash64(buf), buf
}

func (t *sigTable) slot(ref WindowRef) (int, bool) {
	if ref.Contig < 0 || int(ref.Contig) >= len(t.names) || ref.Window < 1 {
		return 0, false
	}
	slot := int(t.contigStart[ref.Contig]) + ref.Window - 1
	if slot >= int(t.contigStart[ref.Contig+1]) {
		return 0, false
	}
	return slot, true
}

func (t *sigTable) ref(slot int) WindowRef {
	c := t.slotContig[slot]
	return WindowRef{Contig: c, Window: slot - int(t.contigStart[c]) + 1}
}

func (t *sigTable) dist(slot int) []int32 {
	return t.dists.vals[slot*t.k : (slot+1)*t.k]
}

func (t *sigTable) coord(slot int) []int32 {
	return t.coords.vals[slot*(t.k+1) : (slot+1)*(t.k+1)]
}

func (t *sigTable) isLive(slot int) bool { return bitset.Test(t.live, slot) }

// liveSlot returns the slot of a window, or an integrity error if the window
// was deleted or never built.
func (t *sigTable) liveSlot(ref WindowRef) (int, error) {
	slot, ok := t.slot(ref)
	if !ok || !t.isLive(slot) {
		name := "?"
		if ref.Contig >= 0 && int(ref.Contig) < len(t.names) {
			name = t.names[ref.Contig]
		}
		return 0, integrityErrorf("%s window %s:%d not found in index", t.source, name, ref.Window)
	}
	return slot, nil
}

func (t *sigTable) delete(slot int) bool {
	if !t.isLive(slot) {
		return false
	}
	bitset.Clear(t.live, slot)
	t.nLive--
	d := t.dist(slot)
	h, _ := hashSignature(d, nil)
	shard := &t.shards[h%nSignatureShard]
	slots := shard.slots[h]
	for i, s := range slots {
		if int(s) == slot {
			slots = append(slots[:i], slots[i+1:]...)
			break
		}
	}
	if len(slots) == 0 {
		delete(shard.slots, h)
	} else {
		shard.slots[h] = slots
	}
	t.tree.Delete(sigKey{first: d[0], slot: int32(slot)})
	return true
}

func (idx *Index) table(src Source) *sigTable {
	if src >= nSource {
		panic(fmt.Sprintf("invalid source %d", src))
	}
	return idx.tables[src]
}

// K returns the number of distances per window.
func (idx *Index) K() int { return idx.k }

// NumContigs returns the number of contigs registered for the source.
func (idx *Index) NumContigs(src Source) int { return len(idx.table(src).names) }

// ContigName returns the name of a contig.
//
// REQUIRES: 0 <= id < NumContigs(src).
func (idx *Index) ContigName(src Source, id ContigID) string { return idx.table(src).names[id] }

// ContigID finds a contig by name.
func (idx *Index) ContigID(src Source, name string) (ContigID, bool) {
	id, ok := idx.table(src).ids[name]
	return id, ok
}

// NumWindows returns the number of windows built for the contig, deleted or
// not. Window indexes are 1..NumWindows.
func (idx *Index) NumWindows(src Source, id ContigID) int {
	t := idx.table(src)
	return int(t.contigStart[id+1] - t.contigStart[id])
}

// NumLive returns the number of windows of the source still in the index.
func (idx *Index) NumLive(src Source) int { return idx.table(src).nLive }

// Live reports whether the window is in the index.
func (idx *Index) Live(src Source, ref WindowRef) bool {
	t := idx.table(src)
	slot, ok := t.slot(ref)
	return ok && t.isLive(slot)
}

// LiveWindows lists the indexes of the contig's windows still in the index,
// in ascending order.
func (idx *Index) LiveWindows(src Source, id ContigID) []int {
	t := idx.table(src)
	start, limit := int(t.contigStart[id]), int(t.contigStart[id+1])
	var ws []int
	for slot := start; slot < limit; slot++ {
		if t.isLive(slot) {
			ws = append(ws, slot-start+1)
		}
	}
	return ws
}

// Signature returns the distance tuple of a live window.
func (idx *Index) Signature(src Source, ref WindowRef) (SignatureWindow, error) {
	t := idx.table(src)
	slot, err := t.liveSlot(ref)
	if err != nil {
		return SignatureWindow{}, err
	}
	return SignatureWindow{WindowRef: ref, Distances: t.dist(slot)}, nil
}

// Coordinates returns the raw site positions of a live window.
func (idx *Index) Coordinates(src Source, ref WindowRef) (CoordinateWindow, error) {
	t := idx.table(src)
	slot, err := t.liveSlot(ref)
	if err != nil {
		return CoordinateWindow{}, err
	}
	return CoordinateWindow{WindowRef: ref, Positions: t.coord(slot)}, nil
}

// LookupExact calls fn for every live window of the source whose distance
// tuple equals dists, in slot order, until fn returns false.
func (idx *Index) LookupExact(src Source, dists []int32, fn func(WindowRef) bool) {
	t := idx.table(src)
	if len(dists) != t.k {
		return
	}
	h, _ := hashSignature(dists, nil)
	for _, s := range t.shards[h%nSignatureShard].slots[h] {
		slot := int(s)
		if !equalDistances(t.dist(slot), dists) {
			continue // hash collision
		}
		if !fn(t.ref(slot)) {
			return
		}
	}
}

// LookupTolerance calls fn for every live window of the source whose
// distances each differ from dists by at most tolerance, until fn returns
// false. Windows are visited in ascending order of their first distance.
func (idx *Index) LookupTolerance(src Source, dists []int32, tolerance int, fn func(WindowRef) bool) {
	t := idx.table(src)
	if len(dists) != t.k || tolerance < 0 {
		return
	}
	from := sigKey{first: clampInt32(int64(dists[0]) - int64(tolerance)), slot: -1}
	to := sigKey{first: clampInt32(int64(dists[0]) + int64(tolerance) + 1), slot: -1}
	if from.Compare(to) >= 0 {
		return
	}
	t.tree.DoRange(func(c llrb.Comparable) bool {
		slot := int(c.(sigKey).slot)
		if !withinTolerance(t.dist(slot), dists, tolerance) {
			return false
		}
		return !fn(t.ref(slot))
	}, from, to)
}

// Delete removes windows from the index and returns the number of windows
// actually removed. Windows already deleted are ignored.
//
// REQUIRES: no other goroutine is accessing the index.
func (idx *Index) Delete(src Source, refs []WindowRef) int {
	t := idx.table(src)
	n := 0
	for _, ref := range refs {
		if slot, ok := t.slot(ref); ok && t.delete(slot) {
			n++
		}
	}
	return n
}

// Close releases the index storage. The index is unusable afterwards.
func (idx *Index) Close() error {
	once := errors.Once{}
	for i, t := range idx.tables {
		if t == nil {
			continue
		}
		once.Set(t.dists.free())
		once.Set(t.coords.free())
		idx.tables[i] = nil
	}
	return once.Err()
}

func equalDistances(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func withinTolerance(a, b []int32, tolerance int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		if d < 0 {
			d = -d
		}
		if d > int64(tolerance) {
			return false
		}
	}
	return true
}

func clampInt32(v int64) int32 {
	const (
		maxInt32 = int64(^uint32(0) >> 1)
		minInt32 = -maxInt32 - 1
	)
	if v > maxInt32 {
		return int32(maxInt32)
	}
	if v < minInt32 {
		return int32(minInt32)
	}
	return int32(v)
}
