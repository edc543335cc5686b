// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import "math"

// Source tells which dataset a contig comes from.
type Source uint8

const (
	// ReadSource is a long-read sequence contig.
	ReadSource Source = iota
	// MapSource is an optical-map contig.
	MapSource
	nSource
)

func (s Source) String() string {
	switch s {
	case ReadSource:
		return "read"
	case MapSource:
		return "map"
	}
	return "invalid"
}

// reverseSuffix names the reverse-complement counterpart of a read contig.
const reverseSuffix = "_reverse"

// Contig is a named, ordered list of recognition-site positions.
type Contig struct {
	Name   string
	Source Source
	// Positions are the site coordinates, strictly increasing and >= 0.
	Positions []int
	// Seq is the nucleotide sequence. Set only for read contigs.
	Seq string
	// Length is the total length of the molecule. Set only for map contigs.
	Length int
}

// NewReadContigs creates the read contig for seq and its reverse-complement
// counterpart, named name+"_reverse". The sequence is upper-cased, and sites
// are the 0-based offsets of motif or its reverse complement.
func NewReadContigs(name, seq, motif string) ([]Contig, error) {
	if err := ValidateMotif(motif); err != nil {
		return nil, err
	}
	scanner := newSiteScanner(motif)
	seq = upperCase(seq)
	rc := reverseComplement(seq)
	return []Contig{
		{Name: name, Source: ReadSource, Positions: scanner.scan(seq), Seq: seq},
		{Name: name + reverseSuffix, Source: ReadSource, Positions: scanner.scan(rc), Seq: rc},
	}, nil
}

// NewMapContig creates an optical-map contig.
func NewMapContig(name string, length int, positions []int) (Contig, error) {
	c := Contig{Name: name, Source: MapSource, Positions: positions, Length: length}
	return c, c.validate()
}

// validate checks the properties that the index builder relies on.
func (c *Contig) validate() error {
	if c.Name == "" {
		return malformedErrorf("%s contig with an empty name", c.Source)
	}
	prev := -1
	for i, p := range c.Positions {
		if p <= prev {
			return malformedErrorf("%s contig %s: site %d at %d is not after %d", c.Source, c.Name, i, p, prev)
		}
		if p > math.MaxInt32 {
			return malformedErrorf("%s contig %s: site %d at %d is out of range", c.Source, c.Name, i, p)
		}
		prev = p
	}
	switch c.Source {
	case MapSource:
		if c.Length <= 0 {
			return malformedErrorf("map contig %s: missing length", c.Name)
		}
		if prev >= 0 && prev > c.Length {
			return malformedErrorf("map contig %s: site %d is past length %d", c.Name, prev, c.Length)
		}
	case ReadSource:
		if prev >= 0 && prev > len(c.Seq) {
			return malformedErrorf("read contig %s: site %d is past sequence length %d", c.Name, prev, len(c.Seq))
		}
	default:
		return malformedErrorf("contig %s: invalid source %d", c.Name, c.Source)
	}
	return nil
}
