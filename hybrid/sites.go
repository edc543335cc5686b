// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

const invalidKmerBits = uint8(255)

var (
	asciiToKmerMap   [256]uint8
	revCompBaseMap   [256]byte
	upperCaseACGTMap [256]byte
)

func init() {
	for i := range asciiToKmerMap {
		asciiToKmerMap[i] = invalidKmerBits
		revCompBaseMap[i] = 'N'
		upperCaseACGTMap[i] = byte(i)
	}
	for i, ch := range []byte("ACGT") {
		lower := ch + 'a' - 'A'
		asciiToKmerMap[ch] = uint8(i)
		asciiToKmerMap[lower] = uint8(i)
		upperCaseACGTMap[lower] = ch
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		revCompBaseMap[p[0]] = p[1]
		revCompBaseMap[p[0]+'a'-'A'] = p[1]
	}
	upperCaseACGTMap['n'] = 'N'
}

// kmer is a 2-bit encoding of up to 32 ACGT bases.
type kmer uint64

func asciiToKmer(seq string) (kmer, bool) {
	var k kmer
	for i := 0; i < len(seq); i++ {
		b := asciiToKmerMap[seq[i]]
		if b == invalidKmerBits {
			return 0, false
		}
		k = (k << 2) | kmer(b)
	}
	return k, true
}

// reverseComplement computes the reverse complement of a DNA string. Bases
// other than ACGT become N.
func reverseComplement(seq string) string {
	buf := make([]byte, len(seq))
	for i, j := 0, len(seq)-1; j >= 0; i, j = i+1, j-1 {
		buf[i] = revCompBaseMap[seq[j]]
	}
	return string(buf)
}

// upperCase upper-cases the ACGTN letters of seq.
func upperCase(seq string) string {
	for i := 0; i < len(seq); i++ {
		if upperCaseACGTMap[seq[i]] != seq[i] {
			buf := []byte(seq)
			for j := i; j < len(buf); j++ {
				buf[j] = upperCaseACGTMap[buf[j]]
			}
			return string(buf)
		}
	}
	return seq
}

// siteScanner finds the start offsets of a motif, or its reverse complement,
// in a DNA sequence. It keeps a rolling 2-bit encoding of the last len(motif)
// bases, so each base is examined once.
type siteScanner struct {
	motifLen int
	mask     kmer
	forward  kmer
	revComp  kmer
}

// newSiteScanner creates a scanner for the motif.
//
// REQUIRES: ValidateMotif(motif) == nil.
func newSiteScanner(motif string) *siteScanner {
	fwd, ok := asciiToKmer(motif)
	if !ok {
		panic(motif)
	}
	rc, _ := asciiToKmer(reverseComplement(motif))
	s := &siteScanner{motifLen: len(motif), forward: fwd, revComp: rc}
	if len(motif) == maxMotifLength {
		s.mask = ^kmer(0)
	} else {
		s.mask = ^(^kmer(0) << kmer(2*len(motif)))
	}
	return s
}

// scan returns the 0-based offsets at which the motif or its reverse
// complement starts, in ascending order. Windows spanning a non-ACGT base
// never match.
func (s *siteScanner) scan(seq string) []int {
	var (
		sites []int
		cur   kmer
		valid int // # of consecutive ACGT bases ending at the current position
	)
	for i := 0; i < len(seq); i++ {
		b := asciiToKmerMap[seq[i]]
		if b == invalidKmerBits {
			cur, valid = 0, 0
			continue
		}
		cur = ((cur << 2) | kmer(b)) & s.mask
		valid++
		if valid < s.motifLen {
			continue
		}
		if cur == s.forward || cur == s.revComp {
			sites = append(sites, i-s.motifLen+1)
		}
	}
	return sites
}

// FindSites returns the 0-based start offsets of motif or its reverse
// complement in seq.
func FindSites(seq, motif string) ([]int, error) {
	if err := ValidateMotif(motif); err != nil {
		return nil, err
	}
	return newSiteScanner(motif).scan(seq), nil
}
