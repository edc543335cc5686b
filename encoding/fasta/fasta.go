// Package fasta reads and writes FASTA files.
// See http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// whitespace immediately after '>'.  Any text after a space is ignored.
// For example, '>read1 length=1234' becomes 'read1'.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Record is one named sequence.
type Record struct {
	Name string
	Seq  string
}

// Scanner reads FASTA records one at a time, in file order. Typical usage:
//
//   sc := fasta.NewScanner(r)
//   for sc.Scan() {
//     rec := sc.Record()
//     ...
//   }
//   if err := sc.Err(); err != nil { ... }
type Scanner struct {
	sc      *bufio.Scanner
	lineNum int
	next    string // name of the record whose header was last read
	started bool
	rec     Record
	seq     strings.Builder
	err     error
}

// NewScanner creates a Scanner that reads from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, bufferInitSize)
	return &Scanner{sc: sc}
}

func parseHeader(line string) string {
	if fields := strings.Fields(line[1:]); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Scan reads the next record. It returns false at the end of the input or on
// error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.sc.Scan() {
		s.lineNum++
		line := strings.TrimRight(s.sc.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			name := parseHeader(line)
			if name == "" {
				s.err = errors.Errorf("malformed FASTA file: line %d: empty sequence name", s.lineNum)
				return false
			}
			if s.started {
				s.rec = Record{Name: s.next, Seq: s.seq.String()}
				s.seq.Reset()
				s.next = name
				return true
			}
			s.started = true
			s.next = name
			continue
		}
		if !s.started {
			s.err = errors.Errorf("malformed FASTA file: line %d: sequence before the first header", s.lineNum)
			return false
		}
		s.seq.WriteString(line)
	}
	if err := s.sc.Err(); err != nil {
		s.err = errors.Wrap(err, "couldn't read FASTA data")
		return false
	}
	if !s.started {
		return false
	}
	s.rec = Record{Name: s.next, Seq: s.seq.String()}
	s.seq.Reset()
	s.started = false
	return true
}

// Record returns the record read by the last successful Scan.
func (s *Scanner) Record() Record { return s.rec }

// Err returns the first error encountered.
func (s *Scanner) Err() error { return s.err }

// ReadAll reads every record of r. Sequence names must be unique.
func ReadAll(r io.Reader) ([]Record, error) {
	var (
		recs []Record
		seen = map[string]bool{}
		sc   = NewScanner(r)
	)
	for sc.Scan() {
		rec := sc.Record()
		if seen[rec.Name] {
			return nil, errors.Errorf("malformed FASTA file: duplicate sequence name %s", rec.Name)
		}
		seen[rec.Name] = true
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
