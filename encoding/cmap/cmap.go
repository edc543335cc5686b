// Package cmap reads BioNano consensus map (CMAP) files.
//
// A CMAP file is tab-separated, with '#' header lines, and one row per label
// site. For example:
//
//   # CMAP File Version:	0.1
//   #h CMapId	ContigLength	NumSites	SiteID	LabelChannel	Position	StdDev	Coverage	Occurrence
//   1	20000.0	2	1	1	5100.5	1.0	1	1
//   1	20000.0	2	2	1	9800.0	1.0	1	1
//   1	20000.0	2	3	0	20000.0	0.0	1	0
//
// Only CMapId, ContigLength and Position are used. The last row of each map,
// with LabelChannel 0, marks the end of the molecule; its position is kept as
// a site like the others.
package cmap

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Column indexes.
const (
	colID       = 0
	colLength   = 1
	colPosition = 5
	minColumns  = colPosition + 1
)

// Map is one optical-map contig.
type Map struct {
	ID string
	// Length is the molecule length, rounded to the nearest integer.
	Length int
	// Positions are the label sites in file order, rounded to the nearest
	// integer.
	Positions []int
}

type row struct {
	id       string
	length   int
	position int
}

// Reader reads maps one at a time. Rows of a map must be contiguous.
type Reader struct {
	r       *tsv.Reader
	line    int
	pending *row
	seen    map[string]bool
	err     error
}

// NewReader creates a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	tr.FieldsPerRecord = -1
	tr.LazyQuotes = true
	tr.ReuseRecord = true
	return &Reader{r: tr, seen: map[string]bool{}}
}

// parseCoord parses a float coordinate and rounds it half to even.
func parseCoord(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxInt32 || math.IsNaN(v) {
		return 0, errors.Errorf("coordinate %s out of range", s)
	}
	return int(math.RoundToEven(v)), nil
}

func (r *Reader) readRow() (*row, error) {
	fields, err := r.r.Reader.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	if len(fields) < minColumns {
		return nil, errors.Errorf("cmap: row %d: expect at least %d columns, found %d", r.line, minColumns, len(fields))
	}
	rw := &row{id: strings.TrimSpace(fields[colID])}
	if rw.id == "" {
		return nil, errors.Errorf("cmap: row %d: empty map ID", r.line)
	}
	if rw.length, err = parseCoord(fields[colLength]); err != nil {
		return nil, errors.Wrapf(err, "cmap: row %d: map %s: length", r.line, rw.id)
	}
	if rw.position, err = parseCoord(fields[colPosition]); err != nil {
		return nil, errors.Wrapf(err, "cmap: row %d: map %s: position", r.line, rw.id)
	}
	return rw, nil
}

// Read returns the next map. It returns io.EOF after the last map.
func (r *Reader) Read() (Map, error) {
	if r.err != nil {
		return Map{}, r.err
	}
	m, err := r.read()
	if err != nil {
		r.err = err
	}
	return m, err
}

func (r *Reader) read() (Map, error) {
	first := r.pending
	r.pending = nil
	if first == nil {
		var err error
		if first, err = r.readRow(); err != nil {
			return Map{}, err
		}
	}
	if r.seen[first.id] {
		return Map{}, errors.Errorf("cmap: row %d: rows of map %s are not contiguous", r.line, first.id)
	}
	r.seen[first.id] = true
	m := Map{ID: first.id, Length: first.length, Positions: []int{first.position}}
	for {
		rw, err := r.readRow()
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return Map{}, err
		}
		if rw.id != m.ID {
			r.pending = rw
			return m, nil
		}
		if rw.length != m.Length {
			return Map{}, errors.Errorf("cmap: row %d: map %s: length %d differs from %d",
				r.line, m.ID, rw.length, m.Length)
		}
		m.Positions = append(m.Positions, rw.position)
	}
}

// ReadAll reads every map of r, in file order.
func ReadAll(r io.Reader) ([]Map, error) {
	var (
		maps []Map
		cr   = NewReader(r)
	)
	for {
		m, err := cr.Read()
		if err == io.EOF {
			return maps, nil
		}
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
}
