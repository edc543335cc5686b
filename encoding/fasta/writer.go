package fasta

import (
	"bufio"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// DefaultLineWidth is the number of bases per line written by NewWriter when
// lineWidth is zero.
const DefaultLineWidth = 80

// IndexEntry describes the layout of one sequence in a FASTA file, as in a
// "samtools faidx" index line.
type IndexEntry struct {
	Name string
	// Length is the # of bases.
	Length int64
	// Offset is the byte offset of the first base.
	Offset int64
	// LineBases is the # of bases per line, LineWidth the # of bytes per line
	// including the newline.
	LineBases int64
	LineWidth int64
}

// Writer writes FASTA records with a fixed number of bases per line, and
// records their layout so that the index can be written without rereading
// the file.
type Writer struct {
	w         *bufio.Writer
	lineWidth int
	off       int64
	index     []IndexEntry
}

// NewWriter creates a Writer. Sequences are wrapped every lineWidth bases;
// lineWidth <= 0 means DefaultLineWidth.
func NewWriter(w io.Writer, lineWidth int) *Writer {
	if lineWidth <= 0 {
		lineWidth = DefaultLineWidth
	}
	return &Writer{w: bufio.NewWriter(w), lineWidth: lineWidth}
}

func (w *Writer) writeString(s string) error {
	n, err := w.w.WriteString(s)
	w.off += int64(n)
	return err
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	if rec.Name == "" {
		return errors.New("fasta: empty sequence name")
	}
	if err := w.writeString(">" + rec.Name + "\n"); err != nil {
		return err
	}
	ent := IndexEntry{
		Name:      rec.Name,
		Length:    int64(len(rec.Seq)),
		Offset:    w.off,
		LineBases: int64(w.lineWidth),
		LineWidth: int64(w.lineWidth) + 1,
	}
	if len(rec.Seq) < w.lineWidth {
		ent.LineBases = int64(len(rec.Seq))
		ent.LineWidth = ent.LineBases + 1
	}
	for i := 0; i < len(rec.Seq); i += w.lineWidth {
		end := i + w.lineWidth
		if end > len(rec.Seq) {
			end = len(rec.Seq)
		}
		if err := w.writeString(rec.Seq[i:end]); err != nil {
			return err
		}
		if err := w.writeString("\n"); err != nil {
			return err
		}
	}
	w.index = append(w.index, ent)
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }

// Index returns the layout of the records written so far.
func (w *Writer) Index() []IndexEntry { return w.index }

// WriteIndex writes the index (*.fai) of the records written so far.
func (w *Writer) WriteIndex(out io.Writer) error {
	return WriteIndex(out, w.index)
}

// WriteIndex writes index entries in the format defined by "samtools faidx"
// (http://www.htslib.org/doc/faidx.html).
func WriteIndex(out io.Writer, index []IndexEntry) error {
	tsvOut := tsv.NewWriter(out)
	for _, ent := range index {
		tsvOut.WriteString(ent.Name)
		tsvOut.WriteInt64(ent.Length)
		tsvOut.WriteInt64(ent.Offset)
		tsvOut.WriteInt64(ent.LineBases)
		tsvOut.WriteInt64(ent.LineWidth)
		if err := tsvOut.EndLine(); err != nil {
			return err
		}
	}
	return tsvOut.Flush()
}
