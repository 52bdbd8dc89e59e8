package record

import (
	"bufio"
	"io"
	"os"

	"github.com/wippyai/databroker/payload"
)

// Source yields the records of one sub-source and io.EOF at its end.
// End markers are added by the Reader, never by a Source.
type Source interface {
	Next() (Record, error)
}

// Opener starts a sub-source. It runs when the Reader reaches the
// sub-source, so files are not opened before they are needed.
type Opener func(*Classifier) (Source, error)

// maxLine bounds a single text record.
const maxLine = 1 << 20

type textSource struct {
	sc     *bufio.Scanner
	cls    *Classifier
	closer io.Closer
	line   int
}

func newTextSource(r io.Reader, c io.Closer, cls *Classifier) *textSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &textSource{sc: sc, cls: cls, closer: c}
}

func (s *textSource) Next() (Record, error) {
	for s.sc.Scan() {
		s.line++
		rec, ok := s.cls.Classify(s.sc.Text())
		if !ok {
			continue
		}
		rec.Line = s.line
		return rec, nil
	}
	if err := s.sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func (s *textSource) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}

// FileOpener reads path as text. The Reader closes the file when the
// sub-source ends.
func FileOpener(path string) Opener {
	return func(cls *Classifier) (Source, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return newTextSource(f, f, cls), nil
	}
}

// StreamOpener reads text from r without ever closing it.
func StreamOpener(r io.Reader) Opener {
	return func(cls *Classifier) (Source, error) {
		return newTextSource(r, nil, cls), nil
	}
}

type tableSource struct {
	table   *payload.Table
	pending []Record
	seg     int
	row     int
	started bool
}

// TableOpener walks an in-memory table: its headers, then each segment's
// header and rows.
func TableOpener(t *payload.Table) Opener {
	return func(*Classifier) (Source, error) {
		return &tableSource{table: t}, nil
	}
}

func (s *tableSource) Next() (Record, error) {
	if !s.started {
		s.started = true
		for _, h := range s.table.Headers {
			s.pending = append(s.pending, Record{Kind: KindTableHeader, Text: h})
		}
		s.seg, s.row = 0, -1
	}
	if len(s.pending) > 0 {
		rec := s.pending[0]
		s.pending = s.pending[1:]
		return rec, nil
	}

	for s.seg < len(s.table.Segments) {
		seg := s.table.Segments[s.seg]
		if s.row == -1 {
			s.row = 0
			if seg.HasHeader {
				return Record{Kind: KindSegmentHeader, Text: seg.Header}, nil
			}
		}
		if s.row < len(seg.Rows) {
			r := seg.Rows[s.row]
			s.row++
			if r.Fields == nil {
				return Record{Kind: KindInvalid, Text: r.Text}, nil
			}
			return Record{Kind: KindData, Fields: append([]float64(nil), r.Fields...), Text: r.Text}, nil
		}
		s.seg++
		s.row = -1
	}
	return Record{}, io.EOF
}

// DatasetOpeners returns one sub-source per table of ds.
func DatasetOpeners(ds *payload.Dataset) []Opener {
	out := make([]Opener, len(ds.Tables))
	for i, t := range ds.Tables {
		out[i] = TableOpener(t)
	}
	return out
}
