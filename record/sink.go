package record

import (
	"bufio"
	"io"
	"strconv"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
)

// Sink receives records written to an output object.
type Sink interface {
	Put(mode WriteMode, rec Record) error
	Close() error
}

// TextSink renders records as text lines.
type TextSink struct {
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
	opts   Options
}

// NewTextSink writes to w. If closer is non-nil it is closed by Close after
// the final flush.
func NewTextSink(w io.Writer, closer io.Closer, opts Options) *TextSink {
	return &TextSink{w: bufio.NewWriter(w), closer: closer, opts: opts.withDefaults()}
}

func (s *TextSink) Put(mode WriteMode, rec Record) error {
	if s.w == nil {
		return errors.WrongAccessOrder(errors.PhaseStream, 0, "sink closed")
	}
	b := s.buf[:0]
	switch mode {
	case WriteData:
		if rec.Fields == nil {
			return errors.InvalidInput(errors.PhaseStream, "data record without fields")
		}
		b = AppendFields(b, rec.Fields)
		if rec.Text != "" {
			b = append(b, '\t')
			b = append(b, rec.Text...)
		}
	case WriteTableHeader:
		b = appendMarked(b, s.opts.CommentMarker, rec.Text)
	case WriteSegmentHeader:
		b = appendMarked(b, s.opts.SegmentMarker, rec.Text)
	case WriteText:
		b = append(b, rec.Text...)
	default:
		return errors.New(errors.PhaseStream, errors.KindInvalidInput).
			Value(mode).Detail("unknown write mode %v", mode).Build()
	}
	b = append(b, '\n')
	s.buf = b
	if _, err := s.w.Write(b); err != nil {
		return errors.Wrap(errors.PhaseStream, errors.KindIO, err, "write record")
	}
	return nil
}

// Close flushes buffered output and closes the underlying writer if the
// sink owns it. Later calls do nothing.
func (s *TextSink) Close() error {
	if s.w == nil {
		return nil
	}
	err := s.w.Flush()
	s.w = nil
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	if err != nil {
		return errors.Wrap(errors.PhaseStream, errors.KindIO, err, "finish output")
	}
	return nil
}

// AppendFields formats fields tab-separated in shortest round-trip form.
func AppendFields(b []byte, fields []float64) []byte {
	for i, v := range fields {
		if i > 0 {
			b = append(b, '\t')
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	return b
}

func appendMarked(b []byte, marker byte, text string) []byte {
	b = append(b, marker)
	if text != "" {
		b = append(b, ' ')
		b = append(b, text...)
	}
	return b
}

// DatasetSink collects records into an in-memory dataset.
type DatasetSink struct {
	ds *payload.Dataset
}

// NewDatasetSink appends to ds, which may already hold tables.
func NewDatasetSink(ds *payload.Dataset) *DatasetSink {
	return &DatasetSink{ds: ds}
}

// Dataset returns the dataset being filled.
func (s *DatasetSink) Dataset() *payload.Dataset { return s.ds }

func (s *DatasetSink) Put(mode WriteMode, rec Record) error {
	t := s.ds.LastTable()
	switch mode {
	case WriteData:
		if rec.Fields == nil {
			return errors.InvalidInput(errors.PhaseStream, "data record without fields")
		}
		seg := t.LastSegment()
		seg.Rows = append(seg.Rows, payload.Row{Fields: append([]float64(nil), rec.Fields...), Text: rec.Text})
		if s.ds.Columns == 0 {
			s.ds.Columns = len(rec.Fields)
		}
	case WriteTableHeader:
		t.Headers = append(t.Headers, rec.Text)
	case WriteSegmentHeader:
		t.Segments = append(t.Segments, &payload.Segment{Header: rec.Text, HasHeader: true})
	case WriteText:
		seg := t.LastSegment()
		seg.Rows = append(seg.Rows, payload.Row{Text: rec.Text})
	default:
		return errors.New(errors.PhaseStream, errors.KindInvalidInput).
			Value(mode).Detail("unknown write mode %v", mode).Build()
	}
	return nil
}

// NextTable starts a new table so later records land in a fresh sub-source.
func (s *DatasetSink) NextTable() {
	s.ds.Tables = append(s.ds.Tables, &payload.Table{})
}

func (s *DatasetSink) Close() error { return nil }

// Collect drains r into a dataset, one table per sub-source.
func Collect(r *Reader) (*payload.Dataset, error) {
	ds := &payload.Dataset{}
	sink := NewDatasetSink(ds)
	sink.NextTable()
	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		switch rec.Kind {
		case KindEndOfSet:
			return ds, nil
		case KindEndOfSubSource:
			sink.NextTable()
		case KindGap:
			if err := sink.Put(WriteSegmentHeader, Record{}); err != nil {
				return nil, err
			}
		default:
			mode, _ := ModeFor(rec.Kind)
			if err := sink.Put(mode, rec); err != nil {
				return nil, err
			}
		}
	}
}
