package record

import (
	"io"

	"github.com/wippyai/databroker/errors"
)

// Reader concatenates sub-sources into one record stream.
//
// Between two sub-sources it yields KindEndOfSubSource, after the last one
// KindEndOfSet, and after that every call fails with ReadAfterEnd. When the
// gap predicate flags two consecutive data rows, the second row is first
// returned wrapped in a KindGap record and then again as KindData.
type Reader struct {
	cls     *Classifier
	gap     GapFunc
	cur     Source
	pending *Record
	openers []Opener
	prev    []float64
	idx     int
	ended   bool
}

// NewReader builds a reader over the given sub-sources.
func NewReader(opts Options, openers ...Opener) *Reader {
	opts = opts.withDefaults()
	return &Reader{
		cls:     NewClassifier(opts),
		gap:     opts.Gap,
		openers: openers,
	}
}

// Ended reports whether EndOfSet has been returned.
func (r *Reader) Ended() bool { return r.ended }

// Columns reports the column count in effect, 0 if not yet known.
func (r *Reader) Columns() int { return r.cls.Columns() }

// Next returns the next record.
func (r *Reader) Next() (Record, error) {
	if r.ended {
		return Record{}, errors.New(errors.PhaseStream, errors.KindReadAfterEnd).
			Detail("end of set already returned").Build()
	}

	if r.pending != nil {
		rec := *r.pending
		r.pending = nil
		r.prev = rec.Fields
		return rec, nil
	}

	for {
		if r.cur == nil {
			if r.idx >= len(r.openers) {
				r.ended = true
				return Record{Kind: KindEndOfSet, Source: r.idx}, nil
			}
			src, err := r.openers[r.idx](r.cls)
			if err != nil {
				r.idx++
				return Record{}, errors.Wrap(errors.PhaseStream, errors.KindIO, err, "open sub-source")
			}
			r.cur = src
		}

		rec, err := r.cur.Next()
		if err == io.EOF {
			if cerr := r.closeCurrent(); cerr != nil {
				return Record{}, errors.Wrap(errors.PhaseStream, errors.KindIO, cerr, "close sub-source")
			}
			r.idx++
			r.prev = nil
			if r.idx < len(r.openers) {
				return Record{Kind: KindEndOfSubSource, Source: r.idx - 1}, nil
			}
			continue
		}
		if err != nil {
			// Skip the rest of a broken sub-source so later calls make progress.
			_ = r.closeCurrent()
			r.idx++
			r.prev = nil
			if r.idx < len(r.openers) {
				r.pending = &Record{Kind: KindEndOfSubSource, Source: r.idx - 1}
			}
			return Record{}, errors.Wrap(errors.PhaseStream, errors.KindIO, err, "read sub-source")
		}
		rec.Source = r.idx

		switch rec.Kind {
		case KindData:
			if r.prev != nil && r.gap(r.prev, rec.Fields) {
				held := rec
				r.pending = &held
				r.prev = nil
				return Record{Kind: KindGap, Fields: rec.Fields, Text: rec.Text, Source: rec.Source, Line: rec.Line}, nil
			}
			r.prev = rec.Fields
		case KindTableHeader, KindSegmentHeader:
			r.prev = nil
		}
		return rec, nil
	}
}

// Close releases the sub-source currently open, if any. It is safe to call
// more than once.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func (r *Reader) closeCurrent() error {
	src := r.cur
	r.cur = nil
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
