package record

import (
	"fmt"
	"math"
)

// Kind classifies one record returned by a Reader.
type Kind uint8

const (
	KindData Kind = iota
	KindTableHeader
	KindSegmentHeader
	KindGap
	KindInvalid
	KindEndOfSubSource
	KindEndOfSet
)

var kindNames = [...]string{
	KindData:           "data",
	KindTableHeader:    "table-header",
	KindSegmentHeader:  "segment-header",
	KindGap:            "gap",
	KindInvalid:        "invalid",
	KindEndOfSubSource: "end-of-sub-source",
	KindEndOfSet:       "end-of-set",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Record is one classified unit of a table stream.
//
// Data and Gap records carry numeric Fields and an optional trailing Text.
// Header records carry their label in Text. Invalid records carry the raw
// line in Text and no fields.
type Record struct {
	Fields []float64
	Text   string
	// Source is the zero-based sub-source the record came from.
	Source int
	// Line is the one-based line within the sub-source, or 0 when the
	// record did not come from text.
	Line int
	Kind Kind
}

// NumFields returns the number of numeric fields.
func (r Record) NumFields() int { return len(r.Fields) }

// WriteMode selects how PutRecord renders a record.
type WriteMode uint8

const (
	WriteData WriteMode = iota
	WriteTableHeader
	WriteSegmentHeader
	// WriteText emits Text verbatim, used to echo invalid records.
	WriteText
)

func (m WriteMode) String() string {
	switch m {
	case WriteData:
		return "data"
	case WriteTableHeader:
		return "table-header"
	case WriteSegmentHeader:
		return "segment-header"
	case WriteText:
		return "text"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ModeFor picks the write mode that reproduces a record of kind k.
// Kinds with no written form report false.
func ModeFor(k Kind) (WriteMode, bool) {
	switch k {
	case KindData:
		return WriteData, true
	case KindTableHeader:
		return WriteTableHeader, true
	case KindSegmentHeader:
		return WriteSegmentHeader, true
	case KindInvalid:
		return WriteText, true
	}
	return 0, false
}

// GapFunc reports whether a data gap lies between two consecutive rows of
// the same segment.
type GapFunc func(prev, curr []float64) bool

// NoGap never reports a gap.
func NoGap([]float64, []float64) bool { return false }

// ColumnGap flags a gap when column col jumps by more than threshold
// between rows. Rows too short to hold col never gap.
func ColumnGap(col int, threshold float64) GapFunc {
	return func(prev, curr []float64) bool {
		if col < 0 || col >= len(prev) || col >= len(curr) {
			return false
		}
		return math.Abs(curr[col]-prev[col]) > threshold
	}
}

// Options controls how text is classified.
type Options struct {
	Gap GapFunc
	// Columns is the number of leading numeric fields a data row must have.
	// Zero takes the count from the first data row of the stream.
	Columns       int
	CommentMarker byte
	SegmentMarker byte
}

// DefaultOptions uses '#' comments, '>' segment headers, automatic column
// count and no gap detection.
func DefaultOptions() Options {
	return Options{
		Gap:           NoGap,
		CommentMarker: '#',
		SegmentMarker: '>',
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Gap == nil {
		o.Gap = d.Gap
	}
	if o.CommentMarker == 0 {
		o.CommentMarker = d.CommentMarker
	}
	if o.SegmentMarker == 0 {
		o.SegmentMarker = d.SegmentMarker
	}
	return o
}
