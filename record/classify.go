package record

import (
	"strconv"
	"strings"
)

// Classifier turns text lines into records. It remembers the column count
// fixed by the first data row when Options.Columns is zero, so one
// Classifier must be shared by all sub-sources of a stream.
type Classifier struct {
	opts    Options
	columns int
}

// NewClassifier returns a classifier for opts.
func NewClassifier(opts Options) *Classifier {
	opts = opts.withDefaults()
	return &Classifier{opts: opts, columns: opts.Columns}
}

// Columns reports the expected number of numeric fields, or 0 if not yet
// known.
func (c *Classifier) Columns() int { return c.columns }

// Classify converts one line. Blank lines report ok == false.
func (c *Classifier) Classify(line string) (rec Record, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	body := strings.TrimLeft(line, " \t")
	if body == "" {
		return Record{}, false
	}

	switch body[0] {
	case c.opts.CommentMarker:
		return Record{Kind: KindTableHeader, Text: strings.TrimSpace(body[1:])}, true
	case c.opts.SegmentMarker:
		return Record{Kind: KindSegmentHeader, Text: strings.TrimSpace(body[1:])}, true
	}

	tokens := strings.FieldsFunc(body, isSeparator)
	want := c.columns

	fields := make([]float64, 0, max(want, len(tokens)))
	for i, tok := range tokens {
		if want > 0 && i >= want {
			break
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			if want > 0 {
				return invalid(line), true
			}
			break
		}
		fields = append(fields, v)
	}

	if len(fields) == 0 || (want > 0 && len(fields) < want) {
		return invalid(line), true
	}
	if c.columns == 0 {
		c.columns = len(fields)
	}

	rec = Record{Kind: KindData, Fields: fields}
	if rest := tokens[len(fields):]; len(rest) > 0 {
		rec.Text = strings.Join(rest, " ")
	}
	return rec, true
}

func invalid(line string) Record {
	return Record{Kind: KindInvalid, Text: line}
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == ','
}
