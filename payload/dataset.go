package payload

// Row is one record of a table segment. A row with nil Fields holds a
// raw text line that did not parse as data.
type Row struct {
	Fields []float64
	Text   string
}

// Segment is a run of rows, optionally introduced by a segment header.
type Segment struct {
	Header    string
	HasHeader bool
	Rows      []Row
}

// Table is one sub-source of a dataset: its header lines and segments.
type Table struct {
	Headers  []string
	Segments []*Segment
}

// Dataset is a set of tables of numeric records.
type Dataset struct {
	Tables  []*Table
	Columns int
}

func (*Dataset) Family() Family { return FamilyDataset }
func (*Dataset) isPayload() {}

// Clone deep-copies every table, segment and row.
func (d *Dataset) Clone() Payload {
	out := &Dataset{Columns: d.Columns, Tables: make([]*Table, len(d.Tables))}
	for i, t := range d.Tables {
		nt := &Table{
			Headers:  append([]string(nil), t.Headers...),
			Segments: make([]*Segment, len(t.Segments)),
		}
		for j, s := range t.Segments {
			ns := &Segment{Header: s.Header, HasHeader: s.HasHeader, Rows: make([]Row, len(s.Rows))}
			for k, r := range s.Rows {
				ns.Rows[k] = Row{Text: r.Text}
				if r.Fields != nil {
					ns.Rows[k].Fields = append([]float64(nil), r.Fields...)
				}
			}
			nt.Segments[j] = ns
		}
		out.Tables[i] = nt
	}
	return out
}

func (d *Dataset) Size() Size {
	var sz Size
	sz.Columns = d.Columns
	for _, t := range d.Tables {
		for _, s := range t.Segments {
			sz.Rows += len(s.Rows)
			for _, r := range s.Rows {
				sz.Bytes += int64(8*len(r.Fields) + len(r.Text))
			}
		}
	}
	return sz
}

func (d *Dataset) Release() {
	d.Tables = nil
}

// Rows counts the records across all tables.
func (d *Dataset) Rows() int {
	return d.Size().Rows
}

// LastTable returns the final table, appending one if the dataset is empty.
func (d *Dataset) LastTable() *Table {
	if len(d.Tables) == 0 {
		d.Tables = append(d.Tables, &Table{})
	}
	return d.Tables[len(d.Tables)-1]
}

// LastSegment returns the final segment, appending an unlabelled one if
// the table has none.
func (t *Table) LastSegment() *Segment {
	if len(t.Segments) == 0 {
		t.Segments = append(t.Segments, &Segment{})
	}
	return t.Segments[len(t.Segments)-1]
}
