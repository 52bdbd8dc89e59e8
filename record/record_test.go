package record

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
)

// drain reads until EndOfSet and returns every record including it.
func drain(t *testing.T, r *Reader) []Record {
	t.Helper()
	var out []Record
	for i := 0; i < 1000; i++ {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, rec)
		if rec.Kind == KindEndOfSet {
			return out
		}
	}
	t.Fatal("no end of set after 1000 records")
	return nil
}

func kinds(recs []Record) []Kind {
	out := make([]Kind, len(recs))
	for i, r := range recs {
		out[i] = r.Kind
	}
	return out
}

var ignorePosition = cmpopts.IgnoreFields(Record{}, "Source", "Line")

func TestReader_ClassificationScenario(t *testing.T) {
	text := "# survey header\n> seg A\n1 2 3\n4 5 6\n\n7 8 9\nbad line here\n"
	opts := DefaultOptions()
	opts.Columns = 3
	r := NewReader(opts, StreamOpener(strings.NewReader(text)))

	got := drain(t, r)
	want := []Record{
		{Kind: KindTableHeader, Text: "survey header"},
		{Kind: KindSegmentHeader, Text: "seg A"},
		{Kind: KindData, Fields: []float64{1, 2, 3}},
		{Kind: KindData, Fields: []float64{4, 5, 6}},
		{Kind: KindData, Fields: []float64{7, 8, 9}},
		{Kind: KindInvalid, Text: "bad line here"},
		{Kind: KindEndOfSet},
	}
	if diff := cmp.Diff(want, got, ignorePosition, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}

	counts := make([]int, 0, 6)
	for _, rec := range got[:6] {
		counts = append(counts, rec.NumFields())
	}
	if diff := cmp.Diff([]int{0, 0, 3, 3, 3, 0}, counts); diff != "" {
		t.Errorf("field counts (-want +got):\n%s", diff)
	}
	if got[4].Line != 6 {
		t.Errorf("line of third data row = %d, want 6", got[4].Line)
	}

	_, err := r.Next()
	if !errors.IsKind(err, errors.KindReadAfterEnd) {
		t.Fatalf("read after end err = %v", err)
	}
	if !r.Ended() {
		t.Error("Ended should report true")
	}
}

func TestReader_GapBetweenRows(t *testing.T) {
	text := "0 10\n1 11\n5 15\n6 16\n"
	opts := DefaultOptions()
	opts.Gap = ColumnGap(0, 2)
	got := drain(t, NewReader(opts, StreamOpener(strings.NewReader(text))))

	want := []Record{
		{Kind: KindData, Fields: []float64{0, 10}},
		{Kind: KindData, Fields: []float64{1, 11}},
		{Kind: KindGap, Fields: []float64{5, 15}},
		{Kind: KindData, Fields: []float64{5, 15}},
		{Kind: KindData, Fields: []float64{6, 16}},
		{Kind: KindEndOfSet},
	}
	if diff := cmp.Diff(want, got, ignorePosition, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestReader_GapResetsAtSegmentHeader(t *testing.T) {
	text := "0\n> next\n100\n"
	opts := DefaultOptions()
	opts.Gap = ColumnGap(0, 2)
	got := kinds(drain(t, NewReader(opts, StreamOpener(strings.NewReader(text)))))
	want := []Kind{KindData, KindSegmentHeader, KindData, KindEndOfSet}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
}

func TestReader_SubSources(t *testing.T) {
	r := NewReader(DefaultOptions(),
		StreamOpener(strings.NewReader("1 2\n")),
		StreamOpener(strings.NewReader("")),
		StreamOpener(strings.NewReader("3 4\n")),
	)
	got := drain(t, r)
	want := []Kind{KindData, KindEndOfSubSource, KindEndOfSubSource, KindData, KindEndOfSet}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
	if got[3].Source != 2 {
		t.Errorf("source of last row = %d, want 2", got[3].Source)
	}
}

func TestReader_OverlongLineSkipsSubSource(t *testing.T) {
	long := strings.Repeat("1", maxLine+1) + "\n2 2\n"
	r := NewReader(DefaultOptions(),
		StreamOpener(strings.NewReader(long)),
		StreamOpener(strings.NewReader("3 4\n")))

	if _, err := r.Next(); !errors.IsKind(err, errors.KindIO) {
		t.Fatalf("first Next err = %v, want io", err)
	}
	got := drain(t, r)
	want := []Record{
		{Kind: KindEndOfSubSource},
		{Kind: KindData, Fields: []float64{3, 4}},
		{Kind: KindEndOfSet},
	}
	if diff := cmp.Diff(want, got, ignorePosition); diff != "" {
		t.Errorf("records after a broken sub-source (-want +got):\n%s", diff)
	}
}

func TestReader_NoSubSources(t *testing.T) {
	r := NewReader(DefaultOptions())
	rec, err := r.Next()
	if err != nil || rec.Kind != KindEndOfSet {
		t.Fatalf("first record = %v, %v", rec.Kind, err)
	}
}

func TestClassifier(t *testing.T) {
	tests := []struct {
		name    string
		columns int
		lines   []string
		want    []Record
	}{
		{
			name:  "auto columns fixed by first row",
			lines: []string{"1 2", "3", "4 5 6"},
			want: []Record{
				{Kind: KindData, Fields: []float64{1, 2}},
				{Kind: KindInvalid, Text: "3"},
				{Kind: KindData, Fields: []float64{4, 5}, Text: "6"},
			},
		},
		{
			name:    "text tail",
			columns: 2,
			lines:   []string{"1 2 station A"},
			want:    []Record{{Kind: KindData, Fields: []float64{1, 2}, Text: "station A"}},
		},
		{
			name:    "comma and tab separators",
			columns: 3,
			lines:   []string{"1,2\t3"},
			want:    []Record{{Kind: KindData, Fields: []float64{1, 2, 3}}},
		},
		{
			name:    "parse failure inside required columns",
			columns: 3,
			lines:   []string{"1 abc 3"},
			want:    []Record{{Kind: KindInvalid, Text: "1 abc 3"}},
		},
		{
			name:  "leading blanks before markers",
			lines: []string{"  # note", "\t>  label  ", "\r"},
			want: []Record{
				{Kind: KindTableHeader, Text: "note"},
				{Kind: KindSegmentHeader, Text: "label"},
			},
		},
		{
			name:  "nan is a number",
			lines: []string{"NaN 1"},
			want:  []Record{{Kind: KindData, Fields: []float64{math.NaN(), 1}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Columns = tt.columns
			c := NewClassifier(opts)
			var got []Record
			for _, l := range tt.lines {
				if rec, ok := c.Classify(l); ok {
					got = append(got, rec)
				}
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty(), cmpopts.EquateNaNs()); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestTableOpener(t *testing.T) {
	ds := &payload.Dataset{Tables: []*payload.Table{
		{
			Headers: []string{"h1"},
			Segments: []*payload.Segment{
				{Rows: []payload.Row{{Fields: []float64{1}}}},
				{Header: "s2", HasHeader: true, Rows: []payload.Row{{Text: "raw"}, {Fields: []float64{2}, Text: "t"}}},
			},
		},
		{Segments: []*payload.Segment{{Rows: []payload.Row{{Fields: []float64{3}}}}}},
	}}

	got := drain(t, NewReader(DefaultOptions(), DatasetOpeners(ds)...))
	want := []Record{
		{Kind: KindTableHeader, Text: "h1"},
		{Kind: KindData, Fields: []float64{1}},
		{Kind: KindSegmentHeader, Text: "s2"},
		{Kind: KindInvalid, Text: "raw"},
		{Kind: KindData, Fields: []float64{2}, Text: "t"},
		{Kind: KindEndOfSubSource},
		{Kind: KindData, Fields: []float64{3}},
		{Kind: KindEndOfSet},
	}
	if diff := cmp.Diff(want, got, ignorePosition, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	got[1].Fields[0] = 99
	if ds.Tables[0].Segments[0].Rows[0].Fields[0] != 1 {
		t.Error("records must not alias the dataset's rows")
	}
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf, nil, DefaultOptions())
	puts := []struct {
		mode WriteMode
		rec  Record
	}{
		{WriteTableHeader, Record{Text: "title"}},
		{WriteSegmentHeader, Record{}},
		{WriteData, Record{Fields: []float64{1.5, -2, 1e-9}}},
		{WriteData, Record{Fields: []float64{3}, Text: "tail"}},
		{WriteText, Record{Text: "not data"}},
	}
	for _, p := range puts {
		if err := s.Put(p.mode, p.rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	want := "# title\n>\n1.5\t-2\t1e-09\n3\ttail\nnot data\n"
	if buf.String() != want {
		t.Fatalf("output:\n%q\nwant:\n%q", buf.String(), want)
	}

	if err := s.Put(WriteData, Record{Fields: []float64{1}}); err == nil {
		t.Error("Put after Close should fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestTextSink_RejectsBadInput(t *testing.T) {
	s := NewTextSink(&bytes.Buffer{}, nil, DefaultOptions())
	if err := s.Put(WriteData, Record{}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("data without fields err = %v", err)
	}
	if err := s.Put(WriteMode(42), Record{}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestCollect_FromFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("# A\n1 2\n2 3\n"), 0o644)
	os.WriteFile(b, []byte("> seg\n5 6\noops\n"), 0o644)

	ds, err := Collect(NewReader(DefaultOptions(), FileOpener(a), FileOpener(b)))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(ds.Tables))
	}
	if ds.Columns != 2 || ds.Rows() != 4 {
		t.Fatalf("columns %d rows %d", ds.Columns, ds.Rows())
	}
	if ds.Tables[0].Headers[0] != "A" {
		t.Errorf("header = %q", ds.Tables[0].Headers[0])
	}
	seg := ds.Tables[1].Segments[0]
	if !seg.HasHeader || seg.Header != "seg" || seg.Rows[1].Text != "oops" || seg.Rows[1].Fields != nil {
		t.Errorf("second table segment = %+v", seg)
	}
}

func TestCollect_GapStartsSegment(t *testing.T) {
	opts := DefaultOptions()
	opts.Gap = ColumnGap(0, 2)
	ds, err := Collect(NewReader(opts, StreamOpener(strings.NewReader("0\n1\n9\n10\n"))))
	if err != nil {
		t.Fatal(err)
	}
	segs := ds.Tables[0].Segments
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if len(segs[0].Rows) != 2 || len(segs[1].Rows) != 2 || segs[1].Rows[0].Fields[0] != 9 {
		t.Errorf("segments = %+v, %+v", segs[0], segs[1])
	}
}

func TestReader_MissingFile(t *testing.T) {
	r := NewReader(DefaultOptions(), FileOpener(filepath.Join(t.TempDir(), "gone.txt")))
	if _, err := r.Next(); !errors.IsKind(err, errors.KindIO) {
		t.Fatalf("err = %v, want io", err)
	}
}

func TestModeFor(t *testing.T) {
	for _, k := range []Kind{KindData, KindTableHeader, KindSegmentHeader, KindInvalid} {
		if _, ok := ModeFor(k); !ok {
			t.Errorf("ModeFor(%v) not writable", k)
		}
	}
	for _, k := range []Kind{KindGap, KindEndOfSubSource, KindEndOfSet} {
		if _, ok := ModeFor(k); ok {
			t.Errorf("ModeFor(%v) should not be writable", k)
		}
	}
}
