package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithModules(module.NewRegistry())}, opts...)
	s, err := New("test", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dataset(rows ...[]float64) *payload.Dataset {
	seg := &payload.Segment{}
	for _, r := range rows {
		seg.Rows = append(seg.Rows, payload.Row{Fields: r})
	}
	return &payload.Dataset{Columns: len(rows[0]), Tables: []*payload.Table{{Segments: []*payload.Segment{seg}}}}
}

type closeCounter struct {
	*strings.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func writeFile(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestNew(t *testing.T) {
	s := newSession(t, WithPad(0), WithFlags(FlagLogErrors))
	assert.Equal(t, "test", s.Name())
	assert.Equal(t, 0, s.Pad())
	assert.Equal(t, FlagLogErrors, s.Flags())
	assert.NotEqual(t, s.ID(), newSession(t).ID())

	_, err := New("bad", WithPad(-1))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestNew_DefaultRegistriesAreIsolated(t *testing.T) {
	a, err := New("a")
	require.NoError(t, err)
	b, err := New("b")
	require.NoError(t, err)
	defer b.Close()

	require.NotSame(t, a.Modules(), b.Modules())
	require.NoError(t, a.Modules().Register(module.Descriptor{
		Name:  "private",
		Entry: func(context.Context, module.Host, module.Mode, *module.Args) int { return 7 },
	}))

	status, err := a.CallModule(context.Background(), "private", module.ModeRun, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, status)

	status, err = b.CallModule(context.Background(), "private", module.ModeRun, nil)
	assert.Equal(t, module.StatusDispatch, status)
	assert.True(t, errors.IsKind(err, errors.KindModuleNotFound), "err = %v", err)
	require.NoError(t, a.Close())
}

func TestToken_RoundTrip(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   dataset([]float64{1}),
	})
	require.NoError(t, err)

	tok, err := s.EncodeToken(id)
	require.NoError(t, err)
	assert.Len(t, tok, 16)

	back, err := s.DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, id, back)

	require.NoError(t, s.Destroy(id))
	_, err = s.DecodeToken(tok)
	assert.True(t, errors.IsKind(err, errors.KindTokenDecodeMismatch), "err = %v", err)
	_, err = s.EncodeToken(id)
	assert.True(t, errors.IsKind(err, errors.KindObjectNotFound))
}

func TestToken_ForeignAndGarbage(t *testing.T) {
	a := newSession(t)
	b := newSession(t)
	id, err := a.Register(resource.Spec{
		Family:    payload.FamilyDocument,
		Direction: resource.DirOut,
		Method:    resource.MethodDuplicate,
	})
	require.NoError(t, err)
	tok, err := a.EncodeToken(id)
	require.NoError(t, err)

	_, err = b.DecodeToken(tok)
	assert.True(t, errors.IsKind(err, errors.KindTokenDecodeMismatch))

	for _, garbage := range []string{"", "data.txt", "@GMTAPI@-00000x@", "@GMTAPI@-000001", strings.Repeat("@", 500)} {
		_, err := a.DecodeToken(garbage)
		assert.True(t, errors.IsKind(err, errors.KindNotAToken), "%q: %v", garbage, err)
	}
	assert.Equal(t, [2]errors.Kind{errors.KindNotAToken, errors.KindNotAToken}, a.LastErrors())
}

func TestRetrieve_SingleRetrieval(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirOut,
		Method:    resource.MethodDuplicate,
	})
	require.NoError(t, err)

	_, err = s.Retrieve(id)
	assert.True(t, errors.IsKind(err, errors.KindWrongAccessOrder))

	written := dataset([]float64{1, 2})
	require.NoError(t, s.Output(id, written))

	got, err := RetrieveAs[*payload.Dataset](s, id)
	require.NoError(t, err)
	assert.Equal(t, written, got)
	assert.NotSame(t, written, got)

	_, err = s.Retrieve(id)
	assert.True(t, errors.IsKind(err, errors.KindExhausted))
	assert.Equal(t, errors.KindExhausted, s.LastErrors()[0])
	assert.Equal(t, errors.KindWrongAccessOrder, s.LastErrors()[1])
}

func TestRetrieve_WrongType(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDocument,
		Direction: resource.DirOut,
		Method:    resource.MethodReference,
	})
	require.NoError(t, err)
	require.NoError(t, s.Output(id, &payload.Document{Lines: []string{"x"}}))

	_, err = RetrieveAs[*payload.Grid](s, id)
	assert.True(t, errors.IsKind(err, errors.KindBadFamily))
}

func TestClose_ReferenceSurvives(t *testing.T) {
	s, err := New("close", WithModules(module.NewRegistry()))
	require.NoError(t, err)

	ref := dataset([]float64{1, 2}, []float64{3, 4})
	_, err = s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   ref,
	})
	require.NoError(t, err)
	dup := dataset([]float64{5})
	_, err = s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodDuplicate,
		Payload:   dup,
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, 2, ref.Rows())
	assert.Equal(t, 1, dup.Rows())

	_, err = s.Register(resource.Spec{Family: payload.FamilyDataset, Direction: resource.DirIn, Method: resource.MethodReference, Payload: ref})
	assert.True(t, errors.IsKind(err, errors.KindNotASession))
	assert.True(t, errors.IsKind(s.Close(), errors.KindNotASession))
	assert.Nil(t, s.Objects())
}

func TestClose_EndsOpenStreams(t *testing.T) {
	s, err := New("close", WithModules(module.NewRegistry()))
	require.NoError(t, err)

	src := &closeCounter{Reader: strings.NewReader("1 2\n")}
	id, err := s.Register(resource.Spec{
		Family:     payload.FamilyDataset,
		Direction:  resource.DirIn,
		Method:     resource.MethodStream,
		Stream:     src,
		TakeStream: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.BeginIO(id, resource.DirIn))
	require.NoError(t, s.Close())
	assert.Equal(t, 1, src.closes)
}

func TestGetRecord_ClassificationScenario(t *testing.T) {
	s := newSession(t)
	text := "# title\n> segment\n1 2 3\n4 5 6\n7 8 9\nnot a row\n"
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodStream,
		Stream:    strings.NewReader(text),
	})
	require.NoError(t, err)

	_, err = s.GetRecord(id)
	assert.True(t, errors.IsKind(err, errors.KindWrongAccessOrder))

	require.NoError(t, s.BeginIO(id, resource.DirIn))
	var kinds []record.Kind
	var fields []int
	for {
		rec, err := s.GetRecord(id)
		require.NoError(t, err)
		kinds = append(kinds, rec.Kind)
		fields = append(fields, rec.NumFields())
		if rec.Kind == record.KindEndOfSet {
			break
		}
	}
	assert.Equal(t, []record.Kind{
		record.KindTableHeader,
		record.KindSegmentHeader,
		record.KindData, record.KindData, record.KindData,
		record.KindInvalid,
		record.KindEndOfSet,
	}, kinds)
	assert.Equal(t, []int{0, 0, 3, 3, 3, 0, 0}, fields)

	_, err = s.GetRecord(id)
	assert.True(t, errors.IsKind(err, errors.KindReadAfterEnd))

	obj, err := s.Object(id)
	require.NoError(t, err)
	assert.Equal(t, resource.StatusExhausted, obj.Status)

	require.NoError(t, s.EndIO(id))
	err = s.BeginIO(id, resource.DirIn)
	assert.True(t, errors.IsKind(err, errors.KindExhausted))
}

func TestGetRecord_Gap(t *testing.T) {
	s := newSession(t, WithRecordOptions(record.Options{Gap: record.ColumnGap(0, 5)}))
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   dataset([]float64{1, 0}, []float64{2, 0}, []float64{20, 0}),
	})
	require.NoError(t, err)
	require.NoError(t, s.BeginIO(id, resource.DirIn))

	var got []record.Record
	for {
		rec, err := s.GetRecord(id)
		require.NoError(t, err)
		if rec.Kind == record.KindEndOfSet {
			break
		}
		got = append(got, rec)
	}
	require.Len(t, got, 4)
	assert.Equal(t, record.KindData, got[1].Kind)
	assert.Equal(t, record.KindGap, got[2].Kind)
	assert.Equal(t, []float64{20, 0}, got[2].Fields)
	assert.Equal(t, record.KindData, got[3].Kind)
	assert.Equal(t, []float64{20, 0}, got[3].Fields)
}

func TestEndIO_Idempotent(t *testing.T) {
	s := newSession(t)
	src := &closeCounter{Reader: strings.NewReader("1 2\n3 4\n")}
	id, err := s.Register(resource.Spec{
		Family:     payload.FamilyDataset,
		Direction:  resource.DirIn,
		Method:     resource.MethodStream,
		Stream:     src,
		TakeStream: true,
	})
	require.NoError(t, err)

	err = s.EndIO(id)
	assert.True(t, errors.IsKind(err, errors.KindWrongAccessOrder), "never begun: %v", err)

	require.NoError(t, s.BeginIO(id, resource.DirIn))
	_, err = s.GetRecord(id)
	require.NoError(t, err)
	require.NoError(t, s.EndIO(id))
	require.NoError(t, s.EndIO(id))
	require.NoError(t, s.Destroy(id))
	assert.Equal(t, 1, src.closes)
}

func TestBeginIO_Errors(t *testing.T) {
	s := newSession(t)
	grid, err := s.Register(resource.Spec{
		Family:    payload.FamilyGrid,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   &payload.Grid{},
	})
	require.NoError(t, err)
	in, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   dataset([]float64{1}),
	})
	require.NoError(t, err)

	assert.True(t, errors.IsKind(s.BeginIO(grid, resource.DirIn), errors.KindBadFamily))
	assert.True(t, errors.IsKind(s.BeginIO(in, resource.DirOut), errors.KindBadDirection))
	assert.True(t, errors.IsKind(s.BeginIO(99, resource.DirIn), errors.KindObjectNotFound))

	require.NoError(t, s.BeginIO(in, resource.DirIn))
	assert.True(t, errors.IsKind(s.BeginIO(in, resource.DirIn), errors.KindWrongAccessOrder))
	assert.True(t, errors.IsKind(s.PutRecord(in, record.WriteData, record.Record{Fields: []float64{1}}), errors.KindBadDirection))
}

func TestPutRecord_MemoryOutput(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirOut,
		Method:    resource.MethodReference,
	})
	require.NoError(t, err)

	require.NoError(t, s.BeginIO(id, resource.DirOut))
	require.NoError(t, s.PutRecord(id, record.WriteTableHeader, record.Record{Text: "sums"}))
	require.NoError(t, s.PutRecord(id, record.WriteData, record.Record{Fields: []float64{3}}))
	require.NoError(t, s.PutRecord(id, record.WriteText, record.Record{Text: "raw"}))

	_, err = s.Retrieve(id)
	assert.True(t, errors.IsKind(err, errors.KindWrongAccessOrder))

	require.NoError(t, s.EndIO(id))
	ds, err := RetrieveAs[*payload.Dataset](s, id)
	require.NoError(t, err)
	require.Len(t, ds.Tables, 1)
	assert.Equal(t, []string{"sums"}, ds.Tables[0].Headers)
	assert.Equal(t, []payload.Row{{Fields: []float64{3}}, {Text: "raw"}}, ds.Tables[0].Segments[0].Rows)
}

func TestPutRecord_StreamOutput(t *testing.T) {
	s := newSession(t)
	var buf bytes.Buffer
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirOut,
		Method:    resource.MethodStream,
		Stream:    &buf,
	})
	require.NoError(t, err)
	require.NoError(t, s.BeginIO(id, resource.DirOut))
	require.NoError(t, s.PutRecord(id, record.WriteSegmentHeader, record.Record{}))
	require.NoError(t, s.PutRecord(id, record.WriteData, record.Record{Fields: []float64{1.5, -2}}))
	require.NoError(t, s.EndIO(id))
	assert.Equal(t, ">\n1.5\t-2\n", buf.String())

	w, err := s.Retrieve(id)
	require.NoError(t, err)
	assert.Same(t, &buf, w)
}

func TestInput_MultipleFiles(t *testing.T) {
	s := newSession(t)
	a := writeFile(t, "a.txt", "1 2\n3 4\n")
	b := writeFile(t, "b.txt", "5 6\n")
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirIn,
		Method:    resource.MethodFile,
		Paths:     []string{a, b},
	})
	require.NoError(t, err)

	p, err := s.Input(id)
	require.NoError(t, err)
	ds := p.(*payload.Dataset)
	assert.Len(t, ds.Tables, 2)
	assert.Equal(t, 3, ds.Rows())

	// Files can be read again.
	_, err = s.Input(id)
	require.NoError(t, err)
}

func TestInput_StreamOnce(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDocument,
		Direction: resource.DirIn,
		Method:    resource.MethodStream,
		Stream:    strings.NewReader("line one\nline two\n"),
	})
	require.NoError(t, err)

	p, err := s.Input(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, p.(*payload.Document).Lines)

	_, err = s.Input(id)
	assert.True(t, errors.IsKind(err, errors.KindExhausted))
}

func TestOutput_File(t *testing.T) {
	s := newSession(t)
	path := filepath.Join(t.TempDir(), "out.txt")
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyDataset,
		Direction: resource.DirOut,
		Method:    resource.MethodFile,
		Paths:     []string{path},
	})
	require.NoError(t, err)

	err = s.Output(id, &payload.Document{})
	assert.True(t, errors.IsKind(err, errors.KindBadFamily))

	require.NoError(t, s.Output(id, dataset([]float64{1, 2})))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\t2\n", string(data))

	got, err := RetrieveAs[string](s, id)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolve(t *testing.T) {
	s := newSession(t)
	id, err := s.Register(resource.Spec{
		Family:    payload.FamilyGrid,
		Direction: resource.DirIn,
		Method:    resource.MethodReference,
		Payload:   &payload.Grid{},
	})
	require.NoError(t, err)
	tok, err := s.EncodeToken(id)
	require.NoError(t, err)

	got, err := s.Resolve(tok, payload.FamilyGrid, resource.DirIn)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Resolve(tok, payload.FamilyDataset, resource.DirIn)
	assert.True(t, errors.IsKind(err, errors.KindBadFamily))
	_, err = s.Resolve(tok, payload.FamilyGrid, resource.DirOut)
	assert.True(t, errors.IsKind(err, errors.KindBadDirection))

	out := filepath.Join(t.TempDir(), "grid.yaml")
	fid, err := s.Resolve(out, payload.FamilyGrid, resource.DirOut)
	require.NoError(t, err)
	obj, err := s.Object(fid)
	require.NoError(t, err)
	assert.Equal(t, resource.MethodFile, obj.Method)
}
