package session

import (
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

type streamState uint8

const (
	streaming streamState = iota + 1
	ended
)

// stream is the record I/O state of one object. Objects with no entry in
// Session.streams have never begun.
type stream struct {
	reader  *record.Reader
	sink    record.Sink
	ds      *payload.Dataset
	dir     resource.Direction
	state   streamState
	written bool
}

// BeginIO starts record-by-record access to a dataset object.
func (s *Session) BeginIO(id resource.ID, dir resource.Direction) error {
	if err := s.check(); err != nil {
		return err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseStream)
	if err != nil {
		return s.fail(err)
	}
	if obj.Family != payload.FamilyDataset {
		return s.fail(errors.New(errors.PhaseStream, errors.KindBadFamily).
			ID(int(id)).Detail("record access needs a dataset, object is a %v", obj.Family).Build())
	}
	if obj.Direction != dir {
		return s.fail(errors.New(errors.PhaseStream, errors.KindBadDirection).
			ID(int(id)).Detail("object is registered as %v", obj.Direction).Build())
	}
	if st := s.streams[id]; st != nil && st.state == streaming {
		return s.fail(errors.WrongAccessOrder(errors.PhaseStream, int(id), "already streaming"))
	}
	if obj.Status == resource.StatusExhausted {
		return s.fail(errors.New(errors.PhaseStream, errors.KindExhausted).
			ID(int(id)).Detail("object already consumed").Build())
	}

	st := &stream{dir: dir, state: streaming}
	if dir == resource.DirIn {
		st.reader, err = s.openReader(obj)
	} else {
		err = s.openSink(obj, st)
	}
	if err != nil {
		return s.fail(err)
	}
	s.streams[id] = st
	s.log.Debug("stream begun", zap.Int("id", int(id)), zap.Stringer("direction", dir))
	return nil
}

func (s *Session) openReader(obj *resource.Object) (*record.Reader, error) {
	switch obj.Method {
	case resource.MethodFile:
		openers := make([]record.Opener, len(obj.Paths))
		for i, p := range obj.Paths {
			openers[i] = record.FileOpener(p)
		}
		return record.NewReader(s.recOpts, openers...), nil
	case resource.MethodStream, resource.MethodDescriptor:
		return record.NewReader(s.recOpts, record.StreamOpener(obj.Reader)), nil
	}
	ds, ok := obj.Payload().(*payload.Dataset)
	if !ok {
		return nil, errors.InvalidData(errors.PhaseStream, "input holds no dataset")
	}
	return record.NewReader(s.recOpts, record.DatasetOpeners(ds)...), nil
}

func (s *Session) openSink(obj *resource.Object, st *stream) error {
	switch obj.Method {
	case resource.MethodFile:
		f, err := os.Create(obj.Paths[0])
		if err != nil {
			return errors.IO(errors.PhaseStream, obj.Paths[0], err)
		}
		st.sink = record.NewTextSink(f, f, s.recOpts)
		return nil
	case resource.MethodStream, resource.MethodDescriptor:
		st.sink = record.NewTextSink(obj.Writer, nil, s.recOpts)
		return nil
	}
	ds, _ := obj.Payload().(*payload.Dataset)
	if ds == nil {
		ds = &payload.Dataset{}
	}
	st.ds = ds
	st.sink = record.NewDatasetSink(ds)
	return nil
}

// active returns the open stream for id in direction dir.
func (s *Session) active(id resource.ID, dir resource.Direction) (*resource.Object, *stream, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseStream)
	if err != nil {
		return nil, nil, s.fail(err)
	}
	st := s.streams[id]
	if st == nil || st.state != streaming {
		return nil, nil, s.fail(errors.WrongAccessOrder(errors.PhaseStream, int(id), "no stream begun"))
	}
	if st.dir != dir {
		return nil, nil, s.fail(errors.New(errors.PhaseStream, errors.KindBadDirection).
			ID(int(id)).Detail("stream is %v", st.dir).Build())
	}
	return obj, st, nil
}

// GetRecord reads the next record of an input stream.
func (s *Session) GetRecord(id resource.ID) (record.Record, error) {
	obj, st, err := s.active(id, resource.DirIn)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := st.reader.Next()
	if err != nil {
		return record.Record{}, s.fail(err)
	}
	s.objects.SetStatus(obj, resource.StatusActive)
	if rec.Kind == record.KindEndOfSet {
		s.objects.SetStatus(obj, resource.StatusExhausted)
	}
	return rec, nil
}

// PutRecord writes one record to an output stream.
func (s *Session) PutRecord(id resource.ID, mode record.WriteMode, rec record.Record) error {
	obj, st, err := s.active(id, resource.DirOut)
	if err != nil {
		return err
	}
	if err := st.sink.Put(mode, rec); err != nil {
		return s.fail(err)
	}
	st.written = true
	obj.MarkWritten()
	s.objects.SetStatus(obj, resource.StatusActive)
	return nil
}

// EndIO finishes a stream. Ending an already ended stream does nothing.
func (s *Session) EndIO(id resource.ID) error {
	if err := s.check(); err != nil {
		return err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseStream)
	if err != nil {
		return s.fail(err)
	}
	st := s.streams[id]
	if st == nil {
		return s.fail(errors.WrongAccessOrder(errors.PhaseStream, int(id), "stream never begun"))
	}
	if st.state == ended {
		return nil
	}
	return s.fail(s.finish(obj, st))
}

// finish closes the reader or sink and any broker-owned stream.
func (s *Session) finish(obj *resource.Object, st *stream) error {
	st.state = ended
	var first error
	if st.reader != nil {
		first = st.reader.Close()
	}
	if st.sink != nil {
		if err := st.sink.Close(); err != nil && first == nil {
			first = err
		}
		if st.ds != nil && st.written {
			obj.SetPayload(st.ds)
		}
	}
	closed, err := obj.CloseStream()
	if err != nil && first == nil {
		first = errors.IO(errors.PhaseStream, obj.Name(), err)
	}
	s.log.Debug("stream ended", zap.Int("id", int(obj.ID)), zap.Bool("closed", closed))
	return first
}
