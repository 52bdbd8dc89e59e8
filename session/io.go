package session

import (
	"github.com/wippyai/databroker/codec"
	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

// Input reads a whole input object. Datasets from several files or tables
// keep one table per sub-source. Streams can be read once; files and memory
// objects any number of times.
func (s *Session) Input(id resource.ID) (payload.Payload, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseCodec)
	if err != nil {
		return nil, s.fail(err)
	}
	if obj.Direction != resource.DirIn {
		return nil, s.fail(errors.New(errors.PhaseCodec, errors.KindBadDirection).
			ID(int(id)).Detail("only inputs can be read").Build())
	}
	if st := s.streams[id]; st != nil && st.state == streaming {
		return nil, s.fail(errors.WrongAccessOrder(errors.PhaseCodec, int(id), "object is streaming"))
	}

	var p payload.Payload
	switch obj.Method {
	case resource.MethodFile:
		p, err = s.readFiles(obj)
	case resource.MethodStream, resource.MethodDescriptor:
		if obj.Status == resource.StatusExhausted {
			return nil, s.fail(errors.New(errors.PhaseCodec, errors.KindExhausted).
				ID(int(id)).Detail("stream already consumed").Build())
		}
		p, err = s.decode(obj)
	default:
		p = obj.Payload()
	}
	if err != nil {
		return nil, s.fail(err)
	}
	s.objects.SetStatus(obj, resource.StatusExhausted)
	return p, nil
}

func (s *Session) readFiles(obj *resource.Object) (payload.Payload, error) {
	if obj.Family == payload.FamilyDataset {
		openers := make([]record.Opener, len(obj.Paths))
		for i, p := range obj.Paths {
			openers[i] = record.FileOpener(p)
		}
		return record.Collect(record.NewReader(s.recOpts, openers...))
	}
	if len(obj.Paths) != 1 {
		return nil, errors.New(errors.PhaseCodec, errors.KindInvalidInput).
			ID(int(obj.ID)).Detail("a %v is read from one file", obj.Family).Build()
	}
	return codec.Open(obj.Paths[0], obj.Family)
}

func (s *Session) decode(obj *resource.Object) (payload.Payload, error) {
	if obj.Family == payload.FamilyDataset {
		return codec.TableCodec{Options: s.recOpts}.Decode(obj.Reader)
	}
	c, err := codec.For(obj.Family)
	if err != nil {
		return nil, err
	}
	return c.Decode(obj.Reader)
}

// Output hands a whole payload to an output object. Files and streams are
// encoded at once; memory outputs keep p for Retrieve.
func (s *Session) Output(id resource.ID, p payload.Payload) error {
	if err := s.check(); err != nil {
		return err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseCodec)
	if err != nil {
		return s.fail(err)
	}
	if obj.Direction != resource.DirOut {
		return s.fail(errors.New(errors.PhaseCodec, errors.KindBadDirection).
			ID(int(id)).Detail("only outputs can be written").Build())
	}
	if p == nil || p.Family() != obj.Family {
		return s.fail(errors.New(errors.PhaseCodec, errors.KindBadFamily).
			ID(int(id)).Detail("output expects a %v", obj.Family).Build())
	}
	if st := s.streams[id]; st != nil && st.state == streaming {
		return s.fail(errors.WrongAccessOrder(errors.PhaseCodec, int(id), "object is streaming"))
	}
	if obj.Status == resource.StatusExhausted {
		return s.fail(errors.New(errors.PhaseCodec, errors.KindExhausted).
			ID(int(id)).Detail("output already retrieved").Build())
	}

	switch obj.Method {
	case resource.MethodFile:
		err = s.save(obj.Paths[0], p)
	case resource.MethodStream, resource.MethodDescriptor:
		err = s.encode(obj, p)
		if err == nil {
			obj.MarkWritten()
		}
	default:
		obj.SetPayload(p)
	}
	if err != nil {
		return s.fail(err)
	}
	s.objects.SetStatus(obj, resource.StatusActive)
	return nil
}

func (s *Session) save(path string, p payload.Payload) error {
	if p.Family() != payload.FamilyDataset {
		return codec.Save(path, p)
	}
	c := codec.TableCodec{Options: s.recOpts}
	return codec.SaveWith(c, path, p)
}

func (s *Session) encode(obj *resource.Object, p payload.Payload) error {
	if obj.Family == payload.FamilyDataset {
		return codec.TableCodec{Options: s.recOpts}.Encode(obj.Writer, p)
	}
	c, err := codec.For(obj.Family)
	if err != nil {
		return err
	}
	return c.Encode(obj.Writer, p)
}
