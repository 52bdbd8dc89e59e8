package resource

import (
	"io"
	"os"
	"sync"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/token"
)

// Registry maps object IDs to registered objects for one session.
type Registry struct {
	arena     *Arena[*Object]
	ids       map[ID]Handle
	observers []Observer
	obsMu     sync.RWMutex
	next      ID
}

// NewRegistry creates an empty registry whose first ID is 1.
func NewRegistry() *Registry {
	return &Registry{
		arena: NewArena[*Object](),
		ids:   make(map[ID]Handle),
	}
}

// Register validates spec and stores a new object.
// Checks run in order: family, direction, method, then method-specific
// requirements. A file spec naming a live token returns that token's ID.
func (r *Registry) Register(spec Spec) (ID, error) {
	if !spec.Family.Valid() {
		return 0, errors.New(errors.PhaseRegister, errors.KindBadFamily).
			Value(spec.Family).Detail("unknown family %v", spec.Family).Build()
	}
	if spec.Direction != DirIn && spec.Direction != DirOut {
		return 0, errors.New(errors.PhaseRegister, errors.KindBadDirection).
			Value(spec.Direction).Detail("direction must be in or out").Build()
	}
	if _, ok := methodNames[spec.Method]; !ok {
		return 0, errors.New(errors.PhaseRegister, errors.KindBadMethod).
			Value(spec.Method).Detail("unknown method %v", spec.Method).Build()
	}
	if spec.Method == MethodCopyOnOutput && spec.Direction == DirIn {
		return 0, errors.New(errors.PhaseRegister, errors.KindBadMethod).
			Detail("copy-on-output is only valid for outputs").Build()
	}
	if spec.Geometry > GeometrySurface {
		return 0, errors.InvalidInput(errors.PhaseRegister, "unknown geometry")
	}
	if n := len(spec.Region); n != 0 && n != 4 && n != 6 {
		return 0, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Value(spec.Region).Detail("region needs 4 or 6 values, got %d", n).Build()
	}

	obj := &Object{
		Family:    spec.Family,
		Geometry:  spec.Geometry,
		Direction: spec.Direction,
		Method:    spec.Method,
		Region:    append([]float64(nil), spec.Region...),
		Status:    StatusUnused,
	}

	switch spec.Method {
	case MethodFile:
		if len(spec.Paths) == 1 && token.Is(spec.Paths[0]) {
			return r.existing(spec.Paths[0])
		}
		if err := checkPaths(spec); err != nil {
			return 0, err
		}
		obj.Paths = append([]string(nil), spec.Paths...)
		obj.Ownership = Owned
	case MethodStream:
		if spec.Direction == DirIn {
			rd, ok := spec.Stream.(io.Reader)
			if !ok {
				return 0, errors.InvalidInput(errors.PhaseRegister, "input stream must be an io.Reader")
			}
			obj.Reader = rd
		} else {
			w, ok := spec.Stream.(io.Writer)
			if !ok {
				return 0, errors.InvalidInput(errors.PhaseRegister, "output stream must be an io.Writer")
			}
			obj.Writer = w
		}
		obj.closeOnDestroy = spec.TakeStream
	case MethodDescriptor:
		if spec.Descriptor == nil {
			return 0, errors.InvalidInput(errors.PhaseRegister, "descriptor method needs an open file")
		}
		obj.File = spec.Descriptor
		if spec.Direction == DirIn {
			obj.Reader = spec.Descriptor
		} else {
			obj.Writer = spec.Descriptor
		}
		obj.closeOnDestroy = spec.TakeStream
	default:
		if spec.Payload == nil && spec.Direction == DirIn {
			return 0, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
				Detail("%v input needs a payload", spec.Method).Build()
		}
		if spec.Payload != nil && spec.Payload.Family() != spec.Family {
			return 0, errors.New(errors.PhaseRegister, errors.KindBadFamily).
				Detail("payload is a %v, object registered as %v", spec.Payload.Family(), spec.Family).Build()
		}
		obj.payload = spec.Payload
		if spec.Method != MethodReference {
			obj.Ownership = Owned
		}
	}
	if obj.closeOnDestroy {
		obj.Ownership = Owned
	}

	if r.next >= token.MaxID {
		return 0, errors.New(errors.PhaseRegister, errors.KindAllocation).
			Detail("object id space exhausted: ids above %d cannot be named by a token", token.MaxID).Build()
	}
	h, err := r.arena.Create(obj)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseRegister, errors.KindAllocation, err, "store object")
	}
	r.next++
	obj.ID = r.next
	obj.handle = h
	r.ids[obj.ID] = h

	r.notify(Event{Type: EventRegistered, Object: obj})
	return obj.ID, nil
}

func (r *Registry) existing(tok string) (ID, error) {
	n, err := token.Decode(tok)
	if err != nil {
		return 0, err
	}
	if _, ok := r.ids[ID(n)]; !ok {
		return 0, errors.New(errors.PhaseRegister, errors.KindTokenDecodeMismatch).
			ID(n).Name(tok).Detail("token does not name a live object").Build()
	}
	return ID(n), nil
}

func checkPaths(spec Spec) error {
	if len(spec.Paths) == 0 {
		return errors.InvalidInput(errors.PhaseRegister, "file method needs a path")
	}
	if spec.Direction == DirOut {
		if len(spec.Paths) > 1 {
			return errors.InvalidInput(errors.PhaseRegister, "output file takes exactly one path")
		}
		return nil
	}
	for _, p := range spec.Paths {
		st, err := os.Stat(p)
		if err != nil {
			return errors.IO(errors.PhaseRegister, p, err)
		}
		if st.IsDir() {
			return errors.New(errors.PhaseRegister, errors.KindIO).
				Name(p).Detail("is a directory").Build()
		}
	}
	return nil
}

// Get returns the live object with the given ID.
func (r *Registry) Get(id ID) (*Object, bool) {
	h, ok := r.ids[id]
	if !ok {
		return nil, false
	}
	return r.arena.Get(h)
}

// Lookup is Get with an ObjectNotFound error tagged with phase.
func (r *Registry) Lookup(id ID, phase errors.Phase) (*Object, error) {
	obj, ok := r.Get(id)
	if !ok {
		return nil, errors.ObjectNotFound(phase, int(id))
	}
	return obj, nil
}

// Retrieve hands an output object's result to the caller.
//
// File, stream and descriptor outputs return their path, writer or file
// every time. Memory outputs return their payload once, after a module
// wrote it: reference outputs return the payload itself, duplicate and
// copy-on-output return a copy the caller owns.
func (r *Registry) Retrieve(id ID) (any, error) {
	obj, err := r.Lookup(id, errors.PhaseRetrieve)
	if err != nil {
		return nil, err
	}
	if obj.Direction != DirOut {
		return nil, errors.New(errors.PhaseRetrieve, errors.KindBadDirection).
			ID(int(id)).Detail("only outputs can be retrieved").Build()
	}

	switch obj.Method {
	case MethodFile:
		return obj.Paths[0], nil
	case MethodStream:
		return obj.Writer, nil
	case MethodDescriptor:
		return obj.File, nil
	}

	if obj.Status == StatusExhausted {
		return nil, errors.New(errors.PhaseRetrieve, errors.KindExhausted).
			ID(int(id)).Detail("output already retrieved").Build()
	}
	if !obj.hasData {
		return nil, errors.WrongAccessOrder(errors.PhaseRetrieve, int(id), "no module has written this output")
	}

	p := obj.payload
	if obj.Ownership == Owned {
		p = p.Clone()
	}
	r.SetStatus(obj, StatusExhausted)
	return p, nil
}

// SetStatus moves obj forward in its lifecycle. Backward moves are ignored.
func (r *Registry) SetStatus(obj *Object, s Status) {
	if s <= obj.Status {
		return
	}
	obj.Status = s
	switch s {
	case StatusActive:
		r.notify(Event{Type: EventActivated, Object: obj})
	case StatusExhausted:
		r.notify(Event{Type: EventExhausted, Object: obj})
	}
}

// Destroy releases an object and frees its ID. The ID is not reused.
func (r *Registry) Destroy(id ID) error {
	h, ok := r.ids[id]
	if !ok {
		return errors.ObjectNotFound(errors.PhaseDestroy, int(id))
	}
	obj, ok := r.arena.Drop(h)
	delete(r.ids, id)
	if !ok {
		return errors.ObjectNotFound(errors.PhaseDestroy, int(id))
	}

	released, closed, err := obj.release()
	r.notify(Event{Type: EventDestroyed, Object: obj, Released: released, Closed: closed})
	if err != nil {
		return errors.IO(errors.PhaseDestroy, obj.Name(), err)
	}
	return nil
}

// Each iterates over live objects in registration slot order.
func (r *Registry) Each(fn func(*Object) bool) {
	r.arena.Each(func(_ Handle, obj *Object) bool {
		return fn(obj)
	})
}

// IDs returns the live IDs in ascending order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.ids))
	for id := ID(1); id <= r.next; id++ {
		if _, ok := r.ids[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	return r.arena.Len()
}

// Close destroys every object and stops accepting registrations.
// The first release error is returned; all objects are destroyed regardless.
func (r *Registry) Close() error {
	var first error
	for _, id := range r.IDs() {
		if err := r.Destroy(id); err != nil && first == nil {
			first = err
		}
	}
	if err := r.arena.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnResourceEvent(e)
	}
}
