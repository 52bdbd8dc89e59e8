package session

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
	"github.com/wippyai/databroker/token"
)

// DefaultPad is the grid padding used when WithPad is not given.
const DefaultPad = 2

// Flags alter session behaviour.
type Flags uint

const (
	// FlagLogErrors logs every failed operation at warn level instead of debug.
	FlagLogErrors Flags = 1 << iota
)

// Option configures a Session.
type Option func(*Session)

// WithPad sets the grid padding reported to modules.
func WithPad(pad int) Option {
	return func(s *Session) { s.pad = pad }
}

// WithFlags sets session flags.
func WithFlags(f Flags) Option {
	return func(s *Session) { s.flags = f }
}

// WithModules installs a shared module registry. Without it each session
// gets an empty registry of its own, closed with the session.
func WithModules(r *module.Registry) Option {
	return func(s *Session) { s.modules = r }
}

// WithLogger sets the base logger. The session tags it with its name and id.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithRecordOptions sets how table text is classified and written.
func WithRecordOptions(o record.Options) Option {
	return func(s *Session) { s.recOpts = o }
}

// Session owns a set of registered objects and runs modules against them.
//
// A session is used from one goroutine at a time. Separate sessions share
// nothing unless the caller hands them the same registry through
// WithModules, and may run concurrently.
type Session struct {
	objects *resource.Registry
	modules *module.Registry
	streams map[resource.ID]*stream
	log     *zap.Logger
	name    string
	recOpts record.Options
	id      uuid.UUID
	last    [2]errors.Kind
	pad     int
	flags   Flags
	closed  bool

	// ownsModules is set when the session created its registry.
	ownsModules bool
}

// New creates a session.
func New(name string, opts ...Option) (*Session, error) {
	s := &Session{
		name:    name,
		id:      uuid.New(),
		pad:     DefaultPad,
		recOpts: record.DefaultOptions(),
		streams: make(map[resource.ID]*stream),
		objects: resource.NewRegistry(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.pad < 0 {
		return nil, errors.New(errors.PhaseSession, errors.KindInvalidInput).
			Value(s.pad).Detail("pad must not be negative").Build()
	}
	if s.modules == nil {
		s.modules = module.NewRegistry()
		s.ownsModules = true
	}
	if s.log == nil {
		s.log = Logger()
	}
	s.log = s.log.With(zap.String("session", name), zap.String("instance", s.id.String()))
	s.objects.Subscribe(&logObserver{log: s.log})

	s.log.Debug("session created", zap.Int("pad", s.pad))
	return s, nil
}

// Name returns the name the session was created with.
func (s *Session) Name() string { return s.name }

// ID returns the session's unique instance id.
func (s *Session) ID() uuid.UUID { return s.id }

// Pad returns the grid padding.
func (s *Session) Pad() int { return s.pad }

// Flags returns the session flags.
func (s *Session) Flags() Flags { return s.flags }

// Logger returns the session's tagged logger.
func (s *Session) Logger() *zap.Logger { return s.log }

// Modules returns the module registry the session dispatches to.
func (s *Session) Modules() *module.Registry { return s.modules }

// Close ends open streams and destroys every remaining object. Reference
// payloads are left to their owners.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return errors.NotASession()
	}
	var first error
	for _, id := range s.objects.IDs() {
		if st := s.streams[id]; st != nil && st.state == streaming {
			obj, _ := s.objects.Get(id)
			if err := s.finish(obj, st); err != nil && first == nil {
				first = err
			}
		}
	}
	if err := s.objects.Close(); err != nil && first == nil {
		first = err
	}
	if s.ownsModules {
		if err := s.modules.Close(context.Background()); err != nil && first == nil {
			first = err
		}
	}
	s.streams = nil
	s.closed = true
	s.log.Debug("session closed")
	return first
}

// LastErrors returns the kinds of the two most recent failures, newest first.
func (s *Session) LastErrors() [2]errors.Kind {
	return s.last
}

// fail records err and returns it unchanged.
func (s *Session) fail(err error) error {
	if err == nil {
		return nil
	}
	s.last[1] = s.last[0]
	s.last[0] = errors.KindOf(err)
	if s.flags&FlagLogErrors != 0 {
		s.log.Warn("operation failed", zap.Error(err))
	} else {
		s.log.Debug("operation failed", zap.Error(err))
	}
	return err
}

func (s *Session) check() error {
	if s == nil || s.closed {
		return errors.NotASession()
	}
	return nil
}

// Register validates spec and stores a new object.
func (s *Session) Register(spec resource.Spec) (resource.ID, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	id, err := s.objects.Register(spec)
	if err != nil {
		return 0, s.fail(err)
	}
	return id, nil
}

// Object returns the live object with id.
func (s *Session) Object(id resource.ID) (*resource.Object, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	obj, err := s.objects.Lookup(id, errors.PhaseRetrieve)
	return obj, s.fail(err)
}

// Objects returns the live object IDs in ascending order.
func (s *Session) Objects() []resource.ID {
	if s.check() != nil {
		return nil
	}
	return s.objects.IDs()
}

// Retrieve hands an output's result to the caller. Memory outputs can be
// retrieved once; file, stream and descriptor outputs any number of times.
func (s *Session) Retrieve(id resource.ID) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if st := s.streams[id]; st != nil && st.state == streaming {
		return nil, s.fail(errors.WrongAccessOrder(errors.PhaseRetrieve, int(id), "output is still streaming"))
	}
	v, err := s.objects.Retrieve(id)
	if err != nil {
		return nil, s.fail(err)
	}
	return v, nil
}

// RetrieveAs retrieves an output and asserts its type.
func RetrieveAs[T any](s *Session, id resource.ID) (T, error) {
	var zero T
	v, err := s.Retrieve(id)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, s.fail(errors.New(errors.PhaseRetrieve, errors.KindBadFamily).
			ID(int(id)).Detail("retrieved %T", v).Build())
	}
	return t, nil
}

// Destroy ends any open stream on the object and removes it.
func (s *Session) Destroy(id resource.ID) error {
	if err := s.check(); err != nil {
		return err
	}
	var first error
	if st := s.streams[id]; st != nil {
		if st.state == streaming {
			if obj, ok := s.objects.Get(id); ok {
				first = s.finish(obj, st)
			}
		}
		delete(s.streams, id)
	}
	if err := s.objects.Destroy(id); err != nil {
		return s.fail(err)
	}
	return s.fail(first)
}

// EncodeToken returns the virtual name of a live object.
func (s *Session) EncodeToken(id resource.ID) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	if _, err := s.objects.Lookup(id, errors.PhaseToken); err != nil {
		return "", s.fail(err)
	}
	tok, err := token.Encode(int(id))
	return tok, s.fail(err)
}

// DecodeToken returns the ID a virtual name refers to. The object must be
// live in this session.
func (s *Session) DecodeToken(text string) (resource.ID, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	n, err := token.Decode(text)
	if err != nil {
		return 0, s.fail(err)
	}
	if _, ok := s.objects.Get(resource.ID(n)); !ok {
		return 0, s.fail(errors.New(errors.PhaseToken, errors.KindTokenDecodeMismatch).
			ID(n).Detail("no live object in session %q", s.name).Build())
	}
	return resource.ID(n), nil
}

// Resolve turns a module argument into an object. A token must name a live
// object of the given family and direction; anything else is registered as
// a file, which the caller then owns.
func (s *Session) Resolve(name string, family payload.Family, dir resource.Direction) (resource.ID, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if !token.Is(name) {
		return s.Register(resource.Spec{
			Family:    family,
			Direction: dir,
			Method:    resource.MethodFile,
			Paths:     []string{name},
		})
	}
	id, err := s.DecodeToken(name)
	if err != nil {
		return 0, err
	}
	obj, _ := s.objects.Get(id)
	if obj.Family != family {
		return 0, s.fail(errors.New(errors.PhaseToken, errors.KindBadFamily).
			ID(int(id)).Detail("object is a %v, wanted %v", obj.Family, family).Build())
	}
	if obj.Direction != dir {
		return 0, s.fail(errors.New(errors.PhaseToken, errors.KindBadDirection).
			ID(int(id)).Detail("object is an %v, wanted %v", obj.Direction, dir).Build())
	}
	return id, nil
}
