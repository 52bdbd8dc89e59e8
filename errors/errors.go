package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSession  Phase = "session"  // session lifecycle
	PhaseRegister Phase = "register" // resource registration
	PhaseRetrieve Phase = "retrieve" // output retrieval
	PhaseDestroy  Phase = "destroy"  // object release
	PhaseToken    Phase = "token"    // virtual name encode/decode
	PhaseOption   Phase = "option"   // option list handling
	PhaseStream   Phase = "stream"   // record-by-record I/O
	PhaseDispatch Phase = "dispatch" // module lookup and invocation
	PhaseLoad     Phase = "load"     // dynamic module loading
	PhaseCodec    Phase = "codec"    // whole-object read/write
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotASession         Kind = "not_a_session"
	KindBadFamily           Kind = "bad_family"
	KindBadDirection        Kind = "bad_direction"
	KindBadMethod           Kind = "bad_method"
	KindObjectNotFound      Kind = "object_not_found"
	KindWrongAccessOrder    Kind = "wrong_access_order"
	KindReadAfterEnd        Kind = "read_after_end"
	KindModuleNotFound      Kind = "module_not_found"
	KindTokenDecodeMismatch Kind = "token_decode_mismatch"
	KindAllocation          Kind = "allocation"
	KindNotAToken           Kind = "not_a_token"
	KindExhausted           Kind = "exhausted"
	KindInvalidInput        Kind = "invalid_input"
	KindOnlyOneAllowed      Kind = "only_one_allowed"
	KindIO                  Kind = "io"
	KindInvalidData         Kind = "invalid_data"
	KindRegistration        Kind = "registration"
)

// Error is the structured error type used throughout the broker
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Name   string
	Detail string
	ID     int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.ID > 0 {
		fmt.Fprintf(&b, " object %d", e.ID)
	}
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%q", e.Name))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase != "" && e.Phase != t.Phase {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind in any phase.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// ID sets the resource object the error refers to
func (b *Builder) ID(id int) *Builder {
	b.err.ID = id
	return b
}

// Name sets the module, option or file name involved
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NotASession is returned by every operation on a closed or nil session.
func NotASession() *Error {
	return &Error{
		Phase:  PhaseSession,
		Kind:   KindNotASession,
		Detail: "session is closed or was never created",
	}
}

// ObjectNotFound creates an error for an unknown or destroyed object ID.
func ObjectNotFound(phase Phase, id int) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindObjectNotFound,
		ID:    id,
	}
}

// WrongAccessOrder creates an error for an operation issued in the wrong state.
func WrongAccessOrder(phase Phase, id int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWrongAccessOrder,
		ID:     id,
		Detail: detail,
	}
}

// ModuleNotFound creates a dispatcher miss error.
func ModuleNotFound(name string) *Error {
	return &Error{
		Phase: PhaseDispatch,
		Kind:  KindModuleNotFound,
		Name:  name,
	}
}

// NotAToken creates an error for text that is not a virtual resource name.
func NotAToken(text string) *Error {
	preview := text
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseToken,
		Kind:   KindNotAToken,
		Detail: fmt.Sprintf("%q is not a virtual resource name", preview),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// IO wraps a failure of an underlying file or stream.
func IO(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindIO,
		Name:  name,
		Cause: cause,
	}
}

// Registration creates a module registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindRegistration,
		Name:   name,
		Detail: "register module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
