package resource

import (
	"io"
	"os"

	"github.com/wippyai/databroker/payload"
)

// Spec describes an object to register.
type Spec struct {
	// Payload is the data for memory methods. Required for inputs; outputs
	// may leave it nil and the broker allocates on first write.
	Payload payload.Payload
	// Stream is an io.Reader for inputs or an io.Writer for outputs.
	Stream any
	// Descriptor is an already-open file the caller keeps ownership of.
	Descriptor *os.File
	// Paths lists files to read in order, or the single file to write.
	Paths     []string
	Region    []float64
	Family    payload.Family
	Geometry  Geometry
	Direction Direction
	Method    Method
	// TakeStream hands the stream or descriptor to the broker, which
	// closes it once when the object is finished with.
	TakeStream bool
}

// Object is a registered resource.
type Object struct {
	payload   payload.Payload
	Reader    io.Reader
	Writer    io.Writer
	File      *os.File
	Paths     []string
	Region    []float64
	ID        ID
	handle    Handle
	Family    payload.Family
	Geometry  Geometry
	Direction Direction
	Method    Method
	Status    Status
	Ownership Ownership

	closeOnDestroy bool
	streamClosed   bool
	copied         bool
	hasData        bool
}

// Payload returns the object's data. The first call on a duplicated input
// takes the broker's private copy; later calls return that copy.
func (o *Object) Payload() payload.Payload {
	if o.Method == MethodDuplicate && o.Direction == DirIn && !o.copied && o.payload != nil {
		o.payload = o.payload.Clone()
		o.copied = true
	}
	return o.payload
}

// SetPayload stores produced data on an output object and marks it ready
// for retrieval.
func (o *Object) SetPayload(p payload.Payload) {
	o.payload = p
	o.hasData = true
}

// MarkWritten records that a module produced data for the object.
func (o *Object) MarkWritten() { o.hasData = true }

// HasData reports whether an output object holds data produced by a module.
func (o *Object) HasData() bool { return o.hasData }

// CloseOnDestroy reports whether the broker is responsible for closing the
// object's stream.
func (o *Object) CloseOnDestroy() bool { return o.closeOnDestroy }

// Name returns a printable name for logs and errors.
func (o *Object) Name() string {
	switch o.Method {
	case MethodFile:
		if len(o.Paths) > 0 {
			return o.Paths[0]
		}
	case MethodDescriptor:
		if o.File != nil {
			return o.File.Name()
		}
	}
	return o.Method.String()
}

// CloseStream closes a broker-owned stream at most once.
func (o *Object) CloseStream() (bool, error) {
	if !o.closeOnDestroy || o.streamClosed {
		return false, nil
	}
	o.streamClosed = true

	var c io.Closer
	switch {
	case o.File != nil:
		c = o.File
	case o.Direction == DirIn:
		c, _ = o.Reader.(io.Closer)
	default:
		c, _ = o.Writer.(io.Closer)
	}
	if c == nil {
		return false, nil
	}
	return true, c.Close()
}

// release frees whatever the broker owns. Borrowed payloads are never
// touched.
func (o *Object) release() (released, closed bool, err error) {
	uncopied := o.Method == MethodDuplicate && o.Direction == DirIn && !o.copied
	if o.Ownership == Owned && o.payload != nil && !uncopied {
		o.payload.Release()
		released = true
	}
	o.payload = nil
	closed, err = o.CloseStream()
	return released, closed, err
}
