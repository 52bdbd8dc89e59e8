package resource

import "fmt"

// ID identifies a resource object within one session. IDs start at 1 and
// are never handed out twice by the same registry.
type ID int

// Handle is an arena slot reference: generation in the high 32 bits and
// slot+1 in the low 32 bits. Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) slot() int { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32 { return uint32(h >> 32) }
func (h Handle) String() string { return fmt.Sprintf("%d@%d", h.slot(), h.gen()) }

// Direction tells whether a module reads or writes the object.
type Direction uint8

const (
	DirIn Direction = iota + 1
	DirOut
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Method tells how the object's data is reached.
type Method uint8

const (
	MethodFile Method = iota + 1
	MethodStream
	MethodDescriptor
	MethodReference
	MethodDuplicate
	MethodCopyOnOutput
)

var methodNames = map[Method]string{
	MethodFile:         "file",
	MethodStream:       "stream",
	MethodDescriptor:   "descriptor",
	MethodReference:    "reference",
	MethodDuplicate:    "duplicate",
	MethodCopyOnOutput: "copy-on-output",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// InMemory reports whether the method hands a payload across directly.
func (m Method) InMemory() bool {
	return m == MethodReference || m == MethodDuplicate || m == MethodCopyOnOutput
}

// Geometry is an advisory hint about what a dataset's records describe.
type Geometry uint8

const (
	GeometryNone Geometry = iota
	GeometryPoint
	GeometryLine
	GeometryPolygon
	GeometrySurface
)

// Status is the object lifecycle; it only moves forward.
type Status uint8

const (
	StatusUnused Status = iota
	StatusActive
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusUnused:
		return "unused"
	case StatusActive:
		return "active"
	case StatusExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Ownership says whether the broker releases the payload on destroy.
type Ownership uint8

const (
	Borrowed Ownership = iota
	Owned
)

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventActivated
	EventExhausted
	EventDestroyed
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventActivated:
		return "activated"
	case EventExhausted:
		return "exhausted"
	case EventDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Event represents a resource lifecycle event.
type Event struct {
	Object *Object
	Type   EventType
	// Released is set on EventDestroyed when an owned payload was released.
	Released bool
	// Closed is set on EventDestroyed when the broker closed a stream.
	Closed bool
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}
