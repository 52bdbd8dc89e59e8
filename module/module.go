package module

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

// Mode tells a module entry what to do.
type Mode int

const (
	// ModeRun executes the module.
	ModeRun Mode = iota
	// ModeUsage asks the module to describe its full usage.
	ModeUsage
	// ModeSynopsis asks for the one-line synopsis.
	ModeSynopsis
	// ModeExist is answered by the dispatcher: status 0 if the module exists.
	ModeExist
	// ModePurpose is answered by the dispatcher from the descriptor.
	ModePurpose
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeUsage:
		return "usage"
	case ModeSynopsis:
		return "synopsis"
	case ModeExist:
		return "exist"
	case ModePurpose:
		return "purpose"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Status codes shared by modules and the dispatcher. Modules may return
// any other value; the dispatcher passes it through unchanged.
const (
	StatusOK     = 0
	StatusFailed = 1
	// StatusDispatch is returned together with an error when the call never
	// reached the module entry.
	StatusDispatch = -1
)

// Key declares that a flag's argument names a resource.
type Key struct {
	Flag      byte
	Family    payload.Family
	Direction resource.Direction
}

// Host is the broker surface a module entry works against.
type Host interface {
	Register(spec resource.Spec) (resource.ID, error)
	Destroy(id resource.ID) error
	DecodeToken(s string) (resource.ID, error)
	Object(id resource.ID) (*resource.Object, error)

	// Input returns the whole payload of an input object.
	Input(id resource.ID) (payload.Payload, error)
	// Output hands a whole payload to an output object.
	Output(id resource.ID, p payload.Payload) error

	BeginIO(id resource.ID, dir resource.Direction) error
	GetRecord(id resource.ID) (record.Record, error)
	PutRecord(id resource.ID, mode record.WriteMode, rec record.Record) error
	EndIO(id resource.ID) error

	Logger() *zap.Logger
}

// Binding ties one keyed option to the resource it names.
type Binding struct {
	Key    Key
	Option int
	ID     resource.ID
	// Temporary is set when the dispatcher registered a file for the call;
	// such objects are destroyed when the module returns.
	Temporary bool
}

// Args is what a module entry receives.
type Args struct {
	Options  option.List
	Bindings []Binding
}

// Inputs returns the IDs bound to input keys, in option order.
func (a *Args) Inputs() []resource.ID {
	return a.ids(resource.DirIn)
}

// Output returns the first ID bound to an output key.
func (a *Args) Output() (resource.ID, bool) {
	ids := a.ids(resource.DirOut)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Bound returns the IDs bound to flag.
func (a *Args) Bound(flag byte) []resource.ID {
	var out []resource.ID
	for _, b := range a.Bindings {
		if b.Key.Flag == flag {
			out = append(out, b.ID)
		}
	}
	return out
}

func (a *Args) ids(dir resource.Direction) []resource.ID {
	var out []resource.ID
	seen := make(map[resource.ID]bool)
	for _, b := range a.Bindings {
		if b.Key.Direction != dir || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, b.ID)
	}
	return out
}

// Entry is a module's callable.
type Entry func(ctx context.Context, h Host, mode Mode, args *Args) int

// Descriptor registers a module under a name.
type Descriptor struct {
	Entry   Entry
	Name    string
	Purpose string
	// Usage is printed for ModeUsage by modules that choose to.
	Usage string
	Keys  []Key
	// Dynamic is set for modules loaded at runtime.
	Dynamic bool
}

// KeyFor returns the key declared for flag.
func (d *Descriptor) KeyFor(flag byte) (Key, bool) {
	for _, k := range d.Keys {
		if k.Flag == flag {
			return k, true
		}
	}
	return Key{}, false
}
