// Package resource tracks the data objects a session hands to modules.
//
// Every object gets a small integer ID on registration. IDs grow
// monotonically and are never reused, so a destroyed object's ID, and any
// virtual name encoding it, stays dead. Storage is an Arena of
// generation-checked handles:
//
//	reg := resource.NewRegistry()
//	id, err := reg.Register(resource.Spec{
//	    Family:    payload.FamilyDataset,
//	    Direction: resource.DirIn,
//	    Method:    resource.MethodReference,
//	    Payload:   ds,
//	})
//
// # Methods and ownership
//
//	file, stream, descriptor   data reached through a path or handle
//	reference                  payload shared with the caller, never released
//	duplicate                  broker works on its own copy and releases it
//	copy-on-output             output copied when handed back
//
// # Lifecycle
//
// An object starts unused, becomes active on first read or write and ends
// exhausted once consumed or retrieved. Status never moves backwards.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	reg.Subscribe(myObserver)
//
// EventDestroyed reports whether an owned payload was released and whether
// a stream was closed.
package resource
