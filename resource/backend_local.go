package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("resource arena closed")

// Arena is an in-memory slot store with generation-checked handles.
// A freed slot is reused, but its generation moves on so stale handles
// never resolve to the new occupant.
type Arena[T any] struct {
	entries  []slot[T]
	freeList []int
	mu       sync.RWMutex
	live     int
	closed   bool
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{
		entries:  make([]slot[T], 0, 64),
		freeList: make([]int, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (a *Arena[T]) Create(value T) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}

	a.live++
	if len(a.freeList) > 0 {
		idx := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		e := &a.entries[idx]
		e.value = value
		e.valid = true
		return makeHandle(idx, e.gen), nil
	}

	a.entries = append(a.entries, slot[T]{value: value, valid: true})
	return makeHandle(len(a.entries)-1, 0), nil
}

// Get retrieves a value by handle.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	idx := h.slot()
	if idx < 0 || idx >= len(a.entries) {
		return zero, false
	}
	e := a.entries[idx]
	if !e.valid || e.gen != h.gen() {
		return zero, false
	}
	return e.value, true
}

// Drop frees the slot and returns the value it held.
func (a *Arena[T]) Drop(h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := h.slot()
	if idx < 0 || idx >= len(a.entries) {
		return zero, false
	}
	e := &a.entries[idx]
	if !e.valid || e.gen != h.gen() {
		return zero, false
	}

	value := e.value
	e.value = zero
	e.valid = false
	e.gen++
	a.live--
	a.freeList = append(a.freeList, idx)
	return value, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Each iterates over live values in slot order.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i, e := range a.entries {
		if e.valid {
			if !fn(makeHandle(i, e.gen), e.value) {
				break
			}
		}
	}
}

// Close drops every value and refuses further inserts.
func (a *Arena[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.entries = nil
	a.freeList = nil
	a.live = 0
	return nil
}
