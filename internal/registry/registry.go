// Package registry correlates hardware-returned solutions with outstanding
// work. The hardware tags each work item with a small bounded ID; IDs are
// reused cyclically over the device's lifetime, so a slot holds only the
// most recently stored assignment for its ID.
package registry

import (
	"sync"

	"github.com/bardlex/goasic/internal/work"
)

// Registry is a fixed-capacity slot table mapping work IDs to assignments.
//
// Capacity equals the hardware-reported ID limit. There is no "full" error
// path: hardware backpressure bounds in-flight work to at most the
// capacity, so the ring always has room. Storing into a slot silently
// invalidates its previous occupant; late solutions for the old occupant
// resolve as misses.
type Registry struct {
	mu    sync.Mutex
	slots []*work.Assignment
	next  int
}

// New creates a registry sized to the hardware work ID limit.
func New(limit int) *Registry {
	if limit <= 0 {
		panic("registry: work ID limit must be positive")
	}
	return &Registry{
		slots: make([]*work.Assignment, limit),
	}
}

// Capacity returns the work ID limit the registry was built with.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Store assigns the next cyclic work ID to the assignment, overwriting any
// prior occupant of that slot, and returns the assigned ID.
func (r *Registry) Store(a *work.Assignment) work.WorkID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := work.WorkID(r.next)
	r.slots[r.next] = a
	r.next = (r.next + 1) % len(r.slots)
	return id
}

// Resolve returns the assignment currently stored under the ID. The second
// return value is false when the slot was never populated, or when the ID
// falls outside the hardware limit (a corrupt hardware reply).
func (r *Registry) Resolve(id work.WorkID) (*work.Assignment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(id) >= len(r.slots) {
		return nil, false
	}
	a := r.slots[id]
	return a, a != nil
}
