package client

import "sync"

// Observer is notified of group membership changes. The scheduler registry
// implements it so group edits keep scheduling metadata in sync.
type Observer interface {
	ClientAdded(h *Handle)
	ClientRemoved(h *Handle)
}

// Group is an ordered collection of client handles sharing one hardware
// chain's midstate-count policy. Order is operator-significant (it drives
// move semantics); scheduling fairness does not depend on it.
type Group struct {
	mu            sync.Mutex
	handles       []*Handle
	midstateCount int
	observer      Observer
}

// NewGroup creates a group for chains configured with the given midstate
// count. observer may be nil.
func NewGroup(midstateCount int, observer Observer) *Group {
	return &Group{
		midstateCount: midstateCount,
		observer:      observer,
	}
}

// Count returns the number of clients in the group.
func (g *Group) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

// IsEmpty reports whether the group has no clients.
func (g *Group) IsEmpty() bool {
	return g.Count() == 0
}

// Clients returns a snapshot of the group's handles in order.
func (g *Group) Clients() []*Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Handle, len(g.handles))
	copy(out, g.handles)
	return out
}

// AddClient appends the handle to the group, applies the group's midstate
// policy and enables the client if its descriptor asks for it. New clients
// always pass through the disabled state first.
func (g *Group) AddClient(h *Handle) *Handle {
	h.SetMidstatePolicy(g.midstateCount)
	_ = h.TryDisable()

	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()

	if g.observer != nil {
		g.observer.ClientAdded(h)
	}

	if h.Descriptor.Enable {
		_ = h.TryEnable()
	}

	return h
}

// RemoveClientAt removes the client at the index, disabling it first so
// the scheduler immediately stops selecting it. Returns ErrMissing for an
// out-of-range index.
func (g *Group) RemoveClientAt(index int) (*Handle, error) {
	g.mu.Lock()
	if index < 0 || index >= len(g.handles) {
		g.mu.Unlock()
		return nil, ErrMissing
	}
	h := g.handles[index]
	g.handles = append(g.handles[:index], g.handles[index+1:]...)
	g.mu.Unlock()

	_ = h.TryDisable()

	if g.observer != nil {
		g.observer.ClientRemoved(h)
	}

	return h, nil
}

// MoveClient moves the client at indexFrom to indexTo, shifting the
// clients in between. Returns ErrMissing when either index is out of
// range.
func (g *Group) MoveClient(indexFrom, indexTo int) (*Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.handles)
	if indexFrom < 0 || indexFrom >= n || indexTo < 0 || indexTo >= n {
		return nil, ErrMissing
	}

	h := g.handles[indexFrom]
	if indexFrom < indexTo {
		copy(g.handles[indexFrom:], g.handles[indexFrom+1:indexTo+1])
	} else if indexFrom > indexTo {
		copy(g.handles[indexTo+1:], g.handles[indexTo:indexFrom])
	}
	g.handles[indexTo] = h

	return h, nil
}

// Close disables and closes every client in the group. Each client is
// unregistered from the observer before its sink closes, so the scheduler
// stops routing to it first.
func (g *Group) Close() {
	for _, h := range g.Clients() {
		if g.observer != nil {
			g.observer.ClientRemoved(h)
		}
		h.Close()
	}

	g.mu.Lock()
	g.handles = nil
	g.mu.Unlock()
}
