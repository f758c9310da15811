// Package scheduler allocates hashboard capacity across registered clients
// in proportion to their quotas. Every client gets an equal percentage
// share; selection always picks the client furthest below its share, so
// actual work distribution converges on the quotas without any timers.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/log"
)

// Handle pairs a client with its scheduling state. The share is guarded by
// the registry lock; the work counter is atomic so the generation loop can
// bump it without taking the lock.
type Handle struct {
	clientHandle *client.Handle

	mu              sync.Mutex
	percentageShare float64

	generatedWork atomic.Uint64
}

func newHandle(ch *client.Handle) *Handle {
	return &Handle{clientHandle: ch}
}

// Client returns the wrapped client handle.
func (h *Handle) Client() *client.Handle {
	return h.clientHandle
}

// PercentageShare returns the client's current quota as a fraction of the
// total capacity.
func (h *Handle) PercentageShare() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.percentageShare
}

func (h *Handle) setPercentageShare(share float64) {
	h.mu.Lock()
	h.percentageShare = share
	h.mu.Unlock()
}

// GeneratedWork returns the number of assignments issued to this client
// since the counters were last reset.
func (h *Handle) GeneratedWork() uint64 {
	return h.generatedWork.Load()
}

// AddGeneratedWork credits issued assignments against the client's quota.
func (h *Handle) AddGeneratedWork(n uint64) {
	h.generatedWork.Add(n)
}

func (h *Handle) resetGeneratedWork() {
	h.generatedWork.Store(0)
}

// eligible reports whether the scheduler may select this client. A running
// client without a job cannot generate work yet, so it must not win
// selection and stall the generation loop.
func (h *Handle) eligible() bool {
	return h.clientHandle.IsRunning() && h.clientHandle.HasJob()
}

// Registry tracks the active clients and their quotas. Membership changes
// recalculate every share; only registration resets the work counters, so
// an unregistered client's past consumption still weighs on the remaining
// clients until the ratios even out.
type Registry struct {
	mu     sync.Mutex
	list   []*Handle
	logger *log.Logger
}

// NewRegistry creates an empty scheduler registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{logger: logger.WithComponent("scheduler")}
}

// Register adds a client to the scheduler and recalculates all quotas,
// resetting the work counters so every client restarts from a clean slate.
// Registering an already-present client returns its existing handle.
func (r *Registry) Register(ch *client.Handle) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexOfLocked(ch.Identity()); idx >= 0 {
		return r.list[idx]
	}

	h := newHandle(ch)
	r.list = append(r.list, h)
	r.recalculateQuotasLocked(true)
	return h
}

// Unregister removes the client with the given identity and recalculates
// the remaining quotas. Counters are deliberately not reset: the departed
// client's share is redistributed, but past consumption still counts.
// Returns client.ErrMissing when the identity is not registered.
func (r *Registry) Unregister(identity work.SourceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOfLocked(identity)
	if idx < 0 {
		return client.ErrMissing
	}

	r.list = append(r.list[:idx], r.list[idx+1:]...)
	r.recalculateQuotasLocked(false)
	return nil
}

// Reorder replaces the scheduler's client order with the given one. The
// requested order must be exactly the current membership: a client absent
// from the registry yields client.ErrMissing, while duplicates or a length
// mismatch yield client.ErrAdditional. On any error the order is unchanged.
func (r *Registry) Reorder(order []*client.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(order) != len(r.list) {
		return client.ErrAdditional
	}

	used := make([]bool, len(r.list))
	next := make([]*Handle, 0, len(r.list))

	for _, ch := range order {
		found := -1
		duplicate := false
		for i, h := range r.list {
			if h.clientHandle.Identity() != ch.Identity() {
				continue
			}
			if used[i] {
				duplicate = true
				continue
			}
			found = i
			break
		}
		if found < 0 {
			if duplicate {
				return client.ErrAdditional
			}
			return client.ErrMissing
		}
		used[found] = true
		next = append(next, r.list[found])
	}

	r.list = next
	return nil
}

// SelectClient picks the eligible client with the largest quota deficit,
// breaking ties by registry order. Returns nil when no client is eligible.
func (r *Registry) SelectClient() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total uint64
	for _, h := range r.list {
		total += h.GeneratedWork()
	}

	var best *Handle
	bestDeficit := 0.0
	for _, h := range r.list {
		if !h.eligible() {
			continue
		}

		deficit := h.PercentageShare()
		if total > 0 {
			deficit -= float64(h.GeneratedWork()) / float64(total)
		}

		if best == nil || deficit > bestDeficit {
			best = h
			bestDeficit = deficit
		}
	}
	return best
}

// Handles returns a snapshot of the scheduler handles in order.
func (r *Registry) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, len(r.list))
	copy(out, r.list)
	return out
}

// Clients returns a snapshot of the registered client handles in order.
func (r *Registry) Clients() []*client.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*client.Handle, len(r.list))
	for i, h := range r.list {
		out[i] = h.clientHandle
	}
	return out
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// ClientAdded implements client.Observer so group edits register clients
// automatically.
func (r *Registry) ClientAdded(ch *client.Handle) {
	r.Register(ch)
}

// ClientRemoved implements client.Observer.
func (r *Registry) ClientRemoved(ch *client.Handle) {
	if err := r.Unregister(ch.Identity()); err != nil {
		r.logger.Warn("removed client was not registered",
			"client_name", ch.Descriptor.Name)
	}
}

func (r *Registry) indexOfLocked(identity work.SourceID) int {
	for i, h := range r.list {
		if h.clientHandle.Identity() == identity {
			return i
		}
	}
	return -1
}

func (r *Registry) recalculateQuotasLocked(resetCounters bool) {
	if len(r.list) == 0 {
		return
	}

	share := 1.0 / float64(len(r.list))
	for _, h := range r.list {
		h.setPercentageShare(share)
		if resetCounters {
			h.resetGeneratedWork()
		}
	}

	r.logger.LogQuotaUpdate(len(r.list), share, resetCounters)
}
