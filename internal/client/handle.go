// Package client manages upstream job sources competing for hashboard
// capacity: the node abstraction over a concrete protocol client, the
// handle wrapping it with an enable gate and a solution sink, and ordered
// client groups edited by operators.
package client

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bardlex/goasic/internal/work"
)

var (
	// ErrMissing is returned when an operation references a client that is
	// not present in a collection.
	ErrMissing = errors.New("client: not found")
	// ErrAdditional is returned when a reorder request does not exactly
	// match the current membership.
	ErrAdditional = errors.New("client: reorder list does not match membership")
	// ErrAlreadyEnabled is returned by TryEnable on an enabled client.
	ErrAlreadyEnabled = errors.New("client: already enabled")
	// ErrAlreadyDisabled is returned by TryDisable on a disabled client.
	ErrAlreadyDisabled = errors.New("client: already disabled")
)

// Node is the narrow capability set the core needs from a protocol client.
// Implementations guard their own lifecycle transitions (via StatusNode),
// so Start/Stop are safe to call from any state.
type Node interface {
	Start()
	Stop()
	Status() Status
	// LastJob returns the most recent job, or nil before the first one
	// arrives.
	LastJob() *work.Job
	// Identity returns the node's stable identity token. Two handles wrap
	// the same client iff their identities are equal.
	Identity() work.SourceID
}

// Descriptor carries the connection parameters a handle was created from.
type Descriptor struct {
	Name     string
	Endpoint string
	Topic    string
	Enable   bool
}

// solutionSinkDepth bounds the per-client solution channel. The external
// submitter drains it continuously; the depth only absorbs bursts.
const solutionSinkDepth = 1024

// Handle wraps one job-source node with an enable gate, a replaceable work
// engine and a dedicated solution sink. Equality between handles is
// identity of the underlying node, never value comparison.
type Handle struct {
	Descriptor Descriptor

	node      Node
	enabled   atomic.Bool
	engine    *work.EngineSender
	solutions chan *work.Solution

	// sinkMu orders Deliver against Close so the routing loop can never
	// send into a closed sink.
	sinkMu     sync.Mutex
	sinkClosed bool

	// Engine rebuild bookkeeping, touched only by the generation loop.
	engineMu      sync.Mutex
	midstateCount int
	lastJob       *work.Job
}

// NewHandle wraps a node. Handles start disabled; a group or operator
// enables them explicitly.
func NewHandle(descriptor Descriptor, node Node) *Handle {
	return &Handle{
		Descriptor:    descriptor,
		node:          node,
		engine:        work.NewEngineSender(nil),
		solutions:     make(chan *work.Solution, solutionSinkDepth),
		midstateCount: 1,
	}
}

// Node returns the wrapped node.
func (h *Handle) Node() Node {
	return h.node
}

// Identity returns the identity token of the underlying node.
func (h *Handle) Identity() work.SourceID {
	return h.node.Identity()
}

// Equal reports whether both handles wrap the same node instance.
func (h *Handle) Equal(other *Handle) bool {
	return other != nil && h.Identity() == other.Identity()
}

// MatchesSolution reports whether the solution's recovered job originated
// from this handle's node.
func (h *Handle) MatchesSolution(sol *work.Solution) bool {
	return sol.Origin() == h.Identity()
}

// Status returns the node's lifecycle state.
func (h *Handle) Status() Status {
	return h.node.Status()
}

// IsEnabled reports the enable gate, independent of lifecycle status.
func (h *Handle) IsEnabled() bool {
	return h.enabled.Load()
}

// IsRunning reports whether the client is enabled and its node is serving.
func (h *Handle) IsRunning() bool {
	return h.IsEnabled() && h.Status() == StatusRunning
}

// HasJob reports whether the node has produced at least one job.
func (h *Handle) HasJob() bool {
	return h.node.LastJob() != nil
}

// TryEnable flips the gate to enabled and starts the node. Returns
// ErrAlreadyEnabled if the client was already enabled; the swap guarantees
// only one caller performs the start.
func (h *Handle) TryEnable() error {
	if h.enabled.Swap(true) {
		return ErrAlreadyEnabled
	}
	h.node.Start()
	return nil
}

// TryDisable flips the gate to disabled and stops the node. Returns
// ErrAlreadyDisabled if the client was already disabled.
func (h *Handle) TryDisable() error {
	if !h.enabled.Swap(false) {
		return ErrAlreadyDisabled
	}
	h.node.Stop()
	return nil
}

// Close always stops the node, regardless of the enable gate, and closes
// the solution sink. Safe to call repeatedly and concurrently with Deliver.
func (h *Handle) Close() {
	h.enabled.Store(false)
	h.node.Stop()

	h.sinkMu.Lock()
	if !h.sinkClosed {
		h.sinkClosed = true
		close(h.solutions)
	}
	h.sinkMu.Unlock()
}

// Engine returns the handle's hot-swappable engine slot.
func (h *Handle) Engine() *work.EngineSender {
	return h.engine
}

// SetMidstatePolicy fixes the midstate count future engines are built
// with. Called by the owning group before the client is scheduled.
func (h *Handle) SetMidstatePolicy(midstateCount int) {
	h.engineMu.Lock()
	defer h.engineMu.Unlock()
	h.midstateCount = midstateCount
}

// EnsureEngine returns the current engine, rebuilding it first when the
// node has produced a newer job. Swapping engines never disturbs work
// already issued from the previous one. Intended for the single
// generation loop; concurrent callers are serialized but may observe each
// other's rebuilds.
func (h *Handle) EnsureEngine() work.Engine {
	job := h.node.LastJob()
	if job == nil {
		return nil
	}

	h.engineMu.Lock()
	defer h.engineMu.Unlock()

	if job != h.lastJob {
		h.lastJob = job
		h.engine.Swap(work.NewVersionRolling(job, h.midstateCount))
	}
	return h.engine.Current()
}

// Solutions is the client's dedicated solution sink, drained by the
// external submitter.
func (h *Handle) Solutions() <-chan *work.Solution {
	return h.solutions
}

// Deliver routes a solution into the client's sink. Reports false when the
// sink is saturated or already closed; the caller logs and drops in that
// case rather than stalling the routing loop.
func (h *Handle) Deliver(sol *work.Solution) bool {
	h.sinkMu.Lock()
	defer h.sinkMu.Unlock()

	if h.sinkClosed {
		return false
	}
	select {
	case h.solutions <- sol:
		return true
	default:
		return false
	}
}
