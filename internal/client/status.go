package client

import "sync/atomic"

// Status is the lifecycle state of a client node. The enabled flag on a
// Handle is an orthogonal gate and not part of this state machine.
type Status int32

const (
	// StatusStopped - node is idle and may be started
	StatusStopped Status = iota
	// StatusStarting - start was initiated, node is connecting
	StatusStarting
	// StatusRunning - node is serving jobs
	StatusRunning
	// StatusStopping - stop was initiated, node is shutting down
	StatusStopping
)

// String returns string representation of the status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StatusNode tracks a node's lifecycle with compare-and-swap transitions,
// so two concurrent callers can never both believe they own a transition.
type StatusNode struct {
	v atomic.Int32
}

// Status returns the current lifecycle state.
func (n *StatusNode) Status() Status {
	return Status(n.v.Load())
}

// InitiateStarting attempts the Stopped -> Starting transition. It reports
// whether the caller won the transition and should perform the start.
func (n *StatusNode) InitiateStarting() bool {
	return n.v.CompareAndSwap(int32(StatusStopped), int32(StatusStarting))
}

// SetRunning completes a start: Starting -> Running.
func (n *StatusNode) SetRunning() bool {
	return n.v.CompareAndSwap(int32(StatusStarting), int32(StatusRunning))
}

// InitiateStopping attempts the Starting/Running -> Stopping transition.
// It reports whether the caller won the transition and should perform the
// stop.
func (n *StatusNode) InitiateStopping() bool {
	if n.v.CompareAndSwap(int32(StatusRunning), int32(StatusStopping)) {
		return true
	}
	return n.v.CompareAndSwap(int32(StatusStarting), int32(StatusStopping))
}

// SetStopped completes a stop: Stopping -> Stopped.
func (n *StatusNode) SetStopped() bool {
	return n.v.CompareAndSwap(int32(StatusStopping), int32(StatusStopped))
}
