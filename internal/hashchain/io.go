// Package hashchain drives one ASIC hashboard chain: it feeds assignments
// into the chain's TX FIFO under hardware backpressure and drains found
// solutions from the RX FIFO, correlating them back to outstanding work.
//
// The physical transport (I2C/GPIO register access) sits behind the TxQueue
// and RxQueue contracts; this package only assumes their semantics.
package hashchain

import (
	"context"

	"github.com/bardlex/goasic/internal/work"
)

// HwSolution is the raw reply a chain produces: a nonce tagged with the
// work ID the hardware copied from the corresponding assignment.
type HwSolution struct {
	WorkID      work.WorkID
	Nonce       uint32
	MidstateIdx int
	ChipAddr    int
}

// TxQueue is the send half of a chain's work FIFO.
//
// WaitForRoom suspends until the hardware signals free queue space; it is
// the sole admission control, there is no software-side depth counter.
// SendWork is synchronous and must only be called after a successful
// WaitForRoom; the hardware is then guaranteed to accept the write.
type TxQueue interface {
	WaitForRoom(ctx context.Context) error
	SendWork(a *work.Assignment, id work.WorkID) error
	WorkIDLimit() int
}

// RxQueue is the receive half of a chain's solution FIFO. RecvSolution
// suspends until the hardware reports a solution; an idle chain blocks
// here indefinitely, which is normal operation, not an error.
type RxQueue interface {
	RecvSolution(ctx context.Context) (HwSolution, error)
}
