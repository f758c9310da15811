package hashchain

import (
	"fmt"
	"sync"
)

// Chain holds the shared state of one initialized hashboard chain. The two
// pump loops each take exclusive ownership of their FIFO handle exactly
// once at startup; afterwards they operate on it without synchronization,
// since each loop is the sole owner of its half of the interface.
type Chain struct {
	mu sync.Mutex

	id        int
	chipCount int
	txio      TxQueue
	rxio      RxQueue
}

// NewChain wraps an initialized chain's FIFO handles.
func NewChain(id int, txio TxQueue, rxio RxQueue, chipCount int) *Chain {
	return &Chain{
		id:        id,
		chipCount: chipCount,
		txio:      txio,
		rxio:      rxio,
	}
}

// ID returns the chain index on the hashboard.
func (c *Chain) ID() int {
	return c.id
}

// ChipCount returns the number of hashing chips on the chain.
func (c *Chain) ChipCount() int {
	return c.chipCount
}

// WorkIDLimit reports the hardware work ID limit. It must be called before
// TakeTx hands the TX FIFO off to the sender loop.
func (c *Chain) WorkIDLimit() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txio == nil {
		return 0, fmt.Errorf("chain %d: work TX fifo already taken", c.id)
	}
	return c.txio.WorkIDLimit(), nil
}

// TakeTx removes the TX FIFO handle from the chain, transferring exclusive
// ownership to the caller. Fails if the handle was already taken.
func (c *Chain) TakeTx() (TxQueue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txio == nil {
		return nil, fmt.Errorf("chain %d: work TX fifo already taken", c.id)
	}
	txio := c.txio
	c.txio = nil
	return txio, nil
}

// TakeRx removes the RX FIFO handle from the chain, transferring exclusive
// ownership to the caller. Fails if the handle was already taken.
func (c *Chain) TakeRx() (RxQueue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rxio == nil {
		return nil, fmt.Errorf("chain %d: work RX fifo already taken", c.id)
	}
	rxio := c.rxio
	c.rxio = nil
	return rxio, nil
}
