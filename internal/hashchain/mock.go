package hashchain

import (
	"context"
	"fmt"
	"sync"

	"github.com/bardlex/goasic/internal/work"
)

// MockChain simulates one hashboard chain for bring-up runs and tests. It
// models the two properties the pump depends on: the TX FIFO only accepts
// work after a granted room wait, and each chip answers every assignment
// that reaches it with one solution. The first queueDepth assignments only
// fill the chips' input queues and produce nothing, matching how real
// chains behave right after initialization.
type MockChain struct {
	chipCount  int
	queueDepth int
	idLimit    int

	room chan struct{}

	mu          sync.Mutex
	sent        int
	roomGranted bool

	solCh chan HwSolution
}

// NewMockChain creates a simulated chain. chipCount solutions are emitted
// per assignment once the first queueDepth assignments have filled the
// chip input queues.
func NewMockChain(chipCount, queueDepth, idLimit int) *MockChain {
	m := &MockChain{
		chipCount:  chipCount,
		queueDepth: queueDepth,
		idLimit:    idLimit,
		room:       make(chan struct{}, 1),
		solCh:      make(chan HwSolution, 4096),
	}
	m.room <- struct{}{}
	return m
}

// WaitForRoom implements TxQueue.
func (m *MockChain) WaitForRoom(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.room:
	}

	m.mu.Lock()
	m.roomGranted = true
	m.mu.Unlock()
	return nil
}

// SendWork implements TxQueue. It enforces the queue contract: a send
// without a preceding successful room wait is a protocol violation.
func (m *MockChain) SendWork(a *work.Assignment, id work.WorkID) error {
	m.mu.Lock()
	if !m.roomGranted {
		m.mu.Unlock()
		return fmt.Errorf("mock chain: send_work without wait_for_room")
	}
	m.roomGranted = false
	m.sent++
	hashing := m.sent > m.queueDepth
	m.mu.Unlock()

	if hashing {
		for chip := 0; chip < m.chipCount; chip++ {
			m.solCh <- HwSolution{
				WorkID:      id,
				Nonce:       uint32(id)<<16 | uint32(chip),
				MidstateIdx: chip % a.MidstateCount(),
				ChipAddr:    chip,
			}
		}
	}

	m.room <- struct{}{}
	return nil
}

// WorkIDLimit implements TxQueue.
func (m *MockChain) WorkIDLimit() int {
	return m.idLimit
}

// RecvSolution implements RxQueue.
func (m *MockChain) RecvSolution(ctx context.Context) (HwSolution, error) {
	select {
	case <-ctx.Done():
		return HwSolution{}, ctx.Err()
	case s := <-m.solCh:
		return s, nil
	}
}

// SentCount reports how many assignments the chain has accepted.
func (m *MockChain) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}
