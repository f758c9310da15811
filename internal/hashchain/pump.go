package hashchain

import (
	"context"
	"sync/atomic"

	"github.com/bardlex/goasic/internal/registry"
	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/errors"
	"github.com/bardlex/goasic/pkg/log"
)

// Pump runs the two long-lived I/O loops of one chain. The sender drains
// the work channel into the TX FIFO under hardware backpressure; the
// receiver drains the RX FIFO, resolves replies against the work registry
// and forwards solutions. The loops share the registry through its own
// narrow lock and nothing else.
type Pump struct {
	chain     *Chain
	registry  *registry.Registry
	workCh    <-chan *work.Assignment
	solutions chan<- *work.Solution
	logger    *log.Logger

	assignmentsOut atomic.Uint64
	solutionsIn    atomic.Uint64
	staleSolutions atomic.Uint64
}

// Stats is a snapshot of the pump's throughput counters.
type Stats struct {
	ChainID        int
	ChipCount      int
	AssignmentsOut uint64
	SolutionsIn    uint64
	StaleSolutions uint64
}

// NewPump prepares the pump for a chain. The registry is sized to the
// chain's hardware work ID limit; construction fails if the TX FIFO was
// already handed off.
func NewPump(chain *Chain, workCh <-chan *work.Assignment, solutions chan<- *work.Solution, logger *log.Logger) (*Pump, error) {
	limit, err := chain.WorkIDLimit()
	if err != nil {
		return nil, err
	}

	return &Pump{
		chain:     chain,
		registry:  registry.New(limit),
		workCh:    workCh,
		solutions: solutions,
		logger:    logger.WithComponent("pump").WithChain(chain.ID()),
	}, nil
}

// Registry exposes the pump's work registry for inspection.
func (p *Pump) Registry() *registry.Registry {
	return p.registry
}

// Snapshot returns the pump's current throughput counters.
func (p *Pump) Snapshot() Stats {
	return Stats{
		ChainID:        p.chain.ID(),
		ChipCount:      p.chain.ChipCount(),
		AssignmentsOut: p.assignmentsOut.Load(),
		SolutionsIn:    p.solutionsIn.Load(),
		StaleSolutions: p.staleSolutions.Load(),
	}
}

// Run starts the sender and receiver loops and blocks until the first one
// fails or the context is cancelled. A queue failure is fatal to the pump;
// restart policy belongs to the chain manager above.
func (p *Pump) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() { errCh <- p.RunSender(ctx) }()
	go func() { errCh <- p.RunReceiver(ctx) }()

	err := <-errCh
	cancel()
	<-errCh
	return err
}

// RunSender is the work-feeding loop. Each iteration waits for hardware
// queue room, receives the next assignment, registers it to obtain a work
// ID, and writes it to the TX FIFO.
func (p *Pump) RunSender(ctx context.Context) error {
	txio, err := p.chain.TakeTx()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeHardware, "run_sender", "cannot take TX fifo ownership")
	}

	p.logger.Info("sender loop started", "work_id_limit", txio.WorkIDLimit())

	for {
		// Backpressure gate: this wait is the only admission control.
		if err := txio.WaitForRoom(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.ErrorTypeHardware, "wait_for_room", "TX fifo room wait failed")
		}

		var a *work.Assignment
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a = <-p.workCh:
		}

		id := p.registry.Store(a)

		if err := txio.SendWork(a, id); err != nil {
			return errors.Wrap(err, errors.ErrorTypeHardware, "send_work", "TX fifo write failed").
				WithContext("work_id", id)
		}

		p.assignmentsOut.Add(1)
		p.logger.LogWorkSent(p.chain.ID(), uint16(id), a.MidstateCount())
	}
}

// RunReceiver is the solution-draining loop. Each hardware reply is
// resolved against the registry; replies whose work ID no longer resolves
// are logged and dropped, an expected benign race once the slot has been
// reused under sustained throughput.
func (p *Pump) RunReceiver(ctx context.Context) error {
	rxio, err := p.chain.TakeRx()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeHardware, "run_receiver", "cannot take RX fifo ownership")
	}

	p.logger.Info("receiver loop started")

	for {
		hw, err := rxio.RecvSolution(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.ErrorTypeHardware, "recv_solution", "RX fifo read failed")
		}

		a, ok := p.registry.Resolve(hw.WorkID)
		if !ok {
			p.staleSolutions.Add(1)
			p.logger.LogStaleSolution(p.chain.ID(), uint16(hw.WorkID), hw.Nonce)
			continue
		}

		midstateIdx := hw.MidstateIdx
		if midstateIdx < 0 || midstateIdx >= a.MidstateCount() {
			p.logger.Error("hardware reply with invalid midstate index",
				"work_id", hw.WorkID, "midstate_idx", hw.MidstateIdx)
			continue
		}

		sol := work.NewSolution(a, hw.WorkID, hw.Nonce, midstateIdx, hw.ChipAddr)
		sol.ChainID = p.chain.ID()
		p.solutionsIn.Add(1)
		p.logger.LogSolutionFound(p.chain.ID(), uint16(hw.WorkID), hw.Nonce, midstateIdx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.solutions <- sol:
		}
	}
}
