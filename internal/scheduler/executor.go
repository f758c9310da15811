package scheduler

import (
	"context"
	"time"

	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/log"
)

// idleDelay is how long the generation loop backs off when no client can
// produce work: nothing registered, nothing running, or every engine
// exhausted while waiting for a fresh job.
const idleDelay = 50 * time.Millisecond

// Executor drives the scheduler: it pulls assignments out of client
// engines in quota order and feeds them to the hashboard pumps, and routes
// resolved solutions back to the client they belong to.
type Executor struct {
	registry *Registry
	work     chan<- *work.Assignment
	logger   *log.Logger
}

// NewExecutor creates an executor feeding the given work channel.
func NewExecutor(registry *Registry, workCh chan<- *work.Assignment, logger *log.Logger) *Executor {
	return &Executor{
		registry: registry,
		work:     workCh,
		logger:   logger.WithComponent("executor"),
	}
}

// Run generates assignments until the context is cancelled. Each iteration
// selects the most starved eligible client, refreshes its engine against
// the client's latest job and emits one assignment. The send into the work
// channel is the backpressure point: it blocks until a hashboard pump has
// FIFO room.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		h := e.registry.SelectClient()
		if h == nil {
			if err := e.idle(ctx); err != nil {
				return err
			}
			continue
		}

		engine := h.Client().EnsureEngine()
		if engine == nil {
			// Selected client has not produced a job yet.
			if err := e.idle(ctx); err != nil {
				return err
			}
			continue
		}

		assignment, ok := engine.Next()
		if !ok {
			// Engine exhausted its search space; a new job will replace it.
			if err := e.idle(ctx); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case e.work <- assignment:
		}

		h.AddGeneratedWork(1)
		e.logger.Debug("assignment issued",
			"client_name", h.Client().Descriptor.Name,
			"job_id", assignment.Job.ID,
			"midstates", assignment.MidstateCount(),
		)
	}
}

// RouteSolutions delivers resolved solutions to the sink of the client
// whose job produced them. Solutions whose client has gone away, or whose
// sink is saturated, are logged and dropped; routing never blocks.
func (e *Executor) RouteSolutions(ctx context.Context, solutions <-chan *work.Solution) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sol, ok := <-solutions:
			if !ok {
				return nil
			}
			e.route(sol)
		}
	}
}

func (e *Executor) route(sol *work.Solution) {
	for _, h := range e.registry.Handles() {
		if !h.Client().MatchesSolution(sol) {
			continue
		}
		if !h.Client().Deliver(sol) {
			e.logger.Warn("solution sink saturated, dropping solution",
				"client_name", h.Client().Descriptor.Name,
				"job_id", sol.Job.ID,
				"nonce", sol.Nonce,
			)
		}
		return
	}

	e.logger.Warn("solution for unregistered client dropped",
		"job_id", sol.Job.ID,
		"nonce", sol.Nonce,
	)
}

func (e *Executor) idle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(idleDelay):
		return nil
	}
}
