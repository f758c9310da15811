package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/work"
)

func TestExecutor_IssuesWorkFromRunningClient(t *testing.T) {
	r := NewRegistry(testLogger())

	node := newStubNode()
	ch := client.NewHandle(client.Descriptor{Name: "a"}, node)
	ch.SetMidstatePolicy(4)
	_ = ch.TryEnable()
	h := r.Register(ch)

	node.setJob(stubJob("j1", node.Identity()))

	workCh := make(chan *work.Assignment, 4)
	e := NewExecutor(r, workCh, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	select {
	case a := <-workCh:
		if a.Job.ID != "j1" {
			t.Errorf("Expected assignment from j1, got %s", a.Job.ID)
		}
		if a.MidstateCount() != 4 {
			t.Errorf("Expected 4 midstates, got %d", a.MidstateCount())
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for an assignment")
	}

	// The counter credits the issuing client.
	deadline := time.Now().Add(time.Second)
	for h.GeneratedWork() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.GeneratedWork() == 0 {
		t.Error("Expected generated work to be credited")
	}
}

func TestExecutor_IdlesWithoutJob(t *testing.T) {
	r := NewRegistry(testLogger())
	jobless := client.NewHandle(client.Descriptor{Name: "a"}, newStubNode())
	_ = jobless.TryEnable()
	r.Register(jobless)

	workCh := make(chan *work.Assignment)
	e := NewExecutor(r, workCh, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	select {
	case a := <-workCh:
		t.Fatalf("Expected no assignments before the first job, got %v", a)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestExecutor_AlternatesBetweenEqualClients(t *testing.T) {
	r := NewRegistry(testLogger())

	mkClient := func(name string) *client.Handle {
		node := newStubNode()
		ch := client.NewHandle(client.Descriptor{Name: name}, node)
		_ = ch.TryEnable()
		node.setJob(stubJob("job-"+name, node.Identity()))
		return ch
	}

	a := r.Register(mkClient("a"))
	b := r.Register(mkClient("b"))

	workCh := make(chan *work.Assignment)
	e := NewExecutor(r, workCh, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	const rounds = 200
	for i := 0; i < rounds; i++ {
		select {
		case <-workCh:
		case <-time.After(time.Second):
			t.Fatalf("Timed out at assignment %d", i)
		}
	}
	cancel()

	gotA, gotB := a.GeneratedWork(), b.GeneratedWork()
	if gotA < rounds/4 || gotB < rounds/4 {
		t.Errorf("Expected both clients to receive work, got %d vs %d", gotA, gotB)
	}
}

func TestExecutor_RouteSurvivesClosedClient(t *testing.T) {
	r := NewRegistry(testLogger())

	closedNode := newStubNode()
	closed := client.NewHandle(client.Descriptor{Name: "closed"}, closedNode)
	_ = closed.TryEnable()
	r.Register(closed)

	liveNode := newStubNode()
	live := client.NewHandle(client.Descriptor{Name: "live"}, liveNode)
	_ = live.TryEnable()
	r.Register(live)

	// Shut the first client down while it is still registered, as a group
	// teardown racing the routing loop would.
	closed.Close()

	solCh := make(chan *work.Solution, 4)
	e := NewExecutor(r, make(chan *work.Assignment), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.RouteSolutions(ctx, solCh) }()

	mkSolution := func(origin work.SourceID) *work.Solution {
		job := stubJob("j", origin)
		ms := []work.Midstate{job.Midstate(job.Version, job.Time)}
		assignment := work.NewAssignment(job, ms, job.Time)
		return work.NewSolution(assignment, 0, 1, 0, 0)
	}

	// The closed client's solution is dropped; the loop keeps routing.
	solCh <- mkSolution(closedNode.Identity())
	solLive := mkSolution(liveNode.Identity())
	solCh <- solLive

	select {
	case got := <-live.Solutions():
		if got != solLive {
			t.Error("Expected the live client's solution in its sink")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the live client's solution")
	}
}

func TestExecutor_RouteSolutions(t *testing.T) {
	r := NewRegistry(testLogger())

	nodeA := newStubNode()
	a := client.NewHandle(client.Descriptor{Name: "a"}, nodeA)
	_ = a.TryEnable()
	r.Register(a)

	nodeB := newStubNode()
	b := client.NewHandle(client.Descriptor{Name: "b"}, nodeB)
	_ = b.TryEnable()
	r.Register(b)

	solCh := make(chan *work.Solution, 8)
	e := NewExecutor(r, make(chan *work.Assignment), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.RouteSolutions(ctx, solCh) }()

	mkSolution := func(origin work.SourceID) *work.Solution {
		job := stubJob("j", origin)
		ms := []work.Midstate{job.Midstate(job.Version, job.Time)}
		assignment := work.NewAssignment(job, ms, job.Time)
		return work.NewSolution(assignment, 0, 1, 0, 0)
	}

	solB := mkSolution(nodeB.Identity())
	solCh <- solB
	// Unknown origin is dropped without blocking the loop.
	solCh <- mkSolution(work.NextSourceID())
	solA := mkSolution(nodeA.Identity())
	solCh <- solA

	select {
	case got := <-b.Solutions():
		if got != solB {
			t.Error("Expected b's solution in b's sink")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for b's solution")
	}

	select {
	case got := <-a.Solutions():
		if got != solA {
			t.Error("Expected a's solution in a's sink")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a's solution")
	}

	select {
	case got := <-a.Solutions():
		t.Errorf("Expected no more solutions for a, got %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}
