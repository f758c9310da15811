package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/config"
	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/log"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:      "asicd-test",
		Version:          "test",
		Environment:      "test",
		ChainCount:       1,
		MidstateCount:    2,
		MockChipCount:    4,
		JobFeedEndpoints: nil,
		JobFeedTopic:     "asic.jobs",
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaGroupID:     "asicd-test",
		QuotaInterval:    time.Second,
		TelemetryFlush:   time.Hour,
		LogLevel:         "error",
		LogFormat:        "text",
	}
}

// stubNode is an in-process job source standing in for a ZMQ feed.
type stubNode struct {
	identity work.SourceID
	status   client.StatusNode

	mu  sync.Mutex
	job *work.Job
}

func newStubNode() *stubNode {
	return &stubNode{identity: work.NextSourceID()}
}

func (n *stubNode) Start() {
	if n.status.InitiateStarting() {
		n.status.SetRunning()
	}
}

func (n *stubNode) Stop() {
	if n.status.InitiateStopping() {
		n.status.SetStopped()
	}
}

func (n *stubNode) Status() client.Status { return n.status.Status() }
func (n *stubNode) Identity() work.SourceID { return n.identity }

func (n *stubNode) LastJob() *work.Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.job
}

func (n *stubNode) setJob(j *work.Job) {
	n.mu.Lock()
	n.job = j
	n.mu.Unlock()
}

func TestNewDaemon(t *testing.T) {
	cfg := testConfig()
	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		t.Fatalf("newDaemon failed: %v", err)
	}

	if len(d.pumps) != cfg.ChainCount {
		t.Errorf("Expected %d pumps, got %d", cfg.ChainCount, len(d.pumps))
	}
	if d.journal != nil || d.jobCache != nil || d.telemetry != nil {
		t.Error("Expected optional sinks disabled by default")
	}
	if d.registry.Count() != 0 {
		t.Errorf("Expected no clients before Run, got %d", d.registry.Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestDaemon_MiningPipeline(t *testing.T) {
	cfg := testConfig()
	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		t.Fatalf("newDaemon failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	// Feed the pipeline through an in-process client instead of a ZMQ feed.
	node := newStubNode()
	node.setJob(work.NewJob("pipeline-job", 100, 0x20000000,
		chainhash.Hash{1}, chainhash.Hash{2}, 0x207fffff, 1000, 2000, 0, node.Identity()))

	handle := d.group.AddClient(client.NewHandle(client.Descriptor{
		Name:   "stub",
		Enable: true,
	}, node))

	if d.registry.Count() != 1 {
		t.Fatalf("Expected the stub client registered, got %d", d.registry.Count())
	}

	// The mock chain starts producing solutions once its per-chip queues
	// are filled; routed solutions land in the client's sink.
	select {
	case sol := <-handle.Solutions():
		if sol.Job.ID != "pipeline-job" {
			t.Errorf("Expected solution for pipeline-job, got %s", sol.Job.ID)
		}
		if sol.ChainID != 0 {
			t.Errorf("Expected solution from chain 0, got %d", sol.ChainID)
		}
		if got := sol.Assignment.MidstateCount(); got != cfg.MidstateCount {
			t.Errorf("Expected %d midstates, got %d", cfg.MidstateCount, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a routed solution")
	}

	snap := d.pumps[0].Snapshot()
	if snap.AssignmentsOut == 0 {
		t.Error("Expected assignments to have been sent")
	}
	if snap.SolutionsIn == 0 {
		t.Error("Expected solutions to have been received")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
