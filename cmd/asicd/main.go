// Package main implements asicd, the ASIC mining control daemon. It pulls
// jobs from upstream feeds, schedules work across hashboard chains and
// reports resolved solutions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/config"
	"github.com/bardlex/goasic/internal/hashchain"
	"github.com/bardlex/goasic/internal/jobcache"
	"github.com/bardlex/goasic/internal/journal"
	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/internal/scheduler"
	"github.com/bardlex/goasic/internal/telemetry"
	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/log"
)

// Mock hashboard geometry. Real board support plugs in behind the
// hashchain.TxQueue/RxQueue interfaces.
const (
	mockQueueDepth  = 4
	mockWorkIDLimit = 128
)

const solutionBufferDepth = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting asicd",
		"version", cfg.Version,
		"chains", cfg.ChainCount,
		"midstates", cfg.MidstateCount,
		"job_feeds", cfg.JobFeedEndpoints,
	)

	daemon, err := newDaemon(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to build daemon")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- daemon.Run(ctx) }()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			logger.WithError(err).Error("daemon failed")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := daemon.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("asicd stopped")
}

// Daemon owns the full mining pipeline: job sources feeding client engines,
// the scheduler generating assignments, per-chain pumps exchanging work with
// the hardware, and the reporting sinks.
type Daemon struct {
	cfg    *config.Config
	logger *log.Logger

	kafkaClient *messaging.KafkaClient
	publisher   *messaging.Publisher
	journal     *journal.Journal
	jobCache    *jobcache.Cache
	telemetry   *telemetry.Recorder

	registry *scheduler.Registry
	group    *client.Group
	executor *scheduler.Executor
	pumps    []*hashchain.Pump

	workCh chan *work.Assignment
	solCh  chan *work.Solution

	wg sync.WaitGroup
}

// newDaemon assembles the pipeline without touching the network; all
// connections to optional sinks are made here only when enabled.
func newDaemon(cfg *config.Config, logger *log.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:    cfg,
		logger: logger.WithComponent("daemon"),
		workCh: make(chan *work.Assignment),
		solCh:  make(chan *work.Solution, solutionBufferDepth),
	}

	d.kafkaClient = messaging.NewKafkaClient(cfg.KafkaBrokers, logger)
	d.publisher = messaging.NewPublisher(d.kafkaClient, logger)

	if cfg.JournalEnabled {
		j, err := journal.New(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		d.journal = j
	}

	if cfg.JobCacheEnabled {
		c, err := jobcache.New(cfg.RedisURL, cfg.JobCacheTTL)
		if err != nil {
			return nil, err
		}
		d.jobCache = c
	}

	if cfg.TelemetryEnabled {
		r, err := telemetry.New(&telemetry.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return nil, err
		}
		d.telemetry = r
	}

	d.registry = scheduler.NewRegistry(logger)
	d.group = client.NewGroup(cfg.MidstateCount, d.registry)
	d.executor = scheduler.NewExecutor(d.registry, d.workCh, logger)

	for i := 0; i < cfg.ChainCount; i++ {
		mock := hashchain.NewMockChain(cfg.MockChipCount, mockQueueDepth, mockWorkIDLimit)
		chain := hashchain.NewChain(i, mock, mock, cfg.MockChipCount)
		pump, err := hashchain.NewPump(chain, d.workCh, d.solCh, logger)
		if err != nil {
			return nil, err
		}
		d.pumps = append(d.pumps, pump)
	}

	return d, nil
}

// Run starts every pipeline loop and blocks until the context is cancelled
// or a pump hits a fatal hardware error.
func (d *Daemon) Run(ctx context.Context) error {
	errCh := make(chan error, len(d.pumps))
	for _, pump := range d.pumps {
		p := pump
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.executor.Run(ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.executor.RouteSolutions(ctx, d.solCh)
	}()

	d.addClients(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.statsLoop(ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.quotaLoop(ctx)
	}()

	if d.cfg.CommandsEnabled {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runCommandConsumer(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// addClients connects one upstream client per configured job feed endpoint
// and starts its solution drain.
func (d *Daemon) addClients(ctx context.Context) {
	for i, endpoint := range d.cfg.JobFeedEndpoints {
		descriptor := client.Descriptor{
			Name:     fmt.Sprintf("feed-%d", i),
			Endpoint: endpoint,
			Topic:    d.cfg.JobFeedTopic,
			Enable:   true,
		}

		source := client.NewZMQSource(descriptor, d.jobSink(descriptor.Name), d.logger)
		d.primeFromCache(ctx, descriptor.Name, source)

		handle := d.group.AddClient(client.NewHandle(descriptor, source))

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.drainClient(ctx, handle)
		}()
	}
}

// jobSink returns the per-feed job callback: it keeps the job cache fresh
// when caching is enabled.
func (d *Daemon) jobSink(feedName string) func(*work.Job) {
	if d.jobCache == nil {
		return nil
	}
	return func(job *work.Job) {
		msg := messaging.JobMessage{
			JobID:       job.ID,
			BlockHeight: job.Height,
			PrevHash:    job.PrevHash.String(),
			MerkleRoot:  job.MerkleRoot.String(),
			Version:     fmt.Sprintf("%08x", job.Version),
			NBits:       fmt.Sprintf("%08x", job.Bits),
			NTime:       fmt.Sprintf("%08x", job.Time),
			MaxNTime:    fmt.Sprintf("%08x", job.MaxTime),
			Reward:      job.Reward,
			CreatedAt:   time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.jobCache.StoreLastJob(ctx, feedName, msg); err != nil {
			d.logger.WithError(err).Warn("failed to cache job", "feed_name", feedName)
		}
	}
}

// primeFromCache seeds a fresh source with the feed's last cached job.
func (d *Daemon) primeFromCache(ctx context.Context, feedName string, source *client.ZMQSource) {
	if d.jobCache == nil {
		return
	}

	msg, err := d.jobCache.GetLastJob(ctx, feedName)
	if err != nil {
		if err != jobcache.ErrNoJob {
			d.logger.WithError(err).Warn("failed to read cached job", "feed_name", feedName)
		}
		return
	}

	job, err := client.JobFromMessage(msg, source.Identity())
	if err != nil {
		d.logger.WithError(err).Warn("cached job is unusable", "feed_name", feedName)
		return
	}

	source.Prime(job)
	d.logger.Info("primed job source from cache", "feed_name", feedName, "job_id", job.ID)
}

// drainClient forwards one client's solutions to the reporting sinks.
func (d *Daemon) drainClient(ctx context.Context, handle *client.Handle) {
	for {
		select {
		case <-ctx.Done():
			return
		case sol, ok := <-handle.Solutions():
			if !ok {
				return
			}
			d.reportSolution(ctx, handle.Descriptor.Name, sol)
		}
	}
}

func (d *Daemon) reportSolution(ctx context.Context, clientName string, sol *work.Solution) {
	msg := messaging.SolutionToMessage(clientName, sol)

	if err := d.publisher.PublishSolution(ctx, msg); err != nil {
		d.logger.WithError(err).Error("failed to publish solution", "job_id", msg.JobID)
	}

	if d.journal != nil {
		rec := journal.RecordFromMessage(msg, sol.Job.Reward)
		if err := d.journal.InsertSolution(ctx, rec); err != nil {
			d.logger.WithError(err).Error("failed to journal solution", "job_id", msg.JobID)
		}
	}

	if d.telemetry != nil {
		d.telemetry.RecordSolution(msg)
	}
}

// quotaLoop periodically logs each client's target share against its actual
// share of generated work.
func (d *Daemon) quotaLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.QuotaInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handles := d.registry.Handles()
			var total uint64
			for _, h := range handles {
				total += h.GeneratedWork()
			}
			for _, h := range handles {
				actual := 0.0
				if total > 0 {
					actual = float64(h.GeneratedWork()) / float64(total)
				}
				d.logger.Debug("scheduling balance",
					"client_name", h.Client().Descriptor.Name,
					"target_share", h.PercentageShare(),
					"actual_share", actual,
				)
			}
		}
	}
}

// statsLoop periodically publishes per-chain and per-client counters.
func (d *Daemon) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TelemetryFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishStats(ctx)
		}
	}
}

func (d *Daemon) publishStats(ctx context.Context) {
	now := time.Now().UTC()

	for _, pump := range d.pumps {
		snap := pump.Snapshot()
		stats := messaging.ChainStatsMessage{
			ChainID:        snap.ChainID,
			ChipCount:      snap.ChipCount,
			AssignmentsOut: snap.AssignmentsOut,
			SolutionsIn:    snap.SolutionsIn,
			StaleSolutions: snap.StaleSolutions,
			CollectedAt:    now,
		}

		if err := d.publisher.PublishChainStats(ctx, stats); err != nil {
			d.logger.WithError(err).Warn("failed to publish chain stats", "chain_id", snap.ChainID)
		}
		if d.telemetry != nil {
			d.telemetry.RecordChainStats(stats)
		}
	}

	for _, h := range d.registry.Handles() {
		stats := messaging.ClientStatsMessage{
			ClientName:      h.Client().Descriptor.Name,
			Enabled:         h.Client().IsEnabled(),
			Status:          h.Client().Status().String(),
			PercentageShare: h.PercentageShare(),
			GeneratedWork:   h.GeneratedWork(),
			CollectedAt:     now,
		}

		if err := d.publisher.PublishClientStats(ctx, stats); err != nil {
			d.logger.WithError(err).Warn("failed to publish client stats", "client_name", stats.ClientName)
		}
		if d.telemetry != nil {
			d.telemetry.RecordClientStats(stats)
		}
	}

	if d.telemetry != nil {
		d.telemetry.Flush()
	}
}

// Shutdown stops the clients, waits for the pipeline loops to exit and
// closes every sink.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.logger.Info("shutting down daemon")

	d.group.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("shutdown timeout exceeded")
		return ctx.Err()
	}

	if err := d.kafkaClient.Close(); err != nil {
		d.logger.WithError(err).Error("failed to close Kafka client")
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.WithError(err).Error("failed to close journal")
		}
	}
	if d.jobCache != nil {
		if err := d.jobCache.Close(); err != nil {
			d.logger.WithError(err).Error("failed to close job cache")
		}
	}
	if d.telemetry != nil {
		d.telemetry.Close()
	}

	d.logger.Info("daemon stopped")
	return nil
}
