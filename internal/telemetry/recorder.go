// Package telemetry records time-series metrics for the mining daemon in
// InfluxDB: per-chain throughput, per-client scheduling shares and solution
// quality.
package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/errors"
)

// Recorder wraps InfluxDB writes for daemon metrics
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// New creates a recorder and verifies the InfluxDB instance is healthy.
func New(cfg *Config) (*Recorder, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "telemetry_health",
			"failed to check InfluxDB health")
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, errors.New(errors.ErrorTypeNetwork, "telemetry_health",
			"InfluxDB health check failed").
			WithContext("status", string(health.Status)).
			WithContext("message", msg)
	}

	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close flushes pending points and closes the connection.
func (r *Recorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}

// Flush forces a write of all pending points.
func (r *Recorder) Flush() {
	r.writeAPI.Flush()
}

// RecordChainStats writes one per-chain throughput sample.
func (r *Recorder) RecordChainStats(stats messaging.ChainStatsMessage) {
	tags := map[string]string{
		"chain_id": fmt.Sprintf("%d", stats.ChainID),
	}

	fields := map[string]interface{}{
		"chip_count":      stats.ChipCount,
		"assignments_out": int64(stats.AssignmentsOut),
		"solutions_in":    int64(stats.SolutionsIn),
		"stale_solutions": int64(stats.StaleSolutions),
	}

	point := write.NewPoint("chain_stats", tags, fields, stats.CollectedAt)
	r.writeAPI.WritePoint(point)
}

// RecordClientStats writes one per-client scheduling sample.
func (r *Recorder) RecordClientStats(stats messaging.ClientStatsMessage) {
	tags := map[string]string{
		"client_name": stats.ClientName,
		"status":      stats.Status,
	}

	fields := map[string]interface{}{
		"enabled":          stats.Enabled,
		"percentage_share": stats.PercentageShare,
		"generated_work":   int64(stats.GeneratedWork),
	}

	point := write.NewPoint("client_stats", tags, fields, stats.CollectedAt)
	r.writeAPI.WritePoint(point)
}

// RecordSolution writes a solution discovery event.
func (r *Recorder) RecordSolution(msg messaging.SolutionMessage) {
	tags := map[string]string{
		"client_name":  msg.ClientName,
		"chain_id":     fmt.Sprintf("%d", msg.ChainID),
		"meets_target": fmt.Sprintf("%t", msg.MeetsTarget),
	}

	fields := map[string]interface{}{
		"block_height": msg.BlockHeight,
		"midstate_idx": msg.MidstateIdx,
		"chip_addr":    msg.ChipAddr,
		"count":        1,
	}

	point := write.NewPoint("solutions", tags, fields, msg.FoundAt)
	r.writeAPI.WritePoint(point)
}
