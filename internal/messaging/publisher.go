package messaging

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/errors"
	"github.com/bardlex/goasic/pkg/log"
)

// Publisher publishes wire messages to the daemon's Kafka topics. Domain
// messages go out as protobuf Structs so downstream consumers do not need
// this module's schema to decode them.
type Publisher struct {
	kafka  *KafkaClient
	logger *log.Logger
}

// NewPublisher creates a publisher on top of a Kafka client.
func NewPublisher(kafka *KafkaClient, logger *log.Logger) *Publisher {
	return &Publisher{
		kafka:  kafka,
		logger: logger.WithComponent("publisher"),
	}
}

// SolutionToMessage converts a resolved solution into its wire form.
func SolutionToMessage(clientName string, sol *work.Solution) SolutionMessage {
	hash := sol.Hash()
	return SolutionMessage{
		ClientName:  clientName,
		JobID:       sol.Job.ID,
		BlockHeight: sol.Job.Height,
		ChainID:     sol.ChainID,
		WorkID:      uint16(sol.WorkID),
		Version:     fmt.Sprintf("%08x", sol.Version()),
		NTime:       fmt.Sprintf("%08x", sol.Assignment.Time),
		Nonce:       fmt.Sprintf("%08x", sol.Nonce),
		MidstateIdx: sol.MidstateIdx,
		ChipAddr:    sol.ChipAddr,
		BlockHash:   hash.String(),
		MeetsTarget: sol.MeetsTarget(),
		FoundAt:     sol.ReceivedAt,
	}
}

// PublishSolution reports a resolved solution on the solutions topic, keyed
// by job ID so solutions for one job land in one partition.
func (p *Publisher) PublishSolution(ctx context.Context, msg SolutionMessage) error {
	s, err := structpb.NewStruct(map[string]any{
		"client_name":  msg.ClientName,
		"job_id":       msg.JobID,
		"block_height": msg.BlockHeight,
		"chain_id":     msg.ChainID,
		"work_id":      int(msg.WorkID),
		"version":      msg.Version,
		"ntime":        msg.NTime,
		"nonce":        msg.Nonce,
		"midstate_idx": msg.MidstateIdx,
		"chip_addr":    msg.ChipAddr,
		"block_hash":   msg.BlockHash,
		"meets_target": msg.MeetsTarget,
		"found_at":     msg.FoundAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "solution_encode",
			"failed to encode solution message").
			WithContext("job_id", msg.JobID)
	}

	return p.kafka.PublishProto(ctx, TopicSolutions, msg.JobID, s)
}

// PublishChainStats reports per-chain counters on the chain stats topic.
func (p *Publisher) PublishChainStats(ctx context.Context, stats ChainStatsMessage) error {
	s, err := structpb.NewStruct(map[string]any{
		"chain_id":        stats.ChainID,
		"chip_count":      stats.ChipCount,
		"assignments_out": float64(stats.AssignmentsOut),
		"solutions_in":    float64(stats.SolutionsIn),
		"stale_solutions": float64(stats.StaleSolutions),
		"collected_at":    stats.CollectedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "chain_stats_encode",
			"failed to encode chain stats message").
			WithContext("chain_id", stats.ChainID)
	}

	return p.kafka.PublishProto(ctx, TopicChainStats, fmt.Sprintf("chain-%d", stats.ChainID), s)
}

// PublishClientStats reports per-client scheduling counters.
func (p *Publisher) PublishClientStats(ctx context.Context, stats ClientStatsMessage) error {
	s, err := structpb.NewStruct(map[string]any{
		"client_name":      stats.ClientName,
		"enabled":          stats.Enabled,
		"status":           stats.Status,
		"percentage_share": stats.PercentageShare,
		"generated_work":   float64(stats.GeneratedWork),
		"collected_at":     stats.CollectedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "client_stats_encode",
			"failed to encode client stats message").
			WithContext("client_name", stats.ClientName)
	}

	return p.kafka.PublishProto(ctx, TopicClientStats, stats.ClientName, s)
}
