package messaging

import "time"

// JobMessage is the payload a job feed publishes over ZMQ and the shape a
// job source decodes into a work.Job. Hash fields are hex-encoded in the
// usual display byte order.
type JobMessage struct {
	JobID       string    `json:"job_id"`
	BlockHeight int64     `json:"block_height"`
	PrevHash    string    `json:"prev_hash"`
	MerkleRoot  string    `json:"merkle_root"`
	Version     string    `json:"version"`
	NBits       string    `json:"nbits"`
	NTime       string    `json:"ntime"`
	MaxNTime    string    `json:"max_ntime,omitempty"`
	Reward      int64     `json:"reward"`
	CreatedAt   time.Time `json:"created_at"`
}

// SolutionMessage reports a hardware-found solution to the upstream
// submission pipeline.
type SolutionMessage struct {
	ClientName  string    `json:"client_name"`
	JobID       string    `json:"job_id"`
	BlockHeight int64     `json:"block_height"`
	ChainID     int       `json:"chain_id"`
	WorkID      uint16    `json:"work_id"`
	Version     string    `json:"version"`
	NTime       string    `json:"ntime"`
	Nonce       string    `json:"nonce"`
	MidstateIdx int       `json:"midstate_idx"`
	ChipAddr    int       `json:"chip_addr"`
	BlockHash   string    `json:"block_hash"`
	MeetsTarget bool      `json:"meets_target"`
	FoundAt     time.Time `json:"found_at"`
}

// ChainStatsMessage carries periodic per-chain counters.
type ChainStatsMessage struct {
	ChainID        int       `json:"chain_id"`
	ChipCount      int       `json:"chip_count"`
	AssignmentsOut uint64    `json:"assignments_out"`
	SolutionsIn    uint64    `json:"solutions_in"`
	StaleSolutions uint64    `json:"stale_solutions"`
	CollectedAt    time.Time `json:"collected_at"`
}

// CommandMessage is an operator command applied to the client group:
// enable or disable a client by name, or move a client between positions.
type CommandMessage struct {
	Action     string    `json:"action"`
	ClientName string    `json:"client_name,omitempty"`
	IndexFrom  int       `json:"index_from,omitempty"`
	IndexTo    int       `json:"index_to,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

// ClientStatsMessage carries per-client scheduling counters.
type ClientStatsMessage struct {
	ClientName      string    `json:"client_name"`
	Enabled         bool      `json:"enabled"`
	Status          string    `json:"status"`
	PercentageShare float64   `json:"percentage_share"`
	GeneratedWork   uint64    `json:"generated_work"`
	CollectedAt     time.Time `json:"collected_at"`
}
