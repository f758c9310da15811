// Package journal persists resolved solutions to PostgreSQL for audit and
// offline analysis. The journal is write-mostly; the daemon only reads it
// back for recent-solution queries.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	// PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/errors"
	"github.com/bardlex/goasic/pkg/retry"
)

// SolutionRecord is one journaled solution row.
type SolutionRecord struct {
	ID          int64
	ClientName  string
	JobID       string
	BlockHeight int64
	ChainID     int
	WorkID      uint16
	Version     string
	NTime       string
	Nonce       string
	MidstateIdx int
	ChipAddr    int
	BlockHash   string
	MeetsTarget bool
	Reward      btcutil.Amount
	FoundAt     time.Time
	CreatedAt   time.Time
}

// Journal wraps the solutions table.
type Journal struct {
	db          *sql.DB
	retryConfig *retry.Config
}

// New opens a journal using a lib/pq connection string and verifies
// connectivity.
func New(dsn string) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "journal_open",
			"failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "journal_connect",
			"failed to ping database")
	}

	return &Journal{db: db, retryConfig: retry.StorageConfig()}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Health checks database connectivity.
func (j *Journal) Health(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// RecordFromMessage builds a journal row from a solution wire message and
// its job's coinbase reward.
func RecordFromMessage(msg messaging.SolutionMessage, reward int64) *SolutionRecord {
	return &SolutionRecord{
		ClientName:  msg.ClientName,
		JobID:       msg.JobID,
		BlockHeight: msg.BlockHeight,
		ChainID:     msg.ChainID,
		WorkID:      msg.WorkID,
		Version:     msg.Version,
		NTime:       msg.NTime,
		Nonce:       msg.Nonce,
		MidstateIdx: msg.MidstateIdx,
		ChipAddr:    msg.ChipAddr,
		BlockHash:   msg.BlockHash,
		MeetsTarget: msg.MeetsTarget,
		Reward:      btcutil.Amount(reward),
		FoundAt:     msg.FoundAt,
	}
}

// InsertSolution appends one solution row.
func (j *Journal) InsertSolution(ctx context.Context, rec *SolutionRecord) error {
	query := `
		INSERT INTO solutions (client_name, job_id, block_height, chain_id, work_id,
		       version, ntime, nonce, midstate_idx, chip_addr, block_hash,
		       meets_target, reward_sats, found_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	now := time.Now()
	err := retry.Do(ctx, j.retryConfig, func() error {
		err := j.db.QueryRowContext(ctx, query,
			rec.ClientName, rec.JobID, rec.BlockHeight, rec.ChainID, int(rec.WorkID),
			rec.Version, rec.NTime, rec.Nonce, rec.MidstateIdx, rec.ChipAddr, rec.BlockHash,
			rec.MeetsTarget, int64(rec.Reward), rec.FoundAt, now,
		).Scan(&rec.ID)

		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "journal_insert",
				"failed to insert solution").
				WithContext("job_id", rec.JobID).
				WithContext("chain_id", rec.ChainID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rec.CreatedAt = now
	return nil
}

// RecentSolutions returns the newest rows, most recent first.
func (j *Journal) RecentSolutions(ctx context.Context, limit int) ([]*SolutionRecord, error) {
	query := `
		SELECT id, client_name, job_id, block_height, chain_id, work_id,
		       version, ntime, nonce, midstate_idx, chip_addr, block_hash,
		       meets_target, reward_sats, found_at, created_at
		FROM solutions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "journal_query",
			"failed to query recent solutions")
	}
	defer func() { _ = rows.Close() }()

	var out []*SolutionRecord
	for rows.Next() {
		rec := &SolutionRecord{}
		var workID int
		var reward int64
		if err := rows.Scan(
			&rec.ID, &rec.ClientName, &rec.JobID, &rec.BlockHeight, &rec.ChainID, &workID,
			&rec.Version, &rec.NTime, &rec.Nonce, &rec.MidstateIdx, &rec.ChipAddr, &rec.BlockHash,
			&rec.MeetsTarget, &reward, &rec.FoundAt, &rec.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "journal_scan",
				"failed to scan solution row")
		}
		rec.WorkID = uint16(workID)
		rec.Reward = btcutil.Amount(reward)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "journal_rows",
			"failed to iterate solution rows")
	}
	return out, nil
}
