// Package work defines the unit of hashing work handed to ASIC chains and
// the solutions that come back. A Job describes a block to mine, an
// Assignment is a version-rolled slice of that job sized for one chain, and
// a Solution is a nonce the hardware found for an Assignment.
package work

import (
	"bytes"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// WorkID correlates hardware-returned solutions with outstanding
// assignments. The hardware imposes a small ID space, so IDs are reused
// cyclically by the registry.
type WorkID uint16

// SourceID identifies the upstream client a job originated from. Two jobs
// carry the same SourceID iff they came from the same client node instance.
type SourceID uint64

var sourceCounter atomic.Uint64

// NextSourceID allocates a process-unique source identity token.
func NextSourceID() SourceID {
	return SourceID(sourceCounter.Add(1))
}

// Job is an immutable description of a mining target. It is shared by
// reference between every assignment derived from it; nothing mutates a Job
// after construction.
type Job struct {
	ID         string
	Height     int64
	Version    uint32
	PrevHash   chainhash.Hash
	MerkleRoot chainhash.Hash
	Bits       uint32
	Time       uint32 // base ntime
	MaxTime    uint32 // upper bound of the rollable ntime window
	Reward     int64  // coinbase value in satoshis

	Origin SourceID

	target *big.Int
}

// NewJob builds a job and precomputes its proof-of-work target from the
// compact bits field.
func NewJob(id string, height int64, version uint32, prevHash, merkleRoot chainhash.Hash,
	bits, ntime, maxNTime uint32, reward int64, origin SourceID) *Job {
	if maxNTime < ntime {
		maxNTime = ntime
	}
	return &Job{
		ID:         id,
		Height:     height,
		Version:    version,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Bits:       bits,
		Time:       ntime,
		MaxTime:    maxNTime,
		Reward:     reward,
		Origin:     origin,
		target:     blockchain.CompactToBig(bits),
	}
}

// Target returns the proof-of-work target encoded by the job's bits field.
func (j *Job) Target() *big.Int {
	return j.target
}

// Header assembles the 80-byte block header for the given rolled version,
// ntime and nonce.
func (j *Job) Header(version, ntime, nonce uint32) wire.BlockHeader {
	return wire.BlockHeader{
		Version:    int32(version),
		PrevBlock:  j.PrevHash,
		MerkleRoot: j.MerkleRoot,
		Timestamp:  time.Unix(int64(ntime), 0),
		Bits:       j.Bits,
		Nonce:      nonce,
	}
}

// Midstate computes the partial hash state for the first 64-byte chunk of
// the header under the given rolled version and ntime. The hardware resumes
// hashing from this state, so work for several versions of one job can be
// fanned out without re-deriving the job.
func (j *Job) Midstate(version, ntime uint32) Midstate {
	hdr := j.Header(version, ntime, 0)

	var buf bytes.Buffer
	buf.Grow(wire.MaxBlockHeaderPayload)
	// Serialize cannot fail on a bytes.Buffer.
	_ = hdr.Serialize(&buf)

	var state [32]byte
	copy(state[:], chainhash.DoubleHashB(buf.Bytes()[:64]))

	return Midstate{Version: version, State: state}
}

// Midstate is a fixed-size partial hash state tagged with the version it
// was derived under.
type Midstate struct {
	Version uint32
	State   [32]byte
}

// Assignment is one unit of work pushed into a hashboard TX FIFO: a shared
// job reference plus an ordered sequence of midstates. Immutable once
// created; the registry and the pump share it by reference.
type Assignment struct {
	Job       *Job
	Midstates []Midstate
	Time      uint32 // ntime the midstates were derived under
	IssuedAt  time.Time
}

// NewAssignment creates an assignment for the given job and midstates.
func NewAssignment(job *Job, midstates []Midstate, ntime uint32) *Assignment {
	return &Assignment{
		Job:       job,
		Midstates: midstates,
		Time:      ntime,
		IssuedAt:  time.Now(),
	}
}

// MidstateCount returns the number of midstates carried by the assignment.
func (a *Assignment) MidstateCount() int {
	return len(a.Midstates)
}

// Origin returns the identity of the client whose job produced this
// assignment.
func (a *Assignment) Origin() SourceID {
	return a.Job.Origin
}

// Solution is a candidate result returned by hardware, resolved back to the
// assignment that produced it.
type Solution struct {
	Assignment  *Assignment
	Job         *Job
	WorkID      WorkID
	Nonce       uint32
	MidstateIdx int
	ChipAddr    int
	ChainID     int // filled in by the pump that resolved the reply
	ReceivedAt  time.Time
}

// NewSolution ties a hardware reply to its resolved assignment. The
// midstate index is clamped by the caller; assignments always carry at
// least one midstate.
func NewSolution(a *Assignment, id WorkID, nonce uint32, midstateIdx, chipAddr int) *Solution {
	return &Solution{
		Assignment:  a,
		Job:         a.Job,
		WorkID:      id,
		Nonce:       nonce,
		MidstateIdx: midstateIdx,
		ChipAddr:    chipAddr,
		ReceivedAt:  time.Now(),
	}
}

// Origin returns the identity of the client the solution belongs to.
func (s *Solution) Origin() SourceID {
	return s.Job.Origin
}

// Version returns the rolled version the matched midstate was derived under.
func (s *Solution) Version() uint32 {
	return s.Assignment.Midstates[s.MidstateIdx].Version
}

// Header reconstructs the full block header for this solution.
func (s *Solution) Header() wire.BlockHeader {
	return s.Job.Header(s.Version(), s.Assignment.Time, s.Nonce)
}

// Hash returns the double-SHA256 block hash of the solution's header.
func (s *Solution) Hash() chainhash.Hash {
	hdr := s.Header()
	return hdr.BlockHash()
}

// MeetsTarget reports whether the solution's hash satisfies the job's
// proof-of-work target.
func (s *Solution) MeetsTarget() bool {
	hash := s.Hash()
	return blockchain.HashToBig(&hash).Cmp(s.Job.Target()) <= 0
}
