package work

import "sync"

// VersionMask covers the BIP 320 rollable version bits.
const VersionMask uint32 = 0x1fffe000

const (
	versionShift = 13
	versionSpace = 1 << 16 // distinct rollable versions per ntime
)

// Engine produces successive assignments for one hashboard chain. Engines
// are not safe for concurrent use; a single generation loop consumes each
// engine.
type Engine interface {
	// Next returns the next assignment, or false when the engine's
	// version/ntime space is exhausted.
	Next() (*Assignment, bool)
}

// VersionRolling generates assignments by rolling the BIP 320 version bits
// of a single job, moving to the next ntime within the job's window once
// the version space is used up.
type VersionRolling struct {
	job           *Job
	midstateCount int
	nextIndex     uint32
	ntime         uint32
	exhausted     bool
}

// NewVersionRolling creates an engine for the job. midstateCount must be a
// power of two no larger than the hardware midstate limit; the config layer
// enforces this.
func NewVersionRolling(job *Job, midstateCount int) *VersionRolling {
	return &VersionRolling{
		job:           job,
		midstateCount: midstateCount,
		ntime:         job.Time,
	}
}

// Job returns the job the engine was built from.
func (e *VersionRolling) Job() *Job {
	return e.job
}

func (e *VersionRolling) rolledVersion(index uint32) uint32 {
	return (e.job.Version &^ VersionMask) | ((index << versionShift) & VersionMask)
}

// Next implements Engine.
func (e *VersionRolling) Next() (*Assignment, bool) {
	if e.exhausted {
		return nil, false
	}

	if e.nextIndex+uint32(e.midstateCount) > versionSpace {
		if e.ntime >= e.job.MaxTime {
			e.exhausted = true
			return nil, false
		}
		e.ntime++
		e.nextIndex = 0
	}

	midstates := make([]Midstate, e.midstateCount)
	for k := range midstates {
		version := e.rolledVersion(e.nextIndex + uint32(k))
		midstates[k] = e.job.Midstate(version, e.ntime)
	}
	e.nextIndex += uint32(e.midstateCount)

	return NewAssignment(e.job, midstates, e.ntime), true
}

// EngineSender is a hot-swappable engine slot. Swapping the engine affects
// only future assignment generation; work already issued from the previous
// engine stays valid in the registry.
type EngineSender struct {
	mu     sync.Mutex
	engine Engine
}

// NewEngineSender creates a sender, optionally seeded with an engine.
func NewEngineSender(engine Engine) *EngineSender {
	return &EngineSender{engine: engine}
}

// Swap installs a new engine and returns the previous one (nil if none).
func (s *EngineSender) Swap(engine Engine) Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.engine
	s.engine = engine
	return prev
}

// Current returns the installed engine, or nil when no job has been seen
// yet.
func (s *EngineSender) Current() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}
