package work

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func engineJob(ntime, maxNTime uint32) *Job {
	prev := chainhash.Hash{1}
	merkle := chainhash.Hash{2}
	return NewJob("job-e", 1, 0x20000000, prev, merkle, easyBits, ntime, maxNTime, 0, 1)
}

func TestVersionRolling_Next(t *testing.T) {
	job := engineJob(1000, 1000)
	engine := NewVersionRolling(job, 4)

	a, ok := engine.Next()
	if !ok {
		t.Fatal("Expected first assignment")
	}

	if a.MidstateCount() != 4 {
		t.Errorf("Expected 4 midstates, got %d", a.MidstateCount())
	}

	if a.Time != 1000 {
		t.Errorf("Expected assignment time 1000, got %d", a.Time)
	}

	// Every midstate's version must stay within the job version plus the
	// rollable mask
	for i, m := range a.Midstates {
		if m.Version&^(0x20000000|VersionMask) != 0 {
			t.Errorf("Midstate %d version %#x rolls bits outside the mask", i, m.Version)
		}
	}
}

func TestVersionRolling_VersionsUnique(t *testing.T) {
	job := engineJob(1000, 1000)
	engine := NewVersionRolling(job, 2)

	seen := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		a, ok := engine.Next()
		if !ok {
			t.Fatalf("Engine exhausted unexpectedly at assignment %d", i)
		}
		for _, m := range a.Midstates {
			if seen[m.Version] {
				t.Fatalf("Version %#x issued twice", m.Version)
			}
			seen[m.Version] = true
		}
	}
}

func TestVersionRolling_NTimeRollover(t *testing.T) {
	job := engineJob(1000, 1001)
	engine := NewVersionRolling(job, 4)

	perNTime := versionSpace / 4
	for i := 0; i < perNTime; i++ {
		a, ok := engine.Next()
		if !ok {
			t.Fatalf("Engine exhausted during first ntime at %d", i)
		}
		if a.Time != 1000 {
			t.Fatalf("Expected ntime 1000 during first window, got %d", a.Time)
		}
	}

	a, ok := engine.Next()
	if !ok {
		t.Fatal("Expected rollover into second ntime")
	}
	if a.Time != 1001 {
		t.Errorf("Expected ntime 1001 after rollover, got %d", a.Time)
	}
}

func TestVersionRolling_Exhaustion(t *testing.T) {
	job := engineJob(1000, 1000)
	engine := NewVersionRolling(job, 4)

	perNTime := versionSpace / 4
	for i := 0; i < perNTime; i++ {
		if _, ok := engine.Next(); !ok {
			t.Fatalf("Engine exhausted early at %d", i)
		}
	}

	if _, ok := engine.Next(); ok {
		t.Error("Expected exhaustion once version and ntime space is spent")
	}

	// Exhaustion is sticky
	if _, ok := engine.Next(); ok {
		t.Error("Expected exhausted engine to stay exhausted")
	}
}

func TestEngineSender_Swap(t *testing.T) {
	sender := NewEngineSender(nil)

	if sender.Current() != nil {
		t.Error("Expected empty sender to return nil engine")
	}

	first := NewVersionRolling(engineJob(1000, 1000), 1)
	if prev := sender.Swap(first); prev != nil {
		t.Errorf("Expected nil previous engine, got %v", prev)
	}

	second := NewVersionRolling(engineJob(2000, 2000), 1)
	prev := sender.Swap(second)
	if prev != Engine(first) {
		t.Error("Expected swap to return the first engine")
	}

	if sender.Current() != Engine(second) {
		t.Error("Expected current engine to be the second one")
	}
}
