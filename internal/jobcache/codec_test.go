package jobcache

import (
	"testing"
	"time"

	"github.com/bardlex/goasic/internal/messaging"
)

func TestJobCodecRoundTrip(t *testing.T) {
	msg := messaging.JobMessage{
		JobID:       "feed-9",
		BlockHeight: 840123,
		PrevHash:    "00000000000000000001a4e1b2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5",
		MerkleRoot:  "4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c",
		Version:     "20000000",
		NBits:       "170331db",
		NTime:       "6553f100",
		MaxNTime:    "6553f358",
		Reward:      312500000,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	data, err := marshalJob(msg)
	if err != nil {
		t.Fatalf("marshalJob failed: %v", err)
	}

	got, err := unmarshalJob(data)
	if err != nil {
		t.Fatalf("unmarshalJob failed: %v", err)
	}

	if got != msg {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, msg)
	}
}

func TestUnmarshalJob_Malformed(t *testing.T) {
	if _, err := unmarshalJob([]byte("{broken")); err == nil {
		t.Fatal("Expected an error for malformed payload")
	}
}

func TestJobKey(t *testing.T) {
	if got := jobKey("pool-a"); got != "job:last:pool-a" {
		t.Errorf("Expected job:last:pool-a, got %s", got)
	}
}
