package messaging

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestCommandRoundTrip(t *testing.T) {
	cmd := CommandMessage{
		Action:     CommandMove,
		ClientName: "feed-0",
		IndexFrom:  2,
		IndexTo:    0,
		IssuedAt:   time.Now().UTC(),
	}

	payload, err := CommandToProto(cmd)
	if err != nil {
		t.Fatalf("CommandToProto failed: %v", err)
	}

	got, err := CommandFromProto(payload)
	if err != nil {
		t.Fatalf("CommandFromProto failed: %v", err)
	}

	if got.Action != cmd.Action {
		t.Errorf("Expected action %s, got %s", cmd.Action, got.Action)
	}
	if got.ClientName != cmd.ClientName {
		t.Errorf("Expected client %s, got %s", cmd.ClientName, got.ClientName)
	}
	if got.IndexFrom != cmd.IndexFrom || got.IndexTo != cmd.IndexTo {
		t.Errorf("Expected move %d->%d, got %d->%d",
			cmd.IndexFrom, cmd.IndexTo, got.IndexFrom, got.IndexTo)
	}
}

func TestCommandFromProto_MissingAction(t *testing.T) {
	payload, err := structpb.NewStruct(map[string]any{"client_name": "feed-0"})
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}

	if _, err := CommandFromProto(payload); err == nil {
		t.Error("Expected an error for a command without an action")
	}
}

func TestCommandFromProto_WrongPayloadType(t *testing.T) {
	if _, err := CommandFromProto(structpb.NewBoolValue(true)); err == nil {
		t.Error("Expected an error for a non-struct payload")
	}
}
