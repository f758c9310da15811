package main

import (
	"context"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/log"
)

func commandPayload(t *testing.T, cmd messaging.CommandMessage) *structpb.Struct {
	t.Helper()
	cmd.IssuedAt = time.Now().UTC()
	payload, err := messaging.CommandToProto(cmd)
	if err != nil {
		t.Fatalf("CommandToProto failed: %v", err)
	}
	return payload
}

func TestCommandHandler_EnableDisable(t *testing.T) {
	group := client.NewGroup(2, nil)
	group.AddClient(client.NewHandle(client.Descriptor{Name: "feed-0", Enable: true}, newStubNode()))

	handler := newCommandHandler(group, log.New("test", "test", "error", "text"))
	ctx := context.Background()

	err := handler.HandleMessage(ctx, "feed-0", commandPayload(t, messaging.CommandMessage{
		Action:     messaging.CommandDisable,
		ClientName: "feed-0",
	}))
	if err != nil {
		t.Fatalf("Disable command failed: %v", err)
	}
	if group.Clients()[0].IsEnabled() {
		t.Error("Expected the client disabled")
	}

	err = handler.HandleMessage(ctx, "feed-0", commandPayload(t, messaging.CommandMessage{
		Action:     messaging.CommandEnable,
		ClientName: "feed-0",
	}))
	if err != nil {
		t.Fatalf("Enable command failed: %v", err)
	}
	if !group.Clients()[0].IsEnabled() {
		t.Error("Expected the client enabled")
	}
}

func TestCommandHandler_Move(t *testing.T) {
	group := client.NewGroup(2, nil)
	group.AddClient(client.NewHandle(client.Descriptor{Name: "feed-0"}, newStubNode()))
	group.AddClient(client.NewHandle(client.Descriptor{Name: "feed-1"}, newStubNode()))

	handler := newCommandHandler(group, log.New("test", "test", "error", "text"))

	err := handler.HandleMessage(context.Background(), "", commandPayload(t, messaging.CommandMessage{
		Action:    messaging.CommandMove,
		IndexFrom: 1,
		IndexTo:   0,
	}))
	if err != nil {
		t.Fatalf("Move command failed: %v", err)
	}

	if got := group.Clients()[0].Descriptor.Name; got != "feed-1" {
		t.Errorf("Expected feed-1 first after the move, got %s", got)
	}
}

func TestCommandHandler_Errors(t *testing.T) {
	group := client.NewGroup(2, nil)
	group.AddClient(client.NewHandle(client.Descriptor{Name: "feed-0"}, newStubNode()))

	handler := newCommandHandler(group, log.New("test", "test", "error", "text"))
	ctx := context.Background()

	err := handler.HandleMessage(ctx, "", commandPayload(t, messaging.CommandMessage{
		Action:     messaging.CommandEnable,
		ClientName: "no-such-client",
	}))
	if err != client.ErrMissing {
		t.Errorf("Expected ErrMissing for an unknown client, got %v", err)
	}

	err = handler.HandleMessage(ctx, "", commandPayload(t, messaging.CommandMessage{
		Action: "explode",
	}))
	if err == nil {
		t.Error("Expected an error for an unknown action")
	}
}
