package main

import (
	"context"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/goasic/internal/client"
	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/errors"
	"github.com/bardlex/goasic/pkg/log"
)

// commandHandler applies operator commands from the command topic to the
// client group.
type commandHandler struct {
	group  *client.Group
	logger *log.Logger
}

func newCommandHandler(group *client.Group, logger *log.Logger) *commandHandler {
	return &commandHandler{
		group:  group,
		logger: logger.WithComponent("commands"),
	}
}

// HandleMessage implements messaging.MessageHandler.
func (c *commandHandler) HandleMessage(ctx context.Context, key string, msg proto.Message) error {
	cmd, err := messaging.CommandFromProto(msg)
	if err != nil {
		return err
	}

	switch cmd.Action {
	case messaging.CommandEnable:
		h, err := c.findClient(cmd.ClientName)
		if err != nil {
			return err
		}
		if err := h.TryEnable(); err != nil {
			return err
		}
	case messaging.CommandDisable:
		h, err := c.findClient(cmd.ClientName)
		if err != nil {
			return err
		}
		if err := h.TryDisable(); err != nil {
			return err
		}
	case messaging.CommandMove:
		if _, err := c.group.MoveClient(cmd.IndexFrom, cmd.IndexTo); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrorTypeValidation, "handle_command",
			"unknown command action").
			WithContext("action", cmd.Action)
	}

	c.logger.Info("applied operator command",
		"action", cmd.Action,
		"client_name", cmd.ClientName,
	)
	return nil
}

func (c *commandHandler) findClient(name string) (*client.Handle, error) {
	for _, h := range c.group.Clients() {
		if h.Descriptor.Name == name {
			return h, nil
		}
	}
	return nil, client.ErrMissing
}

// runCommandConsumer consumes operator commands until the context ends.
func (d *Daemon) runCommandConsumer(ctx context.Context) {
	handler := newCommandHandler(d.group, d.logger)
	err := d.kafkaClient.StartConsumer(ctx, messaging.TopicCommands, d.cfg.KafkaGroupID,
		func() proto.Message { return &structpb.Struct{} }, handler)
	if err != nil && ctx.Err() == nil {
		d.logger.WithError(err).Error("command consumer stopped")
	}
}
