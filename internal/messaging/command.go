package messaging

import (
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/goasic/pkg/errors"
)

// Operator command actions accepted on TopicCommands.
const (
	CommandEnable  = "enable"
	CommandDisable = "disable"
	CommandMove    = "move"
)

// CommandToProto encodes an operator command for the command topic.
func CommandToProto(cmd CommandMessage) (*structpb.Struct, error) {
	payload, err := structpb.NewStruct(map[string]any{
		"action":      cmd.Action,
		"client_name": cmd.ClientName,
		"index_from":  float64(cmd.IndexFrom),
		"index_to":    float64(cmd.IndexTo),
		"issued_at":   cmd.IssuedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "encode_command",
			"failed to encode command payload")
	}
	return payload, nil
}

// CommandFromProto decodes an operator command consumed from the command
// topic.
func CommandFromProto(msg proto.Message) (CommandMessage, error) {
	payload, ok := msg.(*structpb.Struct)
	if !ok {
		return CommandMessage{}, errors.New(errors.ErrorTypeValidation, "decode_command",
			"unexpected command payload type")
	}

	fields := payload.AsMap()
	var cmd CommandMessage
	cmd.Action, _ = fields["action"].(string)
	cmd.ClientName, _ = fields["client_name"].(string)
	if v, ok := fields["index_from"].(float64); ok {
		cmd.IndexFrom = int(v)
	}
	if v, ok := fields["index_to"].(float64); ok {
		cmd.IndexTo = int(v)
	}

	if cmd.Action == "" {
		return CommandMessage{}, errors.New(errors.ErrorTypeValidation, "decode_command",
			"command payload has no action")
	}
	return cmd, nil
}
