package http

import (
	"encoding/json"
	"errors"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// errDropped marks inbound frames that are discarded without a reply.
var errDropped = errors.New("inbound dropped")

// inboundToCommand validates an envelope at the boundary. A *proto.Error is sent back to the client;
// errDropped means the frame is ignored silently.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var name string
		if err := json.Unmarshal(inbound.Data, &name); err != nil {
			return nil, badRequest("joinRoom expects a room name"), nil
		}
		if err := proto.ValidateRoomName(name); err != nil {
			return nil, badRequest("room name must be 1-64 characters"), nil
		}
		return &core.Command{Kind: core.CommandJoinRoom, RoomName: name}, nil, nil

	case proto.InboundTypeLeaveRoom:
		var roomID string
		if err := json.Unmarshal(inbound.Data, &roomID); err != nil {
			return nil, badRequest("leaveRoom expects a room id"), nil
		}
		if err := proto.ValidateRoomID(roomID); err != nil {
			return nil, badRequest("room id is required"), nil
		}
		return &core.Command{Kind: core.CommandLeaveRoom, RoomID: roomID}, nil, nil

	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			// Missing or non-text bodies are dropped like blank ones.
			return nil, nil, errDropped
		}
		if err := msg.Validate(); err != nil {
			return nil, badRequest("message fields are too long"), nil
		}
		return &core.Command{
			Kind:     core.CommandSendMessage,
			RoomID:   msg.RoomID,
			Text:     msg.Message,
			Username: msg.Username,
		}, nil, nil

	case proto.InboundTypeHistory:
		var req proto.HistoryData
		if err := json.Unmarshal(inbound.Data, &req); err != nil {
			return nil, badRequest("history expects roomName and page"), nil
		}
		if err := req.Validate(); err != nil {
			return nil, badRequest("invalid history request"), nil
		}
		return &core.Command{Kind: core.CommandLoadHistory, RoomName: req.RoomName, Page: req.Page}, nil, nil

	default:
		return nil, badRequest("unknown message type"), nil
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Message: msg}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{Type: proto.OutboundTypeMessage, Data: outMessage(event.Message)}
	case core.EventRoomCreated:
		return proto.Outbound{
			Type: proto.OutboundTypeRoomCreated,
			Data: proto.RoomCreated{RoomID: event.RoomID, RoomName: event.RoomName},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type: proto.OutboundTypeHistory,
			Data: proto.History{
				RoomID:   event.RoomID,
				RoomName: event.RoomName,
				Page:     event.Page,
				Messages: lo.Map(event.Messages, func(m core.Message, _ int) proto.OutMessage { return outMessage(m) }),
				HasMore:  event.HasMore,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Data: proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Data: proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Data: proto.Error{Code: "unknown", Message: "unknown event"}}
	}
}

func outMessage(m core.Message) proto.OutMessage {
	return proto.OutMessage{
		ID:       m.ID,
		RoomID:   m.RoomID,
		Username: m.From,
		Message:  m.Text,
		TS:       m.CreatedAt.UnixMilli(),
	}
}
