package proto

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom  = "joinRoom"
	InboundTypeLeaveRoom = "leaveRoom"
	InboundTypeMessage   = "message"
	InboundTypeHistory   = "history"

	OutboundTypeMessage     = "message"
	OutboundTypeRoomCreated = "roomCreated"
	OutboundTypeHistory     = "history"
	OutboundTypeError       = "error"

	// MaxRoomNameLen mirrors the room directory's limit.
	MaxRoomNameLen = 64
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MessageData is a chat message from the client. RoomID is empty for a message to everyone.
type MessageData struct {
	RoomID   string `json:"roomId,omitempty" validate:"omitempty,max=64"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty" validate:"max=64"`
}

// Validate checks field limits. Blank bodies are left to the core.
func (d MessageData) Validate() error {
	return validate.Struct(d)
}

// HistoryData requests one page of a room's history.
type HistoryData struct {
	RoomName string `json:"roomName" validate:"required,max=64"`
	Page     int    `json:"page" validate:"min=1"`
}

// Validate checks the request.
func (d *HistoryData) Validate() error {
	d.RoomName = strings.TrimSpace(d.RoomName)
	if d.Page == 0 {
		d.Page = 1
	}
	return validate.Struct(d)
}

// ValidateRoomName checks a joinRoom payload.
func ValidateRoomName(name string) error {
	return validate.Var(strings.TrimSpace(name), "required,max=64")
}

// ValidateRoomID checks a leaveRoom payload.
func ValidateRoomID(id string) error {
	return validate.Var(id, "required,max=64")
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// OutMessage is a chat message or System notice.
type OutMessage struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
}

// RoomCreated tells a joining client which room id its room name resolved to.
type RoomCreated struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// History is one page of room history, oldest-first.
type History struct {
	RoomID   string       `json:"roomId"`
	RoomName string       `json:"roomName"`
	Page     int          `json:"page"`
	Messages []OutMessage `json:"messages"`
	HasMore  bool         `json:"hasMore"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
