package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries a chat message or a System notice.
	EventMessage EventKind = iota
	// EventRoomCreated tells a joining client which room id its room name resolved to.
	EventRoomCreated
	// EventHistory delivers one page of room history.
	EventHistory
	// EventError notifies the originating client about a failed request.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	RoomID   string
	RoomName string
	Message  Message
	Messages []Message // For EventHistory
	Page     int
	HasMore  bool
	Error    *CoreError
}
