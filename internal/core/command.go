package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom resolves (or creates) a room by name and subscribes the client to it.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a room by id.
	CommandLeaveRoom
	// CommandSendMessage sends a chat message to a room, or to everyone when RoomID is empty.
	CommandSendMessage
	// CommandLoadHistory requests one page of a room's history.
	CommandLoadHistory
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	RoomName string
	RoomID   string
	Text     string
	Username string
	Page     int
}
