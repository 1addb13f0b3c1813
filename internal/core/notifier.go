package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

// Notifier emits join/leave notices and relays chat messages to subscribers.
type Notifier struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewNotifier creates a notifier delivering to the registry's connections.
func NewNotifier(registry *Registry, logger *zerolog.Logger) *Notifier {
	return &Notifier{registry: registry, log: logger}
}

// AnnounceJoin tells the room (including the joiner) that displayName joined.
func (n *Notifier) AnnounceJoin(roomID, displayName string) int {
	return n.Relay(roomID, systemMessage(roomID, fmt.Sprintf("%s joined the room", displayName)))
}

// AnnounceLeave tells the remaining subscribers that displayName left.
func (n *Notifier) AnnounceLeave(roomID, displayName string) int {
	return n.Relay(roomID, systemMessage(roomID, fmt.Sprintf("%s left the room", displayName)))
}

// Relay delivers msg to the subscribers of roomID, or to every connection when roomID is empty.
// Returns the number of connections that accepted the event.
func (n *Notifier) Relay(roomID string, msg Message) int {
	var targets []*Client
	if roomID == "" {
		targets = n.registry.All()
	} else {
		targets = n.registry.SubscribersOf(roomID)
	}

	ev := &Event{Kind: EventMessage, RoomID: roomID, Message: msg}
	delivered := 0
	for _, c := range targets {
		if c.Send(ev) {
			delivered++
			continue
		}
		n.log.Warn().Str("conn_id", c.ID).Str("room_id", roomID).Msg("dropping event for slow client")
	}
	return delivered
}

func systemMessage(roomID, text string) Message {
	return Message{
		ID:        utils.NewID(),
		RoomID:    roomID,
		From:      SystemSender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
