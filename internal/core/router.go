package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

// Router validates inbound chat messages, persists room-scoped ones and hands them to the notifier.
type Router struct {
	dir      *Directory
	messages store.MessageStore
	notifier *Notifier
	boxes    *mailboxes
	timeout  time.Duration
	log      *zerolog.Logger
}

// HandleInbound processes one message command from c.
// Room-scoped messages are persisted and relayed on the room's mailbox, so every subscriber
// sees them in the order they were accepted. Unscoped messages go to everyone and are not stored.
func (r *Router) HandleInbound(ctx context.Context, c *Client, cmd *Command) error {
	text, err := normalizeBody(cmd.Text)
	if err != nil {
		r.log.Debug().Str("conn_id", c.ID).Msg("dropping blank message")
		return err
	}

	msg := Message{
		ID:        utils.NewID(),
		RoomID:    cmd.RoomID,
		From:      displayName(cmd.Username, c.Name),
		Text:      text,
	}

	if cmd.RoomID == "" {
		msg.CreatedAt = time.Now().UTC()
		r.notifier.Relay("", msg)
		return nil
	}

	room, err := r.dir.Lookup(ctx, cmd.RoomID)
	if err != nil {
		return err
	}

	return r.boxes.get(room.ID, room.Name).post(ctx, func(ctx context.Context) {
		// Stamped in mailbox order so timestamps follow delivery order.
		msg.CreatedAt = time.Now().UTC()
		r.persist(ctx, msg)
		r.notifier.Relay(room.ID, msg)
	})
}

// persist stores msg; failures are logged and do not block delivery.
func (r *Router) persist(ctx context.Context, msg Message) {
	sctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	err := r.messages.SaveMessage(sctx, &store.Message{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Username:  msg.From,
		Body:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		r.log.Error().Err(err).Str("room_id", msg.RoomID).Str("message_id", msg.ID).
			Msg("failed to persist message, delivering anyway")
	}
}
