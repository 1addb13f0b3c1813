package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Storage is the persistence the hub needs.
type Storage interface {
	store.RoomStore
	store.MessageStore
}

// Option customizes a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithRoomCache puts a shared cache in front of the room table.
func WithRoomCache(cache RoomCache) Option {
	return func(h *Hub) { h.cache = cache }
}

// WithStoreTimeout bounds each storage call.
func WithStoreTimeout(d time.Duration) Option {
	return func(h *Hub) { h.timeout = d }
}

// WithMailboxSize sets how many jobs a room may have queued.
func WithMailboxSize(n int) Option {
	return func(h *Hub) { h.mailboxSize = n }
}

// WithDrainTimeout bounds how long Run waits for queued work after its context is cancelled.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *Hub) { h.drainTimeout = d }
}

// WithPageSize sets the history page size used for socket history requests.
func WithPageSize(n int) Option {
	return func(h *Hub) { h.pageSize = n }
}

// Hub coordinates connections, rooms and message delivery.
//
// Each registered client gets one worker goroutine that handles its commands in order,
// so a slow storage call only delays that client. Work touching a room's membership or
// fan-out is funneled through the room's mailbox.
type Hub struct {
	registry  *Registry
	directory *Directory
	notifier  *Notifier
	router    *Router
	history   *HistoryLoader
	boxes     *mailboxes

	cache       RoomCache
	timeout     time.Duration
	mailboxSize  int
	pageSize     int
	drainTimeout time.Duration
	log          *zerolog.Logger

	// ctx outlives the Run context until queued work is drained.
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewHub creates a new chat hub instance.
func NewHub(st Storage, opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		timeout:      DefaultStoreTimeout,
		pageSize:     DefaultPageSize,
		drainTimeout: DefaultDrainTimeout,
		log:          &nop,
		stopping:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.drainTimeout <= 0 {
		h.drainTimeout = DefaultDrainTimeout
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.registry = NewRegistry()
	h.directory = NewDirectory(st, h.cache, h.timeout, h.log)
	h.notifier = NewNotifier(h.registry, h.log)
	h.boxes = newMailboxes(h.ctx, h.mailboxSize, h.log)
	h.history = NewHistoryLoader(h.directory, st, h.timeout, h.log)
	h.router = &Router{
		dir:      h.directory,
		messages: st,
		notifier: h.notifier,
		boxes:    h.boxes,
		timeout:  h.timeout,
		log:      h.log,
	}
	return h
}

// Run blocks until ctx is cancelled, then shuts down gracefully: new clients are refused,
// commands already queued by clients are handled, and every room mailbox is emptied.
// Work still running after the drain timeout has its storage calls cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	close(h.stopping)
	h.mu.Unlock()

	deadline := time.NewTimer(h.drainTimeout)
	defer deadline.Stop()

	h.drain(h.wg.Wait, deadline.C)
	// Client workers are the only producers for room mailboxes.
	h.boxes.close()
	h.drain(h.boxes.wait, deadline.C)
	h.cancel()
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) drain(wait func(), deadline <-chan time.Time) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
	case <-deadline:
		h.log.Warn().Dur("timeout", h.drainTimeout).Msg("drain timeout reached, cancelling in-flight work")
		h.cancel()
		<-done
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Directory exposes the room directory.
func (h *Hub) Directory() *Directory { return h.directory }

// History exposes the history loader.
func (h *Hub) History() *HistoryLoader { return h.history }

// RegisterClient records the client and starts handling its commands.
// Returns false once the hub is stopping; the client is then never served.
func (h *Hub) RegisterClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	h.registry.Register(c)
	h.log.Debug().Str("conn_id", c.ID).Str("user", c.Name).Msg("client registered")

	h.wg.Add(1)
	go h.serve(c)
	return true
}

// UnregisterClient stops the client; its room is left once queued commands are handled.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
}

func (h *Hub) serve(c *Client) {
	defer h.wg.Done()
	defer close(c.done)
	defer h.disconnect(c)

	for {
		select {
		case <-h.stopping:
			h.flush(c)
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			if cmd != nil {
				h.dispatch(c, cmd)
			}
		}
	}
}

// flush handles the commands c has already queued.
func (h *Hub) flush(c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			if cmd != nil {
				h.dispatch(c, cmd)
			}
		default:
			return
		}
	}
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("conn_id", c.ID).Msg("command handler panicked")
		}
	}()

	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(c, cmd)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd)
	case CommandSendMessage:
		h.handleMessage(c, cmd)
	case CommandLoadHistory:
		h.handleHistory(c, cmd)
	default:
		h.fail(c, ErrCodeBadRequest, "unknown command", nil)
	}
}

func (h *Hub) handleJoin(c *Client, cmd *Command) {
	name := strings.TrimSpace(cmd.RoomName)
	if name == "" {
		h.fail(c, ErrCodeBadRequest, "room name is required", nil)
		return
	}

	room, err := h.directory.ResolveOrCreate(h.ctx, name)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			h.fail(c, ErrCodeBadRequest, "invalid room name", err)
			return
		}
		h.fail(c, ErrCodeJoinFailed, "failed to join room", err)
		return
	}

	joined := &Event{Kind: EventRoomCreated, RoomID: room.ID, RoomName: room.Name}
	if h.registry.RoomOf(c.ID) == room.ID {
		c.Send(joined)
		return
	}

	if prev := h.registry.RoomOf(c.ID); prev != "" {
		// Once stopping is forced the new room's mailbox refuses work; stay in prev.
		if err := h.ctx.Err(); err != nil {
			h.fail(c, ErrCodeJoinFailed, "failed to join room", err)
			return
		}
		h.leave(c, prev)
	}

	err = h.boxes.get(room.ID, room.Name).do(h.ctx, func(context.Context) {
		if !h.registry.SetRoom(c.ID, room.ID) {
			return
		}
		c.Send(joined)
		h.notifier.AnnounceJoin(room.ID, c.Name)
	})
	if err != nil {
		h.fail(c, ErrCodeJoinFailed, "failed to join room", err)
		return
	}
	h.log.Debug().Str("conn_id", c.ID).Str("room", room.Name).Msg("client joined room")
}

func (h *Hub) handleLeave(c *Client, cmd *Command) {
	if cmd.RoomID == "" {
		h.fail(c, ErrCodeBadRequest, "room id is required", nil)
		return
	}
	if h.registry.RoomOf(c.ID) != cmd.RoomID {
		h.log.Debug().Str("conn_id", c.ID).Str("room_id", cmd.RoomID).Msg("leave for a room the client is not in")
		return
	}
	h.leave(c, cmd.RoomID)
}

// leave removes c from roomID and tells the remaining subscribers.
func (h *Hub) leave(c *Client, roomID string) {
	err := h.boxes.get(roomID, "").do(h.ctx, func(context.Context) {
		if h.registry.ClearRoom(c.ID, roomID) {
			h.notifier.AnnounceLeave(roomID, c.Name)
		}
	})
	if err != nil {
		// Shutting down: drop the membership without a notice.
		h.registry.ClearRoom(c.ID, roomID)
	}
}

func (h *Hub) handleMessage(c *Client, cmd *Command) {
	err := h.router.HandleInbound(h.ctx, c, cmd)
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		// Blank messages are dropped without a reply.
	case errors.Is(err, ErrRoomNotFound):
		h.fail(c, ErrCodeRoomNotFound, "room not found", err)
	default:
		h.fail(c, ErrCodeMessageFailed, "failed to send message", err)
	}
}

func (h *Hub) handleHistory(c *Client, cmd *Command) {
	page, err := h.history.LoadPage(h.ctx, cmd.RoomName, cmd.Page, h.pageSize)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.fail(c, ErrCodeBadRequest, "invalid history request", err)
		case errors.Is(err, ErrRoomNotFound):
			h.fail(c, ErrCodeRoomNotFound, "room not found", err)
		default:
			h.fail(c, ErrCodeHistoryFailed, "failed to load messages, try again", err)
		}
		return
	}

	c.Send(&Event{
		Kind:     EventHistory,
		RoomID:   page.RoomID,
		RoomName: page.RoomName,
		Messages: page.Messages,
		Page:     page.Number,
		HasMore:  page.HasMore(),
	})
}

func (h *Hub) disconnect(c *Client) {
	if roomID := h.registry.RoomOf(c.ID); roomID != "" {
		h.leave(c, roomID)
	}
	h.registry.Unregister(c.ID)
	h.log.Debug().Str("conn_id", c.ID).Msg("client unregistered")
}

func (h *Hub) fail(c *Client, code, msg string, err error) {
	ev := h.log.Warn().Str("conn_id", c.ID).Str("code", code)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
	c.Send(&Event{Kind: EventError, Error: coreError(code, msg)})
}

// Greet sends a System notice to c alone.
func (h *Hub) Greet(c *Client, text string) bool {
	return c.Send(&Event{Kind: EventMessage, Message: systemMessage("", text)})
}
