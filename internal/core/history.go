package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

const (
	// DefaultPageSize is the number of messages per history page.
	DefaultPageSize = 20
	// MaxPageSize caps caller-supplied page sizes.
	MaxPageSize = 100
)

// Page is one offset-addressed slice of a room's history, oldest-first.
// A page shorter than Size is the oldest page available.
type Page struct {
	RoomID   string
	RoomName string
	Number   int
	Size     int
	Messages []Message
}

// HasMore reports whether an older page may exist.
func (p *Page) HasMore() bool {
	return len(p.Messages) == p.Size
}

// HistoryLoader serves paginated room history.
type HistoryLoader struct {
	dir      *Directory
	messages store.MessageStore
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewHistoryLoader creates a loader reading from messages.
func NewHistoryLoader(dir *Directory, messages store.MessageStore, timeout time.Duration, logger *zerolog.Logger) *HistoryLoader {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &HistoryLoader{dir: dir, messages: messages, timeout: timeout, log: logger}
}

// LoadPage returns page number (1-based, newest first) of roomName's history.
// size <= 0 selects DefaultPageSize.
func (h *HistoryLoader) LoadPage(ctx context.Context, roomName string, number, size int) (*Page, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if number < 1 || size > MaxPageSize {
		return nil, opError("load history", ErrValidation, nil)
	}

	room, err := h.dir.LookupName(ctx, roomName)
	if err != nil {
		return nil, opError("load history", ErrFetch, err)
	}

	sctx, cancel := withStoreTimeout(ctx, h.timeout)
	defer cancel()
	rows, err := h.messages.ListMessages(sctx, room.ID, size, (number-1)*size)
	if err != nil {
		h.log.Error().Err(err).Str("room", room.Name).Int("page", number).Msg("failed to fetch history")
		return nil, opError("load history", ErrFetch, err)
	}

	return &Page{
		RoomID:   room.ID,
		RoomName: room.Name,
		Number:   number,
		Size:     size,
		Messages: lo.Map(rows, func(m *store.Message, _ int) Message {
			return Message{
				ID:        m.ID,
				RoomID:    m.RoomID,
				From:      m.Username,
				Text:      m.Body,
				CreatedAt: m.CreatedAt,
			}
		}),
	}, nil
}
