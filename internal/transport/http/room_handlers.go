package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	hub      *core.Hub
	pageSize int
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, pageSize int, logger *zerolog.Logger) *RoomHandlers {
	if pageSize <= 0 {
		pageSize = core.DefaultPageSize
	}
	return &RoomHandlers{
		hub:      hub,
		pageSize: pageSize,
		log:      logger,
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// MessageResponse represents a stored message in API responses.
type MessageResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// HistoryResponse is one page of room history, oldest-first.
type HistoryResponse struct {
	Messages []MessageResponse `json:"messages"`
	Page     int               `json:"page"`
	HasMore  bool              `json:"hasMore"`
}

type historyQuery struct {
	Page  *int `form:"page" binding:"omitempty,min=1"`
	Limit *int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListRooms lists every room ordered by name.
// GET /rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.hub.Directory().List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "rooms are temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(rooms, func(r *store.Room, _ int) RoomResponse {
		return RoomResponse{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339)}
	}))
}

// History returns one page of a room's messages.
// GET /rooms/:roomName/messages?page=1&limit=20
func (h *RoomHandlers) History(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.log.Debug().Err(err).Msg("invalid history query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "page must be >= 1 and limit between 1 and 100"})
		return
	}
	number, size := lo.FromPtrOr(q.Page, 1), lo.FromPtrOr(q.Limit, h.pageSize)

	roomName := c.Param("roomName")
	page, err := h.hub.History().LoadPage(c.Request.Context(), roomName, number, size)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid history request"})
		return
	case errors.Is(err, core.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	default:
		h.log.Error().Err(err).Str("room", roomName).Msg("failed to load history")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "failed to load messages, try again"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Messages: lo.Map(page.Messages, func(m core.Message, _ int) MessageResponse {
			return MessageResponse{
				ID:        m.ID,
				Username:  m.From,
				Message:   m.Text,
				CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
		}),
		Page:    page.Number,
		HasMore: page.HasMore(),
	})
}
