package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Room represents a chat room. The name to id mapping never changes once created.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        string
	RoomID    string
	Username  string
	Body      string
	CreatedAt time.Time
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a room. Returns ErrConflict if the name is already taken.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all rooms ordered by name.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage appends a message to its room history.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a room, skipping the newest offset ones.
	// The result is ordered oldest-first.
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore

	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
