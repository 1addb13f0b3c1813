package core

import (
	"sync"

	"github.com/samber/lo"
)

// Registry indexes live connections and their room membership.
// Each method takes the lock for a single mutation or snapshot; fan-out happens outside of it.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Client
	member  map[string]string              // connID -> roomID
	members map[string]map[string]struct{} // roomID -> set of connIDs
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]*Client),
		member:  make(map[string]string),
		members: make(map[string]map[string]struct{}),
	}
}

// Register records a connection with no room.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// SetRoom moves a connection into roomID, leaving its previous room first.
// Returns false if the connection is unknown or already in roomID.
func (r *Registry) SetRoom(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return false
	}
	prev, inRoom := r.member[connID]
	if inRoom && prev == roomID {
		return false
	}
	if inRoom {
		r.removeLocked(connID, prev)
	}

	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[connID] = struct{}{}
	r.member[connID] = roomID
	return true
}

// ClearRoom removes a connection from roomID if it is currently there.
func (r *Registry) ClearRoom(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.member[connID]; !ok || cur != roomID {
		return false
	}
	r.removeLocked(connID, roomID)
	return true
}

// Unregister forgets a connection and returns the room it was in, if any.
func (r *Registry) Unregister(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := r.member[connID]
	if roomID != "" {
		r.removeLocked(connID, roomID)
	}
	delete(r.conns, connID)
	return roomID
}

func (r *Registry) removeLocked(connID, roomID string) {
	delete(r.member, connID)
	set := r.members[roomID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, roomID)
	}
}

// RoomOf returns the room a connection is subscribed to, or "".
func (r *Registry) RoomOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.member[connID]
}

// SubscribersOf returns a snapshot of the connections subscribed to roomID.
func (r *Registry) SubscribersOf(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(lo.Keys(r.members[roomID]), func(id string, _ int) (*Client, bool) {
		c, ok := r.conns[id]
		return c, ok
	})
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.conns)
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
