package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

var errBroken = errors.New("disk on fire")

// faultyStore wraps a real store and fails selected calls.
type faultyStore struct {
	*sqlite.SQLiteStore

	mu         sync.Mutex
	saveErr    error
	saveDelay  time.Duration
	byNameErr  error
	savedCalls int
}

func (f *faultyStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	f.mu.Lock()
	f.savedCalls++
	err, delay := f.saveErr, f.saveDelay
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.SQLiteStore.SaveMessage(ctx, msg)
}

func (f *faultyStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	f.mu.Lock()
	err := f.byNameErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.SQLiteStore.GetRoomByName(ctx, name)
}

// scriptedRooms is a RoomStore whose behaviour is set per test.
type scriptedRooms struct {
	mu          sync.Mutex
	byNameCalls int
	createCalls int

	getByName func(ctx context.Context, call int, name string) (*store.Room, error)
	create    func(call int, room *store.Room) error
}

func (s *scriptedRooms) CreateRoom(_ context.Context, room *store.Room) error {
	s.mu.Lock()
	s.createCalls++
	call := s.createCalls
	s.mu.Unlock()
	if s.create == nil {
		return nil
	}
	return s.create(call, room)
}

func (s *scriptedRooms) GetRoomByID(context.Context, string) (*store.Room, error) {
	return nil, store.ErrNotFound
}

func (s *scriptedRooms) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	s.mu.Lock()
	s.byNameCalls++
	call := s.byNameCalls
	s.mu.Unlock()
	if s.getByName == nil {
		return nil, store.ErrNotFound
	}
	return s.getByName(ctx, call, name)
}

func (s *scriptedRooms) ListRooms(context.Context) ([]*store.Room, error) {
	return nil, nil
}

// mapCache is an in-memory RoomCache.
type mapCache struct {
	mu     sync.Mutex
	byName map[string]*store.Room
	byID   map[string]*store.Room
	puts   int
}

func newMapCache() *mapCache {
	return &mapCache{byName: map[string]*store.Room{}, byID: map[string]*store.Room{}}
}

func (m *mapCache) RoomByName(_ context.Context, name string) (*store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byName[name]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (m *mapCache) RoomByID(_ context.Context, id string) (*store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (m *mapCache) PutRoom(_ context.Context, room *store.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.byName[room.Name] = room
	m.byID[room.ID] = room
	return nil
}
