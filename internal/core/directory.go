package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

const (
	// DefaultStoreTimeout bounds every storage call made by the core.
	DefaultStoreTimeout = 3 * time.Second
	// DefaultDrainTimeout bounds the hub's graceful stop.
	DefaultDrainTimeout = 10 * time.Second

	maxRoomNameLen     = 64
	maxResolveAttempts = 3
)

// RoomCache is an optional shared cache for the room name/id mapping.
// Misses are reported as store.ErrNotFound.
type RoomCache interface {
	RoomByName(ctx context.Context, name string) (*store.Room, error)
	RoomByID(ctx context.Context, id string) (*store.Room, error)
	PutRoom(ctx context.Context, room *store.Room) error
}

// Directory maps room names to room ids, creating rooms on first reference.
type Directory struct {
	rooms   store.RoomStore
	cache   RoomCache
	timeout time.Duration
	log     *zerolog.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	byName map[string]*store.Room
	byID   map[string]*store.Room
}

// NewDirectory creates a directory over the room table. cache may be nil.
func NewDirectory(rooms store.RoomStore, cache RoomCache, timeout time.Duration, logger *zerolog.Logger) *Directory {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Directory{
		rooms:   rooms,
		cache:   cache,
		timeout: timeout,
		log:     logger,
		byName:  make(map[string]*store.Room),
		byID:    make(map[string]*store.Room),
	}
}

// ResolveOrCreate returns the room named name, creating it if it does not exist yet.
// Concurrent calls for the same unseen name resolve to the same room.
// The result always has a row in the room table; the cache only seeds the id of a missing row.
func (d *Directory) ResolveOrCreate(ctx context.Context, name string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLen {
		return nil, opError("resolve room", ErrValidation, nil)
	}
	if room, ok := d.memoByName(name); ok {
		return room, nil
	}

	v, err, _ := d.group.Do(name, func() (any, error) {
		return d.resolve(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Room), nil
}

func (d *Directory) resolve(ctx context.Context, name string) (*store.Room, error) {
	id := utils.NewID()
	if cached := d.fromCache(ctx, name, ""); cached != nil {
		// Keep ids handed out by other processes stable if this table lost the row.
		id = cached.ID
	}

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		room, err := d.getByName(ctx, name)
		if err == nil {
			d.remember(room)
			return room, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, opError("resolve room", ErrStorage, err)
		}

		room = &store.Room{ID: id, Name: name, CreatedAt: time.Now().UTC()}
		err = d.create(ctx, room)
		if err == nil {
			d.log.Info().Str("room", name).Str("room_id", room.ID).Msg("room created")
			d.remember(room)
			return room, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, opError("create room", ErrStorage, err)
		}
		// Another writer won the insert; look it up again.
		d.log.Debug().Str("room", name).Msg("room creation conflict, retrying lookup")
		id = utils.NewID()
	}
	return nil, opError("resolve room", ErrStorage, errors.New("room creation kept conflicting"))
}

// Lookup returns the room with the given id without creating anything.
// Cache hits are trusted as-is.
func (d *Directory) Lookup(ctx context.Context, id string) (*store.Room, error) {
	if id == "" {
		return nil, opError("lookup room", ErrRoomNotFound, nil)
	}
	if room, ok := d.memoByID(id); ok {
		return room, nil
	}
	if room := d.fromCache(ctx, "", id); room != nil {
		d.remember(room)
		return room, nil
	}

	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()
	room, err := d.rooms.GetRoomByID(sctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opError("lookup room", ErrRoomNotFound, err)
		}
		return nil, opError("lookup room", ErrStorage, err)
	}
	d.remember(room)
	return room, nil
}

// LookupName returns the room with the given name without creating it.
func (d *Directory) LookupName(ctx context.Context, name string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, opError("lookup room", ErrRoomNotFound, nil)
	}
	if room, ok := d.memoByName(name); ok {
		return room, nil
	}
	if room := d.fromCache(ctx, name, ""); room != nil {
		d.remember(room)
		return room, nil
	}

	room, err := d.getByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opError("lookup room", ErrRoomNotFound, err)
		}
		return nil, opError("lookup room", ErrStorage, err)
	}
	d.remember(room)
	return room, nil
}

// List returns every known room.
func (d *Directory) List(ctx context.Context) ([]*store.Room, error) {
	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()
	rooms, err := d.rooms.ListRooms(sctx)
	if err != nil {
		return nil, opError("list rooms", ErrStorage, err)
	}
	return rooms, nil
}

func (d *Directory) getByName(ctx context.Context, name string) (*store.Room, error) {
	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()
	return d.rooms.GetRoomByName(sctx, name)
}

func (d *Directory) create(ctx context.Context, room *store.Room) error {
	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()
	return d.rooms.CreateRoom(sctx, room)
}

// fromCache consults the shared cache; cache failures are logged and treated as misses.
func (d *Directory) fromCache(ctx context.Context, name, id string) *store.Room {
	if d.cache == nil {
		return nil
	}
	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()

	var (
		room *store.Room
		err  error
	)
	if id != "" {
		room, err = d.cache.RoomByID(sctx, id)
	} else {
		room, err = d.cache.RoomByName(sctx, name)
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Warn().Err(err).Msg("room cache lookup failed")
		}
		return nil
	}
	return room
}

func (d *Directory) remember(room *store.Room) {
	d.mu.Lock()
	_, known := d.byID[room.ID]
	d.byName[room.Name] = room
	d.byID[room.ID] = room
	d.mu.Unlock()

	if known || d.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.cache.PutRoom(ctx, room); err != nil {
		d.log.Warn().Err(err).Str("room", room.Name).Msg("failed to cache room")
	}
}

func (d *Directory) memoByName(name string) (*store.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.byName[name]
	return room, ok
}

func (d *Directory) memoByID(id string) (*store.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.byID[id]
	return room, ok
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
