package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

const keyPrefix = "wirechat:room:"

// RoomCache keeps the immutable room name/id mapping in Redis.
type RoomCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps a Redis client. A zero ttl keeps entries without expiry.
func New(rdb *redis.Client, ttl time.Duration) *RoomCache {
	return &RoomCache{rdb: rdb, ttl: ttl}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RoomCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, ttl), nil
}

func keyName(name string) string { return keyPrefix + "name:" + strings.TrimSpace(name) }
func keyID(id string) string     { return keyPrefix + "id:" + id }

type cachedRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomByName returns store.ErrNotFound on a cache miss.
func (c *RoomCache) RoomByName(ctx context.Context, name string) (*store.Room, error) {
	return c.get(ctx, keyName(name))
}

// RoomByID returns store.ErrNotFound on a cache miss.
func (c *RoomCache) RoomByID(ctx context.Context, id string) (*store.Room, error) {
	return c.get(ctx, keyID(id))
}

// PutRoom stores both directions of the mapping.
func (c *RoomCache) PutRoom(ctx context.Context, room *store.Room) error {
	raw, err := json.Marshal(cachedRoom{ID: room.ID, Name: room.Name, CreatedAt: room.CreatedAt})
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, keyName(room.Name), raw, c.ttl)
	pipe.Set(ctx, keyID(room.ID), raw, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache room: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RoomCache) Close() error {
	return c.rdb.Close()
}

func (c *RoomCache) get(ctx context.Context, key string) (*store.Room, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cache %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var cr cachedRoom
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	return &store.Room{ID: cr.ID, Name: cr.Name, CreatedAt: cr.CreatedAt}, nil
}
