// Package settings stores UI preferences such as the theme and the active
// material category.
package settings

import (
	"context"
	"strconv"
	"sync"

	"technobug/pkg/cache"
)

const (
	Theme          = "theme"
	ActiveCategory = "activeCategory"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
}

type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// Redis keeps one hash per user under settings:u{id}.
type Redis struct {
	redis *cache.Redis
	key   string
}

func NewRedis(r *cache.Redis, userID int) *Redis {
	return &Redis{redis: r, key: "settings:u" + strconv.Itoa(userID)}
}

func (s *Redis) Get(ctx context.Context, key string) (string, bool) {
	return s.redis.HGet(ctx, s.key, key)
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	return s.redis.HSet(ctx, s.key, key, value)
}

// GetOr returns the stored value or fallback when the key is unset.
func GetOr(ctx context.Context, s Store, key, fallback string) string {
	if v, ok := s.Get(ctx, key); ok {
		return v
	}
	return fallback
}
