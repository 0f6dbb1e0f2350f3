// Package cache holds suggestion caches used by the matcher.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/carpool/internal/models"
)

// Memory is a small in-process TTL cache for suggestion lists.
type Memory struct {
	mu    sync.RWMutex
	store map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	v  []models.RideSuggestion
	ts time.Time
}

// NewMemory creates a cache with the provided TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{store: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the cached value and true if present and not expired.
func (c *Memory) Get(_ context.Context, key string) ([]models.RideSuggestion, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]models.RideSuggestion(nil), e.v...), true, nil
}

func (c *Memory) Set(_ context.Context, key string, v []models.RideSuggestion) error {
	c.mu.Lock()
	c.store[key] = entry{v: append([]models.RideSuggestion(nil), v...), ts: c.now()}
	c.mu.Unlock()
	return nil
}
