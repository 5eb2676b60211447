// Package scaling keeps the last known dyno formation of every destination
// and re-emits it periodically so that dashboards never go blank between
// scaling events.
package scaling

import (
	"context"
	"sync"

	"logdrain-agent/internal/model"
)

// Cache holds one destination's latest scaling snapshot. Each scaling line
// replaces the snapshot as a whole.
type Cache struct {
	mu     sync.RWMutex
	events []model.ScalingEvent

	key   string
	store Store
}

// NewCache returns an empty cache. store may be nil, in which case the
// snapshot only lives in memory.
func NewCache(key string, store Store) *Cache {
	return &Cache{key: key, store: store}
}

// Replace swaps in a new snapshot and persists it when a store is set.
func (c *Cache) Replace(ctx context.Context, events []model.ScalingEvent) error {
	snapshot := append([]model.ScalingEvent(nil), events...)
	c.mu.Lock()
	c.events = snapshot
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Save(ctx, c.key, snapshot)
}

// Snapshot returns a copy of the current snapshot, nil when none is known.
func (c *Cache) Snapshot() []model.ScalingEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.events) == 0 {
		return nil
	}
	return append([]model.ScalingEvent(nil), c.events...)
}

// Restore loads a persisted snapshot, if any. A snapshot already set by
// Replace wins over the stored one.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	events, err := c.store.Load(ctx, c.key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = events
	}
	return nil
}
