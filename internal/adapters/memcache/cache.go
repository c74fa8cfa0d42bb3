// Package memcache is an in-process domain.Cache backed by ttlcache.
package memcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"stellerom/internal/adapters/observability"
)

// Cache keeps JSON-encoded values so every Get decodes a private copy.
type Cache struct {
	c *ttlcache.Cache[string, []byte]
}

func New() *Cache {
	return &Cache{c: ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)}
}

// Start runs the expired-item janitor until Stop is called.
func (m *Cache) Start() { go m.c.Start() }

func (m *Cache) Stop() { m.c.Stop() }

func (m *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	item := m.c.Get(key)
	if item == nil || item.IsExpired() {
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	if err := json.Unmarshal(item.Value(), dst); err != nil {
		observability.ObserveCache("memory", "miss")
		return false, err
	}
	observability.ObserveCache("memory", "hit")
	return true, nil
}

func (m *Cache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.c.Set(key, b, ttl)
	observability.ObserveCache("memory", "set")
	return nil
}

func (m *Cache) Del(_ context.Context, key string) error {
	m.c.Delete(key)
	observability.ObserveCache("memory", "del")
	return nil
}
