// Package settings provides hot configuration reads through a two-level
// read-through cache: a short-lived in-process map in front of a longer-lived
// shared Redis tier, in front of the durable settings table. Settings gate
// money-moving operations, so writes invalidate both levels synchronously;
// a down shared tier only costs performance, never correctness.
package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"referral_system/internal/store"

	"github.com/sirupsen/logrus"
)

const (
	localTTL        = 60 * time.Second  // In-process freshness window
	sharedTTL       = 300 * time.Second // Shared tier freshness window
	sharedKeyPrefix = "setting:"        // Namespace inside the shared cache
)

type localEntry struct {
	value   any
	expires time.Time
}

// Cache is the tiered settings cache. Construct one per process with NewCache
// and pass it by reference to every component that reads settings.
type Cache struct {
	store  store.SettingStore
	shared SharedCache
	now    func() time.Time // Injected for tests

	mu    sync.RWMutex
	local map[string]localEntry
}

// NewCache builds a cache over the durable store and the shared tier.
// shared may be nil, in which case every local miss goes to the store.
func NewCache(s store.SettingStore, shared SharedCache) *Cache {
	return &Cache{
		store:  s,
		shared: shared,
		now:    time.Now,
		local:  make(map[string]localEntry),
	}
}

// Get returns the value for key, falling through local cache, shared cache
// and the store in that order. A key absent from the store yields def, and
// the default is cached so repeated misses do not repeatedly hit the store.
func (c *Cache) Get(ctx context.Context, key string, def any) any {
	if v, ok := c.fromLocal(key); ok {
		return v
	}
	if v, ok := c.fromShared(ctx, key); ok {
		c.setLocal(key, v)
		return v
	}
	res := c.loadFromStore(ctx, []string{key}, map[string]any{key: def})
	return res[key]
}

// GetMany resolves several keys at once. Keys missing from both cache levels
// are fetched with a single store query; keys absent from the store resolve
// to their entry in defs.
func (c *Cache) GetMany(ctx context.Context, keys []string, defs map[string]any) map[string]any {
	out := make(map[string]any, len(keys))
	var missing []string
	for _, key := range keys {
		if v, ok := c.fromLocal(key); ok {
			out[key] = v
			continue
		}
		if v, ok := c.fromShared(ctx, key); ok {
			c.setLocal(key, v)
			out[key] = v
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) > 0 {
		loaded := c.loadFromStore(ctx, missing, defs)
		for k, v := range loaded {
			out[k] = v
		}
	}
	return out
}

// Invalidate drops the given keys from both cache levels before returning.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.local, key)
	}
	c.mu.Unlock()
	if c.shared == nil {
		return nil
	}
	shared := make([]string, len(keys))
	for i, key := range keys {
		shared[i] = sharedKeyPrefix + key
	}
	return c.shared.Del(ctx, shared...)
}

// InvalidateAll drops every known key from both levels: everything currently
// in the local map plus every key with a registered default.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	keys := make(map[string]struct{}, len(Defaults))
	for k := range Defaults {
		keys[k] = struct{}{}
	}
	c.mu.Lock()
	for k := range c.local {
		keys[k] = struct{}{}
	}
	c.local = make(map[string]localEntry)
	c.mu.Unlock()
	if c.shared == nil {
		return nil
	}
	shared := make([]string, 0, len(keys))
	for k := range keys {
		shared = append(shared, sharedKeyPrefix+k)
	}
	return c.shared.Del(ctx, shared...)
}

// Update writes a setting to the durable store and synchronously drops both
// cache levels for the key. A stale read after a write would gate money
// movement on dead configuration, so invalidation failure fails the update.
func (c *Cache) Update(ctx context.Context, key string, value any, description string) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.store.Upsert(key, string(b), description); err != nil {
		return err
	}
	return c.Invalidate(ctx, key)
}

// GetBool is Get with a boolean result.
func (c *Cache) GetBool(ctx context.Context, key string, def bool) bool {
	if v, ok := c.Get(ctx, key, def).(bool); ok {
		return v
	}
	return def
}

// GetFloat is Get with a numeric result. JSON round-trips deliver float64;
// typed defaults may still be ints.
func (c *Cache) GetFloat(ctx context.Context, key string, def float64) float64 {
	if v, ok := asFloat(c.Get(ctx, key, def)); ok {
		return v
	}
	return def
}

// GetInt is Get with an integer result.
func (c *Cache) GetInt(ctx context.Context, key string, def int) int {
	if v, ok := asFloat(c.Get(ctx, key, float64(def))); ok {
		return int(v)
	}
	return def
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (c *Cache) fromLocal(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.local[key]
	if !ok || c.now().After(e.expires) {
		return nil, false // Miss or stale
	}
	return e.value, true
}

func (c *Cache) setLocal(key string, value any) {
	c.mu.Lock()
	c.local[key] = localEntry{value: value, expires: c.now().Add(localTTL)}
	c.mu.Unlock()
}

// fromShared reads the shared tier. Any shared-cache error degrades to a miss
// so the read falls through to the store.
func (c *Cache) fromShared(ctx context.Context, key string) (any, bool) {
	if c.shared == nil {
		return nil, false
	}
	raw, found, err := c.shared.Get(ctx, sharedKeyPrefix+key)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).
			Warn("Shared settings cache read failed, falling back to store")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false // Corrupt entry, treat as miss
	}
	return v, true
}

func (c *Cache) setShared(ctx context.Context, key string, value any) {
	if c.shared == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, sharedKeyPrefix+key, string(b), sharedTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).
			Warn("Shared settings cache write failed")
	}
}

// loadFromStore fetches keys from the durable store in one query, resolves
// absentees to their defaults, and populates both cache levels.
func (c *Cache) loadFromStore(ctx context.Context, keys []string, defs map[string]any) map[string]any {
	out := make(map[string]any, len(keys))
	rows, err := c.store.FindByKeys(keys)
	if err != nil {
		logrus.WithFields(logrus.Fields{"keys": keys, "error": err.Error()}).
			Error("Settings store read failed, serving defaults")
		for _, key := range keys {
			out[key] = defs[key] // Serve defaults without caching on store failure
		}
		return out
	}
	found := make(map[string]any, len(rows))
	for _, row := range rows {
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			continue // Skip corrupt rows, default applies
		}
		found[row.Key] = v
	}
	for _, key := range keys {
		v, ok := found[key]
		if !ok {
			v = defs[key] // Absent key: the default is the value, and it is cached
		}
		out[key] = v
		c.setLocal(key, v)
		c.setShared(ctx, key, v)
	}
	return out
}
