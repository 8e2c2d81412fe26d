package cache

import (
	"encoding/json"
	"strings"
	"time"

	"finboard/internal/log"
)

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Options configures a Cache.
type Options struct {
	// Prefix is the resource name; every key owned by the cache starts with it.
	Prefix string
	// TTL is the freshness window. Zero means DefaultTTL.
	TTL time.Duration
	// SubKeyed caches one entry per filter set instead of a single entry.
	SubKeyed bool
	Now      func() time.Time
	Logger   *log.Logger
}

// Hit is a successful cache read.
type Hit[T any] struct {
	Data      T
	Timestamp time.Time
	IsStale   bool
}

// Cache is a typed view over one resource's entries in a Storage.
type Cache[T any] struct {
	storage  Storage
	prefix   string
	ttl      time.Duration
	subKeyed bool
	now      func() time.Time
	logger   *log.Logger
}

func New[T any](storage Storage, opts Options) *Cache[T] {
	if storage == nil {
		storage = NopStorage{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Cache[T]{
		storage:  storage,
		prefix:   opts.Prefix,
		ttl:      opts.TTL,
		subKeyed: opts.SubKeyed,
		now:      opts.Now,
		logger:   opts.Logger.WithComponent(log.ComponentCache),
	}
}

// Key returns the storage key for a sub-key. Non sub-keyed caches ignore the sub-key.
func (c *Cache[T]) Key(subKey string) string {
	if !c.subKeyed || subKey == "" {
		return c.prefix
	}
	return c.prefix + ":" + subKey
}

func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Get reads an entry. The second return is false on a miss, including unreadable payloads.
func (c *Cache[T]) Get(subKey string) (Hit[T], bool) {
	var hit Hit[T]
	key := c.Key(subKey)

	raw, ok := c.storage.GetItem(key)
	if !ok {
		return hit, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || len(e.Data) == 0 {
		c.logger.Debug("Discarding unreadable cache entry", log.FieldCacheKey, key, log.FieldError, err)
		return hit, false
	}
	if err := json.Unmarshal(e.Data, &hit.Data); err != nil {
		c.logger.Debug("Discarding unreadable cache payload", log.FieldCacheKey, key, log.FieldError, err)
		return hit, false
	}

	hit.Timestamp = time.UnixMilli(e.Timestamp)
	hit.IsStale = c.now().UnixMilli()-e.Timestamp >= c.ttl.Milliseconds()
	return hit, true
}

// Set writes data stamped with the current time. Failures are logged and dropped.
func (c *Cache[T]) Set(subKey string, data T) {
	key := c.Key(subKey)
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Debug("Cache payload not serializable", log.FieldCacheKey, key, log.FieldError, err)
		return
	}
	raw, err := json.Marshal(entry{Data: payload, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return
	}
	if err := c.storage.SetItem(key, string(raw)); err != nil {
		c.logger.Debug("Cache write dropped", log.FieldCacheKey, key, log.FieldError, err)
	}
}

// Snapshot returns the raw stored envelope so it can be put back verbatim by Restore.
func (c *Cache[T]) Snapshot(subKey string) (string, bool) {
	return c.storage.GetItem(c.Key(subKey))
}

// Restore puts back a Snapshot. A snapshot of a missing entry removes the key.
func (c *Cache[T]) Restore(subKey, raw string, present bool) {
	key := c.Key(subKey)
	if !present {
		c.storage.RemoveItem(key)
		return
	}
	if err := c.storage.SetItem(key, raw); err != nil {
		c.logger.Debug("Cache restore dropped", log.FieldCacheKey, key, log.FieldError, err)
	}
}

// Clear removes the entry for one sub-key.
func (c *Cache[T]) Clear(subKey string) {
	c.storage.RemoveItem(c.Key(subKey))
}

// ClearAll removes every entry of the resource, whatever its sub-key.
func (c *Cache[T]) ClearAll() {
	for _, k := range c.storage.Keys() {
		if k == c.prefix || strings.HasPrefix(k, c.prefix+":") {
			c.storage.RemoveItem(k)
		}
	}
}
