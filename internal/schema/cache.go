package schema

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/flowmesh/dexterity/internal/logger"
)

// Source is the authoritative provider of type schemas
type Source interface {
	// LookupSchema returns the main schema of a type, or nil if the type
	// is unknown
	LookupSchema(typeID string) (*Schema, error)
	// LookupSubtypes returns the additional interfaces of a type in order
	LookupSubtypes(typeID string) ([]*Schema, error)
	// LookupBehaviorSchemata returns the field-bearing behavior schemata
	LookupBehaviorSchemata(typeID string) ([]*Schema, error)
}

// CacheObserver receives cache activity
type CacheObserver interface {
	CacheHit(typeID string)
	CacheMiss(typeID string)
	CacheInvalidated(typeID string)
}

type cacheEntry struct {
	counter   int64
	schema    *Schema
	subtypes  []*Schema
	behaviors []*Schema
}

// Cache is the process-wide schema cache keyed by type identifier.
// Lookups never take a lock; an entry is trusted only while its recorded
// counter equals the type's current counter.
type Cache struct {
	source   Source
	observer CacheObserver
	log      zerolog.Logger

	entries  sync.Map // typeID -> *cacheEntry
	counters sync.Map // typeID -> *atomic.Int64
	group    singleflight.Group
}

// NewCache creates a schema cache over source
func NewCache(source Source) *Cache {
	return &Cache{
		source: source,
		log:    logger.WithComponent("schema-cache"),
	}
}

// SetObserver installs an activity observer. Call before first use.
func (c *Cache) SetObserver(o CacheObserver) {
	c.observer = o
}

// Get returns the main schema of typeID, or nil if the type is unknown
func (c *Cache) Get(typeID string) *Schema {
	e := c.entry(typeID)
	if e == nil {
		return nil
	}
	return e.schema
}

// Subtypes returns the additional interfaces of typeID
func (c *Cache) Subtypes(typeID string) []*Schema {
	e := c.entry(typeID)
	if e == nil {
		return nil
	}
	return e.subtypes
}

// Behaviors returns the behavior schemata of typeID
func (c *Cache) Behaviors(typeID string) []*Schema {
	e := c.entry(typeID)
	if e == nil {
		return nil
	}
	return e.behaviors
}

// Schemata returns the main schema followed by the behavior schemata
func (c *Cache) Schemata(typeID string) []*Schema {
	e := c.entry(typeID)
	if e == nil {
		return nil
	}
	out := make([]*Schema, 0, len(e.behaviors)+1)
	if e.schema != nil {
		out = append(out, e.schema)
	}
	return append(out, e.behaviors...)
}

// Counter returns the invalidation counter of typeID: 0 for types never
// invalidated, strictly increasing per invalidation
func (c *Cache) Counter(typeID string) int64 {
	v, ok := c.counters.Load(typeID)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Invalidate bumps the counter of typeID and drops its entry
func (c *Cache) Invalidate(typeID string) {
	v, _ := c.counters.LoadOrStore(typeID, new(atomic.Int64))
	n := v.(*atomic.Int64).Add(1)
	c.entries.Delete(typeID)

	if c.observer != nil {
		c.observer.CacheInvalidated(typeID)
	}
	c.log.Debug().Str("portal_type", typeID).Int64("counter", n).Msg("Invalidated schema cache")
}

// Clear invalidates every type the cache has seen
func (c *Cache) Clear() {
	seen := make(map[string]struct{})
	c.entries.Range(func(key, _ any) bool {
		seen[key.(string)] = struct{}{}
		return true
	})
	c.counters.Range(func(key, _ any) bool {
		seen[key.(string)] = struct{}{}
		return true
	})
	for typeID := range seen {
		c.Invalidate(typeID)
	}
}

func (c *Cache) entry(typeID string) *cacheEntry {
	if typeID == "" {
		return nil
	}

	counter := c.Counter(typeID)
	if v, ok := c.entries.Load(typeID); ok {
		e := v.(*cacheEntry)
		if e.counter == counter {
			if c.observer != nil {
				c.observer.CacheHit(typeID)
			}
			return e
		}
	}

	if c.observer != nil {
		c.observer.CacheMiss(typeID)
	}

	key := typeID + "@" + strconv.FormatInt(counter, 10)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.load(typeID, counter)
	})
	if err != nil {
		// Absence is recoverable; the next lookup retries
		c.log.Warn().Err(err).Str("portal_type", typeID).Msg("Failed to resolve type schema")
		return nil
	}

	e := v.(*cacheEntry)
	if e.schema == nil {
		return nil
	}
	return e
}

func (c *Cache) load(typeID string, counter int64) (*cacheEntry, error) {
	s, err := c.source.LookupSchema(typeID)
	if err != nil {
		return nil, err
	}

	e := &cacheEntry{counter: counter, schema: s}
	if s != nil {
		if e.subtypes, err = c.source.LookupSubtypes(typeID); err != nil {
			return nil, err
		}
		if e.behaviors, err = c.source.LookupBehaviorSchemata(typeID); err != nil {
			return nil, err
		}
	}

	// An invalidation that raced with this load leaves the entry stale;
	// storing it is harmless since its counter no longer matches
	c.entries.Store(typeID, e)
	return e, nil
}
