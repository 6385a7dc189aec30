// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// MetadataCache caches resolved metadata and the resolved group closure per
// entity: players keyed by ULID, groups by canonical name, each side
// bounded to a fixed entry count with oldest-insertion eviction.
//
// Lock order: the cache lock is always taken before the store lock (cache
// fills call into the resolver, which reads the store). Nothing in this
// package acquires the cache lock while holding the store lock.
type MetadataCache struct {
	resolver *Resolver

	mu      sync.RWMutex
	players *boundedCache[ulid.ULID]
	groups  *boundedCache[string]
}

// NewMetadataCache creates a cache bounded to playerMax/groupMax entries
// per side.
func NewMetadataCache(resolver *Resolver, playerMax, groupMax int) *MetadataCache {
	return &MetadataCache{
		resolver: resolver,
		players:  newBoundedCache[ulid.ULID](playerMax),
		groups:   newBoundedCache[string](groupMax),
	}
}

// PlayerMetadata reads a named metadata value (case-insensitive) from the
// player's cached resolution, computing and caching it on miss.
func (c *MetadataCache) PlayerMetadata(player ulid.ULID, name string) (any, bool) {
	res := c.playerResult(player)
	v, ok := res.Values[canonical(name)]
	return v, ok
}

// GroupMetadata is PlayerMetadata's group-keyed counterpart.
func (c *MetadataCache) GroupMetadata(group, name string) (any, bool) {
	res := c.groupResult(canonical(group))
	v, ok := res.Values[canonical(name)]
	return v, ok
}

func (c *MetadataCache) playerResult(player ulid.ULID) MetadataResult {
	c.mu.RLock()
	res, ok := c.players.get(player)
	c.mu.RUnlock()
	if ok {
		metadataCacheLookups.WithLabelValues("player", "hit").Inc()
		return res
	}
	metadataCacheLookups.WithLabelValues("player", "miss").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have filled the entry between locks; never
	// compute the same miss twice.
	if res, ok := c.players.get(player); ok {
		return res
	}
	res = c.resolver.ResolvePlayerMetadata(player)
	c.players.put(player, res)
	return res
}

func (c *MetadataCache) groupResult(group string) MetadataResult {
	c.mu.RLock()
	res, ok := c.groups.get(group)
	c.mu.RUnlock()
	if ok {
		metadataCacheLookups.WithLabelValues("group", "hit").Inc()
		return res
	}
	metadataCacheLookups.WithLabelValues("group", "miss").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.groups.get(group); ok {
		return res
	}
	res = c.resolver.ResolveGroupMetadata(group)
	c.groups.put(group, res)
	return res
}

// InvalidatePlayer removes exactly the player's cached entry.
func (c *MetadataCache) InvalidatePlayer(player ulid.ULID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players.remove(player)
}

// InvalidateGroup removes the group's cached entry and cascades: any cached
// player or group whose recorded group closure contains this group is
// evicted too, since its metadata may have been derived through it.
func (c *MetadataCache) InvalidateGroup(group string) {
	group = canonical(group)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups.remove(group)
	c.players.removeIf(func(res MetadataResult) bool {
		_, ok := res.Groups[group]
		return ok
	})
	c.groups.removeIf(func(res MetadataResult) bool {
		_, ok := res.Groups[group]
		return ok
	})
}

// InvalidateAll clears both sides. Used after bulk operations.
func (c *MetadataCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players.clear()
	c.groups.clear()
}

// boundedCache is a fixed-capacity map evicting its oldest insertion when
// full. Accessors require the owning cache's lock.
type boundedCache[K comparable] struct {
	max     int
	order   []K
	entries map[K]MetadataResult
}

func newBoundedCache[K comparable](max int) *boundedCache[K] {
	if max < 1 {
		max = 1
	}
	return &boundedCache[K]{
		max:     max,
		entries: make(map[K]MetadataResult, max),
	}
}

func (b *boundedCache[K]) get(key K) (MetadataResult, bool) {
	res, ok := b.entries[key]
	return res, ok
}

func (b *boundedCache[K]) put(key K, res MetadataResult) {
	if _, ok := b.entries[key]; !ok {
		if len(b.entries) >= b.max {
			oldest := b.order[0]
			b.order = b.order[1:]
			delete(b.entries, oldest)
		}
		b.order = append(b.order, key)
	}
	b.entries[key] = res
}

func (b *boundedCache[K]) remove(key K) {
	if _, ok := b.entries[key]; !ok {
		return
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *boundedCache[K]) removeIf(match func(MetadataResult) bool) {
	kept := b.order[:0]
	for _, key := range b.order {
		if match(b.entries[key]) {
			delete(b.entries, key)
		} else {
			kept = append(kept, key)
		}
	}
	b.order = kept
}

func (b *boundedCache[K]) clear() {
	b.order = nil
	b.entries = make(map[K]MetadataResult, b.max)
}
