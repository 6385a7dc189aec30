// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, s *Store, playerMax, groupMax int) *MetadataCache {
	t.Helper()
	return NewMetadataCache(newTestResolver(t, s), playerMax, groupMax)
}

func TestMetadataCache_InvalidateGroupRefetchesFreshValue(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 10)
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[Old]"))

	v, ok := c.GroupMetadata("staff", "prefix")
	require.True(t, ok)
	assert.Equal(t, "[Old]", v)

	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[New]"))
	v, _ = c.GroupMetadata("staff", "prefix")
	assert.Equal(t, "[Old]", v, "stale until invalidated")

	c.InvalidateGroup("staff")
	v, _ = c.GroupMetadata("staff", "prefix")
	assert.Equal(t, "[New]", v)
}

func TestMetadataCache_AncestorInvalidationCascades(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 10)
	player := ulid.Make()
	require.True(t, s.CreateGroup("parent"))
	require.True(t, s.CreateGroup("child"))
	require.NoError(t, s.SetParents("child", []string{"parent"}))
	require.NoError(t, s.SetMetadata(GroupRef("parent"), "prefix", "[Old]"))
	require.NoError(t, s.AddMember("child", player, "Alice", nil))

	v, ok := c.PlayerMetadata(player, "prefix")
	require.True(t, ok)
	assert.Equal(t, "[Old]", v)
	_, _ = c.GroupMetadata("child", "prefix")

	// The player's closure recorded parent transitively through child, so
	// invalidating the ancestor must evict the player and child too.
	require.NoError(t, s.SetMetadata(GroupRef("parent"), "prefix", "[New]"))
	c.InvalidateGroup("parent")

	v, _ = c.PlayerMetadata(player, "prefix")
	assert.Equal(t, "[New]", v)
	v, _ = c.GroupMetadata("child", "prefix")
	assert.Equal(t, "[New]", v)
}

func TestMetadataCache_InvalidatePlayerIsExact(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 10)
	p1, p2 := ulid.Make(), ulid.Make()
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[S]"))
	require.NoError(t, s.AddMember("staff", p1, "Alice", nil))
	require.NoError(t, s.AddMember("staff", p2, "Bob", nil))

	_, _ = c.PlayerMetadata(p1, "prefix")
	_, _ = c.PlayerMetadata(p2, "prefix")

	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[T]"))
	c.InvalidatePlayer(p1)

	v, _ := c.PlayerMetadata(p1, "prefix")
	assert.Equal(t, "[T]", v, "invalidated player recomputes")
	v, _ = c.PlayerMetadata(p2, "prefix")
	assert.Equal(t, "[S]", v, "other player keeps cached result")
}

func TestMetadataCache_InvalidateAll(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 10)
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[S]"))

	_, _ = c.GroupMetadata("staff", "prefix")
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[T]"))

	c.InvalidateAll()
	v, _ := c.GroupMetadata("staff", "prefix")
	assert.Equal(t, "[T]", v)
}

func TestMetadataCache_BoundedEviction(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 2)
	for _, g := range []string{"g1", "g2", "g3"} {
		require.True(t, s.CreateGroup(g))
		require.NoError(t, s.SetMetadata(GroupRef(g), "tag", g))
	}

	_, _ = c.GroupMetadata("g1", "tag")
	_, _ = c.GroupMetadata("g2", "tag")
	// Third insert evicts the oldest (g1).
	_, _ = c.GroupMetadata("g3", "tag")

	require.NoError(t, s.SetMetadata(GroupRef("g1"), "tag", "fresh"))
	require.NoError(t, s.SetMetadata(GroupRef("g2"), "tag", "fresh"))

	v, _ := c.GroupMetadata("g1", "tag")
	assert.Equal(t, "fresh", v, "g1 was evicted and recomputes")
	v, _ = c.GroupMetadata("g2", "tag")
	assert.Equal(t, "g2", v, "g2 is still cached")
}

func TestMetadataCache_MissingValue(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 10, 10)
	require.True(t, s.CreateGroup("staff"))

	_, ok := c.GroupMetadata("staff", "nope")
	assert.False(t, ok)
	_, ok = c.PlayerMetadata(ulid.Make(), "nope")
	assert.False(t, ok)
}

func TestMetadataCache_ConcurrentReads(t *testing.T) {
	s := newTestStore(t)
	c := newTestCache(t, s, 100, 100)
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[S]"))
	player := ulid.Make()
	require.NoError(t, s.AddMember("staff", player, "Alice", nil))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, ok := c.PlayerMetadata(player, "prefix")
				if assert.True(t, ok) {
					assert.Equal(t, "[S]", v)
				}
			}
		}()
	}
	wg.Wait()
}
