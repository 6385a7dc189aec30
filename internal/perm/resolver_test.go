// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, s *Store) *Resolver {
	t.Helper()
	return NewResolver(s, nil, "group.%s", "assignedgroup.%s")
}

func TestResolver_ScopePrecedence(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	require.True(t, s.CreateGroup("base"))
	ref := GroupRef("base")

	// Four entries for the same key, one per precedence level.
	require.NoError(t, s.SetPermission(ref, "", "", "fly", false))         // global
	require.NoError(t, s.SetPermission(ref, "", "hub", "fly", true))       // world-only
	require.NoError(t, s.SetPermission(ref, "spawn", "", "fly", false))    // universal-region
	require.NoError(t, s.SetPermission(ref, "spawn", "hub", "fly", true))  // world+region

	tests := []struct {
		name    string
		world   string
		regions []string
		want    bool
	}{
		{name: "most specific wins", world: "hub", regions: []string{"spawn"}, want: true},
		{name: "world only when region not requested", world: "hub", want: true},
		{name: "universal region beats global", world: "other", regions: []string{"spawn"}, want: false},
		{name: "global only", world: "other", want: false},
		{name: "no world falls through to universal region", world: "", regions: []string{"spawn"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ResolveGroup("base", tt.world, tt.regions)
			assert.Equal(t, tt.want, got["fly"])
		})
	}
}

func TestResolver_UniversalRegionBeatsWorldOnly(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	require.True(t, s.CreateGroup("base"))
	ref := GroupRef("base")

	require.NoError(t, s.SetPermission(ref, "", "hub", "fly", false))
	require.NoError(t, s.SetPermission(ref, "spawn", "", "fly", true))

	got := r.ResolveGroup("base", "hub", []string{"spawn"})
	assert.True(t, got["fly"], "universal region applies after world-only")
}

func TestResolvePlayer_GroupPriority(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	player := ulid.Make()
	require.True(t, s.CreateGroup("a"))
	require.True(t, s.CreateGroup("b"))
	require.NoError(t, s.SetPriority("a", 1))
	require.NoError(t, s.SetPriority("b", 2))
	require.NoError(t, s.SetPermission(GroupRef("a"), "", "", "x", true))
	require.NoError(t, s.SetPermission(GroupRef("b"), "", "", "x", false))
	require.NoError(t, s.AddMember("a", player, "Alice", nil))
	require.NoError(t, s.AddMember("b", player, "Alice", nil))

	got := r.ResolvePlayer(player, "", nil)
	assert.False(t, got["x"], "higher priority group wins")

	// A direct player entry overrides every group.
	require.NoError(t, s.SetPermission(PlayerRef(player, "Alice"), "", "", "x", true))
	got = r.ResolvePlayer(player, "", nil)
	assert.True(t, got["x"])
}

func TestResolvePlayer_AncestorOverride(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	player := ulid.Make()
	require.True(t, s.CreateGroup("parent"))
	require.True(t, s.CreateGroup("child"))
	require.NoError(t, s.SetParents("child", []string{"parent"}))
	require.NoError(t, s.SetPermission(GroupRef("parent"), "", "", "x", false))
	require.NoError(t, s.SetPermission(GroupRef("child"), "", "", "x", true))
	require.NoError(t, s.AddMember("child", player, "Alice", nil))

	got := r.ResolvePlayer(player, "", nil)
	assert.True(t, got["x"], "the group itself has final say over its ancestors")
}

func TestResolvePlayer_SyntheticGroupPermissions(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	player := ulid.Make()
	require.True(t, s.CreateGroup("parent"))
	require.True(t, s.CreateGroup("child"))
	require.NoError(t, s.SetParents("child", []string{"parent"}))
	require.NoError(t, s.AddMember("child", player, "Alice", nil))

	got := r.ResolvePlayer(player, "", nil)
	assert.True(t, got["group.child"])
	assert.True(t, got["group.parent"], "ancestor template applies per ancestor")
	assert.True(t, got["assignedgroup.child"])
	assert.NotContains(t, got, "assignedgroup.parent",
		"assigned template only applies to directly-held groups")
}

func TestResolvePlayer_DefaultGroupFallback(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	require.True(t, s.CreateGroup("default"))
	require.NoError(t, s.SetPermission(GroupRef("default"), "", "", "spawn.enter", true))

	got := r.ResolvePlayer(ulid.Make(), "", nil)
	assert.True(t, got["spawn.enter"], "memberless player resolves via default group")
}

func TestResolvePlayer_ExpiredMembershipIgnored(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	player := ulid.Make()
	require.True(t, s.CreateGroup("default"))
	require.True(t, s.CreateGroup("vip"))
	require.NoError(t, s.SetPermission(GroupRef("vip"), "", "", "vip.perk", true))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.AddMember("vip", player, "Alice", &past))

	got := r.ResolvePlayer(player, "", nil)
	assert.NotContains(t, got, "vip.perk",
		"expired memberships are filtered at resolution without waiting for the scheduler")
}

func TestResolvePlayer_NoTemplatesConfigured(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, nil, "", "")
	player := ulid.Make()
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.AddMember("staff", player, "Alice", nil))

	got := r.ResolvePlayer(player, "", nil)
	assert.Empty(t, got)
}

func TestResolveMetadata_ClosureAndOverride(t *testing.T) {
	s := newTestStore(t)
	r := newTestResolver(t, s)
	player := ulid.Make()
	require.True(t, s.CreateGroup("parent"))
	require.True(t, s.CreateGroup("child"))
	require.NoError(t, s.SetParents("child", []string{"parent"}))
	require.NoError(t, s.SetMetadata(GroupRef("parent"), "prefix", "[P]"))
	require.NoError(t, s.SetMetadata(GroupRef("parent"), "suffix", "!"))
	require.NoError(t, s.SetMetadata(GroupRef("child"), "prefix", "[C]"))
	require.NoError(t, s.AddMember("child", player, "Alice", nil))

	res := r.ResolvePlayerMetadata(player)
	assert.Equal(t, "[C]", res.Values["prefix"], "nearer group overrides ancestor metadata")
	assert.Equal(t, "!", res.Values["suffix"])
	assert.Contains(t, res.Groups, "child")
	assert.Contains(t, res.Groups, "parent")

	// The player's own metadata wins over all groups.
	require.NoError(t, s.SetMetadata(PlayerRef(player, "Alice"), "prefix", "[Me]"))
	res = r.ResolvePlayerMetadata(player)
	assert.Equal(t, "[Me]", res.Values["prefix"])

	groupRes := r.ResolveGroupMetadata("child")
	assert.Equal(t, "[C]", groupRes.Values["prefix"])
	assert.Len(t, groupRes.Groups, 2)
}
