// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, s *Store, reg ImplicationRegistry) *Service {
	t.Helper()
	resolver := newTestResolver(t, s)
	cache := NewMetadataCache(resolver, 10, 10)
	return NewService(s, resolver, cache, reg)
}

func TestService_ListGroups(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s, nil)
	for _, g := range []string{"staff", "admin", "stage-hand"} {
		require.True(t, s.CreateGroup(g))
	}

	all, err := svc.ListGroups("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matched, err := svc.ListGroups("sta*")
	require.NoError(t, err)
	names := make([]string, len(matched))
	for i, e := range matched {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"staff", "stage-hand"}, names)

	_, err = svc.ListGroups("[bad")
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
}

func TestService_ListPlayers(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s, nil)
	require.NoError(t, s.SetPermission(PlayerRef(ulid.Make(), "Alice"), "", "", "x", true))
	require.NoError(t, s.SetPermission(PlayerRef(ulid.Make(), "Bob"), "", "", "x", true))

	matched, err := svc.ListPlayers("ali*")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Alice", matched[0].DisplayName)
}

func TestService_EffectivePermissionsExpands(t *testing.T) {
	s := newTestStore(t)
	reg := mapRegistry{"admin": {"build": true}}
	svc := newTestService(t, s, reg)
	player := ulid.Make()
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetPermission(GroupRef("staff"), "", "", "admin", true))
	require.NoError(t, s.AddMember("staff", player, "Alice", nil))

	got := svc.EffectivePermissions(player, "", nil)
	assert.True(t, got["admin"])
	assert.True(t, got["build"], "resolved permissions expand through the registry")

	assert.True(t, svc.Has(player, "", nil, "BUILD"), "Has is case-insensitive")
	assert.False(t, svc.Has(player, "", nil, "unknown"))
}

func TestService_GroupPermissions(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s, nil)
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetPermission(GroupRef("staff"), "", "", "chat", true))

	got := svc.GroupPermissions("staff", "", nil)
	assert.True(t, got["chat"])
	assert.True(t, got["group.staff"])
}

func TestService_ReadPassthroughs(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s, nil)
	player := ulid.Make()
	require.True(t, s.CreateGroup("parent"))
	require.True(t, s.CreateGroup("child"))
	require.NoError(t, s.SetParents("child", []string{"parent"}))
	require.NoError(t, s.AddMember("child", player, "Alice", nil))
	require.NoError(t, s.SetMetadata(GroupRef("parent"), "prefix", "[P]"))

	assert.Equal(t, []string{"parent", "child"}, svc.Ancestry("child"))
	assert.Len(t, svc.Members("child"), 1)
	assert.Len(t, svc.Memberships(player), 1)

	v, ok := svc.PlayerMetadata(player, "prefix")
	require.True(t, ok)
	assert.Equal(t, "[P]", v)
	v, ok = svc.GroupMetadata("child", "prefix")
	require.True(t, ok)
	assert.Equal(t, "[P]", v)

	entries := svc.Entries(GroupRef("parent"))
	assert.Empty(t, entries)
}
