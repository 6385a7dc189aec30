// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRefresher_OnePlayerPerTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStore(t)
	cache := newTestCache(t, s, 10, 10)
	exec := NewExecutor()
	sink := newCaptureSink()
	r := NewRefresher(exec, cache, sink, time.Millisecond)
	defer func() {
		r.Close()
		exec.Close()
	}()

	p1, p2 := ulid.Make(), ulid.Make()
	r.Enqueue(p1)
	r.Enqueue(p2)

	assert.Equal(t, p1, waitRefresh(t, sink))
	assert.Equal(t, p2, waitRefresh(t, sink), "players refresh one per tick in order")
}

func TestRefresher_Deduplicates(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStore(t)
	cache := newTestCache(t, s, 10, 10)
	exec := NewExecutor()
	sink := newCaptureSink()
	r := NewRefresher(exec, cache, sink, 20*time.Millisecond)
	defer func() {
		r.Close()
		exec.Close()
	}()

	player := ulid.Make()
	r.Enqueue(player)
	r.Enqueue(player)
	r.EnqueueAll([]ulid.ULID{player})

	assert.Equal(t, player, waitRefresh(t, sink))

	select {
	case <-sink.refreshCh:
		t.Fatal("duplicate enqueue must not produce a second refresh")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestRefresher_InvalidatesCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStore(t)
	cache := newTestCache(t, s, 10, 10)
	exec := NewExecutor()
	sink := newCaptureSink()
	r := NewRefresher(exec, cache, sink, 0)
	defer func() {
		r.Close()
		exec.Close()
	}()

	player := ulid.Make()
	require.True(t, s.CreateGroup("staff"))
	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[Old]"))
	require.NoError(t, s.AddMember("staff", player, "Alice", nil))

	v, ok := cache.PlayerMetadata(player, "prefix")
	require.True(t, ok)
	require.Equal(t, "[Old]", v)

	require.NoError(t, s.SetMetadata(GroupRef("staff"), "prefix", "[New]"))
	r.Enqueue(player)
	waitRefresh(t, sink)

	v, _ = cache.PlayerMetadata(player, "prefix")
	assert.Equal(t, "[New]", v, "refresh invalidates the player's cache entry")
}

func TestRefresher_CloseDropsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStore(t)
	cache := newTestCache(t, s, 10, 10)
	exec := NewExecutor()
	sink := newCaptureSink()
	r := NewRefresher(exec, cache, sink, time.Hour)

	r.Enqueue(ulid.Make())
	r.Close()
	exec.Close()

	assert.Empty(t, sink.refreshed)
}
