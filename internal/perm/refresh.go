// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RefreshSink receives the engine's outbound callbacks: reapplying a
// player's recomputed permissions to live session state, and announcing an
// expired membership. Implementations must be safe to call from the
// primary executor and must not call back into the engine synchronously.
type RefreshSink interface {
	RefreshPlayer(player ulid.ULID)
	MembershipExpired(m Membership)
}

// NopSink discards all callbacks.
type NopSink struct{}

func (NopSink) RefreshPlayer(ulid.ULID)      {}
func (NopSink) MembershipExpired(Membership) {}

// Refresher spreads player permission refreshes over time: queued players
// are deduplicated and refreshed one per tick, a configurable delay apart,
// on the primary executor. A refresh invalidates the player's metadata
// cache entry and hands the player to the sink.
type Refresher struct {
	exec  *Executor
	cache *MetadataCache
	sink  RefreshSink
	delay time.Duration

	mu     sync.Mutex
	order  []ulid.ULID
	queued map[ulid.ULID]struct{}
	timer  *time.Timer
	closed bool
}

// NewRefresher creates a refresher. delay is the spacing between refreshes;
// zero means refresh as fast as the executor allows.
func NewRefresher(exec *Executor, cache *MetadataCache, sink RefreshSink, delay time.Duration) *Refresher {
	if sink == nil {
		sink = NopSink{}
	}
	return &Refresher{
		exec:   exec,
		cache:  cache,
		sink:   sink,
		delay:  delay,
		queued: make(map[ulid.ULID]struct{}),
	}
}

// Enqueue schedules a refresh for the player. Already-queued players are
// not queued twice.
func (r *Refresher) Enqueue(player ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.queued[player]; ok {
		return
	}
	r.queued[player] = struct{}{}
	r.order = append(r.order, player)
	refreshQueueDepth.Set(float64(len(r.order)))
	r.armLocked()
}

// EnqueueAll schedules refreshes for every given player.
func (r *Refresher) EnqueueAll(players []ulid.ULID) {
	for _, p := range players {
		r.Enqueue(p)
	}
}

// Close stops the pending tick. Queued players that have not yet been
// refreshed are dropped.
func (r *Refresher) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.order = nil
	r.queued = make(map[ulid.ULID]struct{})
	refreshQueueDepth.Set(0)
}

func (r *Refresher) armLocked() {
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.delay, func() {
		r.exec.Submit(r.tick)
	})
}

// tick refreshes exactly one player, then re-arms if more are waiting.
// Runs on the primary executor.
func (r *Refresher) tick() {
	r.mu.Lock()
	r.timer = nil
	if r.closed || len(r.order) == 0 {
		r.mu.Unlock()
		return
	}
	player := r.order[0]
	r.order = r.order[1:]
	delete(r.queued, player)
	refreshQueueDepth.Set(float64(len(r.order)))
	if len(r.order) > 0 {
		r.armLocked()
	}
	r.mu.Unlock()

	r.cache.InvalidatePlayer(player)
	r.sink.RefreshPlayer(player)
}
