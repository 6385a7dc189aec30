// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultExpirationFudge is the safety margin added when arming the
// expiration timer, so it never fires fractionally early due to timer
// granularity.
const DefaultExpirationFudge = time.Second

// OnlineFunc supplies the currently-online players. Offline players'
// expirations are handled lazily at their next resolution instead of being
// tracked by the scheduler.
type OnlineFunc func() []ulid.ULID

// Scheduler proactively removes expired group memberships. It keeps a
// min-heap of known future expirations for online players and at most one
// armed one-shot timer; all mutation and notification work runs on the
// primary executor, never on the timer goroutine.
//
// A missed or late fire is benign: the membership is picked up at most one
// fudge interval late, or at the next Rescan, and resolution re-checks the
// actual timestamps regardless.
type Scheduler struct {
	store     *Store
	cache     *MetadataCache
	exec      *Executor
	refresher *Refresher
	sink      RefreshSink
	online    OnlineFunc
	fudge     time.Duration
	log       *slog.Logger

	mu     sync.Mutex
	queue  expirationHeap
	timer  *time.Timer
	closed bool
}

// NewScheduler creates a scheduler. sink and logger may be nil; a
// non-positive fudge falls back to DefaultExpirationFudge.
func NewScheduler(store *Store, cache *MetadataCache, exec *Executor, refresher *Refresher, sink RefreshSink, online OnlineFunc, fudge time.Duration, logger *slog.Logger) *Scheduler {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fudge <= 0 {
		fudge = DefaultExpirationFudge
	}
	return &Scheduler{
		store:     store,
		cache:     cache,
		exec:      exec,
		refresher: refresher,
		sink:      sink,
		online:    online,
		fudge:     fudge,
		log:       logger,
	}
}

// Rescan rebuilds the queue from every expiring membership held by a
// currently-online player, then runs the processing step immediately. Call
// on startup, on player login, and after membership writes. Must run on
// the primary executor.
func (s *Scheduler) Rescan() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = s.queue[:0]
	for _, player := range s.online() {
		for _, m := range s.store.Memberships(player) {
			if m.Expiration != nil {
				heap.Push(&s.queue, m)
			}
		}
	}
	s.mu.Unlock()
	s.process()
}

// Shutdown cancels the pending timer. The scheduler accepts no further
// work afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// process pops everything already lapsed, removes those memberships from
// the store, triggers refreshes and notifications, then re-arms the timer
// for the earliest remaining expiration. Runs on the primary executor.
func (s *Scheduler) process() {
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var expired []Membership
	for len(s.queue) > 0 && !s.queue[0].Expiration.After(now) {
		expired = append(expired, heap.Pop(&s.queue).(Membership))
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.queue) > 0 {
		delay := time.Until(*s.queue[0].Expiration) + s.fudge
		if delay < 0 {
			delay = 0
		}
		s.timer = time.AfterFunc(delay, func() {
			s.exec.Submit(s.process)
		})
	}
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	members := make(map[ulid.ULID]struct{}, len(expired))
	for _, m := range expired {
		if _, err := s.store.RemoveMember(m.Group, m.Member); err != nil {
			// Group deleted since the membership was queued.
			continue
		}
		members[m.Member] = struct{}{}
		expiredMemberships.Inc()
		s.sink.MembershipExpired(m)
		s.log.Info("group membership expired",
			"player", m.Member,
			"group", m.Group,
			"expired_at", m.Expiration)
	}
	for member := range members {
		s.cache.InvalidatePlayer(member)
		s.refresher.Enqueue(member)
	}
}

// expirationHeap orders memberships by expiration, earliest first.
type expirationHeap []Membership

func (h expirationHeap) Len() int { return len(h) }
func (h expirationHeap) Less(i, j int) bool {
	return h[i].Expiration.Before(*h[j].Expiration)
}
func (h expirationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expirationHeap) Push(x any) { *h = append(*h, x.(Membership)) }

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}
