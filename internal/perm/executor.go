// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import "sync"

// Executor is the single designated execution context: a serial goroutine
// running submitted closures in order. The expiration scheduler and refresh
// task post their side effects here so that all mutation entry points
// serialize on one context.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewExecutor starts the executor goroutine.
func NewExecutor() *Executor {
	e := &Executor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Submit enqueues fn for execution, reporting false if the executor has
// already been closed.
func (e *Executor) Submit(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, fn)
	e.cond.Signal()
	return true
}

// Close drains the queue, stops the goroutine, and waits for it to exit.
// Further Submit calls are rejected.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		fn()
	}
}
