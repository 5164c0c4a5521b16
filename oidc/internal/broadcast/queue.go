// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package broadcast provides the ordered notification primitives behind the
// token store: a FIFO Queue run by a single goroutine and a Broadcaster
// fanning values out to independently cancellable subscribers.
package broadcast

import "sync"

// Queue runs submitted funcs one at a time, in submission order, on a single
// worker goroutine. The zero value is not usable; use NewQueue.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

// NewQueue starts a Queue.
func NewQueue() *Queue {
	q := &Queue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue adds fn to the queue. It never blocks on fn. It returns false if the
// queue is closed, in which case fn will not run.
func (q *Queue) Enqueue(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close stops accepting funcs, runs those already queued and waits for the
// worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	<-q.stopped
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		fn()
	}
}
