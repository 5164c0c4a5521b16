// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package broadcast

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-uuid"
)

// Broadcaster delivers every sent value to every registered subscriber, in
// send order. Each subscriber buffers independently, so a slow reader never
// blocks Send or other subscribers, and values are never dropped or merged.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[string]*Subscription[T]
	closed bool
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subs: map[string]*Subscription[T]{},
	}
}

// Subscription receives values on C until it is cancelled or the Broadcaster
// is closed, after which C is closed.
type Subscription[T any] struct {
	C <-chan T

	id  string
	b   *Broadcaster[T]
	out chan T

	mu      sync.Mutex
	pending []T
	wake    chan struct{}

	// done stops delivery at once, finish after pending values are received.
	done       chan struct{}
	finish     chan struct{}
	doneOnce   sync.Once
	finishOnce sync.Once
}

// NewSubscription creates a subscription that receives nothing until it is
// passed to Register. Splitting the two lets a caller register at a precise
// point in its own ordering.
func (b *Broadcaster[T]) NewSubscription() (*Subscription[T], error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("broadcast.NewSubscription: unable to generate id: %w", err)
	}
	out := make(chan T)
	s := &Subscription[T]{
		C:      out,
		id:     id,
		b:      b,
		out:    out,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		finish: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Register starts delivering values sent after this call to s. Registering
// on a closed Broadcaster closes s.C.
func (b *Broadcaster[T]) Register(s *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.close()
		return
	}
	b.subs[s.id] = s
}

// Subscribe creates and registers a subscription.
func (b *Broadcaster[T]) Subscribe() (*Subscription[T], error) {
	s, err := b.NewSubscription()
	if err != nil {
		return nil, err
	}
	b.Register(s)
	return s, nil
}

// Send delivers v to every registered subscriber.
func (b *Broadcaster[T]) Send(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.push(v)
	}
}

// Len returns the number of registered subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unregisters every subscriber. Each subscription's C is closed once
// the values already sent to it have been received. Send after Close is a
// no-op.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, s := range b.subs {
		s.close()
		delete(b.subs, id)
	}
}

func (b *Broadcaster[T]) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// ID uniquely identifies the subscription.
func (s *Subscription[T]) ID() string { return s.id }

// Cancel unregisters the subscription and closes C, discarding values not
// yet received. It is safe to call more than once and does not affect other
// subscribers.
func (s *Subscription[T]) Cancel() {
	s.b.remove(s.id)
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscription[T]) close() {
	s.finishOnce.Do(func() { close(s.finish) })
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.finish:
				if s.drained() {
					return
				}
				continue
			case <-s.done:
				return
			}
		}
		v := s.pending[0]
		var zero T
		s.pending[0] = zero
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription[T]) drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}
