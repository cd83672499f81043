// Package feed fans full snapshots out to live subscribers. Each subscriber
// holds at most one undelivered snapshot; a newer one replaces it.
//
// Snapshots carry a version taken from Stamp before the data was loaded. A
// subscriber never receives a snapshot older than one it already got, so
// loads that finish out of order cannot leave it on stale data.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub manages subscriptions keyed by scope (an event id, or "events" for the
// event list).
type Hub[T any] struct {
	mu    sync.RWMutex
	subs  map[string]map[*Subscription[T]]struct{}
	clock atomic.Uint64
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[*Subscription[T]]struct{})}
}

// Subscribe registers a subscription for scope. It is released by
// Unsubscribe or when ctx is done.
func (h *Hub[T]) Subscribe(ctx context.Context, scope string) *Subscription[T] {
	sub := &Subscription[T]{
		hub:   h,
		scope: scope,
		ch:    make(chan T, 1),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[scope] == nil {
		h.subs[scope] = make(map[*Subscription[T]]struct{})
	}
	h.subs[scope][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	return sub
}

// Stamp returns a fresh version. Take it after the write has committed and
// before loading the snapshot it will label.
func (h *Hub[T]) Stamp() uint64 {
	return h.clock.Add(1)
}

// Publish delivers snapshot to every subscriber of scope without blocking.
// Subscribers that already hold a newer version keep it.
func (h *Hub[T]) Publish(scope string, version uint64, snapshot T) {
	h.mu.RLock()
	subs := make([]*Subscription[T], 0, len(h.subs[scope]))
	for sub := range h.subs[scope] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(version, snapshot)
	}
}

// Count returns the number of live subscriptions for scope.
func (h *Hub[T]) Count(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[scope])
}

func (h *Hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[sub.scope], sub)
	if len(h.subs[sub.scope]) == 0 {
		delete(h.subs, sub.scope)
	}
}

// Subscription is a live handle on one scope.
type Subscription[T any] struct {
	hub   *Hub[T]
	scope string
	ch    chan T
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	version uint64
}

// C returns the channel snapshots arrive on. It is closed on unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed once the subscription is released.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Prime hands the subscriber its initial snapshot, stamped after the
// subscription was registered. It is dropped if a newer one already arrived.
func (s *Subscription[T]) Prime(version uint64, snapshot T) {
	s.deliver(version, snapshot)
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
	s.mu.Unlock()

	s.hub.remove(s)
}

func (s *Subscription[T]) deliver(version uint64, snapshot T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || version < s.version {
		return
	}
	s.version = version

	select {
	case s.ch <- snapshot:
		return
	default:
	}
	// replace the unread snapshot
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snapshot
}
