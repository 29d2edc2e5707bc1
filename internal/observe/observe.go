// Package observe provides the subscribe/notify contract that state
// containers use to push immutable state copies to whichever UI renders them.
package observe

import (
	"sort"
	"sync"
)

// Hub fans published values out to subscribers. The zero value is ready to use.
//
// Every value carries a sequence stamp. A subscriber never sees a value
// older than one it has already been given, even when publishers race.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	seq  uint64
	subs map[int]*subscriber[T]
}

// subscriber serializes delivery to one callback. While the callback runs,
// newer values are parked in pending and handed over when it returns, so
// only the newest parked value is delivered.
type subscriber[T any] struct {
	fn func(T)

	mu         sync.Mutex
	last       uint64
	pending    T
	hasPending bool
	running    bool
}

func (s *subscriber[T]) deliver(seq uint64, v T) {
	s.mu.Lock()
	if seq <= s.last {
		s.mu.Unlock()
		return
	}
	s.last = seq
	s.pending = v
	s.hasPending = true
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for s.hasPending {
		v := s.pending
		var zero T
		s.pending = zero
		s.hasPending = false
		s.mu.Unlock()
		s.fn(v)
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}

// Subscribe registers fn and returns a function that removes it.
// fn runs on a publishing goroutine and must not block.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]*subscriber[T])
	}
	id := h.next
	h.next++
	h.subs[id] = &subscriber[T]{fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Stamp returns the next sequence number. State containers call it while
// holding the lock that guards their state, so stamps follow the order in
// which the state changed.
func (h *Hub[T]) Stamp() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	return h.seq
}

// Publish stamps v and delivers it.
func (h *Hub[T]) Publish(v T) {
	h.PublishAt(h.Stamp(), v)
}

// PublishAt delivers v, stamped seq by Stamp, to every subscriber in
// subscription order. Subscribers that already saw a later stamp skip it.
func (h *Hub[T]) PublishAt(seq uint64, v T) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]*subscriber[T], len(ids))
	for i, id := range ids {
		subs[i] = h.subs[id]
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.deliver(seq, v)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Latest registers through subscribe, usually a Hub's or a state
// container's Subscribe method, and keeps only the most recent value in a
// one-slot channel, so slow readers see the newest state instead of a
// backlog. Call the returned cancel to unsubscribe.
func Latest[T any](subscribe func(func(T)) func()) (<-chan T, func()) {
	ch := make(chan T, 1)
	unsubscribe := subscribe(func(v T) {
		for {
			select {
			case ch <- v:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
	return ch, unsubscribe
}
