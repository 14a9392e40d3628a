package engine

import "sync"

const eventBufferSize = 64

// Subscription provides the event channel for a subscriber.
type Subscription struct {
	Events <-chan Event
	Done   <-chan struct{}

	// Internal write channels
	eventCh chan Event
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		eventCh: make(chan Event, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.Events = s.eventCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// send sends an event (non-blocking).
func (s *Subscription) send(e Event) {
	select {
	case s.eventCh <- e:
	default:
		// Drop if buffer full
	}
}

// Hub is an Emitter that fans events out to any number of subscribers.
// A slow subscriber loses events instead of stalling the controller.
type Hub struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
}

// NewHub returns a hub without subscribers.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe returns a new subscription. Subscribing to a closed hub returns
// a subscription whose Done is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := newSubscription()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	h.subs = append(h.subs, sub)
	return sub
}

// Unsubscribe removes sub and closes its Done channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			sub.close()
			return
		}
	}
}

// Emit implements Emitter.
func (h *Hub) Emit(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.send(e)
	}
}

// Close retires every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.subs {
		s.close()
	}
	h.subs = nil
}
