package tap

import (
	"sync"
	"sync/atomic"
)

// DefaultBacklog is the number of windows a subscriber may fall behind by
// before new windows are dropped for it.
const DefaultBacklog = 32

// Subscription receives the windows published on a Bus.
type Subscription struct {
	C    <-chan []float64
	Done <-chan struct{}

	ch     chan []float64
	doneCh chan struct{}
	once   sync.Once
}

func newSubscription(backlog int) *Subscription {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	s := &Subscription{
		ch:     make(chan []float64, backlog),
		doneCh: make(chan struct{}),
	}
	s.C = s.ch
	s.Done = s.doneCh
	return s
}

// close signals the subscriber to stop. The data channel stays open so a
// publisher racing with Close never sends on a closed channel.
func (s *Subscription) close() {
	s.once.Do(func() { close(s.doneCh) })
}

// send delivers w without blocking and reports whether it was accepted.
func (s *Subscription) send(w []float64) bool {
	select {
	case s.ch <- w:
		return true
	default:
		// Drop if buffer full
		return false
	}
}

// Bus fans sample windows out to its subscribers.
//
// Publish never blocks and takes no lock: the subscriber list is an immutable
// slice swapped atomically on Subscribe and Close.
type Bus struct {
	mu      sync.Mutex // serializes writers of subs
	subs    atomic.Pointer[[]*Subscription]
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	b := &Bus{}
	b.subs.Store(&[]*Subscription{})
	return b
}

// Subscribe registers a receiver with room for backlog pending windows.
// Subscribing to a closed bus returns an already retired subscription.
func (b *Bus) Subscribe(backlog int) *Subscription {
	s := newSubscription(backlog)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		s.close()
		return s
	}
	cur := *b.subs.Load()
	next := make([]*Subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	b.subs.Store(&next)
	return s
}

// Publish offers w to every subscriber. Subscribers whose backlog is full
// miss this window. With no subscriber, Publish does nothing.
func (b *Bus) Publish(w []float64) {
	if b.closed.Load() {
		return
	}
	for _, s := range *b.subs.Load() {
		if !s.send(w) {
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were discarded because a subscriber
// was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close retires every subscription. Further publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Swap(true) {
		return
	}
	for _, s := range *b.subs.Load() {
		s.close()
	}
	b.subs.Store(&[]*Subscription{})
}
