// Package stream provides Latest, a replay-latest observable value.
//
// New subscribers immediately receive the most recent value and then every
// later one. Delivery is conflated: each subscriber channel buffers a single
// value and a publish replaces an unread value, so a slow reader always
// observes the newest state and never blocks the publisher.
package stream

import (
	"context"
	"sync"
)

// Latest holds the most recent value of type T and fans it out to subscribers.
// The zero value is not usable; construct it with New.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	closed bool
	nextID int
	subs   map[int]*subscriber[T]
}

type subscriber[T any] struct {
	ch   chan T
	stop func() bool
}

// New returns a Latest without an initial value.
func New[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[int]*subscriber[T])}
}

// NewWith returns a Latest seeded with v.
func NewWith[T any](v T) *Latest[T] {
	l := New[T]()
	l.value = v
	l.has = true
	return l
}

// Publish stores v as the latest value and offers it to every subscriber.
// Publishing on a closed Latest is a no-op.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.value = v
	l.has = true
	for _, s := range l.subs {
		offer(s.ch, v)
	}
}

// Value returns the latest value and whether one was ever published.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.has
}

// Subscribe returns a channel that receives the latest value (if any) and
// every later one. The channel is closed when ctx is done or the Latest is
// closed. Subscribing to a closed Latest yields the final value, then close.
func (l *Latest[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.has {
		ch <- l.value
	}
	if l.closed {
		close(ch)
		return ch
	}

	id := l.nextID
	l.nextID++
	s := &subscriber[T]{ch: ch}
	l.subs[id] = s
	s.stop = context.AfterFunc(ctx, func() { l.unsubscribe(id) })
	return ch
}

// Close closes every subscriber channel; later publishes are dropped.
// Close is idempotent.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, s := range l.subs {
		s.stop()
		close(s.ch)
		delete(l.subs, id)
	}
}

func (l *Latest[T]) unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.subs[id]; ok {
		close(s.ch)
		delete(l.subs, id)
	}
}

// offer replaces any unread value in ch with v. Callers hold the Latest's
// mutex, which makes them the only sender, so the send after draining never blocks.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
