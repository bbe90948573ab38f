package controller

import (
	"sync"

	"go.uber.org/zap"
)

// Event is a one-shot navigation signal, separate from State.
type Event int

const (
	// EventRedirectToEntry asks the presentation layer to show the entry
	// (login/register) screen because no session is available.
	EventRedirectToEntry Event = iota + 1
	// EventNavigateToFeed asks the presentation layer to leave the create
	// screen for the feed after a successful upload.
	EventNavigateToFeed
)

func (e Event) String() string {
	switch e {
	case EventRedirectToEntry:
		return "redirect-to-entry"
	case EventNavigateToFeed:
		return "navigate-to-feed"
	default:
		return "unknown"
	}
}

const eventBuffer = 8

// events is a buffered side channel that can be closed exactly once and
// drops emissions after close.
type events struct {
	log *zap.Logger

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func newEvents(log *zap.Logger) *events {
	return &events{log: log, ch: make(chan Event, eventBuffer)}
}

func (e *events) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		e.log.Warn("event dropped, nobody is listening", zap.Stringer("event", ev))
	}
}

func (e *events) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
