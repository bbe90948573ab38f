package controller

import "github.com/atinyakov/storyapp/internal/apperr"

// Status is the phase of an Operation.
type Status int

const (
	// StatusIdle means nothing has been requested yet (or the last request was reset).
	StatusIdle Status = iota
	// StatusLoading means a request is in flight.
	StatusLoading
	// StatusSucceeded means the last request produced Data.
	StatusSucceeded
	// StatusFailed means the last request produced Error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the projection a presentation layer renders. Every transition
// replaces the whole value.
type State[T any] struct {
	Status Status
	// Data is set only in StatusSucceeded.
	Data T
	// Error is the human-readable failure, set only in StatusFailed.
	Error string
	// Cause is the typed failure behind Error.
	Cause error
}

// Loading reports whether a request is in flight.
func (s State[T]) Loading() bool {
	return s.Status == StatusLoading
}

func idle[T any]() State[T] {
	return State[T]{Status: StatusIdle}
}

func loading[T any]() State[T] {
	return State[T]{Status: StatusLoading}
}

func succeeded[T any](data T) State[T] {
	return State[T]{Status: StatusSucceeded, Data: data}
}

func failed[T any](err error) State[T] {
	return State[T]{Status: StatusFailed, Error: apperr.Message(err), Cause: err}
}
