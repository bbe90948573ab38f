// Package controller implements the per-screen operation controllers of the
// story client. Each controller owns one single-flight asynchronous task,
// derives an observable State from the transport outcome and guarantees that
// nothing is published after Dispose.
package controller

import (
	"context"
	"sync"

	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/stream"
	"go.uber.org/zap"
)

// OperationConfig describes one kind of request.
type OperationConfig[In, T any] struct {
	// Name is used in logs.
	Name string
	// Validate checks the input locally. A failure moves straight to
	// StatusFailed without calling Run.
	Validate func(in In) error
	// Run performs the request. It must return promptly once ctx is cancelled.
	Run func(ctx context.Context, in In) (T, error)
	// Commit runs before Succeeded is published, only for the invocation that
	// is still current. An error turns the outcome into a failure.
	Commit func(ctx context.Context, data T) error
	// OnFailure runs after Failed is published for the current invocation.
	OnFailure func(err error)
	Log       *zap.Logger
}

// Operation is a single-flight state machine:
//
//	Idle → Loading → {Succeeded, Failed} → Loading → ...
//
// A new Invoke cancels the request in flight; the superseded request never
// transitions. All transitions happen under the Operation's mutex, which
// makes it the single writer of its state.
type Operation[In, T any] struct {
	cfg OperationConfig[In, T]
	log *zap.Logger

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	disposed bool
	wg       sync.WaitGroup

	state *stream.Latest[State[T]]
}

// NewOperation returns an Idle Operation.
func NewOperation[In, T any](cfg OperationConfig[In, T]) *Operation[In, T] {
	return &Operation[In, T]{
		cfg:   cfg,
		log:   logger.OrNop(cfg.Log).With(zap.String("operation", cfg.Name)),
		state: stream.NewWith(idle[T]()),
	}
}

// State returns the current projection.
func (o *Operation[In, T]) State() State[T] {
	s, _ := o.state.Value()
	return s
}

// Subscribe delivers the current State and every later one until ctx is done
// or the Operation is disposed.
func (o *Operation[In, T]) Subscribe(ctx context.Context) <-chan State[T] {
	return o.state.Subscribe(ctx)
}

// Invoke starts a request for in, superseding any request in flight.
// It does nothing after Dispose.
func (o *Operation[In, T]) Invoke(in In) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return
	}

	o.supersedeLocked()
	seq := o.seq

	if o.cfg.Validate != nil {
		if err := o.cfg.Validate(in); err != nil {
			o.log.Debug("input rejected", zap.Error(err))
			o.failLocked(err)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.state.Publish(loading[T]())

	o.wg.Add(1)
	go o.execute(ctx, seq, in)
}

// Fail supersedes any request in flight and moves to StatusFailed with err.
func (o *Operation[In, T]) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return
	}
	o.supersedeLocked()
	o.failLocked(err)
}

// Reset cancels any request in flight and returns to StatusIdle.
func (o *Operation[In, T]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return
	}
	o.supersedeLocked()
	o.state.Publish(idle[T]())
}

// Dispose cancels any request in flight and closes every subscription.
// No transition happens afterwards. Dispose is idempotent.
func (o *Operation[In, T]) Dispose() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return
	}
	o.disposed = true
	o.supersedeLocked()
	o.state.Close()
	o.log.Debug("disposed")
}

// Wait blocks until every started request goroutine has returned.
func (o *Operation[In, T]) Wait() {
	o.wg.Wait()
}

func (o *Operation[In, T]) execute(ctx context.Context, seq uint64, in In) {
	defer o.wg.Done()

	data, err := o.cfg.Run(ctx, in)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed || seq != o.seq || ctx.Err() != nil {
		o.log.Debug("discarding superseded result")
		return
	}
	// ctx stays live for Commit; release it once the outcome is published
	cancel := o.cancel
	o.cancel = nil
	defer cancel()

	if err == nil && o.cfg.Commit != nil {
		err = o.cfg.Commit(ctx, data)
	}
	if err != nil {
		o.log.Info("operation failed", zap.Error(err))
		o.failLocked(err)
		return
	}
	o.state.Publish(succeeded(data))
}

// supersedeLocked invalidates the current invocation and aborts its request.
func (o *Operation[In, T]) supersedeLocked() {
	o.seq++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Operation[In, T]) failLocked(err error) {
	o.state.Publish(failed[T](err))
	if o.cfg.OnFailure != nil {
		o.cfg.OnFailure(err)
	}
}
