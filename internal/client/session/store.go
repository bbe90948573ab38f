// Package session persists the device's authentication token and exposes it
// as a replay-latest stream of Session snapshots.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/storyapp/internal/apperr"
	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/models"
	"github.com/atinyakov/storyapp/internal/stream"
	"go.uber.org/zap"
)

// Namespace is the fixed key of the persisted session record.
const Namespace = "settings"

// ErrEmptyToken is returned by Write for an empty token; use Clear to log out.
var ErrEmptyToken = errors.New("session token must not be empty")

// Backend is the durable storage of the session record.
type Backend interface {
	// Load returns the stored token, or "" when no record exists.
	Load(ctx context.Context) (string, error)
	// Save stores token, replacing any previous record.
	Save(ctx context.Context, token string) error
	// Delete removes the record.
	Delete(ctx context.Context) error
}

// Store owns the process-wide Session. Writes are serialized and committed
// to the backend before the new snapshot is published; reads are snapshot
// reads of the latest published value.
type Store struct {
	backend Backend
	log     *zap.Logger

	mu     sync.Mutex
	latest *stream.Latest[models.Session]
}

// NewStore constructs a Store over backend. Nothing is loaded until the
// first Read or Current.
func NewStore(backend Backend, log *zap.Logger) *Store {
	return &Store{
		backend: backend,
		log:     logger.OrNop(log),
		latest:  stream.New[models.Session](),
	}
}

// Read subscribes to Session snapshots. The latest snapshot is delivered
// immediately, then every later change; the channel closes when ctx is done.
// A *apperr.StorageError means the session is unavailable.
func (s *Store) Read(ctx context.Context) (<-chan models.Session, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.latest.Subscribe(ctx), nil
}

// Current returns the latest Session snapshot.
func (s *Store) Current(ctx context.Context) (models.Session, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return models.Session{}, err
	}
	sess, _ := s.latest.Value()
	return sess, nil
}

// Write persists token and publishes a logged-in Session.
func (s *Store) Write(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, token); err != nil {
		s.log.Error("failed to persist session", zap.Error(err))
		return &apperr.StorageError{Op: "save", Err: err}
	}
	s.latest.Publish(models.NewSession(token))
	s.log.Info("session stored")
	return nil
}

// Clear removes the token and publishes a logged-out Session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		s.log.Error("failed to clear session", zap.Error(err))
		return &apperr.StorageError{Op: "delete", Err: err}
	}
	s.latest.Publish(models.NewSession(""))
	s.log.Info("session cleared")
	return nil
}

// Close ends every open Read subscription.
func (s *Store) Close() {
	s.latest.Close()
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if _, ok := s.latest.Value(); ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.latest.Value(); ok {
		return nil
	}

	token, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Error("failed to load session", zap.Error(err))
		return &apperr.StorageError{Op: "load", Err: err}
	}
	s.latest.Publish(models.NewSession(token))
	return nil
}
