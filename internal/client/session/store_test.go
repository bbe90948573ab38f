package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/storyapp/internal/apperr"
	"github.com/atinyakov/storyapp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory Backend with injectable failures.
type memBackend struct {
	mu        sync.Mutex
	token     string
	loads     int
	saves     int
	loadErr   error
	saveErr   error
	deleteErr error
	onSave    func(token string)
}

func (m *memBackend) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.token, m.loadErr
}

func (m *memBackend) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onSave != nil {
		m.onSave(token)
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.token = token
	return nil
}

func (m *memBackend) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.token = ""
	return nil
}

func next(t *testing.T, ch <-chan models.Session) models.Session {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "session stream closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session")
	}
	return models.Session{}
}

func TestStore_ReadReplaysPersistedSession(t *testing.T) {
	backend := &memBackend{token: "persisted"}
	store := NewStore(backend, nil)
	assert.Equal(t, 0, backend.loads, "load must be lazy")

	ch, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.NewSession("persisted"), next(t, ch))

	_, err = store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.loads)
}

func TestStore_WriteAndClear(t *testing.T) {
	backend := &memBackend{}
	store := NewStore(backend, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Session{}, next(t, ch))

	require.NoError(t, store.Write(ctx, "abc"))
	assert.Equal(t, models.Session{Token: "abc", IsLoggedIn: true}, next(t, ch))
	assert.Equal(t, "abc", backend.token)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, models.Session{}, next(t, ch))
	assert.Equal(t, "", backend.token)

	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.False(t, cur.IsLoggedIn)
}

func TestStore_DurableWriteCommitsBeforeEmission(t *testing.T) {
	backend := &memBackend{}
	store := NewStore(backend, nil)

	backend.onSave = func(token string) {
		cur, _ := store.latest.Value()
		assert.NotEqual(t, token, cur.Token, "snapshot published before durable write")
	}
	require.NoError(t, store.Write(context.Background(), "abc"))

	cur, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", cur.Token)
}

func TestStore_WriteRejectsEmptyToken(t *testing.T) {
	store := NewStore(&memBackend{}, nil)
	assert.ErrorIs(t, store.Write(context.Background(), ""), ErrEmptyToken)
}

func TestStore_StorageErrors(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		backend := &memBackend{loadErr: errors.New("disk unreadable")}
		store := NewStore(backend, nil)

		_, err := store.Read(context.Background())
		var storageErr *apperr.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "load", storageErr.Op)

		_, err = store.Current(context.Background())
		require.ErrorAs(t, err, &storageErr)

		// the store stays unavailable rather than defaulting, and retries later
		_, has := store.latest.Value()
		assert.False(t, has)
		backend.mu.Lock()
		backend.loadErr = nil
		backend.token = "recovered"
		backend.mu.Unlock()
		cur, err := store.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "recovered", cur.Token)
	})

	t.Run("save", func(t *testing.T) {
		store := NewStore(&memBackend{saveErr: errors.New("disk full")}, nil)
		err := store.Write(context.Background(), "abc")
		var storageErr *apperr.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "save", storageErr.Op)

		cur, err := store.Current(context.Background())
		require.NoError(t, err)
		assert.False(t, cur.IsLoggedIn, "failed write must not publish")
	})

	t.Run("delete", func(t *testing.T) {
		store := NewStore(&memBackend{token: "abc", deleteErr: errors.New("locked")}, nil)
		err := store.Clear(context.Background())
		var storageErr *apperr.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "delete", storageErr.Op)
	})
}

func TestStore_SurvivesRestartWithFileBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewStore(NewFileBackend(dir, Namespace), nil)
	require.NoError(t, first.Write(ctx, "abc"))
	first.Close()

	second := NewStore(NewFileBackend(dir, Namespace), nil)
	cur, err := second.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.NewSession("abc"), cur)
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	store := NewStore(&memBackend{}, nil)
	ch, err := store.Read(context.Background())
	require.NoError(t, err)
	next(t, ch)

	store.Close()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}
