package controller

import (
	"cmp"
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/storyapp/internal/apperr"
	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/models"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is the failure of an authenticated action without a session.
var ErrNotLoggedIn = errors.New("you need to log in first")

// AuthAPI is the part of the transport client used by the entry screens.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (string, error)
	Register(ctx context.Context, reg models.Registration) (string, error)
}

// StoryAPI is the part of the transport client used by the feed and create screens.
type StoryAPI interface {
	ListStories(ctx context.Context, token string) ([]models.Story, error)
	UploadStory(ctx context.Context, story models.NewStory, token string) (string, error)
}

// SessionStore is the session access the controllers need.
type SessionStore interface {
	Read(ctx context.Context) (<-chan models.Session, error)
	Current(ctx context.Context) (models.Session, error)
	Write(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Login validates credentials, exchanges them for a token and stores it.
type Login struct {
	*Operation[models.Credentials, models.Session]
}

// NewLogin returns the login screen controller.
func NewLogin(api AuthAPI, store SessionStore, log *zap.Logger) *Login {
	return &Login{NewOperation(OperationConfig[models.Credentials, models.Session]{
		Name:     "login",
		Log:      log,
		Validate: models.Credentials.Validate,
		Run: func(ctx context.Context, creds models.Credentials) (models.Session, error) {
			token, err := api.Login(ctx, creds)
			var reqErr *apperr.RequestError
			if errors.As(err, &reqErr) && reqErr.Unauthorized() {
				// no session is involved yet: a 401 here means bad credentials
				return models.Session{}, &apperr.ApplicationError{Message: cmp.Or(reqErr.Message, "Invalid email or password")}
			}
			if err != nil {
				return models.Session{}, err
			}
			return models.NewSession(token), nil
		},
		Commit: func(ctx context.Context, sess models.Session) error {
			return store.Write(ctx, sess.Token)
		},
	})}
}

// Register validates and submits a sign-up. Data is the server message.
type Register struct {
	*Operation[models.Registration, string]
}

// NewRegister returns the sign-up screen controller.
func NewRegister(api AuthAPI, log *zap.Logger) *Register {
	return &Register{NewOperation(OperationConfig[models.Registration, string]{
		Name:     "register",
		Log:      log,
		Validate: models.Registration.Validate,
		Run:      api.Register,
	})}
}

// Create uploads a new story for the current session. On success it emits
// EventNavigateToFeed; without a session it emits EventRedirectToEntry.
type Create struct {
	*Operation[models.NewStory, string]
	events *events
}

// NewCreate returns the create-story screen controller.
func NewCreate(api StoryAPI, store SessionStore, log *zap.Logger) *Create {
	log = logger.OrNop(log)
	c := &Create{events: newEvents(log)}
	c.Operation = NewOperation(OperationConfig[models.NewStory, string]{
		Name:     "create",
		Log:      log,
		Validate: models.NewStory.Validate,
		Run: func(ctx context.Context, story models.NewStory) (string, error) {
			sess, err := store.Current(ctx)
			if err != nil {
				return "", err
			}
			if !sess.IsLoggedIn {
				return "", ErrNotLoggedIn
			}
			return api.UploadStory(ctx, story, sess.Token)
		},
		Commit: func(context.Context, string) error {
			c.events.emit(EventNavigateToFeed)
			return nil
		},
		OnFailure: func(err error) {
			if errors.Is(err, ErrNotLoggedIn) {
				c.events.emit(EventRedirectToEntry)
			}
		},
	})
	return c
}

// Events delivers navigation signals; it is closed by Dispose.
func (c *Create) Events() <-chan Event {
	return c.events.ch
}

// Dispose cancels any upload in flight and closes State and Events.
func (c *Create) Dispose() {
	c.Operation.Dispose()
	c.events.close()
}

// Feed follows the session: a logged-out snapshot emits EventRedirectToEntry,
// a logged-in snapshot with a new token loads the stories.
type Feed struct {
	*Operation[string, []models.Story]
	store  SessionStore
	events *events
	log    *zap.Logger

	mu       sync.Mutex
	token    string
	mounted  bool
	disposed bool
	stop     context.CancelFunc
	watching sync.WaitGroup
}

// NewFeed returns the feed screen controller. Call Mount to start it.
func NewFeed(api StoryAPI, store SessionStore, log *zap.Logger) *Feed {
	log = logger.OrNop(log)
	return &Feed{
		Operation: NewOperation(OperationConfig[string, []models.Story]{
			Name: "feed",
			Log:  log,
			Run:  api.ListStories,
		}),
		store:  store,
		events: newEvents(log),
		log:    log,
	}
}

// Events delivers navigation signals; it is closed by Dispose.
func (f *Feed) Events() <-chan Event {
	return f.events.ch
}

// Mount subscribes to the session. A session that cannot be read is
// reported as a failure and treated as logged out. Mounting twice is a no-op.
func (f *Feed) Mount() {
	f.mu.Lock()
	if f.disposed || f.mounted {
		f.mu.Unlock()
		return
	}
	f.mounted = true
	ctx, cancel := context.WithCancel(context.Background())
	f.stop = cancel
	f.watching.Add(1)
	f.mu.Unlock()

	sessions, err := f.store.Read(ctx)
	if err != nil {
		f.watching.Done()
		f.log.Warn("session unavailable, redirecting", zap.Error(err))
		f.Fail(err)
		f.events.emit(EventRedirectToEntry)
		return
	}

	go func() {
		defer f.watching.Done()
		for sess := range sessions {
			f.onSession(sess)
		}
	}()
}

// Refresh reloads the stories with the current session token.
func (f *Feed) Refresh() {
	sess, err := f.store.Current(context.Background())
	if err != nil {
		f.log.Warn("session unavailable, redirecting", zap.Error(err))
		f.Fail(err)
		f.events.emit(EventRedirectToEntry)
		return
	}
	if !sess.IsLoggedIn {
		f.events.emit(EventRedirectToEntry)
		return
	}

	f.mu.Lock()
	f.token = sess.Token
	f.mu.Unlock()
	f.Invoke(sess.Token)
}

// Logout clears the session. A mounted Feed then redirects to the entry screen.
func (f *Feed) Logout(ctx context.Context) error {
	if err := f.store.Clear(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	mounted := f.mounted
	f.mu.Unlock()
	if !mounted {
		f.events.emit(EventRedirectToEntry)
	}
	return nil
}

// Dispose stops following the session, cancels any load in flight and
// closes State and Events. Dispose is idempotent.
func (f *Feed) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	if f.stop != nil {
		f.stop()
	}
	f.mu.Unlock()

	f.Operation.Dispose()
	f.watching.Wait()
	f.events.close()
}

func (f *Feed) onSession(sess models.Session) {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	if !sess.IsLoggedIn {
		f.token = ""
		f.mu.Unlock()
		f.Reset()
		f.events.emit(EventRedirectToEntry)
		return
	}
	if sess.Token == f.token {
		f.mu.Unlock()
		return
	}
	f.token = sess.Token
	f.mu.Unlock()

	f.Invoke(sess.Token)
}
