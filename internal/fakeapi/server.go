// Package fakeapi is an in-memory implementation of the story service API.
// It backs the end-to-end tests of the client and the local development
// server in cmd/fakeserver; it is not a production server.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/middleware"
	"github.com/atinyakov/storyapp/internal/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxPhotoBytes is the largest photo the service accepts.
const MaxPhotoBytes = 1 << 20

type user struct {
	ID       string
	Name     string
	Email    string
	Password string
}

type photo struct {
	Data     []byte
	MimeType string
}

// Server holds accounts, issued tokens and stories in memory.
type Server struct {
	log *zap.Logger
	now func() time.Time

	mu      sync.RWMutex
	users   map[string]*user // by email
	tokens  map[string]string
	stories []models.Story // newest first
	photos  map[string]photo
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = logger.OrNop(log) }
}

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		log:    zap.NewNop(),
		now:    time.Now,
		users:  make(map[string]*user),
		tokens: make(map[string]string),
		photos: make(map[string]photo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router serving the API.
//
// Routes:
//
//	POST /register     → register      (JSON)
//	POST /login        → login         (JSON)
//	GET  /stories      → listStories   (Bearer)
//	POST /stories      → uploadStory   (Bearer, multipart)
//	GET  /photos/{id}  → servePhoto
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(s.log))

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Post("/register", s.register)
		r.Post("/login", s.login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(s))
		r.Get("/stories", s.listStories)
		r.Post("/stories", s.uploadStory)
	})

	r.Get("/photos/{id}", s.servePhoto)
	return r
}

// UserForToken implements middleware.TokenResolver.
func (s *Server) UserForToken(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	return s.users[email].ID, true
}

// RevokeToken invalidates a previously issued token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// AddUser creates an account directly, bypassing validation.
func (s *Server) AddUser(name, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = &user{
		ID:       "user-" + uuid.NewString(),
		Name:     name,
		Email:    email,
		Password: password,
	}
}

// AddStory prepends a story to the feed.
func (s *Server) AddStory(story models.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append([]models.Story{story}, s.stories...)
}

// Stories returns a copy of the feed, newest first.
func (s *Server) Stories() []models.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Story(nil), s.stories...)
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": true, "message": message})
}
