package fakeapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/storyapp/internal/middleware"
	"github.com/atinyakov/storyapp/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// register handles POST /register.
// It expects a JSON body with name, email and password. Duplicate emails
// are answered with 400 and an error envelope.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.Validate(); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	key := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, exists := s.users[key]; exists {
		s.mu.Unlock()
		writeFailure(w, http.StatusBadRequest, "Email is already taken")
		return
	}
	s.users[key] = &user{
		ID:       "user-" + uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	s.mu.Unlock()

	s.log.Info("user registered", zap.String("email", req.Email))
	writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "User created"})
}

// login handles POST /login and issues a fresh bearer token.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		writeFailure(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = strings.ToLower(req.Email)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"error":   false,
		"message": "success",
		"loginResult": map[string]string{
			"userId": u.ID,
			"name":   u.Name,
			"token":  token,
		},
	})
}

// listStories handles GET /stories.
func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	stories := s.Stories()
	if stories == nil {
		stories = []models.Story{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"error":     false,
		"message":   "Stories fetched successfully",
		"listStory": stories,
	})
}

// uploadStory handles POST /stories with a multipart body holding a
// "photo" file part, a "description" text part and optional "lat"/"lon".
func (s *Server) uploadStory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+64<<10)
	if err := r.ParseMultipartForm(MaxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "Payload content length greater than maximum allowed: 1000000")
			return
		}
		writeFailure(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	description := r.FormValue("description")
	if strings.TrimSpace(description) == "" {
		writeFailure(w, http.StatusBadRequest, "\"description\" is required")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "\"photo\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeFailure(w, http.StatusBadRequest, "\"photo\" must not be empty")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		writeFailure(w, http.StatusBadRequest, "\"photo\" must be an image")
		return
	}

	story := models.Story{
		ID:          "story-" + uuid.NewString(),
		Description: description,
		CreatedAt:   s.now().UTC().Format(time.RFC3339Nano),
	}
	if lat, lon := r.FormValue("lat"), r.FormValue("lon"); lat != "" || lon != "" {
		latV, errLat := strconv.ParseFloat(lat, 64)
		lonV, errLon := strconv.ParseFloat(lon, 64)
		if errLat != nil || errLon != nil {
			writeFailure(w, http.StatusBadRequest, "\"lat\" and \"lon\" must be numbers")
			return
		}
		story.Lat, story.Lon = models.NewCoordinate(latV), models.NewCoordinate(lonV)
	}
	story.PhotoURL = "/photos/" + story.ID

	s.mu.Lock()
	for _, u := range s.users {
		if u.ID == userID {
			story.AuthorName = u.Name
			break
		}
	}
	s.photos[story.ID] = photo{Data: data, MimeType: mimeType}
	s.stories = append([]models.Story{story}, s.stories...)
	s.mu.Unlock()

	s.log.Info("story created", zap.String("id", story.ID), zap.Int("photo_bytes", len(data)))
	writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "Story created successfully"})
}

// servePhoto handles GET /photos/{id}.
func (s *Server) servePhoto(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p, ok := s.photos[chi.URLParam(r, "id")]
	s.mu.RUnlock()
	if !ok {
		writeFailure(w, http.StatusNotFound, "photo not found")
		return
	}
	w.Header().Set("Content-Type", p.MimeType)
	_, _ = w.Write(p.Data)
}
