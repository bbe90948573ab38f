// Package models defines the core data structures for sessions, credentials and stories.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/atinyakov/storyapp/internal/apperr"
)

// MinPasswordLength is the shortest password the service accepts.
const MinPasswordLength = 6

// emailPattern follows the address pattern the mobile client validated against.
var emailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`,
)

// Session is the authentication state of the current device user.
type Session struct {
	// Token is the bearer token issued at login; empty when logged out.
	Token string `json:"token,omitempty"`
	// IsLoggedIn is true exactly when Token is non-empty.
	IsLoggedIn bool `json:"-"`
}

// NewSession builds a Session whose login flag agrees with the token.
func NewSession(token string) Session {
	return Session{Token: token, IsLoggedIn: token != ""}
}

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the credentials in the order the login screen reports them.
func (c Credentials) Validate() error {
	switch {
	case c.Email == "":
		return apperr.Validation("email", "Email must not be empty")
	case c.Password == "":
		return apperr.Validation("password", "Password must not be empty")
	case !IsValidEmail(c.Email):
		return apperr.Validation("email", "Invalid email format")
	case len(c.Password) < MinPasswordLength:
		return apperr.Validation("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Registration is the sign-up input.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the registration in the order the sign-up screen reports them.
func (r Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return apperr.Validation("name", "Name must not be empty")
	case r.Email == "":
		return apperr.Validation("email", "Email must not be empty")
	case !IsValidEmail(r.Email):
		return apperr.Validation("email", "Invalid email format")
	case r.Password == "":
		return apperr.Validation("password", "Password must not be empty")
	case len(r.Password) < MinPasswordLength:
		return apperr.Validation("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Story is a single post of the feed.
type Story struct {
	// ID is unique within one fetched feed snapshot.
	ID string `json:"id"`
	// AuthorName is the display name of the poster.
	AuthorName string `json:"name"`
	// Description is the caption.
	Description string `json:"description"`
	// PhotoURL points at the uploaded photo.
	PhotoURL string `json:"photoUrl"`
	// CreatedAt is the ISO-8601 creation timestamp as sent by the server.
	CreatedAt string `json:"createdAt"`
	// Lat and Lon are optional geolocation metadata.
	Lat Coordinate `json:"lat"`
	Lon Coordinate `json:"lon"`
}

// CreatedDate returns the date part of CreatedAt as written, without any
// time zone shift ("2024-05-01T23:30:00-05:00" gives "2024-05-01").
func (s Story) CreatedDate() string {
	date, _, _ := strings.Cut(s.CreatedAt, "T")
	return date
}

// Initial returns the first letter of the author name, or "" when it is empty.
func (s Story) Initial() string {
	r, size := utf8.DecodeRuneInString(s.AuthorName)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}

// HasLocation reports whether both coordinates are present.
func (s Story) HasLocation() bool {
	return s.Lat.Valid && s.Lon.Valid
}

// Coordinate is an optional latitude or longitude.
// It decodes JSON null, numbers and numeric strings.
type Coordinate struct {
	Value float64
	Valid bool
}

// NewCoordinate returns a present coordinate.
func NewCoordinate(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			*c = Coordinate{}
			return nil
		}
		raw = s
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q: %w", raw, err)
	}
	*c = NewCoordinate(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// NewStory is the payload of a story upload.
type NewStory struct {
	// Image holds the encoded photo bytes.
	Image []byte
	// MimeType of Image, e.g. "image/jpeg".
	MimeType string
	// FileName sent with the photo part.
	FileName string
	// Description is the caption.
	Description string
	// Lat and Lon optionally tag the story with a location.
	Lat *float64
	Lon *float64
}

// Validate checks that a photo was captured or selected and that the caption is set.
func (n NewStory) Validate() error {
	switch {
	case len(n.Image) == 0:
		return apperr.Validation("photo", "Please pick a photo first")
	case strings.TrimSpace(n.Description) == "":
		return apperr.Validation("description", "Description must not be empty")
	case (n.Lat == nil) != (n.Lon == nil):
		return apperr.Validation("location", "Latitude and longitude must be set together")
	}
	return nil
}
