// Package prompt reads screen input from an interactive terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atinyakov/storyapp/internal/models"
	"github.com/google/uuid"
)

// ErrAborted is returned when the input ends before a form is complete.
var ErrAborted = errors.New("input closed")

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// New returns a Prompter over in and out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the next trimmed line.
func (p *Prompter) Line(label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Credentials asks for an email and a password.
func (p *Prompter) Credentials() (models.Credentials, error) {
	email, err := p.Line("Email: ")
	if err != nil {
		return models.Credentials{}, err
	}
	password, err := p.Line("Password: ")
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{Email: email, Password: password}, nil
}

// Registration asks for a name, an email and a password.
func (p *Prompter) Registration() (models.Registration, error) {
	name, err := p.Line("Name: ")
	if err != nil {
		return models.Registration{}, err
	}
	creds, err := p.Credentials()
	if err != nil {
		return models.Registration{}, err
	}
	return models.Registration{Name: name, Email: creds.Email, Password: creds.Password}, nil
}

// NewStory asks for a photo path, a description and an optional location.
// An empty path leaves the photo unset so validation can report it.
func (p *Prompter) NewStory() (models.NewStory, error) {
	var story models.NewStory

	path, err := p.Line("Photo file path: ")
	if err != nil {
		return story, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return story, fmt.Errorf("failed to read photo %q: %w", path, err)
		}
		story.Image = data
		story.MimeType = http.DetectContentType(data)
		story.FileName = uuid.NewString() + strings.ToLower(filepath.Ext(path))
	}

	if story.Description, err = p.Line("Description: "); err != nil {
		return story, err
	}

	location, err := p.Line("Location as \"lat,lon\" (leave empty to skip): ")
	if err != nil {
		return story, err
	}
	if location != "" {
		lat, lon, err := parseLocation(location)
		if err != nil {
			return story, err
		}
		story.Lat, story.Lon = &lat, &lon
	}
	return story, nil
}

func parseLocation(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("location %q: expected \"lat,lon\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return lat, lon, nil
}
