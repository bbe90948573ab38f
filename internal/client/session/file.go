package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// record is the persisted session layout.
type record struct {
	Token string `json:"token,omitempty"`
}

// FileBackend keeps the session record in <dir>/<namespace>.json.
type FileBackend struct {
	path string
}

// NewFileBackend returns a FileBackend storing the record under dir.
func NewFileBackend(dir, namespace string) *FileBackend {
	return &FileBackend{path: filepath.Join(dir, namespace+".json")}
}

// Path returns the location of the record file.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the token; a missing file means logged out.
func (b *FileBackend) Load(_ context.Context) (string, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	var rec record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return "", fmt.Errorf("decode %s: %w", b.path, err)
	}
	return rec.Token, nil
}

// Save writes the token through a temp file and rename, so a crash never
// leaves a half-written record.
func (b *FileBackend) Save(_ context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(record{Token: token}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

// Delete removes the record; deleting a missing record is not an error.
func (b *FileBackend) Delete(_ context.Context) error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
