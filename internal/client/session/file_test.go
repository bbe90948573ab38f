package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_LoadMissing(t *testing.T) {
	b := NewFileBackend(t.TempDir(), Namespace)

	token, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "" {
		t.Errorf("expected empty token, got %q", token)
	}
}

func TestFileBackend_SaveLoadDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := NewFileBackend(dir, Namespace)
	ctx := context.Background()

	if err := b.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if b.Path() != filepath.Join(dir, "settings.json") {
		t.Errorf("unexpected path %q", b.Path())
	}

	buf, err := os.ReadFile(b.Path())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(buf) != "{\"token\":\"abc\"}\n" {
		t.Errorf("unexpected record: %q", buf)
	}

	token, err := b.Load(ctx)
	if err != nil || token != "abc" {
		t.Fatalf("Load = %q, %v; want abc", token, err)
	}

	if err := b.Save(ctx, "def"); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if token, _ := b.Load(ctx); token != "def" {
		t.Errorf("token after overwrite = %q; want def", token)
	}

	if err := b.Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if token, _ := b.Load(ctx); token != "" {
		t.Errorf("token after delete = %q; want empty", token)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileBackend_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, Namespace)
	if err := os.WriteFile(b.Path(), []byte("not-json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Load(context.Background()); err == nil {
		t.Error("expected decode error for corrupt record")
	}
}
