package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type staticTokens map[string]string

func (s staticTokens) UserForToken(token string) (string, bool) {
	user, ok := s[token]
	return user, ok
}

func TestBearerAuth(t *testing.T) {
	tokens := staticTokens{"good": "alice"}

	tests := []struct {
		name       string
		header     string
		wantCalled bool
		wantCode   int
		wantBody   string
	}{
		{"no header", "", false, http.StatusUnauthorized, "Missing authentication"},
		{"wrong scheme", "Basic Zm9vOmJhcg==", false, http.StatusUnauthorized, "Missing authentication"},
		{"empty token", "Bearer ", false, http.StatusUnauthorized, "Missing authentication"},
		{"unknown token", "Bearer nope", false, http.StatusUnauthorized, "Invalid token"},
		{"valid token", "Bearer good", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := BearerAuth(tokens)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/stories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			if dummy.called != tt.wantCalled {
				t.Errorf("next called = %v; want %v", dummy.called, tt.wantCalled)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q; want substring %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantCalled {
				if user := GetUserIDFromContext(dummy.ctx); user != "alice" {
					t.Errorf("expected context user 'alice', got '%s'", user)
				}
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	// no value
	empty := GetUserIDFromContext(context.Background())
	if empty != "" {
		t.Errorf("expected empty string for missing user, got '%s'", empty)
	}
	// with value
	ctx := context.WithValue(context.Background(), userKey, "bob")
	val := GetUserIDFromContext(ctx)
	if val != "bob" {
		t.Errorf("expected 'bob', got '%s'", val)
	}
}

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/register" || fields["method"] != http.MethodPost {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["status"] != int64(http.StatusCreated) || fields["bytes"] != int64(5) {
		t.Errorf("unexpected status/bytes: %v", fields)
	}
}
