// Package api is the transport client of the story service. It issues the
// login, register, list-stories and upload-story calls and classifies every
// outcome into the apperr taxonomy. It keeps no state between calls and never
// retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/storyapp/internal/apperr"
	"github.com/atinyakov/storyapp/internal/logger"
	"github.com/atinyakov/storyapp/internal/models"
	"go.uber.org/zap"
)

const (
	pathLogin    = "/login"
	pathRegister = "/register"
	pathStories  = "/stories"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// Client calls the remote story API rooted at baseURL.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a Client. A nil httpClient uses http.DefaultClient; a nil log discards output.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     logger.OrNop(log),
	}
}

// envelope is the part of every response body the service always sends.
type envelope struct {
	Error   *bool  `json:"error"`
	Message string `json:"message"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, error) {
	var out struct {
		LoginResult *struct {
			UserID string `json:"userId"`
			Name   string `json:"name"`
			Token  string `json:"token"`
		} `json:"loginResult"`
	}
	if _, err := c.postJSON(ctx, pathLogin, creds, &out); err != nil {
		return "", err
	}
	if out.LoginResult == nil || out.LoginResult.Token == "" {
		return "", &apperr.ProtocolError{Err: errors.New("login response carries no token")}
	}
	return out.LoginResult.Token, nil
}

// Register creates an account. The returned message is informational only.
func (c *Client) Register(ctx context.Context, reg models.Registration) (string, error) {
	return c.postJSON(ctx, pathRegister, reg, nil)
}

// ListStories fetches the feed in server order.
func (c *Client) ListStories(ctx context.Context, token string) ([]models.Story, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathStories, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setBearer(req, token)

	var out struct {
		ListStory *[]models.Story `json:"listStory"`
	}
	if _, err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	if out.ListStory == nil {
		return nil, &apperr.ProtocolError{Err: errors.New("stories response carries no listStory")}
	}

	stories := *out.ListStory
	seen := make(map[string]struct{}, len(stories))
	for _, s := range stories {
		if _, dup := seen[s.ID]; dup {
			return nil, &apperr.ProtocolError{Err: fmt.Errorf("duplicate story id %q", s.ID)}
		}
		seen[s.ID] = struct{}{}
	}
	return stories, nil
}

// UploadStory posts a new story as multipart form data.
// The returned message is informational only.
func (c *Client) UploadStory(ctx context.Context, story models.NewStory, token string) (string, error) {
	body, contentType, err := encodeStory(story)
	if err != nil {
		return "", fmt.Errorf("encode story: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathStories, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	setBearer(req, token)

	return c.do(ctx, req, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

// do sends req and classifies the outcome. On success it decodes the body
// into out (when non-nil) and returns the server message. A cancelled ctx
// yields ctx.Err() rather than a taxonomy error.
func (c *Client) do(ctx context.Context, req *http.Request, out any) (string, error) {
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	log := c.log.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug("request cancelled", zap.Error(ctxErr))
			return "", ctxErr
		}
		log.Warn("request failed", zap.Error(err))
		return "", &apperr.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Warn("reading response failed", zap.Error(err))
		return "", &apperr.TransportError{Err: err}
	}

	log.Debug("request done",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		log.Warn("server rejected request", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return "", &apperr.RequestError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, &env); err != nil {
		return "", &apperr.ProtocolError{Err: err}
	}
	if env.Error == nil {
		return "", &apperr.ProtocolError{Err: errors.New("response carries no error flag")}
	}
	if *env.Error {
		log.Info("server reported failure", zap.String("message", env.Message))
		return "", &apperr.ApplicationError{Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return "", &apperr.ProtocolError{Err: err}
		}
	}
	return env.Message, nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}
