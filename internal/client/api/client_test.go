package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/storyapp/internal/apperr"
	"github.com/atinyakov/storyapp/internal/fakeapi"
	"github.com/atinyakov/storyapp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc makes it easy to stub http.Client.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc) *Client {
	return New("http://example.com/v1/", &http.Client{Transport: fn, Timeout: time.Second}, nil)
}

func respond(status int, body string) roundTripperFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

var validCreds = models.Credentials{Email: "a@b.com", Password: "secret1"}

func TestLogin_Success(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "http://example.com/v1/login", req.URL.String())
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		body, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, `{"email":"a@b.com","password":"secret1"}`, string(body))
		return respond(http.StatusOK, `{"error":false,"message":"ok","loginResult":{"token":"abc"}}`)(req)
	})

	token, err := client.Login(context.Background(), validCreds)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		rt    roundTripperFunc
		check func(t *testing.T, err error)
	}{
		{
			name: "application error",
			rt:   respond(http.StatusOK, `{"error":true,"message":"Email is already taken"}`),
			check: func(t *testing.T, err error) {
				var appErr *apperr.ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "Email is already taken", appErr.Message)
			},
		},
		{
			name: "request error with envelope",
			rt:   respond(http.StatusUnauthorized, `{"error":true,"message":"Invalid password"}`),
			check: func(t *testing.T, err error) {
				var reqErr *apperr.RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
				assert.Equal(t, "Invalid password", reqErr.Message)
			},
		},
		{
			name: "request error without envelope",
			rt:   respond(http.StatusBadGateway, `<html>bad gateway</html>`),
			check: func(t *testing.T, err error) {
				var reqErr *apperr.RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, "Bad Gateway", reqErr.Message)
			},
		},
		{
			name: "transport error",
			rt: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network down")
			},
			check: func(t *testing.T, err error) {
				var trErr *apperr.TransportError
				require.ErrorAs(t, err, &trErr)
				assert.Contains(t, err.Error(), "network down")
			},
		},
		{
			name: "malformed payload",
			rt:   respond(http.StatusOK, `not-json`),
			check: func(t *testing.T, err error) {
				var protoErr *apperr.ProtocolError
				require.ErrorAs(t, err, &protoErr)
			},
		},
		{
			name: "missing error flag",
			rt:   respond(http.StatusOK, `{"message":"ok"}`),
			check: func(t *testing.T, err error) {
				var protoErr *apperr.ProtocolError
				require.ErrorAs(t, err, &protoErr)
			},
		},
		{
			name: "missing token",
			rt:   respond(http.StatusOK, `{"error":false,"message":"ok","loginResult":{}}`),
			check: func(t *testing.T, err error) {
				var protoErr *apperr.ProtocolError
				require.ErrorAs(t, err, &protoErr)
			},
		},
		{
			name: "wrong token type",
			rt:   respond(http.StatusOK, `{"error":false,"message":"ok","loginResult":{"token":42}}`),
			check: func(t *testing.T, err error) {
				var protoErr *apperr.ProtocolError
				require.ErrorAs(t, err, &protoErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.rt).Login(context.Background(), validCreds)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCancelledRequestReturnsContextError(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		close(started)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.ListStories(ctx, "abc")
		done <- err
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		var trErr *apperr.TransportError
		assert.False(t, errors.As(err, &trErr), "cancellation must not be reported as a transport failure")
	case <-time.After(time.Second):
		t.Fatal("request was not aborted")
	}
}

func TestListStories(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/v1/stories", req.URL.Path)
		assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
		return respond(http.StatusOK, `{"error":false,"message":"Stories fetched successfully","listStory":[
			{"id":"s2","name":"Ann","description":"second","photoUrl":"http://x/2.jpg","createdAt":"2024-05-02T08:00:00Z","lat":null,"lon":null},
			{"id":"s1","name":"Bob","description":"first","photoUrl":"http://x/1.jpg","createdAt":"2024-05-01T10:00:00Z","lat":-6.2,"lon":106.8}
		]}`)(req)
	})

	stories, err := client.ListStories(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "s2", stories[0].ID)
	assert.False(t, stories[0].HasLocation())
	assert.Equal(t, "2024-05-01", stories[1].CreatedDate())
	assert.True(t, stories[1].HasLocation())
}

func TestListStories_ProtocolViolations(t *testing.T) {
	tests := map[string]string{
		"missing list":  `{"error":false,"message":"ok"}`,
		"duplicate ids": `{"error":false,"message":"ok","listStory":[{"id":"s1"},{"id":"s1"}]}`,
		"bad latitude":  `{"error":false,"message":"ok","listStory":[{"id":"s1","lat":"north"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient(respond(http.StatusOK, body)).ListStories(context.Background(), "abc")
			var protoErr *apperr.ProtocolError
			require.ErrorAs(t, err, &protoErr)
		})
	}
}

func TestUploadStory_EncodesMultipart(t *testing.T) {
	lat, lon := -6.2, 106.8
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))

		mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		r := multipart.NewReader(req.Body, params["boundary"])
		form, err := r.ReadForm(1 << 20)
		require.NoError(t, err)

		require.Len(t, form.File["photo"], 1)
		fh := form.File["photo"][0]
		assert.Equal(t, "photo.jpg", fh.Filename)
		assert.Equal(t, "image/jpeg", fh.Header.Get("Content-Type"))
		assert.Equal(t, []string{"a caption"}, form.Value["description"])
		assert.Equal(t, []string{"-6.2"}, form.Value["lat"])
		assert.Equal(t, []string{"106.8"}, form.Value["lon"])

		return respond(http.StatusCreated, `{"error":false,"message":"Story created successfully"}`)(req)
	})

	msg, err := client.UploadStory(context.Background(), models.NewStory{
		Image:       []byte{0xff, 0xd8, 0xff, 0xe0},
		MimeType:    "image/jpeg",
		Description: "a caption",
		Lat:         &lat,
		Lon:         &lon,
	}, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Story created successfully", msg)
}

func TestEndToEndAgainstFakeAPI(t *testing.T) {
	srv := fakeapi.New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := New(ts.URL, ts.Client(), nil)
	ctx := context.Background()

	msg, err := client.Register(ctx, models.Registration{Name: "Ann", Email: "ann@example.org", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "User created", msg)

	_, err = client.Register(ctx, models.Registration{Name: "Ann", Email: "ann@example.org", Password: "secret1"})
	var reqErr *apperr.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Email is already taken", reqErr.Message)

	token, err := client.Login(ctx, models.Credentials{Email: "ann@example.org", Password: "secret1"})
	require.NoError(t, err)

	_, err = client.UploadStory(ctx, models.NewStory{
		Image:       []byte("\x89PNG\r\n\x1a\n0000"),
		Description: "first story",
	}, token)
	require.NoError(t, err)

	stories, err := client.ListStories(ctx, token)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "first story", stories[0].Description)
	assert.Equal(t, "Ann", stories[0].AuthorName)

	_, err = client.ListStories(ctx, "bogus")
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.Unauthorized())
}

func TestTransportErrorAgainstClosedServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, nil, nil).ListStories(context.Background(), "abc")
	var trErr *apperr.TransportError
	require.ErrorAs(t, err, &trErr)
}
