package static

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions map[string]*auth.SessionData

func (s stubSessions) Load(name string) (*auth.SessionData, error) {
	if sd, ok := s[name]; ok {
		return sd, nil
	}
	return nil, errors.New("missing")
}

func TestFetchReturnsTrimmedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("\n  <html><body>hi</body></html>\n"))
	}))
	defer server.Close()

	f := New(nil, server.Client(), nil, 5*time.Second)
	body, err := f.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hi</body></html>", body)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer server.Close()

	body, err := New(nil, server.Client(), nil, 0).Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", body)
}

func TestFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(nil, server.Client(), nil, 0).Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeHTTPStatus, engine.CodeOf(err))
	assert.ErrorIs(t, err, engine.ErrUnexpectedStatus)

	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusNotFound, ee.Details["status"])
}

func TestFetchHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(nil, server.Client(), nil, 0)

	_, err := f.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDesktopUserAgent, got.Get("User-Agent"))

	_, err = f.Fetch(context.Background(), models.RequestOptions{
		URL:       server.URL,
		UserAgent: models.DefaultMobileUserAgent,
		Headers:   map[string]string{"X-Trace": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMobileUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "1", got.Get("X-Trace"))
}

func TestFetchAppliesSession(t *testing.T) {
	var cookie string
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			cookie = c.Value
		}
		header = r.Header.Get("X-Token")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	sessions := stubSessions{"work": {
		Name:    "work",
		Cookies: []auth.Cookie{{Name: "sid", Value: "abc"}},
		Headers: map[string]string{"X-Token": "secret"},
	}}
	f := New(nil, server.Client(), sessions, 0)

	_, err := f.Fetch(context.Background(), models.RequestOptions{URL: server.URL, SessionName: "work"})
	require.NoError(t, err)
	assert.Equal(t, "abc", cookie)
	assert.Equal(t, "secret", header)

	_, err = f.Fetch(context.Background(), models.RequestOptions{URL: server.URL, SessionName: "nope"})
	assert.Equal(t, engine.ErrCodeSessionError, engine.CodeOf(err))
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(nil, nil, nil, time.Second).Fetch(context.Background(), models.RequestOptions{URL: url})
	assert.Equal(t, engine.ErrCodeNetworkError, engine.CodeOf(err))
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := New(nil, server.Client(), nil, 0).Fetch(context.Background(), models.RequestOptions{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})
	assert.Equal(t, engine.ErrCodeTimeout, engine.CodeOf(err))
}

func TestFetchRejectsBadProxy(t *testing.T) {
	_, err := New(nil, nil, nil, 0).Fetch(context.Background(), models.RequestOptions{
		URL:   "http://example.com",
		Proxy: "::bad",
	})
	assert.Equal(t, engine.ErrCodeValidation, engine.CodeOf(err))
}

