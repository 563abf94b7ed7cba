package site

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landingLoggedIn = `<html><body>
<a id="my-username" href="/user/featherbot/">~featherbot</a>
<a href="/view/500/">newest</a>
</body></html>`

const landingGuest = `<html><body><a href="/view/500/">newest</a></body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, server *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = server.URL
	opts.Logger = quietLogger()
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

// TestNewClient_Defaults verifies default URLs
func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Options{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, "https://www.furaffinity.net/", c.LandingURL())
	assert.Equal(t, "https://www.furaffinity.net/view/12345/", c.ItemURL(12345))
}

// TestNewClient_InvalidBaseURL verifies bad base URLs are rejected
func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "://bad"})
	assert.Error(t, err)
}

// TestFetch_SendsCookiesAndUserAgent verifies seeded cookies and headers
func TestFetch_SendsCookiesAndUserAgent(t *testing.T) {
	var gotUA string
	cookies := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		for _, c := range r.Cookies() {
			cookies[c.Name] = c.Value
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{CookieA: "aaa", CookieB: "bbb", UserAgent: "test-agent"})

	body, err := c.Fetch(context.Background(), c.ItemURL(1))
	require.NoError(t, err)

	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "0", cookies["sfw"])
	assert.Equal(t, "aaa", cookies["a"])
	assert.Equal(t, "bbb", cookies["b"])
}

// TestFetch_HTTPError verifies non-200 responses are errors
func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})

	_, err := c.Fetch(context.Background(), c.LandingURL())
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "503")
}

// TestLogin_Guest verifies no credentials means guest browsing
func TestLogin_Guest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 0, requests, "guest login should not contact the site")
}

// TestLogin_Form verifies the login form is posted and the session checked
func TestLogin_Form(t *testing.T) {
	var form map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/login/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{
			"action": r.PostForm.Get("action"),
			"name":   r.PostForm.Get("name"),
			"pass":   r.PostForm.Get("pass"),
		}
		http.SetCookie(w, &http.Cookie{Name: "a", Value: "session", Path: "/"})
		w.Write([]byte("welcome"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("a"); err == nil && c.Value == "session" {
			w.Write([]byte(landingLoggedIn))
			return
		}
		w.Write([]byte(landingGuest))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{Username: "featherbot", Password: "hunter2"})

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, map[string]string{"action": "login", "name": "featherbot", "pass": "hunter2"}, form)
}

// TestLogin_Rejected verifies a session that never appears is an error
func TestLogin_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(landingGuest))
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{CookieA: "stale", CookieB: "stale"})

	assert.ErrorIs(t, c.Login(context.Background()), ErrNotLoggedIn)
}

// TestLoggedIn verifies the account name is read from the header link
func TestLoggedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(landingLoggedIn))
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})

	name, err := c.LoggedIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "featherbot", name)
}
