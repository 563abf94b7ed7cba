// Package site talks to Fur Affinity: it keeps the session cookies and
// fetches raw pages.
package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/featherpost/markup"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBaseURL   = "https://www.furaffinity.net"
	DefaultUserAgent = "featherpost/1.0 (+https://github.com/pevans/featherpost)"
	DefaultTimeout   = 30 * time.Second

	// ViewPathPrefix prefixes every submission page path.
	ViewPathPrefix = "/view/"

	// selfLinkID marks the logged-in account's own profile link.
	selfLinkID = "my-username"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrHTTPStatus  = errors.New("unexpected HTTP status")
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string

	// CookieA and CookieB are the site's session cookies, copied from a
	// browser. They are the usual way in since the login form asks for a
	// captcha.
	CookieA string
	CookieB string

	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client fetches pages from the site with a persistent cookie jar.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	username   string
	password   string
	hasCookies bool
	logger     *slog.Logger
}

// NewClient creates a client. The jar is seeded with sfw=0 so that mature
// submissions are not hidden, plus any configured session cookies.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL: unsupported scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	cookies := []*http.Cookie{{Name: "sfw", Value: "0", Path: "/"}}
	if opts.CookieA != "" && opts.CookieB != "" {
		cookies = append(cookies,
			&http.Cookie{Name: "a", Value: opts.CookieA, Path: "/"},
			&http.Cookie{Name: "b", Value: opts.CookieB, Path: "/"},
		)
	}
	jar.SetCookies(base, cookies)

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		userAgent:  opts.UserAgent,
		username:   opts.Username,
		password:   opts.Password,
		hasCookies: opts.CookieA != "" && opts.CookieB != "",
		logger:     opts.Logger,
	}, nil
}

// LandingURL returns the URL of the front page, which lists the newest
// submissions.
func (c *Client) LandingURL() string {
	return c.baseURL.String() + "/"
}

// ItemURL returns the URL of the submission page for id.
func (c *Client) ItemURL(id int) string {
	return fmt.Sprintf("%s%s%d/", c.baseURL.String(), ViewPathPrefix, id)
}

// Fetch GETs rawURL and returns the body. Any status other than 200 is an
// error.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// Login establishes a session. With a username and password it submits the
// login form; with session cookies it only checks them. Without either the
// client browses as a guest and Login returns nil.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" && !c.hasCookies {
		c.logger.Warn("No site credentials configured, browsing as guest")
		return nil
	}

	if c.username != "" {
		if err := c.postLogin(ctx); err != nil {
			return err
		}
	}

	name, err := c.LoggedIn(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		return ErrNotLoggedIn
	}

	c.logger.Info("Site login succeeded", "account", name)
	return nil
}

func (c *Client) postLogin(ctx context.Context) error {
	form := url.Values{
		"action": {"login"},
		"name":   {c.username},
		"pass":   {c.password},
		"login":  {"Login to FurAffinity"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.String()+"/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login %w: %s", ErrHTTPStatus, resp.Status)
	}
	return nil
}

// LoggedIn fetches the landing page and returns the account name shown in
// its header, or "" when browsing as a guest.
func (c *Client) LoggedIn(ctx context.Context) (string, error) {
	page, err := c.Fetch(ctx, c.LandingURL())
	if err != nil {
		return "", fmt.Errorf("failed to check login: %w", err)
	}

	tree := markup.Parse(page)
	self := tree.First(func(n *markup.Node) bool {
		id, _ := n.Attr("id")
		return n.Is("a") && id == selfLinkID
	})
	if self == nil {
		return "", nil
	}

	return strings.TrimPrefix(markup.PlainText(tree.Text(self)), "~"), nil
}
