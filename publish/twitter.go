package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultTwitterAPI   = "https://api.twitter.com"
	defaultTwitterToken = "https://api.twitter.com/2/oauth2/token"
)

// TwitterOptions configures the X/Twitter publisher. With a client ID and
// refresh token the access token is refreshed automatically; otherwise
// AccessToken is used as a fixed bearer token.
type TwitterOptions struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// Twitter posts through the v2 API with an OAuth2 user token.
type Twitter struct {
	apiURL     string
	httpClient *http.Client
}

// NewTwitter creates a Twitter publisher.
func NewTwitter(ctx context.Context, opts TwitterOptions) *Twitter {
	if opts.APIURL == "" {
		opts.APIURL = defaultTwitterAPI
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTwitterToken
	}

	token := &oauth2.Token{
		AccessToken:  opts.AccessToken,
		RefreshToken: opts.RefreshToken,
		TokenType:    "Bearer",
	}

	var source oauth2.TokenSource
	if opts.ClientID != "" && opts.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		if opts.AccessToken == "" {
			// Force a refresh on first use.
			token.Expiry = time.Unix(1, 0)
		}
		source = conf.TokenSource(ctx, token)
	} else {
		source = oauth2.StaticTokenSource(token)
	}

	client := oauth2.NewClient(ctx, source)
	client.Timeout = 30 * time.Second

	return &Twitter{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		httpClient: client,
	}
}

// Name implements Publisher.
func (t *Twitter) Name() string {
	return "twitter"
}

// Publish implements Publisher.
func (t *Twitter) Publish(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Data.ID == "" {
		return fmt.Errorf("API response missing tweet ID: %s", string(respBody))
	}

	return nil
}
