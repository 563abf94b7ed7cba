// Package publish posts formatted statuses to a social network.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pevans/featherpost/retry"
)

// Backend names accepted by New.
const (
	BackendLog     = "log"
	BackendBluesky = "bluesky"
	BackendTwitter = "twitter"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown publish backend")

// Publisher sends one status.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, text string) error
}

// BlueskyConfig holds Bluesky credentials.
type BlueskyConfig struct {
	PDS        string `yaml:"pds"`
	Identifier string `yaml:"identifier"`
	Password   string `yaml:"password"`
}

// TwitterConfig holds X/Twitter OAuth2 credentials.
type TwitterConfig struct {
	APIURL       string `yaml:"api_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// Config selects and configures a backend.
type Config struct {
	Backend string        `yaml:"backend"`
	Bluesky BlueskyConfig `yaml:"bluesky"`
	Twitter TwitterConfig `yaml:"twitter"`
}

// New builds the Publisher named by cfg.Backend. An empty backend means the
// log publisher.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", BackendLog:
		return NewLog(logger), nil

	case BackendBluesky:
		if cfg.Bluesky.Identifier == "" || cfg.Bluesky.Password == "" {
			return nil, fmt.Errorf("bluesky backend requires an identifier and app password")
		}
		return NewBluesky(cfg.Bluesky.PDS, cfg.Bluesky.Identifier, cfg.Bluesky.Password), nil

	case BackendTwitter:
		if cfg.Twitter.AccessToken == "" && cfg.Twitter.RefreshToken == "" {
			return nil, fmt.Errorf("twitter backend requires an access token or refresh token")
		}
		return NewTwitter(ctx, TwitterOptions{
			APIURL:       cfg.Twitter.APIURL,
			TokenURL:     cfg.Twitter.TokenURL,
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			AccessToken:  cfg.Twitter.AccessToken,
			RefreshToken: cfg.Twitter.RefreshToken,
		}), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

// PublishWithRetry publishes text, retrying per policy.
func PublishWithRetry(ctx context.Context, p Publisher, text string, policy retry.Policy) error {
	err := policy.Do(ctx, func(int) error {
		return p.Publish(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.Name(), err)
	}
	return nil
}

// Log only logs the status. It is the dry-run backend.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log publisher. A nil logger means slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Name implements Publisher.
func (l *Log) Name() string {
	return BackendLog
}

// Publish implements Publisher.
func (l *Log) Publish(_ context.Context, text string) error {
	l.logger.Info("Status (dry run)", "text", text)
	return nil
}
