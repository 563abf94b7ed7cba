// Package config loads featherpost's settings from a YAML file, a .env file
// and FEATHERPOST_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pevans/featherpost"
	"github.com/pevans/featherpost/logging"
	"github.com/pevans/featherpost/publish"
	"github.com/pevans/featherpost/retry"
	"github.com/pevans/featherpost/selector"
	"github.com/pevans/featherpost/site"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// SiteConfig describes how to reach and log in to the site.
type SiteConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	CookieA   string        `yaml:"cookie_a"`
	CookieB   string        `yaml:"cookie_b"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DiscoveryConfig controls how the newest submission ID is found.
type DiscoveryConfig struct {
	// FeedURL switches discovery from the landing page to an RSS/Atom feed.
	FeedURL          string `yaml:"feed_url"`
	MaxCollisions    int    `yaml:"max_collisions"`
	MaxFetchFailures int    `yaml:"max_fetch_failures"`
}

// FilesConfig holds on-disk paths.
type FilesConfig struct {
	Ledger  string `yaml:"ledger"`
	Block   string `yaml:"block"`
	Require string `yaml:"require"`
	History string `yaml:"history"`
}

// PacingConfig controls the time between posts.
type PacingConfig struct {
	Window   time.Duration `yaml:"window"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// RetryConfig controls the wait between failed attempts.
type RetryConfig struct {
	Delay           time.Duration `yaml:"delay"`
	PublishAttempts int           `yaml:"publish_attempts"`
}

// LogConfig controls logging verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete configuration.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Files     FilesConfig     `yaml:"files"`
	Publish   publish.Config  `yaml:"publish"`
	Pacing    PacingConfig    `yaml:"pacing"`
	Retry     RetryConfig     `yaml:"retry"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   site.DefaultBaseURL,
			UserAgent: site.DefaultUserAgent,
			Timeout:   site.DefaultTimeout,
		},
		Discovery: DiscoveryConfig{
			MaxCollisions:    selector.DefaultMaxCollisions,
			MaxFetchFailures: selector.DefaultMaxFetchFailures,
		},
		Files: FilesConfig{
			Ledger:  "submissions.csv",
			Block:   "block.csv",
			Require: "require.csv",
			History: "history.db",
		},
		Publish: publish.Config{
			Backend: publish.BackendLog,
		},
		Pacing: PacingConfig{
			Window:   featherpost.DefaultWindow,
			MinDelay: featherpost.DefaultMinDelay,
			MaxDelay: featherpost.DefaultMaxDelay,
		},
		Retry: RetryConfig{
			Delay:           retry.DefaultDelay,
			PublishAttempts: 5,
		},
		Log: LogConfig{
			Level: "note",
		},
	}
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envStrings maps FEATHERPOST_* variables to string settings.
func (c *Config) envStrings() map[string]*string {
	return map[string]*string{
		"FEATHERPOST_BASE_URL":              &c.Site.BaseURL,
		"FEATHERPOST_USERNAME":              &c.Site.Username,
		"FEATHERPOST_PASSWORD":              &c.Site.Password,
		"FEATHERPOST_COOKIE_A":              &c.Site.CookieA,
		"FEATHERPOST_COOKIE_B":              &c.Site.CookieB,
		"FEATHERPOST_USER_AGENT":            &c.Site.UserAgent,
		"FEATHERPOST_FEED_URL":              &c.Discovery.FeedURL,
		"FEATHERPOST_LEDGER":                &c.Files.Ledger,
		"FEATHERPOST_BLOCK":                 &c.Files.Block,
		"FEATHERPOST_REQUIRE":               &c.Files.Require,
		"FEATHERPOST_HISTORY":               &c.Files.History,
		"FEATHERPOST_BACKEND":               &c.Publish.Backend,
		"FEATHERPOST_BLUESKY_PDS":           &c.Publish.Bluesky.PDS,
		"FEATHERPOST_BLUESKY_IDENTIFIER":    &c.Publish.Bluesky.Identifier,
		"FEATHERPOST_BLUESKY_PASSWORD":      &c.Publish.Bluesky.Password,
		"FEATHERPOST_TWITTER_CLIENT_ID":     &c.Publish.Twitter.ClientID,
		"FEATHERPOST_TWITTER_CLIENT_SECRET": &c.Publish.Twitter.ClientSecret,
		"FEATHERPOST_TWITTER_ACCESS_TOKEN":  &c.Publish.Twitter.AccessToken,
		"FEATHERPOST_TWITTER_REFRESH_TOKEN": &c.Publish.Twitter.RefreshToken,
		"FEATHERPOST_LOG_LEVEL":             &c.Log.Level,
	}
}

// envDurations maps FEATHERPOST_* variables to duration settings.
func (c *Config) envDurations() map[string]*time.Duration {
	return map[string]*time.Duration{
		"FEATHERPOST_TIMEOUT":     &c.Site.Timeout,
		"FEATHERPOST_WINDOW":      &c.Pacing.Window,
		"FEATHERPOST_MIN_DELAY":   &c.Pacing.MinDelay,
		"FEATHERPOST_MAX_DELAY":   &c.Pacing.MaxDelay,
		"FEATHERPOST_RETRY_DELAY": &c.Retry.Delay,
	}
}

// ApplyEnv overrides settings from FEATHERPOST_* environment variables.
// Empty variables are ignored.
func (c *Config) ApplyEnv() error {
	for key, dst := range c.envStrings() {
		if value := os.Getenv(key); value != "" {
			*dst = value
		}
	}

	for key, dst := range c.envDurations() {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", key, err)
		}
		*dst = d
	}

	if value := os.Getenv("FEATHERPOST_MAX_COLLISIONS"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("failed to parse FEATHERPOST_MAX_COLLISIONS: %w", err)
		}
		c.Discovery.MaxCollisions = n
	}

	return nil
}

// Validate reports settings that can't work.
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site.base_url is required"))
	}
	if c.Site.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("site.timeout must be positive, got %s", c.Site.Timeout))
	}
	if c.Discovery.MaxCollisions < 0 {
		errs = append(errs, fmt.Errorf("discovery.max_collisions must not be negative, got %d", c.Discovery.MaxCollisions))
	}
	if c.Discovery.MaxFetchFailures < 0 {
		errs = append(errs, fmt.Errorf("discovery.max_fetch_failures must not be negative, got %d", c.Discovery.MaxFetchFailures))
	}
	if c.Files.Ledger == "" {
		errs = append(errs, errors.New("files.ledger is required"))
	}
	if c.Files.History == "" {
		errs = append(errs, errors.New("files.history is required"))
	}

	switch c.Publish.Backend {
	case "", publish.BackendLog, publish.BackendBluesky, publish.BackendTwitter:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", publish.ErrUnknownBackend, c.Publish.Backend))
	}

	if c.Pacing.Window < 0 {
		errs = append(errs, fmt.Errorf("pacing.window must not be negative, got %s", c.Pacing.Window))
	}
	if c.Pacing.MinDelay < 0 {
		errs = append(errs, fmt.Errorf("pacing.min_delay must not be negative, got %s", c.Pacing.MinDelay))
	}
	if c.Pacing.MaxDelay <= c.Pacing.MinDelay {
		errs = append(errs, fmt.Errorf("pacing.max_delay (%s) must be greater than pacing.min_delay (%s)",
			c.Pacing.MaxDelay, c.Pacing.MinDelay))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative, got %s", c.Retry.Delay))
	}
	if c.Retry.PublishAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.publish_attempts must not be negative, got %d", c.Retry.PublishAttempts))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
