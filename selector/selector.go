// Package selector picks a random submission that has never been drafted
// before and is publicly viewable.
//
// Each cycle discovers the newest submission ID, then drafts random IDs up
// to it. Every drafted ID goes into the ledger before its page is fetched,
// whether or not it turns out to be usable.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pevans/featherpost/markup"
	"github.com/pevans/featherpost/retry"
)

// Page text the site shows instead of a submission.
const (
	NotFoundTitle    = "System Error"
	RestrictedNotice = " has elected to make their content available to registered users only."
)

const (
	DefaultMaxCollisions    = 1000
	DefaultMaxFetchFailures = 5
)

var (
	// ErrInvalidCandidate is wrapped by every reason a drafted ID can't be
	// used.
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrNotFound         = fmt.Errorf("%w: submission not found", ErrInvalidCandidate)
	ErrRestricted       = fmt.Errorf("%w: submission restricted to registered users", ErrInvalidCandidate)

	// ErrLedgerSaturated means too many consecutive drafts were already in
	// the ledger.
	ErrLedgerSaturated = errors.New("too many drafted IDs already in ledger")

	// ErrNoCandidate is returned when Select gives up.
	ErrNoCandidate = errors.New("no candidate selected")
)

// Fetcher returns the raw body at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Site is a Fetcher that knows the site's URLs.
type Site interface {
	Fetcher
	LandingURL() string
	ItemURL(id int) string
}

// Ledger records drafted IDs.
type Ledger interface {
	Contains(id int) bool
	Append(id int) error
}

// Rand draws integers in [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Candidate is a validated submission page.
type Candidate struct {
	ID   int
	Page []byte
}

// Options configures a Selector. Site and Ledger are required.
type Options struct {
	Site   Site
	Ledger Ledger

	// Discoverer finds the newest ID. Defaults to the site's landing page.
	Discoverer Discoverer

	// Rand draws candidate IDs. Defaults to math/rand/v2.
	Rand Rand

	// MaxCollisions bounds consecutive drafts that hit the ledger before
	// the cycle starts over with a fresh discovery.
	MaxCollisions int

	// MaxFetchFailures bounds consecutive candidate pages that fail to
	// fetch before the cycle backs off.
	MaxFetchFailures int

	// Retry governs whole cycles. Defaults to retrying forever every five
	// seconds.
	Retry *retry.Policy

	Logger *slog.Logger
}

// Selector picks candidates.
type Selector struct {
	site             Site
	ledger           Ledger
	discoverer       Discoverer
	rand             Rand
	maxCollisions    int
	maxFetchFailures int
	retry            retry.Policy
	logger           *slog.Logger
}

// New creates a Selector.
func New(opts Options) *Selector {
	s := &Selector{
		site:             opts.Site,
		ledger:           opts.Ledger,
		discoverer:       opts.Discoverer,
		rand:             opts.Rand,
		maxCollisions:    opts.MaxCollisions,
		maxFetchFailures: opts.MaxFetchFailures,
		logger:           opts.Logger,
	}

	if s.discoverer == nil {
		s.discoverer = LandingPage{Site: opts.Site}
	}
	if s.rand == nil {
		s.rand = globalRand{}
	}
	if s.maxCollisions <= 0 {
		s.maxCollisions = DefaultMaxCollisions
	}
	if s.maxFetchFailures <= 0 {
		s.maxFetchFailures = DefaultMaxFetchFailures
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if opts.Retry != nil {
		s.retry = *opts.Retry
	} else {
		s.retry = retry.Forever(retry.DefaultDelay)
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(attempt int, err error) {
			s.logger.Warn("Candidate selection failed, retrying",
				"attempt", attempt, "delay", s.retry.Delay, "error", err)
		}
	}

	return s
}

// Select runs discovery/draft/validate cycles until a usable candidate is
// found, the retry policy gives up, or ctx is done.
func (s *Selector) Select(ctx context.Context) (*Candidate, error) {
	var cand *Candidate

	err := s.retry.Do(ctx, func(int) error {
		maxID, err := s.discoverer.Latest(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover latest submission: %w", err)
		}
		s.logger.Debug("Discovered latest submission", "max_id", maxID)

		c, err := s.draftValid(ctx, maxID)
		if err != nil {
			return err
		}
		cand = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCandidate, err)
	}

	s.logger.Info("Submission page retrieved", "id", cand.ID)
	return cand, nil
}

// draftValid drafts IDs until one validates.
func (s *Selector) draftValid(ctx context.Context, maxID int) (*Candidate, error) {
	fetchFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := s.Draft(maxID)
		if err != nil {
			return nil, err
		}

		page, err := s.site.Fetch(ctx, s.site.ItemURL(id))
		if err != nil {
			fetchFailures++
			s.logger.Info("Candidate page fetch failed", "id", id, "error", err)
			if fetchFailures >= s.maxFetchFailures {
				return nil, fmt.Errorf("failed to fetch %d candidate pages in a row: %w", fetchFailures, err)
			}
			continue
		}
		fetchFailures = 0

		if err := Validate(page); err != nil {
			s.logger.Info("Invalid submission ID", "id", id, "reason", err)
			continue
		}

		return &Candidate{ID: id, Page: page}, nil
	}
}

// Draft draws a random ID in [1, maxID] that is not in the ledger and
// records it there. The ledger includes IDs drafted earlier in this run.
func (s *Selector) Draft(maxID int) (int, error) {
	if maxID < 1 {
		return 0, fmt.Errorf("%w: max ID %d", ErrNoLatestID, maxID)
	}

	for range s.maxCollisions {
		id := s.rand.IntN(maxID) + 1
		if s.ledger.Contains(id) {
			continue
		}

		if err := s.ledger.Append(id); err != nil {
			return 0, fmt.Errorf("failed to record drafted ID: %w", err)
		}
		return id, nil
	}

	return 0, fmt.Errorf("%w: %d collisions below ID %d", ErrLedgerSaturated, s.maxCollisions, maxID)
}

// Validate reports whether a submission page is viewable. Missing and
// registered-users-only submissions return errors wrapping
// ErrInvalidCandidate.
func Validate(page []byte) error {
	tree := markup.Parse(page)

	for _, n := range tree.Nodes() {
		switch {
		case n.Is("title") && tree.Text(n) == NotFoundTitle:
			return ErrNotFound
		case n.Is("b") && tree.Text(n) == RestrictedNotice:
			return ErrRestricted
		}
	}

	return nil
}
