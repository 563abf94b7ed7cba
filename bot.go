// Package featherpost ties the pipeline together: select a random
// submission, scrape it, check it against the tag rules, format a status and
// publish it, then wait for the next slot.
package featherpost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pevans/featherpost/history"
	"github.com/pevans/featherpost/publish"
	"github.com/pevans/featherpost/retry"
	"github.com/pevans/featherpost/rules"
	"github.com/pevans/featherpost/selector"
	"github.com/pevans/featherpost/status"
	"github.com/pevans/featherpost/submission"
)

// Selector picks a fresh, viewable submission.
type Selector interface {
	Select(ctx context.Context) (*selector.Candidate, error)
}

// Site establishes the site session.
type Site interface {
	Login(ctx context.Context) error
}

// History records published posts.
type History interface {
	Record(post *history.Post) error
	Last() (*history.Post, error)
}

// BotOptions configures a Bot. Selector and Publisher are required.
type BotOptions struct {
	Site      Site
	Selector  Selector
	Publisher publish.Publisher
	History   History

	// Rule files are re-read every cycle so edits apply without a restart.
	BlockPath   string
	RequirePath string

	Pacer *Pacer

	// RetryDelay is the wait between login attempts and after a failed
	// cycle.
	RetryDelay time.Duration

	// PublishAttempts bounds publish retries. Zero retries forever.
	PublishAttempts int

	// Sleep waits between cycles. Defaults to retry.Sleep.
	Sleep retry.SleepFunc

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Bot runs the posting loop.
type Bot struct {
	site            Site
	selector        Selector
	publisher       publish.Publisher
	history         History
	blockPath       string
	requirePath     string
	pacer           *Pacer
	retryDelay      time.Duration
	publishAttempts int
	sleep           retry.SleepFunc
	now             func() time.Time
	logger          *slog.Logger
}

// NewBot creates a Bot.
func NewBot(opts BotOptions) *Bot {
	b := &Bot{
		site:            opts.Site,
		selector:        opts.Selector,
		publisher:       opts.Publisher,
		history:         opts.History,
		blockPath:       opts.BlockPath,
		requirePath:     opts.RequirePath,
		pacer:           opts.Pacer,
		retryDelay:      opts.RetryDelay,
		publishAttempts: opts.PublishAttempts,
		sleep:           opts.Sleep,
		now:             opts.Now,
		logger:          opts.Logger,
	}

	if b.pacer == nil {
		b.pacer = NewPacer(0, 0, 0)
	}
	if b.retryDelay <= 0 {
		b.retryDelay = retry.DefaultDelay
	}
	if b.sleep == nil {
		b.sleep = retry.Sleep
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// RunOnce publishes one submission. Rejected submissions send it back to the
// selector until one passes the rules.
func (b *Bot) RunOnce(ctx context.Context) (*history.Post, error) {
	for {
		cand, err := b.selector.Select(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to select submission: %w", err)
		}

		rec := submission.ScrapeCandidate(cand.ID, cand.Page)
		if !rec.RatingKnown {
			b.logger.Warn("Submission has no rating label, treating as nsfw", "id", rec.ID)
		}

		filter, err := rules.LoadFilter(b.blockPath, b.requirePath)
		if err != nil {
			return nil, err
		}

		decision := filter.Evaluate(rec)
		if !decision.Accepted {
			b.logger.Info("Submission rejected", "id", rec.ID, "reason", decision.String())
			continue
		}

		text := status.Format(rec)
		b.logger.Debug("Formatted status", "id", rec.ID, "text", text)

		if err := publish.PublishWithRetry(ctx, b.publisher, text, b.publishPolicy()); err != nil {
			return nil, err
		}

		post := &history.Post{
			SubmissionID: rec.ID,
			Title:        rec.Title,
			Author:       rec.Author,
			Rating:       rec.Rating(),
			Status:       text,
			Destination:  b.publisher.Name(),
			PublishedAt:  b.now(),
		}

		if b.history != nil {
			// The status is already out, so a history failure only costs
			// pacing accuracy after a restart.
			if err := b.history.Record(post); err != nil {
				b.logger.Error("Failed to record post history", "id", rec.ID, "error", err)
			}
		}

		b.logger.Info("Status published", "id", rec.ID, "destination", post.Destination, "title", rec.Title)
		return post, nil
	}
}

// Run logs in, then publishes and sleeps until ctx is cancelled. It returns
// ctx.Err() on shutdown.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Bot starting", "destination", b.publisher.Name())

	if err := b.login(ctx); err != nil {
		return err
	}

	if err := b.resume(ctx); err != nil {
		return err
	}

	for {
		if _, err := b.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				b.logger.Info("Bot stopping (context cancelled)")
				return ctx.Err()
			}

			b.logger.Error("Cycle failed", "error", err, "retry_in", b.retryDelay)
			if err := b.sleep(ctx, b.retryDelay); err != nil {
				b.logger.Info("Bot stopping (context cancelled)")
				return err
			}
			continue
		}

		wait := b.pacer.Next()
		b.logger.Info("Sleeping until next post", "wait", wait.Round(time.Second),
			"next_at", b.now().Add(wait).Format(time.DateTime))

		if err := b.sleep(ctx, wait); err != nil {
			b.logger.Info("Bot stopping (context cancelled)")
			return err
		}
	}
}

// login retries the site login until it succeeds.
func (b *Bot) login(ctx context.Context) error {
	if b.site == nil {
		return nil
	}

	policy := retry.Policy{
		Delay: b.retryDelay,
		Sleep: b.sleep,
		OnRetry: func(attempt int, err error) {
			b.logger.Warn("Site login failed, retrying", "attempt", attempt, "delay", b.retryDelay, "error", err)
		},
	}

	if err := policy.Do(ctx, func(int) error { return b.site.Login(ctx) }); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	return nil
}

// resume waits out the rest of the window of the last recorded post, so a
// restart doesn't post early.
func (b *Bot) resume(ctx context.Context) error {
	if b.history == nil {
		return nil
	}

	last, err := b.history.Last()
	if err != nil {
		b.logger.Warn("Failed to read post history, not resuming pacing", "error", err)
		return nil
	}
	if last == nil {
		return nil
	}

	wait := b.pacer.Resume(b.now().Sub(last.PublishedAt))
	if wait <= 0 {
		return nil
	}

	b.logger.Info("Resuming pacing from last post", "id", last.SubmissionID,
		"published_at", last.PublishedAt.Format(time.DateTime), "wait", wait.Round(time.Second))
	return b.sleep(ctx, wait)
}

func (b *Bot) publishPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: b.publishAttempts,
		Delay:       b.retryDelay,
		Sleep:       b.sleep,
		OnRetry: func(attempt int, err error) {
			b.logger.Warn("Publish failed, retrying",
				"destination", b.publisher.Name(), "attempt", attempt, "error", err)
		},
	}
}
