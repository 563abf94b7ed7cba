package featherpost

import (
	"math/rand/v2"
	"time"
)

// Default pacing: one post somewhere in each two-hour window, never earlier
// than twenty minutes into it.
const (
	DefaultWindow   = 2 * time.Hour
	DefaultMinDelay = 20 * time.Minute
	DefaultMaxDelay = 120 * time.Minute
)

// Rand draws integers in [0, n).
type Rand interface {
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// Pacer spaces posts out. Each post lands at a random offset into its own
// window, so consecutive posts are never closer than Window - (MaxDelay -
// MinDelay) and never further apart than Window + (MaxDelay - MinDelay).
type Pacer struct {
	Window   time.Duration
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     Rand

	lastDelay time.Duration
}

// NewPacer creates a Pacer. Zero values take the defaults.
func NewPacer(window, minDelay, maxDelay time.Duration) *Pacer {
	if window <= 0 {
		window = DefaultWindow
	}
	if minDelay <= 0 && maxDelay <= 0 {
		minDelay, maxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	return &Pacer{Window: window, MinDelay: minDelay, MaxDelay: maxDelay}
}

// Next returns how long to wait after a post: the rest of the current window
// plus a new random delay in [MinDelay, MaxDelay).
func (p *Pacer) Next() time.Duration {
	delay := p.MinDelay
	if span := p.MaxDelay - p.MinDelay; span > 0 {
		delay += time.Duration(p.rand().Int64N(int64(span)))
	}

	wait := (p.Window - p.lastDelay) + delay
	p.lastDelay = delay
	return max(wait, 0)
}

// Resume returns how long to wait before the first post when the previous
// one happened elapsed ago: whatever is left of its window. The delay that
// placed that post is unknown, so the next window starts fresh.
func (p *Pacer) Resume(elapsed time.Duration) time.Duration {
	p.lastDelay = 0
	return max(p.Window-elapsed, 0)
}

func (p *Pacer) rand() Rand {
	if p.Rand == nil {
		return globalRand{}
	}
	return p.Rand
}
