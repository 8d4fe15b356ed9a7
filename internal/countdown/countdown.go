// Package countdown refreshes a human-readable "time until reset" on a fixed
// cadence. It belongs to the presentation layer: the limiter only exposes the
// reset timestamp and never runs timers itself.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/formguard/internal/ratelimit"
)

const DefaultInterval = time.Second

// Countdown drives a render callback until the target passes or it is stopped.
// At most one countdown runs per value; the zero value is not usable, use New.
type Countdown struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithInterval sets the refresh cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock overrides the time source used to compute the remaining time.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a stopped countdown.
func New(opts ...Option) *Countdown {
	c := &Countdown{
		interval: DefaultInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start renders the remaining time immediately and then on every tick. The
// last render is "" once resetAt has passed, after which the countdown stops
// on its own. Cancelling ctx or calling Stop ends it early. Starting a running
// countdown replaces the previous target.
//
// render runs on the countdown goroutine and must not call Start, Stop or
// Running on the same Countdown.
func (c *Countdown) Start(ctx context.Context, resetAt time.Time, render func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go c.run(ctx, resetAt, render, c.done)
}

// Stop ends the countdown and waits for its goroutine to exit. It is safe to
// call on a stopped countdown.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// stopLocked cancels the running goroutine and waits for it. c.mu must be
// held; run never takes it.
func (c *Countdown) stopLocked() {
	if c.cancel == nil {
		return
	}

	c.cancel()
	<-c.done

	c.cancel, c.done = nil, nil
}

// Running reports whether a countdown goroutine is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (c *Countdown) run(ctx context.Context, resetAt time.Time, render func(string), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		text := ratelimit.TimeRemaining(resetAt, c.now())
		render(text)

		if text == "" {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
