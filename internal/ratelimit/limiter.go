package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of recording one attempt.
type Result struct {
	Key string
	// Allowed reports whether the attempt just recorded was within budget.
	// The attempt that exhausts the budget is still allowed; the next is not.
	Allowed      bool
	AttemptCount int
	Remaining    int
	ResetAt      time.Time
}

// Status is a read-only view of a limiter. ResetAt is zero when no window is active.
type Status struct {
	AttemptCount int
	Remaining    int
	CanProceed   bool
	ResetAt      time.Time
}

// Observer receives limiter events, typically for metrics.
type Observer interface {
	AttemptRecorded(key string, allowed bool)
	LimitExceeded(key string)
	Diagnostic(key string, err error)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger diagnostics are written to.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithOnLimitExceeded registers fn to run once each time the attempt count
// reaches the maximum within a window.
func WithOnLimitExceeded(fn func(Result)) Option {
	return func(l *Limiter) {
		l.onLimitExceeded = fn
	}
}

// WithReporter registers fn to receive every *CorruptedStateError and *PersistenceError.
func WithReporter(fn func(error)) Option {
	return func(l *Limiter) {
		l.report = fn
	}
}

// WithObserver registers an Observer.
func WithObserver(observer Observer) Option {
	return func(l *Limiter) {
		l.observer = observer
	}
}

// Limiter counts attempts for one storage key within a fixed window that
// starts at the first attempt. State is persisted after every mutation and
// re-read from storage before every operation, so the persisted copy wins
// over the in-memory one.
//
// A persistence fault switches the limiter to in-memory operation for the
// rest of its life. Hooks run after the internal lock is released.
type Limiter struct {
	mu      sync.Mutex
	storage Storage
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger

	onLimitExceeded func(Result)
	report          func(error)
	observer        Observer

	state    *State
	volatile bool
	pending  []error
}

// NewLimiter creates a limiter and hydrates it from storage. A corrupted or
// expired record found here is purged.
func NewLimiter(ctx context.Context, storage Storage, cfg Config, opts ...Option) (*Limiter, error) {
	if storage == nil {
		return nil, ErrStorageRequired
	}

	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	l := &Limiter{
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.locked(func() {
		l.read(ctx, l.now())
	})

	return l, nil
}

// Key returns the storage key.
func (l *Limiter) Key() string {
	return l.cfg.StorageKey
}

// Config returns the normalized configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Load returns the state of the active window, or nil if there is none.
func (l *Limiter) Load(ctx context.Context) *State {
	var (
		st State
		ok bool
	)

	l.locked(func() {
		st, ok = l.read(ctx, l.now())
	})

	if !ok {
		return nil
	}

	return &st
}

// RecordAttempt counts one attempt and reports whether it was within budget.
func (l *Limiter) RecordAttempt(ctx context.Context) Result {
	var (
		res     Result
		crossed bool
	)

	l.locked(func() {
		now := l.now()
		prev := 0
		next := State{AttemptCount: 1, WindowStart: now.UnixMilli()}

		if current, ok := l.read(ctx, now); ok {
			prev = current.AttemptCount
			next = State{AttemptCount: prev + 1, WindowStart: current.WindowStart}
		}

		l.write(ctx, next)

		res = Result{
			Key:          l.cfg.StorageKey,
			Allowed:      prev < l.cfg.MaxAttempts,
			AttemptCount: next.AttemptCount,
			Remaining:    max(0, l.cfg.MaxAttempts-next.AttemptCount),
			ResetAt:      next.ResetAt(l.cfg.Window),
		}
		crossed = prev < l.cfg.MaxAttempts && next.AttemptCount >= l.cfg.MaxAttempts
	})

	if l.observer != nil {
		l.observer.AttemptRecorded(res.Key, res.Allowed)

		if crossed {
			l.observer.LimitExceeded(res.Key)
		}
	}

	if crossed {
		l.logger.Info("rate limit reached",
			zap.String("key", res.Key),
			zap.Int("attempts", res.AttemptCount),
			zap.Time("resetAt", res.ResetAt),
		)

		if l.onLimitExceeded != nil {
			l.onLimitExceeded(res)
		}
	}

	return res
}

// CanProceed reports whether a next attempt would be allowed. It does not
// count an attempt.
func (l *Limiter) CanProceed(ctx context.Context) bool {
	return l.Status(ctx).CanProceed
}

// Status returns the current counters for rendering.
func (l *Limiter) Status(ctx context.Context) Status {
	var status Status

	l.locked(func() {
		st, ok := l.read(ctx, l.now())
		if !ok {
			status = Status{Remaining: l.cfg.MaxAttempts, CanProceed: true}

			return
		}

		status = Status{
			AttemptCount: st.AttemptCount,
			Remaining:    max(0, l.cfg.MaxAttempts-st.AttemptCount),
			CanProceed:   st.AttemptCount < l.cfg.MaxAttempts,
			ResetAt:      st.ResetAt(l.cfg.Window),
		}
	})

	return status
}

// Reset discards in-memory and persisted state. It is idempotent.
func (l *Limiter) Reset(ctx context.Context) {
	l.locked(func() {
		l.purge(ctx)
	})
}

// Now returns the current time on the limiter clock.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// TimeRemaining formats the time left until resetAt using the limiter clock.
func (l *Limiter) TimeRemaining(resetAt time.Time) string {
	return TimeRemaining(resetAt, l.now())
}

// locked runs fn under the mutex and delivers diagnostics queued by fn once
// the mutex is released.
func (l *Limiter) locked(fn func()) {
	l.mu.Lock()
	fn()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, err := range pending {
		l.diagnose(err)
	}
}

func (l *Limiter) read(ctx context.Context, now time.Time) (State, bool) {
	if l.volatile {
		return l.memory(now)
	}

	raw, found, err := l.storage.Get(ctx, l.cfg.StorageKey)
	if err != nil {
		l.degrade("get", err)

		return l.memory(now)
	}

	if !found {
		l.state = nil

		return State{}, false
	}

	st, err := decodeState(raw)
	if err == nil && st.WindowStart-now.UnixMilli() > l.cfg.Window.Milliseconds() {
		err = errFutureWindow
	}

	if err != nil {
		l.pending = append(l.pending, &CorruptedStateError{Key: l.cfg.StorageKey, Err: err})
		l.purge(ctx)

		return State{}, false
	}

	if st.Expired(now, l.cfg.Window) {
		l.purge(ctx)

		return State{}, false
	}

	l.state = &st

	return st, true
}

func (l *Limiter) memory(now time.Time) (State, bool) {
	if l.state == nil || l.state.Expired(now, l.cfg.Window) {
		l.state = nil

		return State{}, false
	}

	return *l.state, true
}

func (l *Limiter) write(ctx context.Context, st State) {
	l.state = &st

	if l.volatile {
		return
	}

	raw, err := encodeState(st)
	if err != nil {
		l.degrade("encode", err)

		return
	}

	if err := l.storage.Set(ctx, l.cfg.StorageKey, raw); err != nil {
		l.degrade("set", err)
	}
}

func (l *Limiter) purge(ctx context.Context) {
	l.state = nil

	if l.volatile {
		return
	}

	if err := l.storage.Remove(ctx, l.cfg.StorageKey); err != nil {
		l.degrade("remove", err)
	}
}

func (l *Limiter) degrade(op string, err error) {
	l.volatile = true
	l.pending = append(l.pending, &PersistenceError{Op: op, Key: l.cfg.StorageKey, Err: err})
}

func (l *Limiter) diagnose(err error) {
	if errors.Is(err, ErrPersistenceUnavailable) {
		l.logger.Error("rate limit storage unavailable, continuing in memory",
			zap.String("key", l.cfg.StorageKey),
			zap.Error(err),
		)
	} else {
		l.logger.Warn("discarded corrupted rate limit state",
			zap.String("key", l.cfg.StorageKey),
			zap.Error(err),
		)
	}

	if l.observer != nil {
		l.observer.Diagnostic(l.cfg.StorageKey, err)
	}

	if l.report != nil {
		l.report(err)
	}
}
