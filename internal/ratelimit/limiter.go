package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/jobintel/internal/budget"
	"github.com/spigell/jobintel/internal/utils"
)

// ErrRateLimitExceeded is returned without invoking the operation when the
// monthly budget has no calls left.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

var defaultRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Budget is the part of the budget tracker the limiter depends on.
type Budget interface {
	Check(ctx context.Context) (budget.Status, error)
	Record(ctx context.Context) (budget.Status, error)
}

type Config struct {
	// RequestsPerSecond sets the minimum interval between calls.
	RequestsPerSecond float64
	// RetryDelays are waited between attempts; their count is the retry limit.
	RetryDelays []time.Duration
}

// Stats describe the limiter activity of the process.
type Stats struct {
	LastRequestAt time.Time
	Calls         int
	Retries       int
	MinDelay      time.Duration
}

// Limiter spaces provider calls, enforces the monthly budget and retries
// transient failures.
type Limiter struct {
	budget      Budget
	gate        *rate.Limiter
	minDelay    time.Duration
	retryDelays []time.Duration
	logger      *zap.Logger
	timeNow     func() time.Time
	wait        func(ctx context.Context, d time.Duration) error

	// serializes gate reservations so the interval holds across goroutines
	mu    sync.Mutex
	stats Stats
}

// New creates a limiter with real time.
func New(b Budget, cfg Config, logger *zap.Logger) *Limiter {
	return NewWithClock(b, cfg, logger, time.Now, utils.WaitFor)
}

// NewWithClock creates a limiter with an injectable clock and sleeper.
func NewWithClock(b Budget, cfg Config, logger *zap.Logger, timeNow func() time.Time, wait func(context.Context, time.Duration) error) *Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	delays := cfg.RetryDelays
	if delays == nil {
		delays = defaultRetryDelays
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Limiter{
		budget:      b,
		gate:        rate.NewLimiter(rate.Limit(rps), 1),
		minDelay:    time.Duration(float64(time.Second) / rps),
		retryDelays: delays,
		logger:      logger,
		timeNow:     timeNow,
		wait:        wait,
	}
}

// Do runs op once the minimum interval since the previous call has passed.
// A successful op is recorded against the monthly budget exactly once.
func (l *Limiter) Do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if _, err := l.budget.Check(ctx); err != nil {
			if errors.Is(err, budget.ErrBudgetExhausted) {
				return errors.Mark(err, ErrRateLimitExceeded)
			}
			return errors.Wrap(err, "checking api budget")
		}

		if err := l.waitTurn(ctx); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if _, err := l.budget.Record(ctx); err != nil {
				return errors.Wrap(err, "recording api call")
			}
			return nil
		}

		if !l.retryable(ctx, err) || attempt >= len(l.retryDelays) {
			return err
		}

		delay := l.retryDelays[attempt]
		l.logger.Warn("retrying provider call",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", len(l.retryDelays)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		l.mu.Lock()
		l.stats.Retries++
		l.mu.Unlock()

		if werr := l.wait(ctx, delay); werr != nil {
			return werr
		}
	}
}

func (l *Limiter) waitTurn(ctx context.Context) error {
	l.mu.Lock()
	now := l.timeNow()
	delay := l.gate.ReserveN(now, 1).DelayFrom(now)
	l.stats.Calls++
	l.stats.LastRequestAt = now.Add(delay)
	l.mu.Unlock()

	if delay > 0 {
		l.logger.Debug("waiting before provider call", zap.Duration("delay", delay))
	}

	return l.wait(ctx, delay)
}

func (l *Limiter) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimitExceeded) || errors.Is(err, budget.ErrBudgetExhausted) {
		return false
	}
	return !IsPermanent(err)
}

// Stats returns a copy of the limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	st.MinDelay = l.minDelay
	return st
}

// MinDelay is the minimum interval between two calls.
func (l *Limiter) MinDelay() time.Duration {
	return l.minDelay
}
