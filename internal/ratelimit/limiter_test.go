package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/budget"
)

type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Wait advances the clock instead of sleeping.
func (m *mockClock) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.sleeps = append(m.sleeps, d)
		m.now = m.now.Add(d)
	}
	return nil
}

func (m *mockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.sleeps...)
}

func newTestLimiter(limit int, cfg Config) (*Limiter, *budget.Tracker, *mockClock) {
	clock := newMockClock()
	tracker := budget.NewTrackerWithClock(budget.NewMemoryCounter(), budget.Config{MonthlyLimit: limit}, zap.NewNop(), clock.Now)
	return NewWithClock(tracker, cfg, zap.NewNop(), clock.Now, clock.Wait), tracker, clock
}

func TestLimiter_RejectsOverMonthlyLimit(t *testing.T) {
	ctx := context.Background()
	limiter, tracker, _ := newTestLimiter(200, Config{RequestsPerSecond: 1})

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, limiter.Do(ctx, op), "call %d", i+1)
	}
	require.Equal(t, 200, calls)

	err := limiter.Do(ctx, op)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.ErrorIs(t, err, budget.ErrBudgetExhausted)
	assert.Equal(t, 200, calls, "operation must not run once the budget is spent")

	st, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, st.Used)
}

func TestLimiter_SpacesConsecutiveCalls(t *testing.T) {
	ctx := context.Background()
	limiter, _, clock := newTestLimiter(10, Config{RequestsPerSecond: 1})

	var started []time.Time
	op := func(context.Context) error {
		started = append(started, clock.Now())
		return nil
	}

	require.NoError(t, limiter.Do(ctx, op))
	require.NoError(t, limiter.Do(ctx, op))

	require.Len(t, started, 2)
	assert.GreaterOrEqual(t, started[1].Sub(started[0]), time.Second)
	assert.Equal(t, time.Second, limiter.MinDelay())
	assert.Equal(t, started[1], limiter.Stats().LastRequestAt)
}

func TestLimiter_NoWaitAfterIdle(t *testing.T) {
	ctx := context.Background()
	limiter, _, clock := newTestLimiter(10, Config{RequestsPerSecond: 2})

	require.NoError(t, limiter.Do(ctx, func(context.Context) error { return nil }))
	clock.Wait(ctx, 5*time.Second)
	require.NoError(t, limiter.Do(ctx, func(context.Context) error { return nil }))

	assert.Equal(t, []time.Duration{5 * time.Second}, clock.Sleeps())
}

func TestLimiter_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	limiter, tracker, clock := newTestLimiter(10, Config{RequestsPerSecond: 1000})

	attempts := 0
	err := limiter.Do(ctx, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	var backoff []time.Duration
	for _, d := range clock.Sleeps() {
		if d >= time.Second {
			backoff = append(backoff, d)
		}
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, backoff)

	st, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Used, "a retried call counts once")
	assert.Equal(t, 2, limiter.Stats().Retries)
}

func TestLimiter_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	limiter, tracker, _ := newTestLimiter(10, Config{RequestsPerSecond: 1000})

	upstream := errors.New("timeout")
	attempts := 0
	err := limiter.Do(ctx, func(context.Context) error {
		attempts++
		return upstream
	})
	require.ErrorIs(t, err, upstream)
	assert.Equal(t, 4, attempts, "one call plus three retries")

	st, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
}

func TestLimiter_PermanentErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newTestLimiter(10, Config{})

	attempts := 0
	err := limiter.Do(ctx, func(context.Context) error {
		attempts++
		return Permanent(errors.New("400 bad request"))
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
}

func TestLimiter_CancelledContext(t *testing.T) {
	limiter, _, _ := newTestLimiter(10, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := limiter.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
