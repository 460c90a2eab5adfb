package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestTracker_ExhaustsAtLimit(t *testing.T) {
	ctx := context.Background()
	clock := newMockClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTrackerWithClock(NewMemoryCounter(), Config{MonthlyLimit: 3}, zap.NewNop(), clock.Now)

	for i := 0; i < 3; i++ {
		_, err := tracker.Check(ctx)
		require.NoError(t, err, "call %d", i+1)
		_, err = tracker.Record(ctx)
		require.NoError(t, err)
	}

	st, err := tracker.Check(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.True(t, st.IsLimitReached)
	assert.False(t, st.Allowed())
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, 100, st.PercentageUsed)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestTracker_CalendarRollover(t *testing.T) {
	ctx := context.Background()
	clock := newMockClock(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC))
	tracker := NewTrackerWithClock(NewMemoryCounter(), Config{MonthlyLimit: 1}, zap.NewNop(), clock.Now)

	_, err := tracker.Record(ctx)
	require.NoError(t, err)

	_, err = tracker.Check(ctx)
	require.ErrorIs(t, err, ErrBudgetExhausted)

	clock.Advance(2 * time.Hour)

	st, err := tracker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02", st.Month)
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, 1, st.Remaining)
}

func TestTracker_WarningLoggedOncePerMonth(t *testing.T) {
	ctx := context.Background()
	core, observed := observer.New(zapcore.WarnLevel)
	clock := newMockClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	tracker := NewTrackerWithClock(NewMemoryCounter(), Config{MonthlyLimit: 10, WarningRatio: 0.8}, zap.New(core), clock.Now)

	var st Status
	var err error
	for i := 0; i < 7; i++ {
		st, err = tracker.Record(ctx)
		require.NoError(t, err)
	}
	assert.False(t, st.IsWarning)
	assert.Equal(t, 0, observed.Len())

	st, err = tracker.Record(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsWarning)
	assert.Contains(t, st.Message(), "2 calls remaining")

	_, err = tracker.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, observed.Len())
}

func TestTracker_ResetAndSetLimit(t *testing.T) {
	ctx := context.Background()
	clock := newMockClock(time.Date(2026, 7, 4, 8, 0, 0, 0, time.UTC))
	tracker := NewTrackerWithClock(NewMemoryCounter(), Config{MonthlyLimit: 2}, nil, clock.Now)

	for i := 0; i < 2; i++ {
		_, err := tracker.Record(ctx)
		require.NoError(t, err)
	}
	_, err := tracker.Check(ctx)
	require.ErrorIs(t, err, ErrBudgetExhausted)

	require.NoError(t, tracker.SetMonthlyLimit(5))
	st, err := tracker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Remaining)

	require.Error(t, tracker.SetMonthlyLimit(-1))

	require.NoError(t, tracker.Reset(ctx, "admin request"))
	st, err = tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, clock.Now(), st.LastResetAt)
}

func TestNewTracker_NegativeLimitFallsBackToDefault(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracker := NewTracker(nil, Config{MonthlyLimit: -3}, zap.New(core))

	st, err := tracker.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultMonthlyLimit, st.Limit)
	assert.Equal(t, DefaultMonthlyLimit, st.Remaining)
	assert.Equal(t, 1, logs.FilterMessage("negative monthly limit, using the default").Len())
}

func TestNewTracker_ZeroLimitAllowsNoCalls(t *testing.T) {
	tracker := NewTracker(nil, Config{}, nil)

	st, err := tracker.Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.Equal(t, 0, st.Limit)
	assert.Equal(t, 0, st.Remaining)
	assert.True(t, st.IsLimitReached)
}
