package budget

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	DefaultMonthlyLimit = 200
	DefaultWarningRatio = 0.8
	monthLayout         = "2006-01"
)

// ErrBudgetExhausted is returned when the monthly call ceiling is reached.
var ErrBudgetExhausted = errors.New("monthly api budget exhausted")

// Status is a snapshot of the budget for the current calendar month.
type Status struct {
	Month          string    `json:"month"`
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	Remaining      int       `json:"remaining"`
	PercentageUsed int       `json:"percentageUsed"`
	IsWarning      bool      `json:"isWarning"`
	IsLimitReached bool      `json:"isLimitReached"`
	LastCallAt     time.Time `json:"lastCallAt,omitempty"`
	LastResetAt    time.Time `json:"lastResetAt,omitempty"`
}

// Allowed reports whether another call fits in the budget.
func (s Status) Allowed() bool {
	return !s.IsLimitReached
}

// Message is a human readable summary of the status.
func (s Status) Message() string {
	switch {
	case s.IsLimitReached:
		return fmt.Sprintf("monthly limit reached (%d/%d); resets next month", s.Used, s.Limit)
	case s.IsWarning:
		return fmt.Sprintf("approaching monthly limit: %d calls remaining", s.Remaining)
	default:
		return fmt.Sprintf("%d calls remaining this month", s.Remaining)
	}
}

type Config struct {
	// MonthlyLimit is the call ceiling. Zero freezes the budget so every
	// check fails; a negative value is replaced by DefaultMonthlyLimit.
	MonthlyLimit int
	WarningRatio float64
}

// Tracker is the single authority on how many provider calls were made in
// the current calendar month. A new month starts from zero automatically.
type Tracker struct {
	counter Counter
	logger  *zap.Logger
	timeNow func() time.Time

	mu           sync.Mutex
	limit        int
	warningRatio float64
	lastCallAt   time.Time
	lastResetAt  time.Time
	warned       string
}

// NewTracker creates a tracker with real time.
func NewTracker(counter Counter, cfg Config, logger *zap.Logger) *Tracker {
	return NewTrackerWithClock(counter, cfg, logger, time.Now)
}

// NewTrackerWithClock creates a tracker with an injectable clock.
func NewTrackerWithClock(counter Counter, cfg Config, logger *zap.Logger, timeNow func() time.Time) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MonthlyLimit < 0 {
		logger.Warn("negative monthly limit, using the default",
			zap.Int("configured", cfg.MonthlyLimit),
			zap.Int("limit", DefaultMonthlyLimit),
		)
		cfg.MonthlyLimit = DefaultMonthlyLimit
	}
	if cfg.WarningRatio <= 0 || cfg.WarningRatio > 1 {
		cfg.WarningRatio = DefaultWarningRatio
	}
	if counter == nil {
		counter = NewMemoryCounter()
	}

	return &Tracker{
		counter:      counter,
		logger:       logger,
		timeNow:      timeNow,
		limit:        cfg.MonthlyLimit,
		warningRatio: cfg.WarningRatio,
	}
}

func (t *Tracker) month() string {
	return t.timeNow().UTC().Format(monthLayout)
}

// Status returns the usage of the current month.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	month := t.month()
	used, err := t.counter.Get(ctx, month)
	if err != nil {
		return Status{}, err
	}
	return t.status(month, used), nil
}

// Check returns ErrBudgetExhausted when no calls are left this month.
func (t *Tracker) Check(ctx context.Context) (Status, error) {
	st, err := t.Status(ctx)
	if err != nil {
		return st, err
	}

	if st.IsLimitReached {
		err := errors.WithDetailf(ErrBudgetExhausted, "used %d of %d calls in %s", st.Used, st.Limit, st.Month)
		return st, errors.WithHint(err, "wait for the next calendar month or reset the counter with `jobintel usage reset`")
	}

	return st, nil
}

// Record counts one successful provider call.
func (t *Tracker) Record(ctx context.Context) (Status, error) {
	month := t.month()
	used, err := t.counter.Incr(ctx, month)
	if err != nil {
		return Status{}, err
	}

	t.mu.Lock()
	t.lastCallAt = t.timeNow()
	t.mu.Unlock()

	st := t.status(month, used)
	if st.IsWarning && t.markWarned(month) {
		t.logger.Warn("api budget warning threshold reached",
			zap.String("month", month),
			zap.Int("used", st.Used),
			zap.Int("limit", st.Limit),
			zap.Int("remaining", st.Remaining),
		)
	}

	return st, nil
}

// Reset zeroes the counter of the current month.
func (t *Tracker) Reset(ctx context.Context, reason string) error {
	month := t.month()
	if err := t.counter.Reset(ctx, month); err != nil {
		return err
	}

	t.mu.Lock()
	t.lastResetAt = t.timeNow()
	t.warned = ""
	t.mu.Unlock()

	t.logger.Info("api budget reset", zap.String("month", month), zap.String("reason", reason))
	return nil
}

// SetMonthlyLimit changes the ceiling for subsequent checks.
func (t *Tracker) SetMonthlyLimit(limit int) error {
	if limit < 0 {
		return errors.Newf("monthly limit must not be negative: %d", limit)
	}

	t.mu.Lock()
	t.limit = limit
	t.mu.Unlock()

	return nil
}

func (t *Tracker) markWarned(month string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.warned == month {
		return false
	}
	t.warned = month
	return true
}

func (t *Tracker) status(month string, used int) Status {
	t.mu.Lock()
	limit, ratio := t.limit, t.warningRatio
	lastCall, lastReset := t.lastCallAt, t.lastResetAt
	t.mu.Unlock()

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	pct := 100
	if limit > 0 {
		pct = int(math.Round(float64(used) / float64(limit) * 100))
	}

	return Status{
		Month:          month,
		Used:           used,
		Limit:          limit,
		Remaining:      remaining,
		PercentageUsed: pct,
		IsWarning:      used >= int(math.Round(float64(limit)*ratio)),
		IsLimitReached: used >= limit,
		LastCallAt:     lastCall,
		LastResetAt:    lastReset,
	}
}
