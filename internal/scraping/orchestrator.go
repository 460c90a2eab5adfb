// Package scraping drives bucketed scrape sessions: search, normalize,
// deduplicate and record the session.
package scraping

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/budget"
	"github.com/spigell/jobintel/internal/dedup"
	"github.com/spigell/jobintel/internal/jobsource"
	"github.com/spigell/jobintel/internal/logger"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
	"github.com/spigell/jobintel/internal/utils"
)

const (
	DefaultBucketDelay = 1100 * time.Millisecond
	DefaultPageSize    = 100
	finalizeTimeout    = 10 * time.Second
)

type Searcher interface {
	SearchJobs(ctx context.Context, q jobsource.Query) (*jobsource.SearchResult, error)
}

type BudgetChecker interface {
	Check(ctx context.Context) (budget.Status, error)
}

type Normalizer interface {
	NormalizeBatch(raws []model.RawJobPosting, bucket string) []model.NormalizedJob
}

type Deduplicator interface {
	ProcessBatch(ctx context.Context, jobs []model.NormalizedJob) (*dedup.BatchResult, error)
}

type Config struct {
	Buckets     []Bucket
	Country     string
	PageSize    int
	BucketDelay time.Duration
}

// Deps are the collaborators of a scrape session.
type Deps struct {
	Source     Searcher
	Budget     BudgetChecker
	Normalizer Normalizer
	Dedup      Deduplicator
	Sessions   store.SessionStore
}

// Request starts a session. It is also the message carried by the trigger
// queue.
type Request struct {
	Buckets           []string      `json:"buckets,omitempty"`
	TriggeredBy       model.Trigger `json:"triggeredBy"`
	TriggeredByUserID string        `json:"triggeredByUserId,omitempty"`
}

// Result summarizes a finished session.
type Result struct {
	SessionID string
	Status    model.SessionStatus
	Requested []string
	Completed []string
	Failed    []string
	Skipped   []string
	Session   *model.ScrapeSession
}

type Orchestrator struct {
	deps        Deps
	buckets     []Bucket
	country     string
	pageSize    int
	bucketDelay time.Duration
	logger      *zap.Logger

	timeNow func() time.Time
	wait    func(ctx context.Context, d time.Duration) error
	newID   func() string
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Orchestrator {
	return NewWithClock(cfg, deps, logger, time.Now, utils.WaitFor)
}

// NewWithClock creates an orchestrator with an injectable clock and sleeper.
func NewWithClock(cfg Config, deps Deps, logger *zap.Logger, timeNow func() time.Time, wait func(context.Context, time.Duration) error) *Orchestrator {
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BucketDelay < 0 {
		cfg.BucketDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		deps:        deps,
		buckets:     cfg.Buckets,
		country:     cfg.Country,
		pageSize:    cfg.PageSize,
		bucketDelay: cfg.BucketDelay,
		logger:      logger,
		timeNow:     timeNow,
		wait:        wait,
		newID:       uuid.NewString,
	}
}

func (o *Orchestrator) Buckets() []Bucket {
	return append([]Bucket(nil), o.buckets...)
}

// Run scrapes the requested buckets one after another and records the
// session. Budget exhaustion skips the remaining buckets; a failing bucket
// does not stop the others. The returned error is set when the session
// stopped early because of cancellation or a store failure, or could not
// be recorded; the result is returned whenever the session was created.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	buckets, err := SelectBuckets(o.buckets, req.Buckets)
	if err != nil {
		return nil, err
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = model.TriggerAdmin
	}
	if !req.TriggeredBy.Valid() {
		return nil, fmt.Errorf("unknown trigger %q", req.TriggeredBy)
	}

	session := &model.ScrapeSession{
		ID:                o.newID(),
		BucketsRequested:  BucketNames(buckets),
		BucketsCompleted:  []string{},
		BucketsFailed:     []string{},
		BucketsSkipped:    []string{},
		BucketStats:       []model.BucketStats{},
		Status:            model.SessionInProgress,
		StartedAt:         o.timeNow(),
		TriggeredBy:       req.TriggeredBy,
		TriggeredByUserID: req.TriggeredByUserID,
		Country:           o.country,
	}
	if err := o.deps.Sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create scrape session: %w", err)
	}

	log := logger.WithSession(o.logger, session.ID, "")
	log.Info("scrape session started",
		zap.Strings("buckets", session.BucketsRequested),
		zap.String("trigger", string(req.TriggeredBy)),
	)

	runErr := o.runBuckets(ctx, session, buckets, log)
	return o.finish(ctx, session, runErr, log)
}

func (o *Orchestrator) runBuckets(ctx context.Context, session *model.ScrapeSession, buckets []Bucket, log *zap.Logger) error {
	for i, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := o.wait(ctx, o.bucketDelay); err != nil {
				return err
			}
		}

		stats, err := o.scrapeBucket(ctx, b, logger.WithSession(o.logger, session.ID, b.Name))
		session.AddBucket(stats)

		var stop error
		switch {
		case err == nil:
			session.BucketsCompleted = append(session.BucketsCompleted, b.Name)
		case errors.Is(err, budget.ErrBudgetExhausted):
			session.BucketsSkipped = append(session.BucketsSkipped, BucketNames(buckets[i:])...)
			log.Warn("monthly budget exhausted, skipping remaining buckets",
				zap.Strings("skipped", session.BucketsSkipped),
			)
		case errors.Is(err, store.ErrUnavailable), ctx.Err() != nil:
			session.BucketsFailed = append(session.BucketsFailed, b.Name)
			stop = err
		default:
			session.BucketsFailed = append(session.BucketsFailed, b.Name)
		}

		if err := o.deps.Sessions.UpdateSession(ctx, session); err != nil && stop == nil {
			stop = fmt.Errorf("update scrape session: %w", err)
		}
		if stop != nil {
			return stop
		}
		if errors.Is(err, budget.ErrBudgetExhausted) {
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) scrapeBucket(ctx context.Context, b Bucket, log *zap.Logger) (stats model.BucketStats, err error) {
	start := o.timeNow()
	stats = model.BucketStats{Bucket: b.Name, StartedAt: start}
	defer func() {
		stats.Duration = o.timeNow().Sub(start)
		if err != nil {
			stats.Error = err.Error()
			log.Warn("bucket not completed", zap.Error(err))
			return
		}
		log.Info("bucket scraped",
			zap.Int("found", stats.Found),
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("errors", stats.Errors),
			zap.Duration("duration", stats.Duration),
		)
	}()

	if _, err := o.deps.Budget.Check(ctx); err != nil {
		stats.Skipped = errors.Is(err, budget.ErrBudgetExhausted)
		stats.Errors++
		return stats, err
	}

	result, err := o.deps.Source.SearchJobs(ctx, jobsource.Query{
		Text:     b.Query,
		Country:  o.country,
		PageSize: o.pageSize,
	})
	if err != nil {
		stats.Skipped = errors.Is(err, budget.ErrBudgetExhausted)
		stats.Errors++
		return stats, err
	}
	stats.APICalls = 1
	stats.Found = len(result.Jobs)

	normalized := o.deps.Normalizer.NormalizeBatch(result.Jobs, b.Name)
	stats.Normalized = len(normalized)

	batch, err := o.deps.Dedup.ProcessBatch(ctx, normalized)
	if batch != nil {
		stats.Inserted = batch.Stats.NewJobsInserted
		stats.Updated = batch.Stats.JobsUpdated
		stats.Duplicates = batch.Stats.DuplicatesFound
		stats.Errors += batch.Stats.Errors
	}
	if err != nil {
		return stats, fmt.Errorf("persist bucket %s: %w", b.Name, err)
	}
	return stats, nil
}

// finish decides the terminal status and persists it even when ctx is
// already cancelled.
func (o *Orchestrator) finish(ctx context.Context, session *model.ScrapeSession, runErr error, log *zap.Logger) (*Result, error) {
	end := o.timeNow()
	session.CompletedAt = &end
	session.DurationMs = end.Sub(session.StartedAt).Milliseconds()

	completed := len(session.BucketsCompleted)
	cancelled := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)

	switch {
	case runErr != nil && !cancelled:
		session.Status = model.SessionFailed
		session.ErrorMessage = runErr.Error()
	case completed == len(session.BucketsRequested):
		session.Status = model.SessionCompleted
	case completed > 0:
		session.Status = model.SessionPartial
	default:
		session.Status = model.SessionFailed
	}
	if cancelled {
		session.ErrorMessage = "scrape cancelled: " + runErr.Error()
	}
	if session.Status == model.SessionFailed && session.ErrorMessage == "" {
		session.ErrorMessage = "no bucket completed"
	}

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := o.deps.Sessions.UpdateSession(finalCtx, session); err != nil {
		log.Error("failed to record scrape session", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("record scrape session: %w", err)
		}
	}

	log.Info("scrape session finished",
		zap.String("status", string(session.Status)),
		zap.Int("completed", completed),
		zap.Int("requested", len(session.BucketsRequested)),
		zap.Int("new_jobs", session.NewJobsAdded),
		zap.Int("updated_jobs", session.JobsUpdated),
		zap.Int("api_calls", session.TotalAPICalls),
		zap.Int64("duration_ms", session.DurationMs),
	)

	return &Result{
		SessionID: session.ID,
		Status:    session.Status,
		Requested: session.BucketsRequested,
		Completed: session.BucketsCompleted,
		Failed:    session.BucketsFailed,
		Skipped:   session.BucketsSkipped,
		Session:   session,
	}, runErr
}

// History returns the most recent sessions first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*model.ScrapeSession, error) {
	if limit <= 0 {
		limit = 10
	}
	sessions, err := o.deps.Sessions.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list scrape sessions: %w", err)
	}
	return sessions, nil
}
