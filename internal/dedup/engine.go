// Package dedup reconciles normalized postings with the job store.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
)

// Policy decides what a failing job does to the rest of its batch.
type Policy string

const (
	// PolicyIsolated persists every job on its own; failures are collected.
	PolicyIsolated Policy = "isolated"
	// PolicyAtomic runs the batch in one transaction; any failure rolls
	// back the whole batch.
	PolicyAtomic Policy = "atomic"
)

func (p Policy) Valid() bool {
	return p == PolicyIsolated || p == PolicyAtomic
}

type Result struct {
	JobID         string
	ExternalJobID string
	Action        Action
}

type Failure struct {
	ExternalJobID string
	Err           error
}

// Stats are process lifetime counters until ResetStats is called.
type Stats struct {
	TotalProcessed  int `json:"totalProcessed"`
	DuplicatesFound int `json:"duplicatesFound"`
	NewJobsInserted int `json:"newJobsInserted"`
	JobsUpdated     int `json:"jobsUpdated"`
	Errors          int `json:"errors"`
}

func (s *Stats) add(o Stats) {
	s.TotalProcessed += o.TotalProcessed
	s.DuplicatesFound += o.DuplicatesFound
	s.NewJobsInserted += o.NewJobsInserted
	s.JobsUpdated += o.JobsUpdated
	s.Errors += o.Errors
}

func (s *Stats) count(r *Result, err error) {
	s.TotalProcessed++
	if err != nil {
		s.Errors++
		return
	}
	switch r.Action {
	case ActionInserted:
		s.NewJobsInserted++
	case ActionUpdated:
		s.JobsUpdated++
		s.DuplicatesFound++
	}
}

// BatchResult reports one ProcessBatch call. Stats cover this batch only.
type BatchResult struct {
	Results  []Result
	Failures []Failure
	Stats    Stats
}

type Engine struct {
	store   store.JobStore
	policy  Policy
	logger  *zap.Logger
	timeNow func() time.Time

	mu    sync.Mutex
	stats Stats
}

func New(s store.JobStore, policy Policy, logger *zap.Logger) *Engine {
	return NewWithClock(s, policy, logger, time.Now)
}

func NewWithClock(s store.JobStore, policy Policy, logger *zap.Logger, timeNow func() time.Time) *Engine {
	if !policy.Valid() {
		policy = PolicyIsolated
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   s,
		policy:  policy,
		logger:  logger,
		timeNow: timeNow,
	}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// ProcessJob inserts the job when its external id is new and otherwise
// replaces the stored record in full.
func (e *Engine) ProcessJob(ctx context.Context, job *model.NormalizedJob) (*Result, error) {
	res, err := e.process(ctx, e.store, job)

	e.mu.Lock()
	e.stats.count(res, err)
	e.mu.Unlock()

	return res, err
}

func (e *Engine) process(ctx context.Context, s store.JobStore, job *model.NormalizedJob) (*Result, error) {
	now := e.timeNow()

	existing, err := s.FindByExternalID(ctx, job.ExternalJobID)
	switch {
	case err == nil:
		replacement := model.NewJob(*job, now)
		replacement.ID = existing.ID
		replacement.CreatedAt = existing.CreatedAt

		if err := s.Update(ctx, replacement); err != nil {
			return nil, fmt.Errorf("update job %s: %w", job.ExternalJobID, err)
		}

		e.logger.Debug("job updated",
			zap.String("external_job_id", job.ExternalJobID),
			zap.String("job_id", existing.ID),
		)
		return &Result{JobID: existing.ID, ExternalJobID: job.ExternalJobID, Action: ActionUpdated}, nil

	case errors.Is(err, store.ErrNotFound):
		id, err := s.Insert(ctx, model.NewJob(*job, now))
		if err != nil {
			return nil, fmt.Errorf("insert job %s: %w", job.ExternalJobID, err)
		}

		e.logger.Debug("job inserted",
			zap.String("external_job_id", job.ExternalJobID),
			zap.String("job_id", id),
		)
		return &Result{JobID: id, ExternalJobID: job.ExternalJobID, Action: ActionInserted}, nil

	default:
		return nil, fmt.Errorf("lookup job %s: %w", job.ExternalJobID, err)
	}
}

// ProcessBatch persists jobs according to the engine policy.
//
// Under PolicyIsolated a failing job is recorded in Failures and the batch
// goes on; only context and store-unavailable errors stop it and are
// returned. Under PolicyAtomic the first failure rolls back every write of
// the batch and is returned.
func (e *Engine) ProcessBatch(ctx context.Context, jobs []model.NormalizedJob) (*BatchResult, error) {
	if e.policy == PolicyAtomic {
		return e.processAtomic(ctx, jobs)
	}
	return e.processIsolated(ctx, jobs)
}

func (e *Engine) processIsolated(ctx context.Context, jobs []model.NormalizedJob) (*BatchResult, error) {
	out := &BatchResult{}

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := e.ProcessJob(ctx, &jobs[i])
		out.Stats.count(res, err)

		if err != nil {
			out.Failures = append(out.Failures, Failure{ExternalJobID: jobs[i].ExternalJobID, Err: err})
			e.logger.Warn("job not persisted",
				zap.String("external_job_id", jobs[i].ExternalJobID),
				zap.Error(err),
			)
			if errors.Is(err, store.ErrUnavailable) || ctx.Err() != nil {
				return out, err
			}
			continue
		}
		out.Results = append(out.Results, *res)
	}

	e.logger.Debug("batch processed",
		zap.String("policy", string(PolicyIsolated)),
		zap.Int("jobs", len(jobs)),
		zap.Int("failures", len(out.Failures)),
	)
	return out, nil
}

func (e *Engine) processAtomic(ctx context.Context, jobs []model.NormalizedJob) (*BatchResult, error) {
	out := &BatchResult{}

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.JobStore) error {
		// a retried transaction starts over
		out = &BatchResult{}
		for i := range jobs {
			res, err := e.process(ctx, tx, &jobs[i])
			out.Stats.count(res, err)
			if err != nil {
				out.Failures = append(out.Failures, Failure{ExternalJobID: jobs[i].ExternalJobID, Err: err})
				return err
			}
			out.Results = append(out.Results, *res)
		}
		return nil
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		// nothing was persisted, so only the failure is counted
		e.stats.Errors++
		e.logger.Warn("batch rolled back",
			zap.String("policy", string(PolicyAtomic)),
			zap.Int("jobs", len(jobs)),
			zap.Error(err),
		)
		return &BatchResult{Failures: out.Failures, Stats: Stats{Errors: 1}}, err
	}

	e.stats.add(out.Stats)
	return out, nil
}

// Change is the before and after value of one field.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type ChangeReport struct {
	Duplicate     bool              `json:"duplicate"`
	ExistingJobID string            `json:"existingJobId,omitempty"`
	Changes       map[string]Change `json:"changes,omitempty"`
}

// DetectChanges compares job with the stored record of the same external
// id. It does not write anything.
func (e *Engine) DetectChanges(ctx context.Context, job *model.NormalizedJob) (*ChangeReport, error) {
	existing, err := e.store.FindByExternalID(ctx, job.ExternalJobID)
	if errors.Is(err, store.ErrNotFound) {
		return &ChangeReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup job %s: %w", job.ExternalJobID, err)
	}

	changes := map[string]Change{}
	if existing.Title != job.Title {
		changes["title"] = Change{Old: existing.Title, New: job.Title}
	}
	if existing.Description != job.Description {
		changes["description"] = Change{Old: existing.Description, New: job.Description}
	}
	if existing.Salary != job.Salary {
		changes["salary"] = Change{Old: existing.Salary, New: job.Salary}
	}
	if existing.Status != model.JobStatusActive && job.IsActive {
		changes["status"] = Change{Old: existing.Status, New: model.JobStatusActive}
	}

	report := &ChangeReport{Duplicate: true, ExistingJobID: existing.ID}
	if len(changes) > 0 {
		report.Changes = changes
	}
	return report, nil
}

// CheckMultiSourceDuplicate returns stored jobs with the same normalized
// title and company, and location when given, whatever their source id.
func (e *Engine) CheckMultiSourceDuplicate(ctx context.Context, title, company, location string) ([]*model.Job, error) {
	jobs, err := e.store.FindDuplicates(ctx,
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(company)),
		location,
	)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	return jobs, nil
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) ResetStats() {
	e.mu.Lock()
	e.stats = Stats{}
	e.mu.Unlock()
}
