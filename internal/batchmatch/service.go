// Package batchmatch ranks stored jobs for user profiles and records the
// resulting matches.
package batchmatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobintel/internal/filtering"
	"github.com/spigell/jobintel/internal/logger"
	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

const defaultConcurrency = 4

type JobLister interface {
	ListActive(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
}

type Config struct {
	Filters filtering.Config
	// JobLimit caps how many active jobs are scored per user; 0 means all.
	JobLimit    int
	Concurrency int
}

type Service struct {
	jobs    JobLister
	matches store.MatchStore
	engine  *matching.Engine
	cfg     Config
	logger  *zap.Logger
	timeNow func() time.Time
}

// New creates the service. matches may be nil, in which case nothing is
// persisted.
func New(jobs JobLister, matches store.MatchStore, engine *matching.Engine, cfg Config, logger *zap.Logger) *Service {
	return NewWithClock(jobs, matches, engine, cfg, logger, time.Now)
}

func NewWithClock(jobs JobLister, matches store.MatchStore, engine *matching.Engine, cfg Config, logger *zap.Logger, timeNow func() time.Time) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		jobs:    jobs,
		matches: matches,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		timeNow: timeNow,
	}
}

// Report is the outcome of matching one user.
type Report struct {
	UserID     string
	Considered int
	Matches    []matching.Ranked
	Steps      []filtering.Step
	// Filters lists every filter with its settings, disabled ones included.
	Filters []filtering.Status
	Saved   int
}

// MatchUser ranks active jobs for the profile, filters them and, when
// userID is set, upserts the surviving matches.
func (s *Service) MatchUser(ctx context.Context, userID string, profile model.UserProfile) (*Report, error) {
	now := s.timeNow()
	log := logger.WithFields(s.logger, logger.StringFields(logger.StringField{Key: logger.FieldUser, Value: userID})...)

	jobs, err := s.jobs.ListActive(ctx, now, s.cfg.JobLimit)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}

	ranked := s.engine.MatchToMultipleJobs(profile, jobs)

	steps := filtering.Default()
	if len(profile.TargetDomains) == 0 {
		filtering.DisableByName(steps, "domains", "profile has no target domains")
	}

	filtered, executed, err := filtering.Run(ctx, &s.cfg.Filters, filtering.Deps{
		Logger:  log,
		Profile: &profile,
		Now:     now,
	}, steps, filtering.NewMatches(ranked))
	if err != nil {
		return nil, fmt.Errorf("filter matches: %w", err)
	}

	report := &Report{
		UserID:     userID,
		Considered: len(jobs),
		Matches:    filtered.Items,
		Steps:      executed,
		Filters:    filtering.Describe(steps),
	}

	if userID != "" && s.matches != nil && len(filtered.Items) > 0 {
		records := make([]*model.JobMatch, 0, len(filtered.Items))
		for _, r := range filtered.Items {
			records = append(records, &model.JobMatch{
				UserID:        userID,
				JobID:         r.Job.ID,
				ExternalJobID: r.Job.ExternalJobID,
				Score:         r.Score,
				MatchType:     matching.ClassifyMatch(r.Score.TotalScore),
				Status:        model.MatchStatusMatched,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err := s.matches.SaveMatches(ctx, records); err != nil {
			return nil, fmt.Errorf("save matches: %w", err)
		}
		report.Saved = len(records)
	}

	log.Info("user matched",
		zap.Int("considered", report.Considered),
		zap.Int("matched", len(report.Matches)),
		zap.Int("saved", report.Saved),
	)
	return report, nil
}

type UserProfileRequest struct {
	UserID  string
	Profile model.UserProfile
}

// MatchUsers matches every user with bounded concurrency. Reports keep the
// order of reqs. The first error cancels the remaining work.
func (s *Service) MatchUsers(ctx context.Context, reqs []UserProfileRequest) ([]*Report, error) {
	reports := make([]*Report, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			report, err := s.MatchUser(ctx, req.UserID, req.Profile)
			if err != nil {
				return fmt.Errorf("user %s: %w", req.UserID, err)
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
