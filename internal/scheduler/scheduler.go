// Package scheduler funnels cron, queue and manual scrape triggers into a
// single runner so sessions never overlap.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/logger"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/scraping"
)

const defaultBacklog = 8

// Runner executes one scrape session.
type Runner interface {
	Run(ctx context.Context, req scraping.Request) (*scraping.Result, error)
}

// Schedule is a cron entry, e.g. "0 */6 * * *" or "@every 6h". An empty
// bucket list scrapes every configured bucket.
type Schedule struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Spec    string   `mapstructure:"spec" yaml:"spec" validate:"required"`
	Buckets []string `mapstructure:"buckets" yaml:"buckets"`
}

type job struct {
	req  scraping.Request
	done chan<- outcome
}

type outcome struct {
	result *scraping.Result
	err    error
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	jobs    chan job
	logger  *zap.Logger
	entries int
}

// New validates every schedule up front. Backlog bounds how many triggers
// may wait behind the running session; zero picks a default.
func New(runner Runner, schedules []Schedule, backlog int, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if backlog <= 0 {
		backlog = defaultBacklog
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger.CronAdapter{Logger: log}),
			cron.WithChain(cron.Recover(logger.CronAdapter{Logger: log})),
		),
		runner: runner,
		jobs:   make(chan job, backlog),
		logger: log,
	}

	for i, sch := range schedules {
		name := strings.TrimSpace(sch.Name)
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i+1)
		}
		req := scraping.Request{Buckets: sch.Buckets, TriggeredBy: model.TriggerScheduler}
		if _, err := s.cron.AddFunc(sch.Spec, func() { s.fire(name, req) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", name, sch.Spec, err)
		}
		s.entries++
	}

	return s, nil
}

func (s *Scheduler) Entries() int {
	return s.entries
}

// fire never blocks the cron goroutine: a tick is dropped when the backlog
// is full.
func (s *Scheduler) fire(name string, req scraping.Request) {
	select {
	case s.jobs <- job{req: req}:
		s.logger.Info("scheduled scrape queued", zap.String("schedule", name))
	default:
		s.logger.Warn("scrape backlog full, skipping scheduled run", zap.String("schedule", name))
	}
}

// Submit waits for a backlog slot and then for the session to finish.
func (s *Scheduler) Submit(ctx context.Context, req scraping.Request) (*scraping.Result, error) {
	done := make(chan outcome, 1)
	select {
	case s.jobs <- job{req: req, done: done}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts the cron entries and executes queued sessions one at a time
// until ctx is done. The session in flight is cancelled with ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", s.entries))

	defer func() {
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-s.jobs:
			result, err := s.runner.Run(ctx, j.req)
			if err != nil {
				s.logger.Error("scrape session failed",
					zap.String("triggered_by", string(j.req.TriggeredBy)),
					zap.Error(err),
				)
			} else {
				s.logger.Info("scrape session finished",
					zap.String(logger.FieldSession, result.SessionID),
					zap.String("status", string(result.Status)),
				)
			}
			if j.done != nil {
				j.done <- outcome{result: result, err: err}
			}
		}
	}
}
